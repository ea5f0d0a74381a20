package client

import (
	"github.com/meszmate/quickchat/internal/stanza"
	"github.com/meszmate/quickchat/internal/transport"
)

// Message is the outbound message shape. The extension mapping is opaque to
// the core; a markable message asks the recipient for receipts.
type Message = stanza.Message

// StatusParams reference an earlier message in a receipt.
type StatusParams struct {
	MessageID string
	DialogID  string
	UserID    int
}

// Send delivers a chat message to a user. When msg.ID is empty a fresh
// identifier is generated and written back, so the caller can observe it
// after the call returns; an explicit id is never touched.
func (s *Session) Send(recipientID int, msg *Message) error {
	if err := s.ready(); err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = stanza.GenerateID()
	}
	return s.ch.Send(stanza.NewChatMessage(s.userAddr(recipientID), msg.ID, msg.Extension, msg.Markable))
}

// SendSystemMessage delivers a system message. Same pipeline as Send with a
// fixed type tag and no markable semantics.
func (s *Session) SendSystemMessage(recipientID int, msg *Message) error {
	if err := s.ready(); err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = stanza.GenerateID()
	}
	return s.ch.Send(stanza.NewSystemMessage(s.userAddr(recipientID), msg.ID, msg.Extension))
}

// SendDeliveredStatus acknowledges delivery of a message. Fire-and-forget:
// no correlation, no response expected.
func (s *Session) SendDeliveredStatus(p StatusParams) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.ch.Send(stanza.NewDelivered(s.userAddr(p.UserID), p.MessageID, p.DialogID))
}

// SendReadStatus acknowledges that a message was read. Fire-and-forget.
func (s *Session) SendReadStatus(p StatusParams) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.ch.Send(stanza.NewRead(s.userAddr(p.UserID), p.MessageID, p.DialogID))
}

// SendIsTypingStatus signals that the user started composing. Repeated
// calls are not debounced.
func (s *Session) SendIsTypingStatus(recipientID int) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.ch.Send(stanza.NewTyping(s.userAddr(recipientID), true))
}

// SendIsStopTypingStatus signals that the user stopped composing.
func (s *Session) SendIsStopTypingStatus(recipientID int) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.ch.Send(stanza.NewTyping(s.userAddr(recipientID), false))
}

func (s *Session) ready() error {
	if s.State() != Ready {
		return &transport.SendError{Reason: transport.ReasonNotConnected}
	}
	return nil
}
