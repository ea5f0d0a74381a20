package stanza

import (
	"errors"
	"fmt"
)

// Kind identifies what an inbound stanza carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindChatMessage
	KindSystemMessage
	KindDelivered
	KindRead
	KindTyping
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindChatMessage:
		return "chat-message"
	case KindSystemMessage:
		return "system-message"
	case KindDelivered:
		return "delivered"
	case KindRead:
		return "read"
	case KindTyping:
		return "typing"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Message is a decoded chat or system message.
type Message struct {
	ID        string
	Type      string // "chat" or "system"
	Extension map[string]string
	Markable  bool
}

// Receipt is a decoded delivery or read acknowledgement.
type Receipt struct {
	MessageID string
	DialogID  string
	UserID    int
}

// Typing is a decoded typing notification. DialogID is empty for one-to-one
// chats and set for group dialogs.
type Typing struct {
	Composing bool
	UserID    int
	DialogID  string
}

// Classify determines the kind of an inbound stanza. Stanzas that look like
// a known kind but fail its decoding rules classify as unknown; they are
// dropped by the dispatcher rather than surfaced as errors.
func Classify(st *Stanza) Kind {
	switch st.XMLName.Local {
	case "iq":
		if st.Type == "result" || st.Type == "error" {
			return KindResponse
		}
		return KindUnknown
	case "message":
		if st.ChildNS(NSReceipts, "received") != nil {
			if _, err := DecodeReceipt(st); err != nil {
				return KindUnknown
			}
			return KindDelivered
		}
		if st.ChildNS(NSChatMarker, "displayed") != nil {
			if _, err := DecodeReceipt(st); err != nil {
				return KindUnknown
			}
			return KindRead
		}
		if st.ChildNS(NSChatState, "composing") != nil || st.ChildNS(NSChatState, "paused") != nil {
			if _, err := DecodeTyping(st); err != nil {
				return KindUnknown
			}
			return KindTyping
		}
		if _, _, err := DecodeMessage(st); err != nil {
			return KindUnknown
		}
		if st.Type == "headline" {
			return KindSystemMessage
		}
		return KindChatMessage
	}
	return KindUnknown
}

// DecodeMessage extracts the sender and message payload from a chat or
// system message stanza.
func DecodeMessage(st *Stanza) (int, Message, error) {
	userID, _, err := Sender(st.From)
	if err != nil {
		return 0, Message{}, err
	}

	msg := Message{ID: st.ID, Type: "chat"}
	if st.Type == "headline" {
		msg.Type = "system"
	}
	if params := st.Child("extraParams"); params != nil {
		msg.Extension = make(map[string]string)
		for _, p := range params.Children() {
			msg.Extension[p.XMLName.Local] = p.Text()
		}
	}
	if st.ChildNS(NSChatMarker, "markable") != nil {
		msg.Markable = true
	}
	return userID, msg, nil
}

// DecodeReceipt extracts a delivery or read acknowledgement. All three of
// messageId, dialogId and userId are required.
func DecodeReceipt(st *Stanza) (Receipt, error) {
	marker := st.ChildNS(NSReceipts, "received")
	if marker == nil {
		marker = st.ChildNS(NSChatMarker, "displayed")
	}
	if marker == nil {
		return Receipt{}, errors.New("no receipt element")
	}

	r := Receipt{MessageID: marker.Attr("id")}
	if params := st.Child("extraParams"); params != nil {
		if d := params.Child("dialog_id"); d != nil {
			r.DialogID = d.Text()
		}
	}
	userID, _, err := Sender(st.From)
	if err != nil {
		return Receipt{}, err
	}
	r.UserID = userID

	if r.MessageID == "" {
		return Receipt{}, errors.New("receipt missing message id")
	}
	if r.DialogID == "" {
		return Receipt{}, errors.New("receipt missing dialog id")
	}
	return r, nil
}

// DecodeTyping extracts a typing notification.
func DecodeTyping(st *Stanza) (Typing, error) {
	userID, dialogID, err := Sender(st.From)
	if err != nil {
		return Typing{}, fmt.Errorf("typing notification: %w", err)
	}
	return Typing{
		Composing: st.ChildNS(NSChatState, "composing") != nil,
		UserID:    userID,
		DialogID:  dialogID,
	}, nil
}
