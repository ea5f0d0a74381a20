package client

// Listener registration delegates to the dispatcher. One listener per event
// kind is active at a time; a later registration replaces the earlier one.
// Listeners run on the inbound delivery path and must not block.

// OnMessage registers the chat message listener.
func (s *Session) OnMessage(fn func(userID int, msg Message)) {
	s.disp.OnMessage(fn)
}

// OnSystemMessage registers the system message listener.
func (s *Session) OnSystemMessage(fn func(userID int, msg Message)) {
	s.disp.OnSystemMessage(fn)
}

// OnDeliveredStatus registers the delivery receipt listener.
func (s *Session) OnDeliveredStatus(fn func(messageID, dialogID string, userID int)) {
	s.disp.OnDelivered(fn)
}

// OnReadStatus registers the read receipt listener.
func (s *Session) OnReadStatus(fn func(messageID, dialogID string, userID int)) {
	s.disp.OnRead(fn)
}

// OnMessageTyping registers the typing notification listener. dialogID is
// empty for one-to-one chats.
func (s *Session) OnMessageTyping(fn func(composing bool, userID int, dialogID string)) {
	s.disp.OnTyping(fn)
}
