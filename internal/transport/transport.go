// Package transport owns the raw bidirectional stream to the chat server.
package transport

import (
	"context"

	"github.com/meszmate/quickchat/internal/stanza"
)

// Credentials authenticate a user account on the chat endpoint.
type Credentials struct {
	UserID   int
	Password string
}

// State is the link state reported on the event channel.
type State int

const (
	// Connected means the stream is established and authenticated.
	Connected State = iota
	// Lost means the link dropped unexpectedly.
	Lost
)

// Event is a link-state change notification.
type Event struct {
	State State
	Err   error
}

// Channel is a persistent, authenticated stanza stream. Inbound stanzas are
// delivered in arrival order on a single channel; link-state changes arrive
// on Events. Implementations must keep both channels open across
// reconnects so consumers can range over them for the channel's lifetime.
type Channel interface {
	Connect(ctx context.Context, creds Credentials) error
	Send(st *stanza.Stanza) error
	Inbound() <-chan *stanza.Stanza
	Events() <-chan Event
	Disconnect() error
}
