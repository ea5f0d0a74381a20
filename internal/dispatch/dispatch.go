// Package dispatch routes inbound stanzas to listeners by kind.
package dispatch

import (
	"sync/atomic"

	"github.com/meszmate/quickchat/internal/logging"
	"github.com/meszmate/quickchat/internal/stanza"
)

// Resolver hands correlated responses back to their pending requests.
type Resolver interface {
	Resolve(*stanza.Stanza) bool
}

// MessageListener receives decoded chat and system messages.
type MessageListener func(userID int, msg stanza.Message)

// StatusListener receives delivery and read acknowledgements.
type StatusListener func(messageID, dialogID string, userID int)

// TypingListener receives typing notifications. dialogID is empty for
// one-to-one chats.
type TypingListener func(composing bool, userID int, dialogID string)

// Dispatcher classifies inbound stanzas and invokes the single registered
// listener for each kind. Registration is last-wins: assigning a listener
// replaces the previous one atomically, so a swap during dispatch never
// exposes a half-updated reference. Listeners run on the inbound delivery
// path and must not block; long-running work belongs on a worker.
type Dispatcher struct {
	resolver Resolver

	onMessage   atomic.Pointer[MessageListener]
	onSystem    atomic.Pointer[MessageListener]
	onDelivered atomic.Pointer[StatusListener]
	onRead      atomic.Pointer[StatusListener]
	onTyping    atomic.Pointer[TypingListener]
}

// New creates a dispatcher routing correlated responses to the resolver.
func New(resolver Resolver) *Dispatcher {
	return &Dispatcher{resolver: resolver}
}

// OnMessage registers the chat message listener. A nil listener clears it.
func (d *Dispatcher) OnMessage(fn MessageListener) { store(&d.onMessage, fn) }

// OnSystemMessage registers the system message listener.
func (d *Dispatcher) OnSystemMessage(fn MessageListener) { store(&d.onSystem, fn) }

// OnDelivered registers the delivery receipt listener.
func (d *Dispatcher) OnDelivered(fn StatusListener) { store(&d.onDelivered, fn) }

// OnRead registers the read receipt listener.
func (d *Dispatcher) OnRead(fn StatusListener) { store(&d.onRead, fn) }

// OnTyping registers the typing notification listener.
func (d *Dispatcher) OnTyping(fn TypingListener) { store(&d.onTyping, fn) }

func store[T any](slot *atomic.Pointer[T], fn T) {
	slot.Store(&fn)
}

// Dispatch routes one inbound stanza. Unknown stanzas and undecodable
// payloads are dropped with a diagnostic, never surfaced as errors.
func (d *Dispatcher) Dispatch(st *stanza.Stanza) {
	switch kind := stanza.Classify(st); kind {
	case stanza.KindResponse:
		if !d.resolver.Resolve(st) {
			logging.Debug("dispatch: discarding unmatched response %q", st.ID)
		}
	case stanza.KindChatMessage:
		if fn := d.onMessage.Load(); fn != nil && *fn != nil {
			userID, msg, err := stanza.DecodeMessage(st)
			if err != nil {
				logging.Debug("dispatch: dropping chat message: %v", err)
				return
			}
			(*fn)(userID, msg)
		}
	case stanza.KindSystemMessage:
		if fn := d.onSystem.Load(); fn != nil && *fn != nil {
			userID, msg, err := stanza.DecodeMessage(st)
			if err != nil {
				logging.Debug("dispatch: dropping system message: %v", err)
				return
			}
			(*fn)(userID, msg)
		}
	case stanza.KindDelivered:
		if fn := d.onDelivered.Load(); fn != nil && *fn != nil {
			r, err := stanza.DecodeReceipt(st)
			if err != nil {
				logging.Debug("dispatch: dropping delivery receipt: %v", err)
				return
			}
			(*fn)(r.MessageID, r.DialogID, r.UserID)
		}
	case stanza.KindRead:
		if fn := d.onRead.Load(); fn != nil && *fn != nil {
			r, err := stanza.DecodeReceipt(st)
			if err != nil {
				logging.Debug("dispatch: dropping read receipt: %v", err)
				return
			}
			(*fn)(r.MessageID, r.DialogID, r.UserID)
		}
	case stanza.KindTyping:
		if fn := d.onTyping.Load(); fn != nil && *fn != nil {
			ty, err := stanza.DecodeTyping(st)
			if err != nil {
				logging.Debug("dispatch: dropping typing notification: %v", err)
				return
			}
			(*fn)(ty.Composing, ty.UserID, ty.DialogID)
		}
	default:
		logging.Debug("dispatch: dropping unrecognized <%s> stanza", st.XMLName.Local)
	}
}
