// Package correlate matches outbound requests with their asynchronous
// responses by stanza identifier.
package correlate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/meszmate/quickchat/internal/stanza"
)

// ErrTimeout is returned when no response arrives within the request's
// timeout. Other in-flight requests are unaffected.
var ErrTimeout = errors.New("request timed out")

// ErrConnectionLost is returned for every outstanding request when the
// connection drops. Requests are never silently retried.
var ErrConnectionLost = errors.New("connection lost")

// SendFunc forwards a stanza to the transport channel.
type SendFunc func(*stanza.Stanza) error

type outcome struct {
	st  *stanza.Stanza
	err error
}

// Correlator assigns correlation identifiers to outbound requests and
// resolves each pending request exactly once: with the matching response,
// with ErrTimeout, or with ErrConnectionLost, whichever comes first.
type Correlator struct {
	send SendFunc

	mu      sync.Mutex
	pending map[string]chan outcome
	counter uint64
	prefix  string
}

// New creates a correlator that sends requests through the given function.
func New(send SendFunc) *Correlator {
	return &Correlator{
		send:    send,
		pending: make(map[string]chan outcome),
		prefix:  stanza.GenerateID(),
	}
}

// nextID returns an identifier unique among outstanding requests. The
// monotonic counter guarantees uniqueness; the random prefix keeps ids from
// different sessions distinct on the wire.
func (c *Correlator) nextID() string {
	c.counter++
	return fmt.Sprintf("%s-%d", c.prefix, c.counter)
}

// Request assigns a correlation id to the stanza, sends it and blocks until
// the response arrives, the timeout expires, the context is done, or the
// connection is lost.
func (c *Correlator) Request(ctx context.Context, st *stanza.Stanza, timeout time.Duration) (*stanza.Stanza, error) {
	ch := make(chan outcome, 1)

	c.mu.Lock()
	id := c.nextID()
	st.ID = id
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.send(st); err != nil {
		c.remove(id)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		return out.st, out.err
	case <-timer.C:
		if c.remove(id) {
			return nil, ErrTimeout
		}
		// A response won the race against the timer.
		out := <-ch
		return out.st, out.err
	case <-ctx.Done():
		if c.remove(id) {
			return nil, ctx.Err()
		}
		out := <-ch
		return out.st, out.err
	}
}

// Resolve delivers a response to the pending request carrying its id.
// It reports false for unknown or already-resolved identifiers; such
// responses are the caller's to discard.
func (c *Correlator) Resolve(st *stanza.Stanza) bool {
	c.mu.Lock()
	ch, ok := c.pending[st.ID]
	if ok {
		delete(c.pending, st.ID)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	ch <- outcome{st: st}
	return true
}

// FailAll resolves every outstanding request with the given error. Used on
// disconnect, where err is ErrConnectionLost.
func (c *Correlator) FailAll(err error) {
	c.mu.Lock()
	failed := c.pending
	c.pending = make(map[string]chan outcome)
	c.mu.Unlock()

	for _, ch := range failed {
		ch <- outcome{err: err}
	}
}

// Outstanding reports the number of unresolved requests.
func (c *Correlator) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; !ok {
		return false
	}
	delete(c.pending, id)
	return true
}
