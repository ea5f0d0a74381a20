// Package client ties the transport channel, the stanza correlator and the
// event dispatcher together into a single chat session handle.
package client

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meszmate/quickchat/internal/correlate"
	"github.com/meszmate/quickchat/internal/dispatch"
	"github.com/meszmate/quickchat/internal/logging"
	"github.com/meszmate/quickchat/internal/privacy"
	"github.com/meszmate/quickchat/internal/roster"
	"github.com/meszmate/quickchat/internal/stanza"
	"github.com/meszmate/quickchat/internal/transport"
)

// State is the session lifecycle state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Authenticating
	Ready
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// ReconnectPolicy drives automatic reconnection after an unexpected link
// loss. It never applies to the initial connect, and it never replays
// in-flight sends or requests.
type ReconnectPolicy struct {
	Enabled     bool
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// Config carries the account scope and session timeouts.
type Config struct {
	AppID          int
	Domain         string
	LoginTimeout   time.Duration
	RequestTimeout time.Duration
	Reconnect      ReconnectPolicy
}

// Session is one live chat session. Exactly one connection is active per
// Session; listeners and timeouts are scoped to it.
type Session struct {
	cfg  Config
	ch   transport.Channel
	corr *correlate.Correlator
	disp *dispatch.Dispatcher
	priv *privacy.Manager

	state atomic.Int32

	mu           sync.Mutex
	creds        transport.Credentials
	roster       *roster.Snapshot
	closed       bool
	reconnecting bool
}

// New creates a session over the channel and starts the inbound delivery
// path. The session is usable after Connect succeeds.
func New(cfg Config, ch transport.Channel) *Session {
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 10 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = time.Second
	}

	s := &Session{cfg: cfg, ch: ch}
	s.corr = correlate.New(ch.Send)
	s.disp = dispatch.New(s.corr)
	s.priv = privacy.NewManager(s.corr, cfg.RequestTimeout, s.userAddr)

	go s.pumpInbound()
	go s.watchLink()
	return s
}

// Connect establishes and authenticates the connection, captures the roster
// snapshot and announces presence. It blocks until the session is Ready or
// the login timeout expires; on expiry the state resets to Disconnected and
// the call fails with a login-timeout error.
func (s *Session) Connect(ctx context.Context, creds transport.Credentials) (*roster.Snapshot, error) {
	if !s.state.CompareAndSwap(int32(Disconnected), int32(Connecting)) {
		return nil, fmt.Errorf("session already %s", s.State())
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.LoginTimeout)
	defer cancel()

	if err := s.ch.Connect(cctx, creds); err != nil {
		s.state.Store(int32(Disconnected))
		return nil, loginError(cctx, err)
	}
	s.state.Store(int32(Authenticating))

	snap, err := s.fetchRoster(cctx)
	if err != nil {
		s.ch.Disconnect()
		s.state.Store(int32(Disconnected))
		return nil, loginError(cctx, err)
	}

	if err := s.ch.Send(stanza.NewPresence()); err != nil {
		s.ch.Disconnect()
		s.state.Store(int32(Disconnected))
		return nil, err
	}

	s.mu.Lock()
	s.creds = creds
	s.roster = snap
	s.mu.Unlock()

	s.state.Store(int32(Ready))
	logging.Info("session ready for user %d", creds.UserID)
	return snap, nil
}

// loginError maps failures caused by the expired login window onto the
// login-timeout reason. Other failures pass through unchanged.
func loginError(ctx context.Context, err error) error {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	var ce *transport.ConnError
	if errors.As(err, &ce) && ce.Reason == transport.ReasonAuthFailed {
		return err
	}
	return &transport.ConnError{Reason: transport.ReasonLoginTimeout, Err: err}
}

func (s *Session) fetchRoster(ctx context.Context) (*roster.Snapshot, error) {
	iq := stanza.NewIQ("get", stanza.Node{XMLName: xml.Name{Space: stanza.NSRoster, Local: "query"}})
	resp, err := s.corr.Request(ctx, iq, s.cfg.LoginTimeout)
	if err != nil {
		return nil, fmt.Errorf("roster request failed: %w", err)
	}
	return roster.FromIQ(resp)
}

// pumpInbound is the single inbound reader. Stanzas are dispatched
// sequentially in arrival order for the lifetime of the channel.
func (s *Session) pumpInbound() {
	for st := range s.ch.Inbound() {
		s.disp.Dispatch(st)
	}
}

func (s *Session) watchLink() {
	for ev := range s.ch.Events() {
		if ev.State != transport.Lost {
			continue
		}

		logging.Warn("connection lost: %v", ev.Err)
		s.state.Store(int32(Disconnected))
		s.corr.FailAll(correlate.ErrConnectionLost)

		s.mu.Lock()
		start := s.cfg.Reconnect.Enabled && !s.closed && !s.reconnecting
		if start {
			s.reconnecting = true
		}
		s.mu.Unlock()
		if start {
			go s.reconnect()
		}
	}
}

// reconnect re-drives Connect with exponential backoff. Requests failed by
// the link loss are not replayed; callers must resubmit.
func (s *Session) reconnect() {
	defer func() {
		s.mu.Lock()
		s.reconnecting = false
		s.mu.Unlock()
	}()

	delay := s.cfg.Reconnect.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	for attempt := 1; s.cfg.Reconnect.MaxAttempts == 0 || attempt <= s.cfg.Reconnect.MaxAttempts; attempt++ {
		time.Sleep(delay)

		s.mu.Lock()
		closed := s.closed
		creds := s.creds
		s.mu.Unlock()
		if closed {
			return
		}

		logging.Info("reconnect attempt %d for user %d", attempt, creds.UserID)
		if _, err := s.Connect(context.Background(), creds); err != nil {
			logging.Warn("reconnect attempt %d failed: %v", attempt, err)
		} else {
			return
		}

		delay *= 2
		if max := s.cfg.Reconnect.MaxDelay; max > 0 && delay > max {
			delay = max
		}
	}
	logging.Error("giving up after %d reconnect attempts", s.cfg.Reconnect.MaxAttempts)
}

// Disconnect tears the session down. It is the only cancellation primitive:
// every pending request fails immediately, but already-sent messages are
// not retracted.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.state.Store(int32(Disconnected))
	s.corr.FailAll(correlate.ErrConnectionLost)
	return s.ch.Disconnect()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Roster returns the contact snapshot captured at the most recent
// successful login, or nil before the first one.
func (s *Session) Roster() *roster.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster
}

// PrivacyLists returns the privacy-list manager bound to this session.
func (s *Session) PrivacyLists() *privacy.Manager {
	return s.priv
}

func (s *Session) userAddr(userID int) string {
	return stanza.UserJID(userID, s.cfg.AppID, s.cfg.Domain)
}
