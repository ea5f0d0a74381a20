package transport

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"mellium.im/sasl"
	"mellium.im/xmpp"
	"mellium.im/xmpp/jid"

	"github.com/meszmate/quickchat/internal/logging"
	"github.com/meszmate/quickchat/internal/stanza"
)

// XMPPConfig configures the stream endpoint.
type XMPPConfig struct {
	AppID    int
	Host     string
	Port     int
	Domain   string
	Resource string

	// SendTimeout bounds a single outbound write; expiry maps to
	// backpressure.
	SendTimeout time.Duration

	// TLS overrides the default TLS configuration when set.
	TLS *tls.Config
}

// XMPP is the Channel implementation over a TLS XMPP stream.
type XMPP struct {
	cfg XMPPConfig

	mu        sync.RWMutex
	session   *xmpp.Session
	conn      net.Conn
	connected bool
	closing   bool
	cancel    context.CancelFunc

	inbound chan *stanza.Stanza
	events  chan Event
}

var _ Channel = (*XMPP)(nil)

// NewXMPP creates a channel for the given endpoint.
func NewXMPP(cfg XMPPConfig) *XMPP {
	if cfg.Port == 0 {
		cfg.Port = 5222
	}
	if cfg.Host == "" {
		cfg.Host = cfg.Domain
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	return &XMPP{
		cfg:     cfg,
		inbound: make(chan *stanza.Stanza, 64),
		events:  make(chan Event, 8),
	}
}

// Connect dials the endpoint, negotiates TLS and SASL and binds a resource.
func (c *XMPP) Connect(ctx context.Context, creds Credentials) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	addr := stanza.UserJID(creds.UserID, c.cfg.AppID, c.cfg.Domain)
	j, err := jid.Parse(addr)
	if err != nil {
		return &ConnError{Reason: ReasonAuthFailed, Err: fmt.Errorf("invalid account address: %w", err)}
	}
	if c.cfg.Resource != "" {
		j, err = j.WithResource(c.cfg.Resource)
		if err != nil {
			return &ConnError{Reason: ReasonAuthFailed, Err: fmt.Errorf("invalid resource: %w", err)}
		}
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port))
	if err != nil {
		return &ConnError{Reason: dialReason(ctx, err), Err: err}
	}

	tlsConfig := c.cfg.TLS
	if tlsConfig == nil {
		tlsConfig = &tls.Config{
			ServerName: c.cfg.Domain,
			MinVersion: tls.VersionTLS12,
		}
	}

	negotiator := xmpp.NewNegotiator(func(_ *xmpp.Session, _ *xmpp.StreamConfig) xmpp.StreamConfig {
		return xmpp.StreamConfig{
			Features: []xmpp.StreamFeature{
				xmpp.StartTLS(tlsConfig),
				xmpp.SASL("", creds.Password, sasl.ScramSha256, sasl.ScramSha1, sasl.Plain),
				xmpp.BindResource(),
			},
		}
	})

	session, err := xmpp.NewSession(ctx, j.Domain(), j, conn, 0, negotiator)
	if err != nil {
		conn.Close()
		return &ConnError{Reason: negotiateReason(ctx, err), Err: err}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.session = session
	c.conn = conn
	c.connected = true
	c.closing = false
	c.cancel = cancel

	go c.readLoop(runCtx, session)

	select {
	case c.events <- Event{State: Connected}:
	default:
	}
	return nil
}

func dialReason(ctx context.Context, err error) ConnReason {
	var netErr net.Error
	if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ReasonTimeout
	}
	return ReasonNetworkUnreachable
}

func negotiateReason(ctx context.Context, err error) ConnReason {
	if ctx.Err() != nil {
		return ReasonTimeout
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "sasl") || strings.Contains(msg, "auth") || strings.Contains(msg, "not-authorized") {
		return ReasonAuthFailed
	}
	return ReasonNetworkUnreachable
}

// readLoop turns the token stream into stanzas on the inbound channel. It
// runs until the stream fails or the channel is disconnected.
func (c *XMPP) readLoop(ctx context.Context, session *xmpp.Session) {
	d := xml.NewTokenDecoder(session.TokenReader())
	for {
		tok, err := d.Token()
		if err != nil {
			c.lost(err)
			return
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		var st stanza.Stanza
		if err := d.DecodeElement(&st, &start); err != nil {
			logging.Debug("transport: dropping undecodable <%s> element: %v", start.Name.Local, err)
			continue
		}

		select {
		case c.inbound <- &st:
		case <-ctx.Done():
			return
		}
	}
}

func (c *XMPP) lost(err error) {
	c.mu.Lock()
	closing := c.closing
	c.connected = false
	c.session = nil
	c.mu.Unlock()

	if closing {
		return
	}
	logging.Warn("transport: link lost: %v", err)
	select {
	case c.events <- Event{State: Lost, Err: err}:
	default:
	}
}

// Send writes one stanza to the stream.
func (c *XMPP) Send(st *stanza.Stanza) error {
	c.mu.RLock()
	session := c.session
	connected := c.connected
	c.mu.RUnlock()

	if !connected || session == nil {
		return &SendError{Reason: ReasonNotConnected}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SendTimeout)
	defer cancel()

	if err := session.Encode(ctx, st); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &SendError{Reason: ReasonBackpressure}
		}
		return fmt.Errorf("failed to send stanza: %w", err)
	}
	return nil
}

// Inbound returns the inbound stanza stream.
func (c *XMPP) Inbound() <-chan *stanza.Stanza { return c.inbound }

// Events returns the link-state event stream.
func (c *XMPP) Events() <-chan Event { return c.events }

// Disconnect closes the stream. It suppresses the Lost event the dying
// reader would otherwise report.
func (c *XMPP) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.closing = true
	if c.cancel != nil {
		c.cancel()
	}

	var firstErr error
	if c.session != nil {
		if err := c.session.Close(); err != nil {
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	c.connected = false
	c.session = nil
	c.conn = nil
	return firstErr
}
