// Package natsrpc binds the adapter to a NATS subject. Parties publish
// envelopes on the inbound subject; replies go to the message's reply inbox
// when one is set, otherwise to the configured outbound subject. Broadcast
// sends from the scheduler use the same per-party handle, so a party that
// wants pushed traffic must supply a reply inbox or listen on the outbound
// subject.
package natsrpc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ZeMeny/Mars-Sensor/errors"
	"github.com/ZeMeny/Mars-Sensor/transport"
)

// Default connection tuning
const (
	DefaultSubject       = "mars.inbound"
	DefaultMaxReconnects = 10
	DefaultReconnectWait = 2 * time.Second
	DefaultConnectWait   = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	// URL is the NATS server address, e.g. nats://127.0.0.1:4222
	URL string

	// Subject receives inbound envelopes from parties
	Subject string

	// OutboundSubject receives replies for messages without a reply inbox.
	// Empty selects Subject + ".out".
	OutboundSubject string

	// Name identifies this client on the NATS server
	Name string

	// MaxReconnects and ReconnectWait tune the client's reconnect loop
	MaxReconnects int
	ReconnectWait time.Duration

	// Logger receives structured logs; nil selects slog.Default
	Logger *slog.Logger
}

// DefaultOptions returns the documented connection defaults.
func DefaultOptions(url string) Options {
	return Options{
		URL:           url,
		Subject:       DefaultSubject,
		Name:          "mars-sensor",
		MaxReconnects: DefaultMaxReconnects,
		ReconnectWait: DefaultReconnectWait,
	}
}

// Server subscribes to the inbound subject and feeds envelopes to the
// adapter's inbound callback.
type Server struct {
	opts    Options
	inbound transport.Inbound
	logger  *slog.Logger

	mu      sync.Mutex
	conn    *nats.Conn
	sub     *nats.Subscription
	running bool
}

var _ transport.Server = (*Server)(nil)

// New creates a Server delivering inbound envelopes to the given callback.
func New(opts Options, inbound transport.Inbound) *Server {
	if opts.Subject == "" {
		opts.Subject = DefaultSubject
	}
	if opts.OutboundSubject == "" {
		opts.OutboundSubject = opts.Subject + ".out"
	}
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = DefaultMaxReconnects
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = DefaultReconnectWait
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		opts:    opts,
		inbound: inbound,
		logger:  logger.With("transport", "nats", "subject", opts.Subject),
	}
}

// Start connects to the NATS server and subscribes to the inbound subject.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start", "nats")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "Server", "Start", "context cancelled")
	}

	conn, err := nats.Connect(s.opts.URL,
		nats.Name(s.opts.Name),
		nats.MaxReconnects(s.opts.MaxReconnects),
		nats.ReconnectWait(s.opts.ReconnectWait),
		nats.Timeout(DefaultConnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			s.logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return errors.WrapTransient(err, "Server", "Start",
			fmt.Sprintf("connect to %s", s.opts.URL))
	}

	sub, err := conn.Subscribe(s.opts.Subject, s.handleMsg)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "Server", "Start",
			fmt.Sprintf("subscribe to %s", s.opts.Subject))
	}

	s.conn = conn
	s.sub = sub
	s.running = true
	s.logger.Info("nats transport connected", "url", conn.ConnectedUrl())
	return nil
}

// Stop drains the subscription and closes the connection. Draining lets
// in-flight handlers finish before the connection drops.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "Server", "Stop", "nats")
	}
	s.running = false
	conn, sub := s.conn, s.sub
	s.conn = nil
	s.sub = nil
	s.mu.Unlock()

	if err := sub.Drain(); err != nil {
		s.logger.Warn("subscription drain failed", "error", err)
	}

	drained := make(chan struct{})
	go func() {
		_ = conn.Drain()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		conn.Close()
	}
	return nil
}

// Addr returns the connected server URL.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return s.opts.URL
	}
	return s.conn.ConnectedUrl()
}

func (s *Server) handleMsg(msg *nats.Msg) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	reply := msg.Reply
	if reply == "" {
		reply = s.opts.OutboundSubject
	}
	h := &natsHandle{conn: conn, subject: reply}
	s.inbound(h, "nats:"+reply, msg.Data)
}

// natsHandle addresses one party by its reply subject. NATS handles write
// serialization itself, so Send needs no extra locking.
type natsHandle struct {
	conn    *nats.Conn
	subject string
	closed  atomic.Bool
}

var _ transport.Handle = (*natsHandle)(nil)

func (h *natsHandle) Send(ctx context.Context, data []byte) error {
	if h.closed.Load() {
		return errors.WrapTransient(errors.ErrHandleClosed, "natsHandle", "Send", h.subject)
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "natsHandle", "Send", "context cancelled")
	}
	if err := h.conn.Publish(h.subject, data); err != nil {
		return errors.WrapTransient(err, "natsHandle", "Send", h.subject)
	}
	return nil
}

// Close marks the handle unusable. The underlying connection is shared and
// stays open until the server stops.
func (h *natsHandle) Close() error {
	h.closed.Store(true)
	return nil
}

func (h *natsHandle) RemoteAddr() string {
	return "nats:" + h.subject
}
