// Package wsserver binds the adapter to WebSocket clients. Each connected
// party gets one connection; frames read off the socket feed the adapter's
// inbound callback, and the per-connection Handle serializes writes so the
// adapter can send from any goroutine.
package wsserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ZeMeny/Mars-Sensor/errors"
	"github.com/ZeMeny/Mars-Sensor/transport"
)

// Default connection tuning
const (
	DefaultPath         = "/mars"
	DefaultReadLimit    = 1 << 20
	DefaultPingInterval = 20 * time.Second
	DefaultPongTimeout  = 60 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":8870". ":0" picks a free port.
	Addr string

	// Path is the websocket endpoint path
	Path string

	// ReadLimit caps the size of one inbound frame
	ReadLimit int64

	// PingInterval is the period between keepalive pings
	PingInterval time.Duration

	// PongTimeout closes a connection that missed its pong this long
	PongTimeout time.Duration

	// WriteTimeout bounds one frame write
	WriteTimeout time.Duration

	// Logger receives structured logs; nil selects slog.Default
	Logger *slog.Logger
}

// DefaultOptions returns the documented connection defaults.
func DefaultOptions(addr string) Options {
	return Options{
		Addr:         addr,
		Path:         DefaultPath,
		ReadLimit:    DefaultReadLimit,
		PingInterval: DefaultPingInterval,
		PongTimeout:  DefaultPongTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Server accepts WebSocket connections and feeds their frames to the
// adapter's inbound callback.
type Server struct {
	opts    Options
	inbound transport.Inbound
	logger  *slog.Logger

	upgrader websocket.Upgrader

	server   *http.Server
	listener net.Listener

	conns   map[*wsConn]struct{}
	connsMu sync.Mutex

	lifecycleMu sync.Mutex
	running     bool
	shutdown    chan struct{}
	wg          sync.WaitGroup
}

var _ transport.Server = (*Server)(nil)

// New creates a Server delivering inbound frames to the given callback.
func New(opts Options, inbound transport.Inbound) *Server {
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = DefaultPongTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		opts:    opts,
		inbound: inbound,
		logger:  logger.With("transport", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*wsConn]struct{}),
	}
}

// Start binds the listener and begins serving connections. It returns once
// the listener is bound; serving continues in the background.
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start", "websocket")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "Server", "Start", "context cancelled")
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.WrapFatal(err, "Server", "Start",
			fmt.Sprintf("listen on %s", s.opts.Addr))
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.opts.Path, s.handleUpgrade)

	s.listener = ln
	s.server = &http.Server{Handler: mux}
	s.shutdown = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go s.serve()

	s.logger.Info("websocket server listening", "addr", ln.Addr().String(), "path", s.opts.Path)
	return nil
}

// Stop shuts the listener down and closes every open connection.
func (s *Server) Stop(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.running {
		return errors.WrapInvalid(errors.ErrNotStarted, "Server", "Stop", "websocket")
	}
	s.running = false
	close(s.shutdown)

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("server shutdown", "error", err)
	}

	s.connsMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.conns = make(map[*wsConn]struct{})
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.listener == nil {
		return s.opts.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) serve() {
	defer s.wg.Done()
	err := s.server.Serve(s.listener)
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error("serve failed", "error", err)
	}
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Info("upgrade rejected", "origin", r.RemoteAddr, "error", err)
		return
	}

	c := &wsConn{ws: ws, writeTimeout: s.opts.WriteTimeout}

	s.connsMu.Lock()
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()
	s.logger.Info("client connected", "origin", ws.RemoteAddr().String())

	s.wg.Add(2)
	go s.readPump(c)
	go s.pingLoop(c)
}

// readPump consumes frames off one connection until it closes. Every frame
// goes to the inbound callback with the connection as its reply handle.
func (s *Server) readPump(c *wsConn) {
	defer s.wg.Done()
	defer s.dropConn(c)

	c.ws.SetReadLimit(s.opts.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	})

	remote := c.ws.RemoteAddr().String()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("client read ended", "origin", remote, "error", err)
			}
			return
		}
		s.inbound(c, remote, data)
	}
}

// pingLoop keeps the connection alive; the pong handler in readPump extends
// the read deadline.
func (s *Server) pingLoop(c *wsConn) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func (s *Server) dropConn(c *wsConn) {
	_ = c.Close()
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
}

// wsConn adapts one gorilla connection to the transport.Handle contract.
// The write mutex serializes Send, Close and ping frames; gorilla permits
// only one concurrent writer.
type wsConn struct {
	ws           *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
	closed       atomic.Bool
	closeOnce    sync.Once
}

var _ transport.Handle = (*wsConn)(nil)

func (c *wsConn) Send(ctx context.Context, data []byte) error {
	if c.closed.Load() {
		return errors.WrapTransient(errors.ErrHandleClosed, "wsConn", "Send", c.RemoteAddr())
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "wsConn", "Send", "context cancelled")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.WrapTransient(err, "wsConn", "Send", c.RemoteAddr())
	}
	return nil
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeMu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

func (c *wsConn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
