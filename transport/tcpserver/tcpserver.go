// Package tcpserver binds the adapter to raw TCP clients. Frames are
// length-prefixed: a big-endian uint32 byte count followed by the encoded
// envelope. One connection carries one party.
package tcpserver

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZeMeny/Mars-Sensor/errors"
	"github.com/ZeMeny/Mars-Sensor/transport"
)

// Default connection tuning
const (
	DefaultMaxFrame     = 1 << 20
	DefaultReadTimeout  = 90 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":8871". ":0" picks a free port.
	Addr string

	// MaxFrame caps the size of one inbound frame
	MaxFrame uint32

	// ReadTimeout closes a connection idle this long
	ReadTimeout time.Duration

	// WriteTimeout bounds one frame write
	WriteTimeout time.Duration

	// Logger receives structured logs; nil selects slog.Default
	Logger *slog.Logger
}

// DefaultOptions returns the documented connection defaults.
func DefaultOptions(addr string) Options {
	return Options{
		Addr:         addr,
		MaxFrame:     DefaultMaxFrame,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Server accepts TCP connections and feeds their frames to the adapter's
// inbound callback.
type Server struct {
	opts    Options
	inbound transport.Inbound
	logger  *slog.Logger

	listener net.Listener

	conns   map[*tcpConn]struct{}
	connsMu sync.Mutex

	lifecycleMu sync.Mutex
	running     bool
	shutdown    chan struct{}
	wg          sync.WaitGroup
}

var _ transport.Server = (*Server)(nil)

// New creates a Server delivering inbound frames to the given callback.
func New(opts Options, inbound transport.Inbound) *Server {
	if opts.MaxFrame == 0 {
		opts.MaxFrame = DefaultMaxFrame
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
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
		logger:  logger.With("transport", "tcp"),
		conns:   make(map[*tcpConn]struct{}),
	}
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start", "tcp")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "Server", "Start", "context cancelled")
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.WrapFatal(err, "Server", "Start",
			fmt.Sprintf("listen on %s", s.opts.Addr))
	}

	s.listener = ln
	s.shutdown = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info("tcp server listening", "addr", ln.Addr().String())
	return nil
}

// Stop closes the listener and all open connections.
func (s *Server) Stop(_ context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.running {
		return errors.WrapInvalid(errors.ErrNotStarted, "Server", "Stop", "tcp")
	}
	s.running = false
	close(s.shutdown)
	_ = s.listener.Close()

	s.connsMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.conns = make(map[*tcpConn]struct{})
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

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				s.logger.Warn("accept failed", "error", err)
				return
			}
		}

		c := &tcpConn{conn: conn, writeTimeout: s.opts.WriteTimeout}
		s.connsMu.Lock()
		s.conns[c] = struct{}{}
		s.connsMu.Unlock()
		s.logger.Info("client connected", "origin", conn.RemoteAddr().String())

		s.wg.Add(1)
		go s.readLoop(c)
	}
}

// readLoop consumes length-prefixed frames off one connection until it
// closes.
func (s *Server) readLoop(c *tcpConn) {
	defer s.wg.Done()
	defer s.dropConn(c)

	remote := c.conn.RemoteAddr().String()
	header := make([]byte, 4)
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))

		if _, err := io.ReadFull(c.conn, header); err != nil {
			if !c.closed.Load() && err != io.EOF {
				s.logger.Info("client read ended", "origin", remote, "error", err)
			}
			return
		}
		size := binary.BigEndian.Uint32(header)
		if size == 0 || size > s.opts.MaxFrame {
			s.logger.Info("oversized frame, dropping connection", "origin", remote, "size", size)
			return
		}

		frame := make([]byte, size)
		if _, err := io.ReadFull(c.conn, frame); err != nil {
			return
		}
		s.inbound(c, remote, frame)
	}
}

func (s *Server) dropConn(c *tcpConn) {
	_ = c.Close()
	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()
}

// tcpConn adapts one TCP connection to the transport.Handle contract. The
// write mutex keeps the length header and its frame contiguous on the wire.
type tcpConn struct {
	conn         net.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
	closed       atomic.Bool
	closeOnce    sync.Once
}

var _ transport.Handle = (*tcpConn)(nil)

func (c *tcpConn) Send(ctx context.Context, data []byte) error {
	if c.closed.Load() {
		return errors.WrapTransient(errors.ErrHandleClosed, "tcpConn", "Send", c.RemoteAddr())
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "tcpConn", "Send", "context cancelled")
	}

	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if _, err := c.conn.Write(buf); err != nil {
		return errors.WrapTransient(err, "tcpConn", "Send", c.RemoteAddr())
	}
	return nil
}

func (c *tcpConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.conn.Close()
	})
	return err
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
