// Package transport defines the abstraction between the adapter core and
// its wire bindings. The core only needs "send bytes to session X" and
// "bytes arrived from session Y"; the bindings under transport/ implement
// that contract for websocket, NATS request/reply, and raw TCP.
package transport

import "context"

// Handle is an opaque send target for one connected party. Implementations
// must be safe for concurrent Send calls and must not block registry or
// buffer mutation on transport I/O.
type Handle interface {
	// Send delivers one encoded message to the party. Errors are
	// per-message; the caller logs and moves on, it never retries.
	Send(ctx context.Context, data []byte) error

	// Close releases the underlying connection. Safe to call twice.
	Close() error

	// RemoteAddr describes the party's origin address for logging.
	RemoteAddr() string
}

// Inbound is the callback a server invokes for every received frame. The
// handle identifies the connection the frame arrived on so replies can be
// addressed without any transport-specific knowledge in the core.
type Inbound func(h Handle, remoteAddr string, data []byte)

// Server is one wire binding accepting party connections.
type Server interface {
	// Start begins accepting connections and feeding frames to the
	// Inbound callback supplied at construction.
	Start(ctx context.Context) error

	// Stop closes the listener and all open connections.
	Stop(ctx context.Context) error

	// Addr returns the bound listen address.
	Addr() string
}
