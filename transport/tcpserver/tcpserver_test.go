package tcpserver

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZeMeny/Mars-Sensor/transport"
)

type capture struct {
	mu     sync.Mutex
	handle transport.Handle
	frames [][]byte
}

func (c *capture) inbound(h transport.Handle, _ string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handle = h
	c.frames = append(c.frames, data)
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *capture) last() (transport.Handle, []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return c.handle, nil
	}
	return c.handle, c.frames[len(c.frames)-1]
}

func startServer(t *testing.T) (*Server, *capture) {
	t.Helper()
	sink := &capture{}
	srv := New(DefaultOptions("127.0.0.1:0"), sink.inbound)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return srv, sink
}

func writeFrame(t *testing.T, conn net.Conn, data []byte) {
	t.Helper()
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(data)))
	_, err := conn.Write(append(header, data...))
	require.NoError(t, err)
}

func readFrame(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	header := make([]byte, 4)
	_, err := io.ReadFull(conn, header)
	require.NoError(t, err)
	frame := make([]byte, binary.BigEndian.Uint32(header))
	_, err = io.ReadFull(conn, frame)
	require.NoError(t, err)
	return frame
}

func TestFramedInboundReachesCallback(t *testing.T) {
	srv, sink := startServer(t)
	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	writeFrame(t, conn, []byte(`{"type":"CommandMessage"}`))
	writeFrame(t, conn, []byte(`{"type":"DeviceSubscriptionConfiguration"}`))

	require.Eventually(t, func() bool { return sink.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	_, frame := sink.last()
	assert.JSONEq(t, `{"type":"DeviceSubscriptionConfiguration"}`, string(frame))
}

func TestHandleSendFramesReply(t *testing.T) {
	srv, sink := startServer(t)
	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	writeFrame(t, conn, []byte(`{}`))
	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	handle, _ := sink.last()
	require.NoError(t, handle.Send(context.Background(), []byte(`{"reply":true}`)))

	assert.JSONEq(t, `{"reply":true}`, string(readFrame(t, conn)))
}

func TestOversizedFrameDropsConnection(t *testing.T) {
	sink := &capture{}
	opts := DefaultOptions("127.0.0.1:0")
	opts.MaxFrame = 16
	srv := New(opts, sink.inbound)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	writeFrame(t, conn, make([]byte, 32))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, readErr := conn.Read(make([]byte, 1))
	assert.Error(t, readErr)
	assert.Zero(t, sink.count())
}

func TestLifecycle(t *testing.T) {
	sink := &capture{}
	srv := New(DefaultOptions("127.0.0.1:0"), sink.inbound)

	assert.Error(t, srv.Stop(context.Background()))
	require.NoError(t, srv.Start(context.Background()))
	assert.Error(t, srv.Start(context.Background()))
	require.NoError(t, srv.Stop(context.Background()))
	assert.Error(t, srv.Stop(context.Background()))
}
