package natsrpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZeMeny/Mars-Sensor/errors"
)

func TestNewFillsDefaults(t *testing.T) {
	srv := New(Options{URL: "nats://127.0.0.1:4222"}, nil)

	assert.Equal(t, DefaultSubject, srv.opts.Subject)
	assert.Equal(t, DefaultSubject+".out", srv.opts.OutboundSubject)
	assert.Equal(t, DefaultMaxReconnects, srv.opts.MaxReconnects)
	assert.Equal(t, DefaultReconnectWait, srv.opts.ReconnectWait)
	assert.Equal(t, "nats://127.0.0.1:4222", srv.Addr())
}

func TestStopBeforeStart(t *testing.T) {
	srv := New(DefaultOptions("nats://127.0.0.1:4222"), nil)

	err := srv.Stop(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotStarted)
}

func TestStartUnreachableServer(t *testing.T) {
	srv := New(DefaultOptions("nats://127.0.0.1:1"), nil)

	err := srv.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestClosedHandleRejectsSend(t *testing.T) {
	h := &natsHandle{subject: "mars.inbound.reply"}
	require.NoError(t, h.Close())

	err := h.Send(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrHandleClosed)
	assert.Equal(t, "nats:mars.inbound.reply", h.RemoteAddr())
}
