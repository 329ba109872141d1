package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "Registry", "Register", "insert"))
	assert.NoError(t, WrapTransient(nil, "Gateway", "SendToOne", ""))
	assert.NoError(t, WrapInvalid(nil, "Dispatcher", "Handle", ""))
	assert.NoError(t, WrapFatal(nil, "Adapter", "New", ""))
}

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrap(ErrUnknownKind, "Dispatcher", "Handle", "kind lookup")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrUnknownKind))
	assert.Contains(t, err.Error(), "Dispatcher.Handle")
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	base := fmt.Errorf("socket closed")
	err := WrapTransient(base, "wsserver", "Send", "write frame")

	var ce *ClassifiedError
	require.True(t, stderrors.As(err, &ce))
	assert.Equal(t, ErrorTransient, ce.Class)
	assert.Equal(t, "wsserver", ce.Component)
	assert.Equal(t, base, stderrors.Unwrap(ce))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class ErrorClass
	}{
		{"send failure is transient", ErrSendFailed, ErrorTransient},
		{"decode failure is invalid", ErrDecodeFailed, ErrorInvalid},
		{"validation failure is invalid", ErrValidationFailed, ErrorInvalid},
		{"unknown party is invalid", ErrUnknownParty, ErrorInvalid},
		{"missing config is fatal", ErrMissingConfig, ErrorFatal},
		{"wrapped invalid stays invalid", WrapInvalid(fmt.Errorf("bad"), "c", "o", ""), ErrorInvalid},
		{"wrapped fatal stays fatal", WrapFatal(fmt.Errorf("bad"), "c", "o", ""), ErrorFatal},
		{"unknown defaults to transient", fmt.Errorf("mystery"), ErrorTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, Classify(tt.err))
		})
	}
}

func TestNilProbes(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsInvalid(nil))
	assert.False(t, IsFatal(nil))
}
