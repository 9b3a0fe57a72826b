package ipc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueuePushPopRoundTrip(t *testing.T) {
	q := NewQueue(nil)
	require.NoError(t, q.Connect(0xBEEF1, true))
	defer q.Close()

	payload := make([]byte, CallbackFrameSize)
	copy(payload, []byte("hello callback"))

	require.NoError(t, q.PushFrame(payload))

	out := make([]byte, CallbackFrameSize)
	require.True(t, q.PopFrame(out))
	require.Equal(t, payload[:len("hello callback")], out[:len("hello callback")])
}

func TestQueuePopEmptyReturnsFalse(t *testing.T) {
	q := NewQueue(nil)
	require.NoError(t, q.Connect(0xBEEF2, true))
	defer q.Close()

	out := make([]byte, CallbackFrameSize)
	require.False(t, q.PopFrame(out))
}

func TestQueueShortPayloadZeroPadded(t *testing.T) {
	q := NewQueue(nil)
	require.NoError(t, q.Connect(0xBEEF3, true))
	defer q.Close()

	require.NoError(t, q.PushFrame([]byte("short")))

	out := make([]byte, CallbackFrameSize)
	require.True(t, q.PopFrame(out))
	require.Equal(t, []byte("short"), out[:5])
	require.Zero(t, out[5])
}
