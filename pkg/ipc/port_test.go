package ipc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/justyntemme/vst2bridge/pkg/log"
)

func TestPortCreateAndConnectWithinProcess(t *testing.T) {
	creator := NewPort(nil)
	require.NoError(t, creator.Create(256))
	defer creator.Disconnect()

	require.False(t, creator.IsNull())
	require.Equal(t, 256, creator.FrameSize())

	peer := NewPort(nil)
	require.NoError(t, peer.Connect(creator.ID()))
	defer peer.Disconnect()

	require.Equal(t, 256, peer.FrameSize())
	require.True(t, creator.IsConnected())
	require.True(t, peer.IsConnected())
}

func TestPortRequestResponseRoundTrip(t *testing.T) {
	creator := NewPort(nil)
	require.NoError(t, creator.Create(64))
	defer creator.Disconnect()

	peer := NewPort(nil)
	require.NoError(t, peer.Connect(creator.ID()))
	defer peer.Disconnect()

	creator.Frame().SetValue(42)
	creator.SendRequest()

	require.True(t, peer.WaitRequest("test/request", 1000))
	require.Equal(t, int64(42), peer.Frame().Value())

	peer.Frame().SetValue(99)
	peer.SendResponse()

	require.True(t, creator.WaitResponse("test/response", 1000))
	require.Equal(t, int64(99), creator.Frame().Value())
}

func TestPortWaitTimesOutWithoutSignal(t *testing.T) {
	p := NewPort(nil)
	require.NoError(t, p.Create(32))
	defer p.Disconnect()

	require.False(t, p.WaitRequest("test/timeout", 50))
}

func TestPortDisconnectReturnsToNull(t *testing.T) {
	p := NewPort(nil)
	require.NoError(t, p.Create(32))
	require.NoError(t, p.Disconnect())
	require.True(t, p.IsNull())
	require.Equal(t, 0, p.FrameSize())
}

// TestPortSoftLimitWaitRecordsLatency checks that an unbounded (-1)
// wait is timed through the default profiler under its tag, so a host
// application watching log.Report can see how close this wait ran to
// the soft limit.
func TestPortSoftLimitWaitRecordsLatency(t *testing.T) {
	p := NewPort(nil)
	require.NoError(t, p.Create(32))
	defer p.Disconnect()
	p.SetSoftLimit(20)

	log.DefaultProfiler.Reset()
	require.False(t, p.WaitRequest("test/soft-limit", -1))

	m, ok := log.DefaultProfiler.GetMeasurement("test/soft-limit")
	require.True(t, ok)
	require.Equal(t, uint64(1), m.Count())
}

func TestPortIsConnectedFalseAfterPeerDisconnects(t *testing.T) {
	creator := NewPort(nil)
	require.NoError(t, creator.Create(32))
	defer creator.Disconnect()

	peer := NewPort(nil)
	require.NoError(t, peer.Connect(creator.ID()))
	require.True(t, creator.IsConnected())

	require.NoError(t, peer.Disconnect())
	require.False(t, creator.IsConnected())
}
