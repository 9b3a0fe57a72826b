package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameFieldRoundTrip(t *testing.T) {
	buf := make([]byte, HeaderSize+256)
	f := View(buf)

	f.SetCommand(CommandDispatch)
	f.SetOpcode(13)
	f.SetIndex(2)
	f.SetValue(42)
	f.SetOpt(0.5)

	require.Equal(t, CommandDispatch, f.Command())
	require.Equal(t, int32(13), f.Opcode())
	require.Equal(t, int32(2), f.Index())
	require.Equal(t, int64(42), f.Value())
	require.Equal(t, float32(0.5), f.Opt())
}

func TestFramePayloadCap(t *testing.T) {
	buf := make([]byte, HeaderSize+100)
	f := View(buf)

	require.Equal(t, 100, f.PayloadCap())
	require.Len(t, f.Data(), 100)
}

func TestFrameDataAliasesBacking(t *testing.T) {
	buf := make([]byte, HeaderSize+8)
	f := View(buf)

	copy(f.Data(), []byte("abcdefgh"))
	require.Equal(t, []byte("abcdefgh"), buf[HeaderSize:])
}

func TestFrameReset(t *testing.T) {
	buf := make([]byte, HeaderSize+8)
	f := View(buf)
	f.SetCommand(CommandSetDataBlock)
	f.SetOpcode(7)
	f.SetValue(99)

	f.Reset()

	require.Equal(t, CommandHostInfo, f.Command())
	require.Equal(t, int32(0), f.Opcode())
	require.Equal(t, int64(0), f.Value())
}

func TestViewPanicsOnUndersizedBuffer(t *testing.T) {
	require.Panics(t, func() {
		View(make([]byte, 2))
	})
}
