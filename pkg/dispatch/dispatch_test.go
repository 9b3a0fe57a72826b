package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/justyntemme/vst2bridge/pkg/abi"
	"github.com/justyntemme/vst2bridge/pkg/events"
	"github.com/justyntemme/vst2bridge/pkg/ipc"
	"github.com/justyntemme/vst2bridge/pkg/opcode"
	"github.com/justyntemme/vst2bridge/pkg/wire"
)

func newPair(t *testing.T, frameSize int) (*ipc.Port, *ipc.Port) {
	host := ipc.NewPort(nil)
	require.NoError(t, host.Create(frameSize))
	child := ipc.NewPort(nil)
	require.NoError(t, child.Connect(host.ID()))
	t.Cleanup(func() {
		host.Disconnect()
		child.Disconnect()
	})
	return host, child
}

// respondOnce waits for a single request on port and runs fn against the
// frame before sending the response, simulating one child-side reply.
func respondOnce(t *testing.T, port *ipc.Port, fn func(f *wire.Frame)) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		require.True(t, port.WaitRequest("test/child", 2000))
		fn(port.Frame())
		port.SendResponse()
	}()
	return done
}

func TestDispatchEditIdleSwallowedLocally(t *testing.T) {
	host, _ := newPair(t, wire.HeaderSize+64)
	d := New(host, host, nil, nil, nil, nil)

	res, err := d.Dispatch(opcode.EffEditIdle, 0, 0, nil, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Value)
}

func TestDispatchPlainForwardRoundTrip(t *testing.T) {
	host, child := newPair(t, wire.HeaderSize+64)
	d := New(host, host, nil, nil, nil, nil)

	done := respondOnce(t, child, func(f *wire.Frame) {
		require.Equal(t, opcode.EffCanBeAutomated, f.Opcode())
		f.SetValue(1)
	})

	res, err := d.Dispatch(opcode.EffCanBeAutomated, 3, 0, nil, 0)
	require.NoError(t, err)
	<-done
	require.Equal(t, int64(1), res.Value)
}

func TestDispatchEffOpenTriggersSetBlockSize(t *testing.T) {
	host, child := newPair(t, wire.HeaderSize+8192)
	effect := &abi.Effect{InputCount: 2, OutputCount: 2}
	d := New(host, ipc.NewPort(nil), effect, nil, nil, nil)

	openDone := respondOnce(t, child, func(f *wire.Frame) {
		require.Equal(t, opcode.EffOpen, f.Opcode())
		f.SetValue(1)
	})

	sbsDone := make(chan struct{})
	go func() {
		defer close(sbsDone)
		// The setBlockSize request only follows the effOpen response, so
		// wait for that reply first instead of racing its responder for
		// the same request semaphore.
		<-openDone
		require.True(t, host.WaitRequest("test/child2", 2000))
		f := host.Frame()
		require.Equal(t, opcode.EffSetBlockSize, f.Opcode())
		f.SetValue(1)
		host.SendResponse()
	}()

	res, err := d.Dispatch(opcode.EffOpen, 0, 0, nil, 0)
	require.NoError(t, err)
	<-openDone
	<-sbsDone
	require.Equal(t, int64(1), res.Value)

	require.GreaterOrEqual(t, d.AudioPort().FrameSize(), wire.HeaderSize+8*256*4)
}

func TestDispatchEffCloseInvokesOnClose(t *testing.T) {
	host, child := newPair(t, wire.HeaderSize+64)
	closed := false
	d := New(host, host, nil, nil, nil, func() { closed = true })

	done := respondOnce(t, child, func(f *wire.Frame) { f.SetValue(1) })

	_, err := d.Dispatch(opcode.EffClose, 0, 0, nil, 0)
	require.NoError(t, err)
	<-done
	require.True(t, closed)
}

func TestDispatchStringOutCapsAndTerminates(t *testing.T) {
	host, child := newPair(t, wire.HeaderSize+256)
	d := New(host, host, nil, nil, nil, nil)

	done := respondOnce(t, child, func(f *wire.Frame) {
		copy(f.Data(), []byte("A Very Long Vendor Name That Exceeds The Cap Significantly, By Quite A Margin\x00"))
	})

	res, err := d.Dispatch(opcode.EffGetVendorString, 0, 0, nil, 0)
	require.NoError(t, err)
	<-done
	require.LessOrEqual(t, len(res.Payload), maxVendorStrLen)
	require.Equal(t, byte(0), res.Payload[len(res.Payload)-1])
}

func TestDispatchParamStringStopsAtNonPrintable(t *testing.T) {
	host, child := newPair(t, wire.HeaderSize+64)
	d := New(host, host, nil, nil, nil, nil)

	done := respondOnce(t, child, func(f *wire.Frame) {
		data := f.Data()
		copy(data, []byte("Cutoff"))
		data[6] = 0x01 // garbage tail byte
	})

	res, err := d.Dispatch(opcode.EffGetParamName, 0, 0, nil, 0)
	require.NoError(t, err)
	<-done
	require.Equal(t, "Cutoff\x00", string(res.Payload))
}

func TestDispatchGetChunkMultiBlock(t *testing.T) {
	host, child := newPair(t, wire.HeaderSize+16)
	d := New(host, host, nil, nil, nil, nil)

	const total = 40
	payload := make([]byte, total)
	for i := range payload {
		payload[i] = byte(i)
	}

	go func() {
		require.True(t, child.WaitRequest("child/getChunk", 2000))
		f := child.Frame()
		budget := f.PayloadCap()
		f.SetValue(int64(total))
		first := budget
		if first > total {
			first = total
		}
		copy(f.Data(), payload[:first])
		f.SetIndex(int32(first))
		child.SendResponse()

		sent := first
		for sent < total {
			require.True(t, child.WaitRequest("child/getChunk/block", 2000))
			f = child.Frame()
			want := int(f.Index())
			if sent+want > total {
				want = total - sent
			}
			copy(f.Data(), payload[sent:sent+want])
			f.SetIndex(int32(want))
			child.SendResponse()
			sent += want
		}
	}()

	res, err := d.Dispatch(opcode.EffGetChunk, 0, 0, nil, 0)
	require.NoError(t, err)
	require.Equal(t, int64(total), res.Value)
	require.Equal(t, payload, res.Payload)
}

func TestDispatchSetChunkMultiBlock(t *testing.T) {
	host, child := newPair(t, wire.HeaderSize+16)
	d := New(host, host, nil, nil, nil, nil)

	const total = 40
	payload := make([]byte, total)
	for i := range payload {
		payload[i] = byte(i)
	}

	received := make([]byte, 0, total)
	go func() {
		for len(received) < total {
			require.True(t, child.WaitRequest("child/setChunk/block", 2000))
			f := child.Frame()
			n := int(f.Index())
			received = append(received, f.Data()[:n]...)
			child.SendResponse()
		}
		require.True(t, child.WaitRequest("child/setChunk", 2000))
		f := child.Frame()
		require.Equal(t, opcode.EffSetChunk, f.Opcode())
		f.SetValue(1)
		child.SendResponse()
	}()

	res, err := d.Dispatch(opcode.EffSetChunk, 1, 0, payload, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Value)
	require.Equal(t, payload, received)
}

func TestDispatchGetChunkUnsupportedWhenZero(t *testing.T) {
	host, child := newPair(t, wire.HeaderSize+16)
	d := New(host, host, nil, nil, nil, nil)

	done := respondOnce(t, child, func(f *wire.Frame) {
		f.SetValue(0)
		f.SetIndex(0)
	})

	_, err := d.Dispatch(opcode.EffGetChunk, 0, 0, nil, 0)
	<-done
	require.ErrorIs(t, err, ErrUnsupportedOpcode)
}

// TestLockAudioPortMutualExclusion exercises spec.md §5's "only one
// request in flight at any instant" property directly: a second caller
// (standing in for bridge.Plugin's getParameter/setParameter, which
// share this same lock) must block until the first releases it.
func TestLockAudioPortMutualExclusion(t *testing.T) {
	host, _ := newPair(t, wire.HeaderSize+64)
	d := New(host, host, nil, nil, nil, nil)

	_, unlock := d.LockAudioPort()

	acquired := make(chan struct{})
	go func() {
		_, unlock2 := d.LockAudioPort()
		defer unlock2()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second LockAudioPort call acquired the lock while the first still held it")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second LockAudioPort call never acquired the lock after release")
	}
}

// TestControlPortRoutingSerializesConcurrentCallers exercises the
// control-port half of the same property: routedPort used to hand back
// a no-op unlock for control-routed opcodes, so two concurrent
// construction-thread dispatches had no serialization at all. Driving
// two real goroutines through the Gettid() check in routedPort would
// be nondeterministic (Go doesn't guarantee which OS thread a
// non-locked goroutine lands on), so this locks controlMu directly,
// the same lock routedPort now takes for that branch.
func TestControlPortRoutingSerializesConcurrentCallers(t *testing.T) {
	host, _ := newPair(t, wire.HeaderSize+64)
	d := New(host, host, nil, nil, nil, nil)

	d.controlMu.Lock()

	acquired := make(chan struct{})
	go func() {
		d.controlMu.Lock()
		defer d.controlMu.Unlock()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second caller acquired controlMu while the first still held it")
	case <-time.After(50 * time.Millisecond):
	}

	d.controlMu.Unlock()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never acquired controlMu after release")
	}
}

// TestProcessEventsDerivesCountFromPayload checks effProcessEvents
// writes the record count into index itself, rather than trusting a
// caller-supplied one, and forwards the packed records unchanged.
func TestProcessEventsDerivesCountFromPayload(t *testing.T) {
	host, child := newPair(t, wire.HeaderSize+256)
	d := New(host, host, nil, nil, nil, nil)

	evts := []events.Event{
		events.NoteOnEvent{Base: events.Base{EventChannel: 0, Offset: 0}, NoteNumber: 60, Velocity: 100},
		events.PitchBendEvent{Base: events.Base{EventChannel: 2, Offset: 5}, Value: 100},
	}

	done := respondOnce(t, child, func(f *wire.Frame) {
		require.Equal(t, opcode.EffProcessEvents, f.Opcode())
		require.Equal(t, int32(len(evts)), f.Index())
		rebuilt := events.DecodeAll(f.Data(), len(evts))
		require.Equal(t, evts, rebuilt)
		f.SetValue(1)
	})

	res, err := d.ProcessEvents(evts)
	require.NoError(t, err)
	<-done
	require.Equal(t, int64(1), res.Value)
}

type fakeEmbedder struct {
	calls []string
}

func (e *fakeEmbedder) ResizeParent(rect abi.ERect) error { e.calls = append(e.calls, "resize"); return nil }
func (e *fakeEmbedder) Reparent() error                   { e.calls = append(e.calls, "reparent"); return nil }
func (e *fakeEmbedder) NotifyEmbedded() error              { e.calls = append(e.calls, "embedded"); return nil }
func (e *fakeEmbedder) NotifyFocusOut() error               { e.calls = append(e.calls, "focusout"); return nil }
func (e *fakeEmbedder) MapWindow() error                    { e.calls = append(e.calls, "map"); return nil }

func TestDispatchEditOpenDrivesXEmbedSequence(t *testing.T) {
	host, child := newPair(t, wire.HeaderSize+64)
	embedder := &fakeEmbedder{}
	d := New(host, host, nil, embedder, nil, nil)
	d.SetEmbedDelay(0)

	editDone := respondOnce(t, child, func(f *wire.Frame) {
		abi.Put(f.Data(), abi.ERect{Top: 0, Left: 0, Bottom: 200, Right: 300})
	})

	showDone := make(chan struct{})
	go func() {
		defer close(showDone)
		// ShowWindow is sent only after the effEditOpen reply, so wait for
		// that reply first instead of racing its responder.
		<-editDone
		require.True(t, child.WaitRequest("child/show", 2000))
		require.Equal(t, wire.CommandShowWindow, child.Frame().Command())
		child.SendResponse()
	}()

	_, err := d.Dispatch(opcode.EffEditOpen, 0, 0, nil, 0)
	require.NoError(t, err)
	<-editDone
	<-showDone

	require.Equal(t, []string{"resize", "reparent", "embedded", "focusout", "map"}, embedder.calls)
}
