package process

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/justyntemme/vst2bridge/pkg/events"
	"github.com/justyntemme/vst2bridge/pkg/ipc"
	"github.com/justyntemme/vst2bridge/pkg/wire"
)

type recordingSender struct {
	calls [][]events.Event
}

func (s *recordingSender) ProcessEvents(evts []events.Event) error {
	s.calls = append(s.calls, evts)
	return nil
}

type countingDrainer struct {
	calls int
}

func (d *countingDrainer) DrainQueue() { d.calls++ }

// echoChild simulates the child side of the audio port: both input and
// output channel i alias the same per-channel slot in the payload
// (data + i*frames*sampleWidth), matching how a real VST2 host passes
// processReplacing's input/output pointer arrays. A pass-through
// plugin therefore leaves channel i untouched when there's a
// corresponding input, and zeroes any extra output channel.
func echoChild(t *testing.T, port *ipc.Port, numIn, numOut, frames int, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		if !port.WaitRequest("test/child", 50) {
			continue
		}
		f := port.Frame()
		data := f.Data()
		step := frames * 4
		for ch := numIn; ch < numOut; ch++ {
			for i := range data[ch*step : (ch+1)*step] {
				data[ch*step+i] = 0
			}
		}
		port.SendResponse()
		return
	}
}

func newLoopbackPair(t *testing.T, frameSize int) (*ipc.Port, *ipc.Port) {
	creator := ipc.NewPort(nil)
	require.NoError(t, creator.Create(frameSize))
	peer := ipc.NewPort(nil)
	require.NoError(t, peer.Connect(creator.ID()))
	return creator, peer
}

func TestProcessSinglePassThrough(t *testing.T) {
	const frames = 8
	const numIn, numOut = 2, 2
	frameSize := wire.HeaderSize + requiredSamplePayload(numIn, numOut, frames, 4)

	hostPort, childPort := newLoopbackPair(t, frameSize)
	defer hostPort.Disconnect()
	defer childPort.Disconnect()

	drainer := &countingDrainer{}
	path := NewPath(func() (*ipc.Port, func()) { return hostPort, func() {} }, drainer)

	inputs := [][]float32{
		{1, 2, 3, 4, 5, 6, 7, 8},
		{8, 7, 6, 5, 4, 3, 2, 1},
	}
	outputs := [][]float32{make([]float32, frames), make([]float32, frames)}

	var wg sync.WaitGroup
	wg.Add(1)
	stop := make(chan struct{})
	go func() {
		defer wg.Done()
		echoChild(t, childPort, numIn, numOut, frames, stop)
	}()

	require.NoError(t, path.ProcessSingle(inputs, outputs, frames))
	close(stop)
	wg.Wait()

	require.Equal(t, inputs[0], outputs[0])
	require.Equal(t, inputs[1], outputs[1])
	require.Equal(t, 1, drainer.calls)
}

// TestProcessSingleFlushesQueuedEventsFirst checks that a QueueEvent
// call is drained through the EventSender before the audio block that
// contains its offset is sent, and that the queue is empty afterward.
func TestProcessSingleFlushesQueuedEventsFirst(t *testing.T) {
	const frames = 4
	frameSize := wire.HeaderSize + requiredSamplePayload(1, 1, frames, 4)

	hostPort, childPort := newLoopbackPair(t, frameSize)
	defer hostPort.Disconnect()
	defer childPort.Disconnect()

	sender := &recordingSender{}
	path := NewPath(func() (*ipc.Port, func()) { return hostPort, func() {} }, nil)
	path.SetEventSender(sender)

	note := events.NoteOnEvent{Base: events.Base{EventChannel: 0, Offset: 1}, NoteNumber: 64, Velocity: 100}
	path.QueueEvent(note)

	inputs := [][]float32{{1, 2, 3, 4}}
	outputs := [][]float32{make([]float32, frames)}

	stop := make(chan struct{})
	go echoChild(t, childPort, 1, 1, frames, stop)
	require.NoError(t, path.ProcessSingle(inputs, outputs, frames))
	close(stop)

	require.Len(t, sender.calls, 1)
	require.Equal(t, []events.Event{note}, sender.calls[0])
	require.Zero(t, path.events.Input.Size())
}

func TestProcessSingleRejectsOversizedBlock(t *testing.T) {
	hostPort, childPort := newLoopbackPair(t, wire.HeaderSize+16)
	defer hostPort.Disconnect()
	defer childPort.Disconnect()

	path := NewPath(func() (*ipc.Port, func()) { return hostPort, func() {} }, nil)
	inputs := [][]float32{make([]float32, 64)}
	outputs := [][]float32{make([]float32, 64)}

	err := path.ProcessSingle(inputs, outputs, 64)
	require.Error(t, err)
}

func TestProcessSingleFollowsPortSwap(t *testing.T) {
	const frames = 4
	small, smallChild := newLoopbackPair(t, wire.HeaderSize+requiredSamplePayload(1, 1, frames, 4)-1)
	defer small.Disconnect()
	defer smallChild.Disconnect()

	current := small
	path := NewPath(func() (*ipc.Port, func()) { return current, func() {} }, nil)

	inputs := [][]float32{{1, 2, 3, 4}}
	outputs := [][]float32{make([]float32, frames)}
	require.Error(t, path.ProcessSingle(inputs, outputs, frames))

	grown, grownChild := newLoopbackPair(t, wire.HeaderSize+requiredSamplePayload(1, 1, frames, 4))
	defer grown.Disconnect()
	defer grownChild.Disconnect()
	current = grown

	stop := make(chan struct{})
	go echoChild(t, grownChild, 1, 1, frames, stop)
	require.NoError(t, path.ProcessSingle(inputs, outputs, frames))
	require.Equal(t, inputs[0], outputs[0])
}
