// Package process implements the audio ProcessPath (spec.md §4.G): the
// processReplacing/processDoubleReplacing marshaling loop that carries
// sample buffers across the audio port on every host process call.
package process

import (
	"fmt"
	"unsafe"

	"github.com/justyntemme/vst2bridge/pkg/events"
	"github.com/justyntemme/vst2bridge/pkg/ipc"
	"github.com/justyntemme/vst2bridge/pkg/wire"
)

// Drainer is satisfied by a callback handler: after every process*
// round trip completes, Path drains the async FrameQueue so every
// callback the child's audio thread raised during this block is
// observed before the call returns to the host (spec.md §4.F, §8
// invariant 5).
type Drainer interface {
	DrainQueue()
}

// PortProvider returns the audio port currently in effect, already
// locked for the caller's exclusive use, plus the unlock func the
// caller must run once its request/response transaction is complete.
// A fixed *ipc.Port won't do: the dispatcher's setBlockSize (spec.md
// §4.E) disconnects and recreates the audio port in place whenever the
// block size grows, so Path always asks for the current one instead of
// caching a pointer that setBlockSize would silently strand. The lock
// is what keeps a process* call from racing a concurrent
// getParameter/setParameter or audio-routed dispatch call over the
// same port (spec.md §5, Testable Property #1).
type PortProvider func() (port *ipc.Port, unlock func())

// EventSender marshals a batch of MIDI events through effProcessEvents
// ahead of the audio block they belong to (spec.md §4.E); satisfied by
// dispatch.Dispatcher.ProcessEvents.
type EventSender interface {
	ProcessEvents(evts []events.Event) error
}

// Path drives processReplacing/processDoubleReplacing over the current
// audio Port.
type Path struct {
	port    PortProvider
	drainer Drainer
	sender  EventSender
	events  *events.Buffer
}

// NewPath wires a Path to the audio port provider and the component
// responsible for draining the async callback queue after each round
// trip.
func NewPath(port PortProvider, drainer Drainer) *Path {
	return &Path{port: port, drainer: drainer, events: events.NewBuffer()}
}

// SetEventSender wires the effProcessEvents dispatch call that QueueEvent
// flushes ahead of each process round trip. Left unset, queued events
// are never sent and are cleared at flush time just as if they had been
// (used by tests that exercise the audio transport without a
// dispatcher).
func (p *Path) SetEventSender(s EventSender) { p.sender = s }

// QueueEvent schedules a MIDI event for an upcoming process call: the
// host hands events to the bridge as they arrive, and the bridge holds
// them until a process call whose [0, frames) range contains at least
// one queued offset. That call sends the in-range events and clears the
// whole queue, so events with offsets past that block are dropped, not
// carried over (see flushEvents).
func (p *Path) QueueEvent(e events.Event) { p.events.Input.Add(e) }

// QueueEvents is QueueEvent for a batch.
func (p *Path) QueueEvents(evts []events.Event) { p.events.Input.AddMultiple(evts) }

// flushEvents sends every queued event whose offset falls within
// [0, frames) through effProcessEvents before the process round trip
// carrying that block, then clears the whole queue, including events
// outside that range (VST2 event offsets are relative to the block
// they're delivered with). When no queued event falls within the range,
// nothing is sent and the queue is left as it is.
func (p *Path) flushEvents(frames int) error {
	pending := p.events.Input.GetEventsInRange(0, int32(frames))
	if len(pending) == 0 {
		return nil
	}
	if p.sender != nil {
		if err := p.sender.ProcessEvents(pending); err != nil {
			return fmt.Errorf("process: flush events: %w", err)
		}
	}
	p.events.Input.Clear()
	return nil
}

// requiredSamplePayload is the byte budget a given channel layout and
// block size need, at sampleWidth bytes per sample.
func requiredSamplePayload(numInputs, numOutputs, frames, sampleWidth int) int {
	return (numInputs + numOutputs) * frames * sampleWidth
}

// ProcessSingle runs one processReplacing round trip: float32 samples,
// numInputs channels in, numOutputs channels out, frames samples per
// channel (spec.md §4.G).
func (p *Path) ProcessSingle(inputs [][]float32, outputs [][]float32, frames int) error {
	if err := p.flushEvents(frames); err != nil {
		return err
	}

	port, unlock := p.port()
	defer unlock()
	need := requiredSamplePayload(len(inputs), len(outputs), frames, 4)
	f := port.Frame()
	if need > f.PayloadCap() {
		return fmt.Errorf("process: frame payload too small for %d frames (%d channels): need %d, have %d", frames, len(inputs)+len(outputs), need, f.PayloadCap())
	}

	f.Reset()
	f.SetCommand(wire.CommandProcessSingle)
	f.SetValue(int64(frames))

	data := f.Data()
	off := 0
	for _, ch := range inputs {
		off += encodeFloat32Channel(data[off:], ch, frames)
	}

	port.SendRequest()
	if !port.WaitResponse("ProcessPath/processReplacing", -1) {
		return fmt.Errorf("process: processReplacing timed out")
	}

	if p.drainer != nil {
		p.drainer.DrainQueue()
	}

	data = f.Data()
	off = 0
	for _, ch := range outputs {
		off += decodeFloat32Channel(ch, data[off:], frames)
	}
	return nil
}

// ProcessDouble is ProcessSingle's double-precision counterpart
// (CommandProcessDouble, 8-byte samples).
func (p *Path) ProcessDouble(inputs [][]float64, outputs [][]float64, frames int) error {
	if err := p.flushEvents(frames); err != nil {
		return err
	}

	port, unlock := p.port()
	defer unlock()
	need := requiredSamplePayload(len(inputs), len(outputs), frames, 8)
	f := port.Frame()
	if need > f.PayloadCap() {
		return fmt.Errorf("process: frame payload too small for %d frames (%d channels): need %d, have %d", frames, len(inputs)+len(outputs), need, f.PayloadCap())
	}

	f.Reset()
	f.SetCommand(wire.CommandProcessDouble)
	f.SetValue(int64(frames))

	data := f.Data()
	off := 0
	for _, ch := range inputs {
		off += encodeFloat64Channel(data[off:], ch, frames)
	}

	port.SendRequest()
	if !port.WaitResponse("ProcessPath/processDoubleReplacing", -1) {
		return fmt.Errorf("process: processDoubleReplacing timed out")
	}

	if p.drainer != nil {
		p.drainer.DrainQueue()
	}

	data = f.Data()
	off = 0
	for _, ch := range outputs {
		off += decodeFloat64Channel(ch, data[off:], frames)
	}
	return nil
}

// byteView reinterprets the front of buf as a []T of length n without
// copying, matching the reinterpret-cast convention the rest of the
// wire layer uses (spec.md §9: packed, native-endian, same ABI on both
// sides, so the Go-side view is representational only).
func byteView[T any](buf []byte, n int) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&buf[0])), n)
}

func encodeFloat32Channel(buf []byte, ch []float32, frames int) int {
	dst := byteView[float32](buf, frames)
	copy(dst, ch)
	for i := len(ch); i < frames; i++ {
		dst[i] = 0
	}
	return frames * 4
}

func decodeFloat32Channel(ch []float32, buf []byte, frames int) int {
	src := byteView[float32](buf, frames)
	copy(ch, src)
	return frames * 4
}

func encodeFloat64Channel(buf []byte, ch []float64, frames int) int {
	dst := byteView[float64](buf, frames)
	copy(dst, ch)
	for i := len(ch); i < frames; i++ {
		dst[i] = 0
	}
	return frames * 8
}

func decodeFloat64Channel(ch []float64, buf []byte, frames int) int {
	src := byteView[float64](buf, frames)
	copy(ch, src)
	return frames * 8
}
