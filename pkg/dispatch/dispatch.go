// Package dispatch implements the Dispatcher (spec.md §4.E): the opcode
// state machine that routes each VST2 dispatch call to the right port,
// special-cases the handful of opcodes that need more than a plain
// forward, and drives the chunked effGetChunk/effSetChunk transfer.
package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/justyntemme/vst2bridge/pkg/abi"
	"github.com/justyntemme/vst2bridge/pkg/bus"
	"github.com/justyntemme/vst2bridge/pkg/events"
	"github.com/justyntemme/vst2bridge/pkg/ipc"
	"github.com/justyntemme/vst2bridge/pkg/log"
	"github.com/justyntemme/vst2bridge/pkg/opcode"
	"github.com/justyntemme/vst2bridge/pkg/wire"
)

var (
	// ErrTimeout is returned when a dispatch transaction's wait exceeds
	// the port's soft limit.
	ErrTimeout = errors.New("dispatch: timed out waiting for response")
	// ErrUnsupportedOpcode is returned by the chunked-transfer protocol
	// when the child's response indicates it doesn't implement chunking.
	ErrUnsupportedOpcode = errors.New("dispatch: opcode unsupported by child")
	// ErrProtocol covers malformed responses: payload too small for the
	// struct an opcode promises, an impossible chunk size, and so on.
	ErrProtocol = errors.New("dispatch: malformed response")
)

// WindowEmbedder abstracts the XEmbed/X11 sequence effEditOpen drives
// (spec.md §4.E). The real window system plumbing is a host-application
// concern, outside this module's scope; the dispatcher only needs to
// invoke it in the right order with the right delay.
type WindowEmbedder interface {
	ResizeParent(rect abi.ERect) error
	Reparent() error
	NotifyEmbedded() error
	NotifyFocusOut() error
	MapWindow() error
}

// Result is the outcome of one Dispatch call: the VST2 return value plus
// any out-of-band payload an opcode produces (an ERect, a chunk, a
// string) for the caller to hand back across the real AEffect boundary.
type Result struct {
	Value   int64
	Payload []byte
}

// Standard VST2 SDK string-field caps (kVstMaxXxxLen), used to bound the
// copy-out for string-returning opcodes (spec.md §4.E).
const (
	maxProgNameLen   = 24
	maxVendorStrLen  = 64
	maxProductStrLen = 64
	maxEffectNameLen = 32
	maxParamStrLen   = 23 // spec.md §4.E: 23 bytes + the NUL this package appends
)

// Dispatcher owns the control and audio ports and the thread-to-port
// routing decision spec.md §4.E describes.
type Dispatcher struct {
	controlMu   sync.Mutex
	controlPort *ipc.Port

	audioMu   sync.Mutex
	audioPort *ipc.Port

	constructionThreadID int
	effect                *abi.Effect
	embedder               WindowEmbedder
	embedDelay             time.Duration
	logger                 *zap.Logger

	onClose func()

	rect abi.ERect
}

// New constructs a Dispatcher. constructionThreadID should be the OS
// thread id (unix.Gettid()) of whichever thread calls this, matching
// spec.md §4.E's routing rule. onClose is invoked once effClose's
// response arrives, letting the owning Endpoint begin teardown.
func New(controlPort, audioPort *ipc.Port, effect *abi.Effect, embedder WindowEmbedder, logger *zap.Logger, onClose func()) *Dispatcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Dispatcher{
		controlPort:           controlPort,
		audioPort:             audioPort,
		constructionThreadID: unix.Gettid(),
		effect:                effect,
		embedder:              embedder,
		embedDelay:            100 * time.Millisecond,
		logger:                logger,
		onClose:               onClose,
	}
}

// SetEmbedDelay overrides the default ~100ms XEmbed workaround delay
// (spec.md §9 asks this be parameterized).
func (d *Dispatcher) SetEmbedDelay(delay time.Duration) { d.embedDelay = delay }

// AudioPort returns the current audio port, which setBlockSize may
// replace over the Dispatcher's lifetime. This is a snapshot only —
// callers that go on to run a request/response transaction over the
// returned port must use LockAudioPort instead, so the transaction is
// serialized against every other audio-port caller.
func (d *Dispatcher) AudioPort() *ipc.Port {
	d.audioMu.Lock()
	defer d.audioMu.Unlock()
	return d.audioPort
}

// LockAudioPort acquires the audio port's transaction lock and returns
// the port currently in effect along with the unlock func the caller
// must run once its request/response cycle is done. Dispatch's own
// audio-routed opcodes, bridge.Plugin's getParameter/setParameter, and
// process.Path's process* calls all funnel through this one lock, so
// only one request is ever in flight on the audio port at a time
// (spec.md §5, Testable Property #1).
func (d *Dispatcher) LockAudioPort() (*ipc.Port, func()) {
	d.audioMu.Lock()
	return d.audioPort, d.audioMu.Unlock
}

// routedPort implements spec.md §4.E's thread-to-port routing rule,
// returning the routed port already locked for the duration of one
// transaction.
func (d *Dispatcher) routedPort(op int32) (*ipc.Port, func()) {
	if op == opcode.EffEditOpen || unix.Gettid() == d.constructionThreadID {
		d.controlMu.Lock()
		return d.controlPort, d.controlMu.Unlock
	}
	d.audioMu.Lock()
	p := d.audioPort
	return p, d.audioMu.Unlock
}

// Dispatch handles one VST2 dispatch opcode (spec.md §4.E).
func (d *Dispatcher) Dispatch(op int32, index int32, value int64, payload []byte, opt float32) (Result, error) {
	switch op {
	case opcode.EffEditIdle:
		return Result{Value: 1}, nil
	case opcode.EffOpen:
		res, err := d.plainForward(op, index, value, payload, opt)
		if err != nil {
			return res, err
		}
		if _, err := d.setBlockSize(256); err != nil {
			return res, err
		}
		return res, nil
	case opcode.EffClose:
		res, err := d.plainForward(op, index, value, payload, opt)
		if d.onClose != nil {
			d.onClose()
		}
		return res, err
	case opcode.EffSetBlockSize:
		return d.setBlockSize(int(value))
	case opcode.EffEditOpen:
		return d.editOpen(index, value, payload, opt)
	case opcode.EffEditGetRect:
		return d.editGetRect(index, value, payload, opt)
	case opcode.EffGetProgramName, opcode.EffGetProgramNameIndexed:
		return d.stringOut(op, index, value, payload, opt, maxProgNameLen)
	case opcode.EffGetVendorString:
		return d.stringOut(op, index, value, payload, opt, maxVendorStrLen)
	case opcode.EffGetProductString:
		return d.stringOut(op, index, value, payload, opt, maxProductStrLen)
	case opcode.EffShellGetNextPlugin, opcode.EffGetEffectName:
		return d.stringOut(op, index, value, payload, opt, maxEffectNameLen)
	case opcode.EffGetParamName, opcode.EffGetParamLabel, opcode.EffGetParamDisplay:
		return d.paramStringOut(op, index, value, payload, opt)
	case opcode.EffSetProgramName, opcode.EffCanDo:
		return d.plainForward(op, index, value, payload, opt)
	case opcode.EffGetParameterProperties, opcode.EffGetOutputProperties,
		opcode.EffGetInputProperties, opcode.EffGetMidiKeyName:
		return d.plainForward(op, index, value, payload, opt)
	case opcode.EffBeginLoadBank, opcode.EffBeginLoadProgram:
		return d.plainForward(op, index, value, payload, opt)
	case opcode.EffSetSpeakerArrangement:
		return d.plainForward(op, index, value, payload, opt)
	case opcode.EffGetChunk:
		return d.getChunk(index, value, opt)
	case opcode.EffSetChunk:
		return d.setChunk(index, value, payload, opt)
	case opcode.EffProcessEvents:
		return d.processEvents(value, payload, opt)
	default:
		return d.plainForward(op, index, value, payload, opt)
	}
}

// plainForward copies all fields through to a Dispatch frame on the
// routed port, blocks for the response, and returns it verbatim
// (spec.md §4.E "forwarded as a plain Dispatch frame").
func (d *Dispatcher) plainForward(op int32, index int32, value int64, payload []byte, opt float32) (Result, error) {
	port, unlock := d.routedPort(op)
	defer unlock()

	f := port.Frame()
	f.Reset()
	f.SetCommand(wire.CommandDispatch)
	f.SetOpcode(op)
	f.SetIndex(index)
	f.SetValue(value)
	f.SetOpt(opt)
	if len(payload) > 0 {
		copy(f.Data(), payload)
	}

	port.SendRequest()
	if !port.WaitResponse(tagFor(op), -1) {
		return Result{}, fmt.Errorf("%w: %s", ErrTimeout, opcode.DispatchName(op))
	}

	out := make([]byte, len(f.Data()))
	copy(out, f.Data())
	return Result{Value: f.Value(), Payload: out}, nil
}

func tagFor(op int32) string {
	return "Dispatcher/dispatch/" + opcode.DispatchName(op)
}

// errorProtocol logs a malformed response or an opcode the child can't
// honor (spec.md §7 ProtocolError) before the caller returns
// ErrProtocol/ErrUnsupportedOpcode. Timeouts aren't logged again here:
// ipc.Port.wait already logs the soft-limit wait itself at Warn.
func (d *Dispatcher) errorProtocol(tag, msg string) {
	log.Error(d.logger, msg, log.Tag(tag))
}

func (d *Dispatcher) stringOut(op int32, index int32, value int64, payload []byte, opt float32, cap int) (Result, error) {
	res, err := d.plainForward(op, index, value, payload, opt)
	if err != nil {
		return res, err
	}
	res.Payload = nulTerminatedCopy(res.Payload, cap)
	return res, nil
}

// paramStringOut implements the 23-byte-stop-at-first-non-printable
// workaround (spec.md §4.E) for effGetParamName/Label/Display.
func (d *Dispatcher) paramStringOut(op int32, index int32, value int64, payload []byte, opt float32) (Result, error) {
	res, err := d.plainForward(op, index, value, payload, opt)
	if err != nil {
		return res, err
	}
	n := 0
	for n < maxParamStrLen && n < len(res.Payload) {
		b := res.Payload[n]
		if b < 0x20 || b > 0x7e {
			break
		}
		n++
	}
	out := make([]byte, n+1)
	copy(out, res.Payload[:n])
	res.Payload = out
	return res, nil
}

func nulTerminatedCopy(src []byte, cap int) []byte {
	n := cap - 1
	if n > len(src) {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		if src[i] == 0 {
			n = i
			break
		}
	}
	out := make([]byte, n+1)
	copy(out, src[:n])
	return out
}

// editOpen drives spec.md §4.E's full effEditOpen sequence.
func (d *Dispatcher) editOpen(index int32, value int64, payload []byte, opt float32) (Result, error) {
	res, err := d.plainForward(opcode.EffEditOpen, index, value, payload, opt)
	if err != nil {
		return res, err
	}
	if len(res.Payload) < abi.Size[abi.ERect]() {
		d.errorProtocol("Dispatcher/editOpen", "effEditOpen response too small for ERect")
		return res, fmt.Errorf("%w: effEditOpen response too small for ERect", ErrProtocol)
	}
	rect := abi.Get[abi.ERect](res.Payload)
	d.rect = rect

	if d.embedder == nil {
		return res, nil
	}
	if err := d.embedder.ResizeParent(rect); err != nil {
		return res, err
	}
	time.Sleep(d.embedDelay)
	if err := d.embedder.Reparent(); err != nil {
		return res, err
	}
	if err := d.embedder.NotifyEmbedded(); err != nil {
		return res, err
	}
	if err := d.embedder.NotifyFocusOut(); err != nil {
		return res, err
	}

	if err := d.sendShowWindow(); err != nil {
		return res, err
	}
	time.Sleep(d.embedDelay)
	if err := d.embedder.MapWindow(); err != nil {
		return res, err
	}
	return res, nil
}

func (d *Dispatcher) sendShowWindow() error {
	port, unlock := d.routedPort(opcode.EffEditOpen)
	defer unlock()

	f := port.Frame()
	f.Reset()
	f.SetCommand(wire.CommandShowWindow)
	port.SendRequest()
	if !port.WaitResponse("Dispatcher/showWindow", -1) {
		return fmt.Errorf("%w: showWindow", ErrTimeout)
	}
	return nil
}

// editGetRect stores the reported rectangle on the Dispatcher and returns
// a freshly allocated copy of it in Payload; the Payload does not alias
// the stored rectangle, so later effEditGetRect/effEditOpen calls leave
// it unchanged.
func (d *Dispatcher) editGetRect(index int32, value int64, payload []byte, opt float32) (Result, error) {
	res, err := d.plainForward(opcode.EffEditGetRect, index, value, payload, opt)
	if err != nil {
		return res, err
	}
	if len(res.Payload) < abi.Size[abi.ERect]() {
		d.errorProtocol("Dispatcher/editGetRect", "effEditGetRect response too small for ERect")
		return res, fmt.Errorf("%w: effEditGetRect response too small for ERect", ErrProtocol)
	}
	d.rect = abi.Get[abi.ERect](res.Payload)
	out := make([]byte, abi.Size[abi.ERect]())
	abi.Put(out, d.rect)
	res.Payload = out
	return res, nil
}

// processEvents implements spec.md §4.E's effProcessEvents special
// case: payload already holds each event packed contiguously by
// events.EncodeAll; the dispatcher derives the record count itself and
// writes it into index rather than trusting whatever the caller passed,
// since index is the field the wire frame actually carries it in.
func (d *Dispatcher) processEvents(value int64, payload []byte, opt float32) (Result, error) {
	step := abi.Size[abi.Event]()
	count := len(payload) / step
	return d.plainForward(opcode.EffProcessEvents, int32(count), value, payload[:count*step], opt)
}

// ProcessEvents is a typed convenience over Dispatch for
// effProcessEvents: it packs evts into the wire's contiguous VstEvent
// layout via events.EncodeAll before driving the same path Dispatch's
// opcode.EffProcessEvents case uses.
func (d *Dispatcher) ProcessEvents(evts []events.Event) (Result, error) {
	buf := make([]byte, len(evts)*abi.Size[abi.Event]())
	n := events.EncodeAll(buf, evts)
	return d.processEvents(0, buf[:n], 0)
}

// setBlockSize implements spec.md §4.E's frame-sizing formula and the
// disconnect/recreate/renegotiate sequence for growing the audio port.
func (d *Dispatcher) setBlockSize(frames int) (Result, error) {
	layout := bus.Layout{}
	if d.effect != nil {
		layout.Inputs = d.effect.InputCount
		layout.Outputs = d.effect.OutputCount
	}
	if err := layout.Validate(); err != nil {
		log.Warn(d.logger, "handshake reported no usable channel layout, defaulting to stereo", zap.Error(err))
		layout = bus.NewStereoLayout()
	}
	required := wire.HeaderSize + 8*frames*int(layout.Total())

	d.audioMu.Lock()
	current := d.audioPort
	needsGrow := current == nil || current.IsNull() || current.FrameSize() < required
	d.audioMu.Unlock()

	if !needsGrow {
		return Result{Value: 1}, nil
	}

	next := ipc.NewPort(d.logger)
	if err := next.Create(required); err != nil {
		return Result{}, fmt.Errorf("dispatch: setBlockSize: %w", err)
	}

	d.audioMu.Lock()
	old := d.audioPort
	d.audioPort = next
	d.audioMu.Unlock()

	if old != nil && !old.IsNull() {
		_ = old.Disconnect()
	}

	d.controlMu.Lock()
	defer d.controlMu.Unlock()
	f := d.controlPort.Frame()
	f.Reset()
	f.SetCommand(wire.CommandDispatch)
	f.SetOpcode(opcode.EffSetBlockSize)
	f.SetIndex(int32(next.ID()))
	f.SetValue(int64(frames))

	d.controlPort.SendRequest()
	if !d.controlPort.WaitResponse("Dispatcher/setBlockSize", -1) {
		return Result{}, fmt.Errorf("%w: setBlockSize", ErrTimeout)
	}
	return Result{Value: d.controlPort.Frame().Value()}, nil
}

// getChunk drives spec.md §4.E's chunked effGetChunk protocol.
func (d *Dispatcher) getChunk(index int32, value int64, opt float32) (Result, error) {
	port, unlock := d.routedPort(opcode.EffGetChunk)
	defer unlock()

	budget := int64(port.Frame().PayloadCap())

	f := port.Frame()
	f.Reset()
	f.SetCommand(wire.CommandDispatch)
	f.SetOpcode(opcode.EffGetChunk)
	f.SetIndex(index)
	f.SetValue(budget)
	f.SetOpt(opt)
	port.SendRequest()
	if !port.WaitResponse("Dispatcher/getChunk", -1) {
		return Result{}, fmt.Errorf("%w: effGetChunk", ErrTimeout)
	}

	f = port.Frame()
	total := f.Value()
	firstChunk := f.Index()
	if total == 0 || firstChunk == 0 {
		d.errorProtocol("Dispatcher/getChunk", "effGetChunk unsupported by child")
		return Result{}, ErrUnsupportedOpcode
	}

	buf := make([]byte, total)
	n := copy(buf, f.Data()[:firstChunk])

	for int64(n) < total {
		remaining := total - int64(n)
		want := remaining
		if want > budget {
			want = budget
		}

		f = port.Frame()
		f.Reset()
		f.SetCommand(wire.CommandGetDataBlock)
		f.SetIndex(int32(want))
		port.SendRequest()
		if !port.WaitResponse("Dispatcher/getChunk/block", -1) {
			return Result{}, fmt.Errorf("%w: effGetChunk block", ErrTimeout)
		}

		f = port.Frame()
		actual := int(f.Index())
		if actual <= 0 {
			d.errorProtocol("Dispatcher/getChunk", fmt.Sprintf("effGetChunk block reported %d bytes", actual))
			return Result{}, fmt.Errorf("%w: effGetChunk block reported %d bytes", ErrProtocol, actual)
		}
		n += copy(buf[n:], f.Data()[:actual])
	}

	return Result{Value: total, Payload: buf}, nil
}

// setChunk drives spec.md §4.E's inverse chunked effSetChunk protocol.
func (d *Dispatcher) setChunk(index int32, value int64, payload []byte, opt float32) (Result, error) {
	port, unlock := d.routedPort(opcode.EffSetChunk)
	defer unlock()

	budget := port.Frame().PayloadCap()
	total := len(payload)
	sent := 0
	for sent < total {
		want := total - sent
		if want > budget {
			want = budget
		}

		f := port.Frame()
		f.Reset()
		f.SetCommand(wire.CommandSetDataBlock)
		f.SetIndex(int32(want))
		copy(f.Data(), payload[sent:sent+want])
		port.SendRequest()
		if !port.WaitResponse("Dispatcher/setChunk/block", -1) {
			return Result{}, fmt.Errorf("%w: effSetChunk block", ErrTimeout)
		}
		sent += want
	}

	f := port.Frame()
	f.Reset()
	f.SetCommand(wire.CommandDispatch)
	f.SetOpcode(opcode.EffSetChunk)
	f.SetIndex(index)
	f.SetValue(int64(total))
	f.SetOpt(opt)
	port.SendRequest()
	if !port.WaitResponse("Dispatcher/setChunk", -1) {
		return Result{}, fmt.Errorf("%w: effSetChunk", ErrTimeout)
	}
	return Result{Value: port.Frame().Value()}, nil
}
