// Package callback implements the CallbackHandler (spec.md §4.F): the
// pump thread that services synchronous requests from the child over
// the callback port, plus the audio-thread drain of the async
// FrameQueue, and the Automate re-entrancy cache that lets a same-thread
// getParameter short-circuit without a new IPC round trip.
package callback

import (
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/justyntemme/vst2bridge/pkg/abi"
	"github.com/justyntemme/vst2bridge/pkg/events"
	"github.com/justyntemme/vst2bridge/pkg/ipc"
	"github.com/justyntemme/vst2bridge/pkg/log"
	"github.com/justyntemme/vst2bridge/pkg/opcode"
	"github.com/justyntemme/vst2bridge/pkg/wire"
)

// Host is the native host's own audioMaster entry point. The bridge
// forwards every callback that isn't special-cased (spec.md §4.F)
// through this, exactly as the child's own callback would have reached
// the real host had it been loaded in-process.
type Host interface {
	Call(op int32, index int32, value int64, payload []byte, opt float32) int64
}

// PollInterval is the pump thread's wait quantum (spec.md §4.F): the
// cancellation-latency bound when the run flag is cleared.
const PollInterval = 100 * time.Millisecond

// Handler owns the callback port's pump thread and the Automate cache.
type Handler struct {
	port   *ipc.Port
	queue  *ipc.Queue
	host   Host
	effect *abi.Effect
	logger *zap.Logger

	pollInterval time.Duration

	ready chan struct{}
	stop  chan struct{}
	done  chan struct{}

	mu           sync.Mutex
	hasCache     bool
	lastIndex    int32
	lastValue    float32
	lastThreadID int
}

// New wires a Handler to the callback port, the async frame queue, the
// native host callback, and the locally mirrored AEffect fields that
// IOChanged keeps current.
func New(port *ipc.Port, queue *ipc.Queue, host Host, effect *abi.Effect, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Handler{
		port:         port,
		queue:        queue,
		host:         host,
		effect:       effect,
		logger:       logger,
		pollInterval: PollInterval,
		ready:        make(chan struct{}),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// SetPollInterval overrides the default 100ms pump quantum.
func (h *Handler) SetPollInterval(d time.Duration) { h.pollInterval = d }

// Start launches the pump thread and blocks until it reports ready,
// mirroring the construction sequence in spec.md §4.D step 1.
func (h *Handler) Start() {
	go h.pump()
	<-h.ready
}

// Stop clears the run flag and waits for the pump thread to exit,
// bounded by one poll quantum (spec.md §4.F, §5 Cancellation).
func (h *Handler) Stop() {
	close(h.stop)
	<-h.done
}

func (h *Handler) pump() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(h.done)

	close(h.ready)

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		if !h.port.WaitRequest("CallbackHandler/pump", int(h.pollInterval/time.Millisecond)) {
			continue
		}

		f := h.port.Frame()
		op := f.Opcode()
		result := h.dispatch(op, f.Index(), f.Value(), f.Data(), f.Opt())
		f.SetValue(result)
		h.port.SendResponse()
	}
}

// DrainQueue implements process.Drainer: it pops every pending frame
// off the async FrameQueue and routes each through the same dispatch
// table the pump thread uses (spec.md §4.F Audio-thread drain). The
// child packs these messages with the same fixed header every Frame
// uses, so they are read with the same wire.View.
func (h *Handler) DrainQueue() {
	buf := make([]byte, ipc.CallbackFrameSize)
	for h.queue.PopFrame(buf) {
		f := wire.View(buf)
		h.dispatch(f.Opcode(), f.Index(), f.Value(), f.Data(), f.Opt())
	}
}

// CachedParameter returns the Automate-cached value for index if it was
// set by a call on the same OS thread as the caller (spec.md §4.F,
// §8 boundary behaviour). Call this before falling back to a real
// GetParameter IPC round trip.
func (h *Handler) CachedParameter(index int32) (float32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hasCache && h.lastIndex == index && h.lastThreadID == unix.Gettid() {
		return h.lastValue, true
	}
	return 0, false
}

// dispatch routes one audioMaster callback, per the opcode families
// spec.md §4.F enumerates.
func (h *Handler) dispatch(op int32, index int32, value int64, payload []byte, opt float32) int64 {
	switch {
	case op == opcode.AudioMasterAutomate:
		h.mu.Lock()
		h.hasCache = true
		h.lastIndex = index
		h.lastValue = opt
		h.lastThreadID = unix.Gettid()
		h.mu.Unlock()
		return h.forward(op, index, value, payload, opt)

	case op == opcode.AudioMasterIOChanged:
		if h.effect != nil && len(payload) >= abi.Size[abi.PluginInfo]() {
			h.effect.ApplyIOChanged(abi.Get[abi.PluginInfo](payload))
		}
		return h.forward(op, index, value, payload, opt)

	case op == opcode.AudioMasterGetTime:
		return h.forward(op, index, value, payload, opt)

	case op == opcode.AudioMasterProcessEvents:
		return h.forwardProcessEvents(index, value, payload, opt)

	case opcode.ValueOnlyPassthrough(op), opcode.StringReturning(op):
		return h.forward(op, index, value, payload, opt)

	default:
		log.Error(h.logger, "unrecognized audioMaster opcode", log.Opcode(op))
		return h.forward(op, index, value, payload, opt)
	}
}

// forwardProcessEvents implements spec.md §4.F's audioMasterProcessEvents
// special case: it decodes the contiguous VstEvent records the child
// packed (index holding the count) and rebuilds the same contiguous
// layout from the decoded events before handing it to the host, so a
// malformed or truncated trailing record can't reach the host's own
// audioMaster entry point.
func (h *Handler) forwardProcessEvents(index int32, value int64, payload []byte, opt float32) int64 {
	evts := events.DecodeAll(payload, int(index))
	buf := make([]byte, len(evts)*abi.Size[abi.Event]())
	n := events.EncodeAll(buf, evts)
	return h.forward(opcode.AudioMasterProcessEvents, int32(len(evts)), value, buf[:n], opt)
}

func (h *Handler) forward(op int32, index int32, value int64, payload []byte, opt float32) int64 {
	if h.host == nil {
		return 0
	}
	return h.host.Call(op, index, value, payload, opt)
}
