// Package endpoint implements Endpoint (spec.md §4.D): plugin-side
// construction and teardown — the control and callback ports, the
// handshake, the FrameQueue, and the wiring that hands the resulting
// Dispatcher and ProcessPath to a caller.
package endpoint

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/justyntemme/vst2bridge/pkg/abi"
	"github.com/justyntemme/vst2bridge/pkg/callback"
	"github.com/justyntemme/vst2bridge/pkg/dispatch"
	"github.com/justyntemme/vst2bridge/pkg/events"
	"github.com/justyntemme/vst2bridge/pkg/ipc"
	"github.com/justyntemme/vst2bridge/pkg/log"
	"github.com/justyntemme/vst2bridge/pkg/process"
	"github.com/justyntemme/vst2bridge/pkg/wire"
)

// ControlFrameSize is the control port's fixed frame size (spec.md
// §4.D): large enough to carry the handshake PluginInfo payload and
// any single struct-copy dispatch opcode without chunking.
const ControlFrameSize = 65536

// ErrDead is returned by New when the handshake does not complete
// within the soft limit; the endpoint kills the child and never
// becomes usable, mirroring the "null AEffect*" state spec.md §4.D
// describes.
var ErrDead = errors.New("endpoint: child failed to complete handshake")

// Spawner abstracts the fork/exec of the child process (spec.md §1's
// explicit out-of-scope collaborator): a host application supplies the
// mechanism, the endpoint only needs to start it with the two port ids
// and later reap it.
type Spawner interface {
	Spawn(controlPortID, callbackPortID int) (pid int, err error)
	Kill(pid int) error
	Wait(pid int) error
}

// Endpoint owns the full set of IPC primitives and bridge components
// for one child process.
type Endpoint struct {
	controlPort  *ipc.Port
	callbackPort *ipc.Port
	queue        *ipc.Queue
	handler      *callback.Handler
	dispatcher   *dispatch.Dispatcher
	processPath  *process.Path
	effect       abi.Effect

	spawner Spawner
	pid     int
	logger  *zap.Logger
}

type options struct {
	softLimit    int
	pumpInterval time.Duration
	embedDelay   time.Duration
}

func defaultOptions() options {
	return options{
		softLimit:    ipc.SoftLimitMillis,
		pumpInterval: callback.PollInterval,
		embedDelay:   100 * time.Millisecond,
	}
}

// Option configures New.
type Option func(*options)

// WithSoftLimit overrides the default 30s bound substituted for an
// unbounded wait (spec.md §4.A, §9).
func WithSoftLimit(msecs int) Option {
	return func(o *options) { o.softLimit = msecs }
}

// WithPumpInterval overrides the callback pump's default 100ms poll
// quantum (spec.md §4.F).
func WithPumpInterval(d time.Duration) Option {
	return func(o *options) { o.pumpInterval = d }
}

// WithEmbedDelay overrides the default ~100ms XEmbed workaround delay
// effEditOpen uses (spec.md §4.E, §9).
func WithEmbedDelay(d time.Duration) Option {
	return func(o *options) { o.embedDelay = d }
}

// New performs the full construction sequence from spec.md §4.D: create
// the control and callback ports, connect the FrameQueue, start the
// callback pump, spawn the child, and run the HostInfo handshake.
func New(spawner Spawner, host callback.Host, embedder dispatch.WindowEmbedder, logger *zap.Logger, opts ...Option) (*Endpoint, error) {
	cfg := defaultOptions()
	for _, o := range opts {
		o(&cfg)
	}
	if logger == nil {
		logger = log.Nop()
	}

	controlPort := ipc.NewPort(logger)
	controlPort.SetSoftLimit(cfg.softLimit)
	if err := controlPort.Create(ControlFrameSize); err != nil {
		return nil, fmt.Errorf("endpoint: control port: %w", err)
	}

	callbackPort := ipc.NewPort(logger)
	callbackPort.SetSoftLimit(cfg.softLimit)
	if err := callbackPort.Create(ipc.CallbackFrameSize); err != nil {
		_ = controlPort.Disconnect()
		return nil, fmt.Errorf("endpoint: callback port: %w", err)
	}

	queue := ipc.NewQueue(logger)
	if err := queue.Connect(controlPort.ID(), true); err != nil {
		_ = controlPort.Disconnect()
		_ = callbackPort.Disconnect()
		return nil, fmt.Errorf("endpoint: frame queue: %w", err)
	}

	e := &Endpoint{
		controlPort:  controlPort,
		callbackPort: callbackPort,
		queue:        queue,
		spawner:      spawner,
		logger:       logger,
	}

	e.handler = callback.New(callbackPort, queue, host, &e.effect, logger)
	e.handler.SetPollInterval(cfg.pumpInterval)
	e.handler.Start()

	pid, err := spawner.Spawn(controlPort.ID(), callbackPort.ID())
	if err != nil {
		e.teardownAfterFailure()
		return nil, fmt.Errorf("endpoint: spawn: %w", err)
	}
	e.pid = pid

	f := controlPort.Frame()
	f.Reset()
	f.SetCommand(wire.CommandHostInfo)
	f.SetOpcode(int32(callbackPort.ID()))
	controlPort.SendRequest()

	if !controlPort.WaitResponse("Endpoint/handshake", -1) {
		log.Error(logger, "child failed to complete handshake", zap.Int("pid", pid))
		_ = spawner.Kill(pid)
		e.teardownAfterFailure()
		return nil, ErrDead
	}

	f = controlPort.Frame()
	if len(f.Data()) < abi.Size[abi.PluginInfo]() {
		log.Error(logger, "handshake payload too small", zap.Int("pid", pid), zap.Int("size", len(f.Data())))
		_ = spawner.Kill(pid)
		e.teardownAfterFailure()
		return nil, fmt.Errorf("%w: handshake payload too small", ErrDead)
	}
	e.effect.FromPluginInfo(abi.Get[abi.PluginInfo](f.Data()))

	e.dispatcher = dispatch.New(controlPort, ipc.NewPort(logger), &e.effect, embedder, logger, e.onChildClosed)
	e.dispatcher.SetEmbedDelay(cfg.embedDelay)
	e.processPath = process.NewPath(e.dispatcher.LockAudioPort, e.handler)
	e.processPath.SetEventSender(eventSenderFunc(func(evts []events.Event) error {
		_, err := e.dispatcher.ProcessEvents(evts)
		return err
	}))

	return e, nil
}

// eventSenderFunc adapts a plain func to process.EventSender, the same
// way http.HandlerFunc adapts a func to http.Handler.
type eventSenderFunc func(evts []events.Event) error

func (f eventSenderFunc) ProcessEvents(evts []events.Event) error { return f(evts) }

func (e *Endpoint) teardownAfterFailure() {
	e.handler.Stop()
	_ = e.controlPort.Disconnect()
	_ = e.callbackPort.Disconnect()
	e.queue.Close()
}

// onChildClosed runs after the effClose response arrives (spec.md
// §4.E); it is wired as the dispatcher's onClose callback.
func (e *Endpoint) onChildClosed() {
	log.Flood(e.logger, "child reported effClose complete")
}

// Effect returns the locally mirrored AEffect fields, kept current by
// the handshake and subsequent audioMasterIOChanged callbacks.
func (e *Endpoint) Effect() abi.Effect { return e.effect }

// Dispatcher returns the opcode state machine for this endpoint.
func (e *Endpoint) Dispatcher() *dispatch.Dispatcher { return e.dispatcher }

// ProcessPath returns the audio processing transport for this endpoint.
func (e *Endpoint) ProcessPath() *process.Path { return e.processPath }

// CachedParameter exposes the callback handler's Automate re-entrancy
// cache (spec.md §4.F, §8 scenario 5) to callers driving getParameter.
func (e *Endpoint) CachedParameter(index int32) (float32, bool) {
	return e.handler.CachedParameter(index)
}

// Close implements spec.md §4.D's teardown: clears the pump's run flag,
// joins it, disconnects the three ports, and reaps the child. The three
// disconnects and the reap are joined with multierr rather than
// collected into a formatted string, so a caller can still errors.Is
// against any one of them.
func (e *Endpoint) Close() error {
	e.handler.Stop()

	var err error
	err = multierr.Append(err, e.controlPort.Disconnect())
	err = multierr.Append(err, e.callbackPort.Disconnect())
	if audio := e.dispatcher.AudioPort(); audio != nil && !audio.IsNull() {
		err = multierr.Append(err, audio.Disconnect())
	}
	e.queue.Close()
	err = multierr.Append(err, e.spawner.Wait(e.pid))

	if err != nil {
		return fmt.Errorf("endpoint: close: %w", err)
	}
	return nil
}
