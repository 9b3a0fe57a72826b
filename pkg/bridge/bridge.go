// Package bridge is the top-level facade: it wires Endpoint, Dispatcher,
// CallbackHandler and ProcessPath into the small set of entry points a
// VST2 host-side AEffect needs (dispatch, getParameter, setParameter,
// processReplacing, processDoubleReplacing). Wiring this facade to the
// real native AEffect function-pointer table — the foreign ABI loader —
// is deliberately out of scope (spec.md §1 Non-goals); this package
// stops at a plain Go API a loader built elsewhere can call into.
package bridge

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/justyntemme/vst2bridge/pkg/abi"
	"github.com/justyntemme/vst2bridge/pkg/callback"
	"github.com/justyntemme/vst2bridge/pkg/dispatch"
	"github.com/justyntemme/vst2bridge/pkg/endpoint"
	"github.com/justyntemme/vst2bridge/pkg/events"
	"github.com/justyntemme/vst2bridge/pkg/log"
	"github.com/justyntemme/vst2bridge/pkg/wire"
)

// Plugin is one bridged child process, ready to take dispatch, parameter
// and process calls from a host application.
type Plugin struct {
	endpoint *endpoint.Endpoint
}

// Load constructs the endpoint (spec.md §4.D) and returns a ready
// Plugin, or an error if the child never completes its handshake.
func Load(spawner endpoint.Spawner, host callback.Host, embedder dispatch.WindowEmbedder, logger *zap.Logger, opts ...endpoint.Option) (*Plugin, error) {
	ep, err := endpoint.New(spawner, host, embedder, logger, opts...)
	if err != nil {
		return nil, err
	}
	return &Plugin{endpoint: ep}, nil
}

// Effect returns the locally mirrored AEffect fields.
func (p *Plugin) Effect() abi.Effect { return p.endpoint.Effect() }

// Dispatch forwards one VST2 dispatch opcode through the Dispatcher
// (spec.md §4.E).
func (p *Plugin) Dispatch(op int32, index int32, value int64, payload []byte, opt float32) (dispatch.Result, error) {
	return p.endpoint.Dispatcher().Dispatch(op, index, value, payload, opt)
}

// GetParameter implements spec.md §4.G's audio-thread getParameter:
// it first checks the Automate re-entrancy cache (spec.md §4.F, §8
// scenario 5) and only falls back to a real audio-port round trip on a
// cache miss.
func (p *Plugin) GetParameter(index int32) (float32, error) {
	if v, ok := p.endpoint.CachedParameter(index); ok {
		return v, nil
	}

	port, unlock := p.endpoint.Dispatcher().LockAudioPort()
	defer unlock()
	f := port.Frame()
	f.Reset()
	f.SetCommand(wire.CommandGetParameter)
	f.SetIndex(index)

	port.SendRequest()
	if !port.WaitResponse("Plugin/getParameter", -1) {
		return 0, fmt.Errorf("%w: getParameter", dispatch.ErrTimeout)
	}
	return port.Frame().Opt(), nil
}

// SetParameter implements spec.md §4.G's audio-thread setParameter.
func (p *Plugin) SetParameter(index int32, value float32) error {
	port, unlock := p.endpoint.Dispatcher().LockAudioPort()
	defer unlock()
	f := port.Frame()
	f.Reset()
	f.SetCommand(wire.CommandSetParameter)
	f.SetIndex(index)
	f.SetOpt(value)

	port.SendRequest()
	if !port.WaitResponse("Plugin/setParameter", -1) {
		return fmt.Errorf("%w: setParameter", dispatch.ErrTimeout)
	}
	return nil
}

// QueueEvent schedules a MIDI event (spec.md §4.E) for an upcoming
// process call; see process.Path.QueueEvent for when queued events are
// sent or dropped.
func (p *Plugin) QueueEvent(e events.Event) {
	p.endpoint.ProcessPath().QueueEvent(e)
}

// QueueEvents is QueueEvent for a batch.
func (p *Plugin) QueueEvents(evts []events.Event) {
	p.endpoint.ProcessPath().QueueEvents(evts)
}

// ProcessSingle runs one processReplacing round trip (spec.md §4.G).
func (p *Plugin) ProcessSingle(inputs [][]float32, outputs [][]float32, frames int) error {
	return p.endpoint.ProcessPath().ProcessSingle(inputs, outputs, frames)
}

// ProcessDouble runs one processDoubleReplacing round trip (spec.md
// §4.G).
func (p *Plugin) ProcessDouble(inputs [][]float64, outputs [][]float64, frames int) error {
	return p.endpoint.ProcessPath().ProcessDouble(inputs, outputs, frames)
}

// Close tears the endpoint down (spec.md §4.D teardown).
func (p *Plugin) Close() error {
	return p.endpoint.Close()
}

// LatencyReport renders the round-trip latency this process has
// measured across every soft-limit wait (dispatch, getParameter/
// setParameter, process*), letting a host application watch how close
// the bridge is running to spec.md §4.A's soft limit.
func (p *Plugin) LatencyReport() string {
	return log.Report()
}
