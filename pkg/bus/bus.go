// Package bus describes the negotiated audio channel layout a plugin
// endpoint learns from a child during handshake and IOChanged
// callbacks (spec.md §4.D step 5, §4.F IOChanged). VST2 has no
// multi-bus concept: a plugin reports exactly one input channel count
// and one output channel count, which is all setBlockSize's frame-size
// formula (spec.md §4.E) needs.
package bus

import "fmt"

// Layout is the channel counts a Dispatcher's setBlockSize uses to size
// the audio port's frame, and a ProcessPath uses to lay out its
// per-channel payload.
type Layout struct {
	Inputs  int32
	Outputs int32
}

// NewStereoLayout is the common default: 2 in, 2 out. setBlockSize
// falls back to it when a handshake reports a Layout that fails
// Validate.
func NewStereoLayout() Layout { return Layout{Inputs: 2, Outputs: 2} }

// Total returns Inputs+Outputs, the quantity setBlockSize's frame-size
// formula multiplies sample width by (spec.md §4.E).
func (l Layout) Total() int32 { return l.Inputs + l.Outputs }

// Validate reports an error for a layout no real plugin would report:
// a negative channel count, zero channels in both directions, or counts
// past a sane upper bound. Zero channels in one direction alone (e.g.
// an instrument with no inputs) is accepted.
func (l Layout) Validate() error {
	if l.Inputs < 0 || l.Outputs < 0 {
		return fmt.Errorf("bus: negative channel count (in=%d out=%d)", l.Inputs, l.Outputs)
	}
	if l.Inputs == 0 && l.Outputs == 0 {
		return fmt.Errorf("bus: layout has no channels at all")
	}
	const maxChannels = 64
	if l.Inputs > maxChannels || l.Outputs > maxChannels {
		return fmt.Errorf("bus: channel count exceeds %d (in=%d out=%d)", maxChannels, l.Inputs, l.Outputs)
	}
	return nil
}
