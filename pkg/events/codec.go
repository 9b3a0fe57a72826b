package events

import "github.com/justyntemme/vst2bridge/pkg/abi"

// vstEventMIDI is the VstEvent.Type value for a MIDI event, the only
// kind this bridge marshals (SysEx events are out of scope).
const vstEventMIDI = 1

// Encode packs e into a VstEvent record the way the VST2 SDK lays out
// a 3-byte MIDI message: status|channel, data1, data2 in the first
// three bytes of the 16-byte data field.
func Encode(e Event) abi.Event {
	var status, d1, d2 byte

	switch ev := e.(type) {
	case NoteOnEvent:
		status, d1, d2 = 0x90|ev.EventChannel, ev.NoteNumber, ev.Velocity
	case NoteOffEvent:
		status, d1, d2 = 0x80|ev.EventChannel, ev.NoteNumber, ev.Velocity
	case ControlChangeEvent:
		status, d1, d2 = 0xB0|ev.EventChannel, ev.Controller, ev.Value
	case ProgramChangeEvent:
		status, d1, d2 = 0xC0|ev.EventChannel, ev.Program, 0
	case ChannelPressureEvent:
		status, d1, d2 = 0xD0|ev.EventChannel, ev.Pressure, 0
	case PolyPressureEvent:
		status, d1, d2 = 0xA0|ev.EventChannel, ev.NoteNumber, ev.Pressure
	case PitchBendEvent:
		v := uint16(ev.Value + 8192)
		status, d1, d2 = 0xE0|ev.EventChannel, byte(v&0x7f), byte((v>>7)&0x7f)
	}

	rec := abi.Event{
		Type:        vstEventMIDI,
		ByteSize:    24,
		DeltaFrames: e.SampleOffset(),
	}
	rec.Data[0] = status
	rec.Data[1] = d1
	rec.Data[2] = d2
	return rec
}

// Decode reverses Encode, recovering a typed Event from a raw VstEvent
// record (used when rebuilding the child's ProcessEvents callback into
// Go values, spec.md §4.F).
func Decode(rec abi.Event) (Event, bool) {
	status := rec.Data[0]
	channel := status & 0x0f
	offset := rec.DeltaFrames

	switch status & 0xf0 {
	case 0x90:
		return NoteOnEvent{Base: Base{EventChannel: channel, Offset: offset}, NoteNumber: rec.Data[1], Velocity: rec.Data[2]}, true
	case 0x80:
		return NoteOffEvent{Base: Base{EventChannel: channel, Offset: offset}, NoteNumber: rec.Data[1], Velocity: rec.Data[2]}, true
	case 0xB0:
		return ControlChangeEvent{Base: Base{EventChannel: channel, Offset: offset}, Controller: rec.Data[1], Value: rec.Data[2]}, true
	case 0xC0:
		return ProgramChangeEvent{Base: Base{EventChannel: channel, Offset: offset}, Program: rec.Data[1]}, true
	case 0xD0:
		return ChannelPressureEvent{Base: Base{EventChannel: channel, Offset: offset}, Pressure: rec.Data[1]}, true
	case 0xA0:
		return PolyPressureEvent{Base: Base{EventChannel: channel, Offset: offset}, NoteNumber: rec.Data[1], Pressure: rec.Data[2]}, true
	case 0xE0:
		v := int32(rec.Data[1]) | int32(rec.Data[2])<<7
		return PitchBendEvent{Base: Base{EventChannel: channel, Offset: offset}, Value: int16(v - 8192)}, true
	default:
		return nil, false
	}
}

// EncodeAll packs a slice of events contiguously into buf, the layout
// effProcessEvents writes into the request payload after setting index
// to len(evts) (spec.md §4.E). buf must be at least
// len(evts)*abi.Size[abi.Event]() bytes.
func EncodeAll(buf []byte, evts []Event) int {
	step := abi.Size[abi.Event]()
	for i, e := range evts {
		abi.Put(buf[i*step:], Encode(e))
	}
	return len(evts) * step
}

// DecodeAll unpacks count contiguous VstEvent records from buf (the
// layout audioMasterProcessEvents reads them in, spec.md §4.F).
func DecodeAll(buf []byte, count int) []Event {
	step := abi.Size[abi.Event]()
	out := make([]Event, 0, count)
	for i := 0; i < count; i++ {
		rec := abi.Get[abi.Event](buf[i*step:])
		if ev, ok := Decode(rec); ok {
			out = append(out, ev)
		}
	}
	return out
}
