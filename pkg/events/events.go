// Package events models the VST2 MIDI event stream carried by
// effProcessEvents and audioMasterProcessEvents (spec.md §4.E, §4.F):
// a typed Go representation of VstEvent records, and the codec that
// packs/unpacks them into the wire payload's contiguous VstEvent array.
package events

import "fmt"

// Type identifies a MIDI event's kind, independent of the raw VstEvent
// status byte it is packed from/into.
type Type uint8

const (
	TypeNoteOff Type = iota
	TypeNoteOn
	TypePolyPressure
	TypeControlChange
	TypeProgramChange
	TypeChannelPressure
	TypePitchBend
)

// Event is any MIDI event the dispatcher can marshal into a VstEvent
// record.
type Event interface {
	Type() Type
	Channel() uint8
	SampleOffset() int32
	String() string
}

// Base carries the fields every MIDI event shares.
type Base struct {
	EventChannel uint8
	Offset       int32
}

func (e Base) Channel() uint8       { return e.EventChannel }
func (e Base) SampleOffset() int32  { return e.Offset }

type NoteOnEvent struct {
	Base
	NoteNumber uint8
	Velocity   uint8
}

func (e NoteOnEvent) Type() Type { return TypeNoteOn }
func (e NoteOnEvent) String() string {
	return fmt.Sprintf("NoteOn{ch:%d, note:%d, vel:%d, offset:%d}", e.EventChannel, e.NoteNumber, e.Velocity, e.Offset)
}

type NoteOffEvent struct {
	Base
	NoteNumber uint8
	Velocity   uint8
}

func (e NoteOffEvent) Type() Type { return TypeNoteOff }
func (e NoteOffEvent) String() string {
	return fmt.Sprintf("NoteOff{ch:%d, note:%d, vel:%d, offset:%d}", e.EventChannel, e.NoteNumber, e.Velocity, e.Offset)
}

type ControlChangeEvent struct {
	Base
	Controller uint8
	Value      uint8
}

func (e ControlChangeEvent) Type() Type { return TypeControlChange }
func (e ControlChangeEvent) String() string {
	return fmt.Sprintf("CC{ch:%d, ctrl:%d, val:%d, offset:%d}", e.EventChannel, e.Controller, e.Value, e.Offset)
}

type PitchBendEvent struct {
	Base
	Value int16 // -8192..8191, 0 is center
}

func (e PitchBendEvent) Type() Type { return TypePitchBend }
func (e PitchBendEvent) String() string {
	return fmt.Sprintf("PitchBend{ch:%d, val:%d, offset:%d}", e.EventChannel, e.Value, e.Offset)
}

type PolyPressureEvent struct {
	Base
	NoteNumber uint8
	Pressure   uint8
}

func (e PolyPressureEvent) Type() Type { return TypePolyPressure }
func (e PolyPressureEvent) String() string {
	return fmt.Sprintf("PolyPressure{ch:%d, note:%d, pressure:%d, offset:%d}", e.EventChannel, e.NoteNumber, e.Pressure, e.Offset)
}

type ChannelPressureEvent struct {
	Base
	Pressure uint8
}

func (e ChannelPressureEvent) Type() Type { return TypeChannelPressure }
func (e ChannelPressureEvent) String() string {
	return fmt.Sprintf("ChannelPressure{ch:%d, pressure:%d, offset:%d}", e.EventChannel, e.Pressure, e.Offset)
}

type ProgramChangeEvent struct {
	Base
	Program uint8
}

func (e ProgramChangeEvent) Type() Type { return TypeProgramChange }
func (e ProgramChangeEvent) String() string {
	return fmt.Sprintf("ProgramChange{ch:%d, prog:%d, offset:%d}", e.EventChannel, e.Program, e.Offset)
}
