package wire

import "unsafe"

// header is the fixed portion of every Frame, laid out to match the
// packed, native-endianness structure the child process reads and writes
// in place (spec.md §9: "the abstraction is representational only"). The
// two unnamed fields are explicit padding so Value lands on an 8-byte
// boundary and Data starts on one too, regardless of host struct packing
// defaults.
type header struct {
	Command Command
	Opcode  int32
	Index   int32
	_       int32
	Value   int64
	Opt     float32
	_       int32
}

// HeaderSize is the number of bytes the fixed fields occupy at the front
// of every port's frame buffer; the rest is the variable-length payload.
const HeaderSize = int(unsafe.Sizeof(header{}))

// Frame is a typed view over a []byte payload region owned by a DataPort.
// It never copies or owns the backing array: reads and writes go straight
// through to shared memory, which is the whole point of a DataPort frame
// being both the request and the response (spec.md §3).
type Frame struct {
	buf []byte
}

// View wraps buf, which must be at least HeaderSize bytes, as a Frame.
func View(buf []byte) *Frame {
	if len(buf) < HeaderSize {
		panic("wire: frame buffer smaller than header")
	}
	return &Frame{buf: buf}
}

func (f *Frame) header() *header {
	return (*header)(unsafe.Pointer(&f.buf[0]))
}

// Command returns the frame's discriminator.
func (f *Frame) Command() Command { return f.header().Command }

// SetCommand sets the frame's discriminator.
func (f *Frame) SetCommand(c Command) { f.header().Command = c }

// Opcode returns the opcode field (a VST2/audioMaster opcode for
// CommandDispatch and callback frames, the callback port id for
// CommandHostInfo). Chunk transfer commands carry their byte count in
// Index, not here.
func (f *Frame) Opcode() int32 { return f.header().Opcode }

// SetOpcode sets the opcode field.
func (f *Frame) SetOpcode(v int32) { f.header().Opcode = v }

// Index returns the index field.
func (f *Frame) Index() int32 { return f.header().Index }

// SetIndex sets the index field.
func (f *Frame) SetIndex(v int32) { f.header().Index = v }

// Value returns the value field (also the Dispatch return channel).
func (f *Frame) Value() int64 { return f.header().Value }

// SetValue sets the value field.
func (f *Frame) SetValue(v int64) { f.header().Value = v }

// Opt returns the opt field (also the GetParameter return channel).
func (f *Frame) Opt() float32 { return f.header().Opt }

// SetOpt sets the opt field.
func (f *Frame) SetOpt(v float32) { f.header().Opt = v }

// Data returns the trailing variable-length payload region.
func (f *Frame) Data() []byte { return f.buf[HeaderSize:] }

// PayloadCap returns B, the usable payload budget for chunked transfer:
// frameSize - HeaderSize (spec.md §4.E).
func (f *Frame) PayloadCap() int { return len(f.buf) - HeaderSize }

// Reset zeroes the fixed fields, leaving the payload untouched. Callers
// that reuse a frame across unrelated commands call this first so stale
// field values from a previous transaction cannot leak through.
func (f *Frame) Reset() {
	h := f.header()
	*h = header{}
}
