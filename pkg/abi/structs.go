package abi

// These mirror the fixed, packed, native-endian layouts the VST2 SDK
// defines for payloads carried inside a Frame's data region (spec.md §1,
// §9). Field widths and ordering match the SDK headers; this package
// exists only so dispatch and callback code can read/write named fields
// instead of raw offsets.

// ERect is the window rectangle returned by effEditGetRect and consumed
// by effEditOpen's resize/reparent sequence.
type ERect struct {
	Top, Left, Bottom, Right int16
}

// TimeInfo mirrors VstTimeInfo, copied verbatim (sizeof(VstTimeInfo)
// bytes) into a GetTime callback's response payload.
type TimeInfo struct {
	SamplePos          float64
	SampleRate         float64
	NanoSeconds        float64
	PpqPos             float64
	Tempo              float64
	BarStartPos        float64
	CycleStartPos      float64
	CycleEndPos        float64
	TimeSigNumerator   int32
	TimeSigDenominator int32
	SmpteOffset        int32
	SmpteFrameRate     int32
	SamplesToNextClock int32
	Flags              int32
}

// ParameterProperties mirrors VstParameterProperties, the payload for
// effGetParameterProperties.
type ParameterProperties struct {
	StepFloat       float32
	SmallStepFloat  float32
	LargeStepFloat  float32
	Label           [64]byte
	Flags           int32
	MinInteger      int32
	MaxInteger      int32
	StepInteger     int32
	LargeStepInteger int32
	ShortLabel      [8]byte
}

// PinProperties mirrors VstPinProperties, the payload for
// effGetInputProperties/effGetOutputProperties.
type PinProperties struct {
	Label           [64]byte
	Flags           int32
	ArrangementType int32
	ShortLabel      [8]byte
}

// SpeakerProperties is one entry of a SpeakerArrangement's speaker table.
type SpeakerProperties struct {
	Azimuth   float32
	Elevation float32
	Radius    float32
	Reserved  float32
	Name      [64]byte
	Type      int32
}

// SpeakerArrangement mirrors VstSpeakerArrangement. effSetSpeakerArrangement
// carries two of these back-to-back in a single payload (spec.md §4.E).
type SpeakerArrangement struct {
	Type        int32
	NumChannels int32
	Speakers    [8]SpeakerProperties
}

// PatchChunkInfo mirrors VstPatchChunkInfo, the payload for
// effBeginLoadBank/effBeginLoadProgram.
type PatchChunkInfo struct {
	Version        int32
	PluginUniqueID int32
	PluginVersion  int32
	NumElements    int32
	Future         [48]byte
}

// MidiKeyName mirrors the effGetMidiKeyName payload.
type MidiKeyName struct {
	ThisProgramIndex int32
	ThisKeyNumber    int32
	KeyName          [64]byte
	Reserved         int32
	Future           [96]byte
}

// Event mirrors one VstEvent record as laid out in a ProcessEvents
// payload.
type Event struct {
	Type        int32
	ByteSize    int32
	DeltaFrames int32
	Flags       int32
	Data        [16]byte
}
