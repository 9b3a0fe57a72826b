// Package abi mirrors the VST2 SDK's own data layouts: AEffect and the
// handful of structures passed across dispatch opcodes (ERect,
// VstTimeInfo, VstParameterProperties, VstPinProperties,
// VstSpeakerArrangement, VstPatchChunkInfo, MidiKeyName, VstEvent). These
// are treated as an opaque external ABI (spec.md §1); this package only
// gives that ABI Go-side field access, it does not interpret it.
package abi

// PluginInfo is the HostInfo response payload (spec.md §6): the subset of
// AEffect fields the child reports back during handshake.
type PluginInfo struct {
	Flags        int32
	ProgramCount int32
	ParamCount   int32
	InputCount   int32
	OutputCount  int32
	InitialDelay int32
	UniqueID     int32
	Version      int32
}

// Effect mirrors the externally visible AEffect fields the endpoint keeps
// up to date from PluginInfo and subsequent IOChanged callbacks. It is
// not the real AEffect struct (that remains the host application's
// concern); it is the bridge's local record of what the child reported.
type Effect struct {
	Flags        int32
	ProgramCount int32
	ParamCount   int32
	InputCount   int32
	OutputCount  int32
	InitialDelay int32
	UniqueID     int32
	Version      int32
}

// FromPluginInfo populates e from a freshly received handshake response.
func (e *Effect) FromPluginInfo(p PluginInfo) {
	e.Flags = p.Flags
	e.ProgramCount = p.ProgramCount
	e.ParamCount = p.ParamCount
	e.InputCount = p.InputCount
	e.OutputCount = p.OutputCount
	e.InitialDelay = p.InitialDelay
	e.UniqueID = p.UniqueID
	e.Version = p.Version
}

// ApplyIOChanged updates the fields an audioMasterIOChanged callback
// reports (flags, program and parameter counts, channel counts, initial
// delay), leaving identity fields (UniqueID, Version) untouched.
func (e *Effect) ApplyIOChanged(p PluginInfo) {
	e.Flags = p.Flags
	e.ProgramCount = p.ProgramCount
	e.ParamCount = p.ParamCount
	e.InputCount = p.InputCount
	e.OutputCount = p.OutputCount
	e.InitialDelay = p.InitialDelay
}
