// Package opcode names the VST2 dispatch opcodes and audioMaster callback
// opcodes the dispatcher and callback handler switch on. spec.md §1 treats
// the VST2 SDK itself as an opaque external layout; these are just the
// integer values that SDK assigns, needed so the opcode switches in
// pkg/dispatch and pkg/callback read as named cases instead of magic
// numbers.
package opcode

import "strconv"

// Dispatch opcodes, the values carried in a CommandDispatch frame's
// Opcode field (spec.md §3, §4.E).
const (
	EffOpen                     int32 = 0
	EffClose                    int32 = 1
	EffSetProgram               int32 = 2
	EffGetProgram               int32 = 3
	EffSetProgramName           int32 = 4
	EffGetProgramName           int32 = 5
	EffGetParamLabel            int32 = 6
	EffGetParamDisplay          int32 = 7
	EffGetParamName             int32 = 8
	EffSetSampleRate            int32 = 10
	EffSetBlockSize             int32 = 11
	EffMainsChanged             int32 = 12
	EffEditGetRect              int32 = 13
	EffEditOpen                 int32 = 14
	EffEditClose                int32 = 15
	EffIdentifyDeprecated       int32 = 22
	EffGetChunk                 int32 = 23
	EffSetChunk                 int32 = 24
	EffProcessEvents            int32 = 25
	EffCanBeAutomated           int32 = 26
	EffGetProgramNameIndexed    int32 = 29
	EffGetInputProperties       int32 = 33
	EffGetOutputProperties      int32 = 34
	EffGetPlugCategory          int32 = 35
	EffConnectInputDeprecated   int32 = 31
	EffConnectOutputDeprecated  int32 = 32
	EffSetSpeakerArrangement    int32 = 42
	EffGetEffectName            int32 = 45
	EffGetVendorString          int32 = 47
	EffGetProductString         int32 = 48
	EffGetVendorVersion         int32 = 49
	EffCanDo                    int32 = 51
	EffGetTailSize              int32 = 52
	EffKeysRequiredDeprecated   int32 = 57
	EffGetVstVersion            int32 = 58
	EffEditIdle                 int32 = 19
	EffGetMidiKeyName           int32 = 66
	EffBeginSetProgram          int32 = 67
	EffEndSetProgram            int32 = 68
	EffShellGetNextPlugin       int32 = 70
	EffStartProcess             int32 = 71
	EffStopProcess              int32 = 72
	EffSetTotalSampleToProcess  int32 = 73
	EffSetPanLaw                int32 = 74
	EffBeginLoadBank            int32 = 75
	EffBeginLoadProgram         int32 = 76
	EffSetEditKnobMode          int32 = 61
	EffGetMidiProgramName       int32 = 62
	EffGetCurrentMidiProgram    int32 = 63
	EffGetMidiProgramCategory   int32 = 64
	EffHasMidiProgramsChanged   int32 = 65
	EffGetMidiKeyNameDeprecated int32 = 83
	EffGetParameterProperties   int32 = 56
	EffGetNumMidiInputChannels  int32 = 78
	EffGetNumMidiOutputChannels int32 = 79
)

// dispatchNames is used only for diagnostics (log fields, panics in
// tests); it intentionally does not need to be exhaustive.
var dispatchNames = map[int32]string{
	EffOpen:                    "effOpen",
	EffClose:                   "effClose",
	EffSetProgram:              "effSetProgram",
	EffGetProgram:               "effGetProgram",
	EffSetProgramName:           "effSetProgramName",
	EffGetProgramName:           "effGetProgramName",
	EffGetParamLabel:            "effGetParamLabel",
	EffGetParamDisplay:          "effGetParamDisplay",
	EffGetParamName:             "effGetParamName",
	EffSetSampleRate:            "effSetSampleRate",
	EffSetBlockSize:             "effSetBlockSize",
	EffMainsChanged:             "effMainsChanged",
	EffEditGetRect:              "effEditGetRect",
	EffEditOpen:                 "effEditOpen",
	EffEditClose:                "effEditClose",
	EffIdentifyDeprecated:       "__effIdentifyDeprecated",
	EffGetChunk:                 "effGetChunk",
	EffSetChunk:                 "effSetChunk",
	EffProcessEvents:            "effProcessEvents",
	EffCanBeAutomated:           "effCanBeAutomated",
	EffGetProgramNameIndexed:    "effGetProgramNameIndexed",
	EffGetInputProperties:       "effGetInputProperties",
	EffGetOutputProperties:      "effGetOutputProperties",
	EffGetPlugCategory:          "effGetPlugCategory",
	EffConnectInputDeprecated:   "__effConnectInputDeprecated",
	EffConnectOutputDeprecated:  "__effConnectOutputDeprecated",
	EffSetSpeakerArrangement:    "effSetSpeakerArrangement",
	EffGetEffectName:            "effGetEffectName",
	EffGetVendorString:          "effGetVendorString",
	EffGetProductString:         "effGetProductString",
	EffGetVendorVersion:         "effGetVendorVersion",
	EffCanDo:                    "effCanDo",
	EffGetTailSize:              "effGetTailSize",
	EffKeysRequiredDeprecated:   "__effKeysRequiredDeprecated",
	EffGetVstVersion:            "effGetVstVersion",
	EffEditIdle:                 "effEditIdle",
	EffGetMidiKeyName:           "effGetMidiKeyName",
	EffBeginSetProgram:          "effBeginSetProgram",
	EffEndSetProgram:            "effEndSetProgram",
	EffShellGetNextPlugin:       "effShellGetNextPlugin",
	EffStartProcess:             "effStartProcess",
	EffStopProcess:              "effStopProcess",
	EffSetPanLaw:                "effSetPanLaw",
	EffBeginLoadBank:            "effBeginLoadBank",
	EffBeginLoadProgram:         "effBeginLoadProgram",
	EffSetEditKnobMode:          "effSetEditKnobMode",
	EffGetParameterProperties:   "effGetParameterProperties",
	EffGetNumMidiInputChannels:  "effGetNumMidiInputChannels",
	EffGetNumMidiOutputChannels: "effGetNumMidiOutputChannels",
}

// DispatchName returns a human-readable name for a dispatch opcode,
// falling back to the raw integer when the opcode isn't in the table.
func DispatchName(op int32) string {
	if name, ok := dispatchNames[op]; ok {
		return name
	}
	return "eff#" + strconv.Itoa(int(op))
}
