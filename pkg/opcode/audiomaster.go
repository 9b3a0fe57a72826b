package opcode

import "strconv"

// AudioMaster opcodes, the values CallbackHandler switches on when a frame
// arrives over the callback port (spec.md §4.F).
const (
	AudioMasterAutomate               int32 = 0
	AudioMasterVersion                int32 = 1
	AudioMasterCurrentId              int32 = 2
	AudioMasterIdle                   int32 = 3
	AudioMasterWantMidiDeprecated     int32 = 6
	AudioMasterGetTime                int32 = 7
	AudioMasterProcessEvents          int32 = 8
	AudioMasterIOChanged              int32 = 13
	AudioMasterSizeWindow             int32 = 15
	AudioMasterGetSampleRate          int32 = 16
	AudioMasterGetBlockSize           int32 = 17
	AudioMasterGetInputLatency        int32 = 18
	AudioMasterGetOutputLatency       int32 = 19
	AudioMasterGetCurrentProcessLevel int32 = 23
	AudioMasterGetAutomationState     int32 = 24
	AudioMasterGetVendorString        int32 = 32
	AudioMasterGetProductString       int32 = 33
	AudioMasterGetVendorVersion       int32 = 34
	AudioMasterCanDo                  int32 = 37
	AudioMasterGetLanguage            int32 = 38
	AudioMasterUpdateDisplay          int32 = 42
	AudioMasterBeginEdit              int32 = 43
	AudioMasterEndEdit                int32 = 44
)

var audioMasterNames = map[int32]string{
	AudioMasterAutomate:               "audioMasterAutomate",
	AudioMasterVersion:                "audioMasterVersion",
	AudioMasterCurrentId:              "audioMasterCurrentId",
	AudioMasterIdle:                   "audioMasterIdle",
	AudioMasterWantMidiDeprecated:     "__audioMasterWantMidiDeprecated",
	AudioMasterGetTime:                "audioMasterGetTime",
	AudioMasterProcessEvents:          "audioMasterProcessEvents",
	AudioMasterIOChanged:              "audioMasterIOChanged",
	AudioMasterSizeWindow:             "audioMasterSizeWindow",
	AudioMasterGetSampleRate:          "audioMasterGetSampleRate",
	AudioMasterGetBlockSize:           "audioMasterGetBlockSize",
	AudioMasterGetInputLatency:        "audioMasterGetInputLatency",
	AudioMasterGetOutputLatency:       "audioMasterGetOutputLatency",
	AudioMasterGetCurrentProcessLevel: "audioMasterGetCurrentProcessLevel",
	AudioMasterGetAutomationState:     "audioMasterGetAutomationState",
	AudioMasterGetVendorString:        "audioMasterGetVendorString",
	AudioMasterGetProductString:       "audioMasterGetProductString",
	AudioMasterGetVendorVersion:       "audioMasterGetVendorVersion",
	AudioMasterCanDo:                  "audioMasterCanDo",
	AudioMasterGetLanguage:            "audioMasterGetLanguage",
	AudioMasterUpdateDisplay:          "audioMasterUpdateDisplay",
	AudioMasterBeginEdit:              "audioMasterBeginEdit",
	AudioMasterEndEdit:                "audioMasterEndEdit",
}

// AudioMasterName returns a human-readable name for an audioMaster opcode,
// falling back to the raw integer when the opcode isn't in the table.
func AudioMasterName(op int32) string {
	if name, ok := audioMasterNames[op]; ok {
		return name
	}
	return "audioMaster#" + strconv.Itoa(int(op))
}

// ValueOnlyPassthrough reports whether op's return value is taken verbatim
// from the child's returned int64 with no payload marshaling (the common
// case in handleAudioMaster, per plugin.cpp's switch).
func ValueOnlyPassthrough(op int32) bool {
	switch op {
	case AudioMasterVersion, AudioMasterCurrentId, AudioMasterIdle,
		AudioMasterWantMidiDeprecated, AudioMasterSizeWindow,
		AudioMasterGetSampleRate, AudioMasterGetBlockSize,
		AudioMasterGetInputLatency, AudioMasterGetOutputLatency,
		AudioMasterGetCurrentProcessLevel, AudioMasterGetAutomationState,
		AudioMasterCanDo, AudioMasterGetLanguage, AudioMasterUpdateDisplay,
		AudioMasterBeginEdit, AudioMasterEndEdit, AudioMasterGetVendorVersion:
		return true
	default:
		return false
	}
}

// StringReturning reports whether op expects a NUL-terminated string
// written into the frame payload rather than a numeric Value.
func StringReturning(op int32) bool {
	switch op {
	case AudioMasterGetVendorString, AudioMasterGetProductString:
		return true
	default:
		return false
	}
}
