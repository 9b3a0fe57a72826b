package log

import (
	"testing"

	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestFlood(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	Flood(logger, "waitRequest timed out", Tag("Plugin::dispatch/effGetProgram"), Opcode(13))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.Level != zapcore.DebugLevel {
		t.Errorf("expected debug level, got %v", entry.Level)
	}

	ctx := entry.ContextMap()
	if ctx["flood"] != true {
		t.Error("expected flood field to be true")
	}
	if ctx["tag"] != "Plugin::dispatch/effGetProgram" {
		t.Errorf("unexpected tag field: %v", ctx["tag"])
	}
}

func TestFloodRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	Flood(logger, "should be filtered")

	if len(logs.All()) != 0 {
		t.Error("flood entries below the enabled level should not be recorded")
	}
}

func TestNop(t *testing.T) {
	// Nop must never panic and must never actually write anywhere.
	Nop().Info("discarded", Tag("x"), Port(7))
}
