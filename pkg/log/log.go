// Package log provides the structured logging conventions shared by every
// bridge component: a component-scoped *zap.Logger, a handful of field
// helpers so tags/opcodes/durations are logged consistently, and a "flood"
// level for per-frame tracing that is too noisy even for debug builds.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Nop returns a logger that discards everything, the default for any
// component constructed without an explicit logger.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// Development returns a human-readable, debug-level logger suitable for
// the host-side tester harness and for tests in this module.
func Development(name string) *zap.Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		return Nop()
	}
	return l.Named(name)
}

// Tag attaches the caller-supplied diagnostic tag spec.md's soft-limit
// waits are logged with, e.g. "Plugin::dispatch/effGetProgram".
func Tag(tag string) zap.Field {
	return zap.String("tag", tag)
}

// Opcode attaches a VST2/audioMaster opcode value.
func Opcode(opcode int32) zap.Field {
	return zap.Int32("opcode", opcode)
}

// Port attaches the data port's kernel id.
func Port(id int) zap.Field {
	return zap.Int("port", id)
}

// Flood logs at debug level with an extra "flood" marker field, mirroring
// the original bridge's distinction between DEBUG and the noisier
// per-dispatch/per-callback FLOOD trace level. zap has no native fifth
// level, so FLOOD is DebugLevel plus a field a log pipeline can filter on.
func Flood(logger *zap.Logger, msg string, fields ...zap.Field) {
	if ce := logger.Check(zapcore.DebugLevel, msg); ce != nil {
		ce.Write(append(fields, zap.Bool("flood", true))...)
	}
}

// Warn logs a condition spec.md §7 classifies as recoverable but worth
// a host application's attention: a soft-limit wait timing out, a
// FrameQueue dropping a message because it's full.
func Warn(logger *zap.Logger, msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

// Error logs a condition spec.md §7 classifies as a protocol failure:
// a malformed response, an opcode the child can't honor, or the child
// dying outright.
func Error(logger *zap.Logger, msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}
