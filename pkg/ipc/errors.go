// Package ipc implements the three transports the bridge core runs on:
// a shared-memory DataPort with an in-band Event pair (spec.md §4.A,
// §4.C), and a kernel message-queue FrameQueue (spec.md §4.B).
package ipc

import "errors"

// Sentinel errors a Port's lifecycle methods return, named per spec.md
// §7's error-kind taxonomy (SetupError family).
var (
	// ErrAllocation is returned when the OS cannot provide a shared
	// memory segment of the requested size.
	ErrAllocation = errors.New("ipc: shared memory allocation failed")
	// ErrAttach is returned when attaching to a segment fails, whether
	// one this process just created or one it is trying to connect to.
	ErrAttach = errors.New("ipc: shared memory attach failed")
	// ErrStat is returned when the kernel cannot report a segment's
	// size or attach count.
	ErrStat = errors.New("ipc: shared memory stat failed")
	// ErrQueueFull is returned by PushFrame when the kernel message
	// queue rejects a send because it is at capacity. Per spec.md
	// §4.B this is expected under load and never escalated beyond a
	// log line by callers on the real-time path.
	ErrQueueFull = errors.New("ipc: frame queue full")
	// ErrNull is returned by operations attempted on a Null-state
	// port (no segment created or connected).
	ErrNull = errors.New("ipc: port is not connected")
)
