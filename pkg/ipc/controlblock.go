package ipc

import "unsafe"

// ControlBlock is the fixed header at offset 0 of every DataPort
// segment (spec.md §3): exactly two binary semaphores. The payload
// frame begins immediately after it in the same segment.
type ControlBlock struct {
	Request  Event
	Response Event
}

// ControlBlockSize is sizeof(ControlBlock), the offset at which a port's
// frame region begins.
const ControlBlockSize = int(unsafe.Sizeof(ControlBlock{}))
