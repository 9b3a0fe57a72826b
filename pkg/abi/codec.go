package abi

import "unsafe"

// sizeOf returns the in-memory size of T, the same value C's sizeof(T)
// would report for the matching packed layout.
func sizeOf[T any]() int {
	var v T
	return int(unsafe.Sizeof(v))
}

// View reinterprets the front of buf as a *T without copying, mirroring
// the reinterpret_cast<T*>(frame->data) pattern the child and the
// dispatcher both rely on. buf must be at least sizeOf[T]() bytes.
func View[T any](buf []byte) *T {
	if len(buf) < sizeOf[T]() {
		panic("abi: buffer smaller than struct")
	}
	return (*T)(unsafe.Pointer(&buf[0]))
}

// Put writes v into the front of buf, zero-copy, the same as a C memcpy
// of sizeof(v) bytes.
func Put[T any](buf []byte, v T) {
	*View[T](buf) = v
}

// Get reads a T out of the front of buf by value.
func Get[T any](buf []byte) T {
	return *View[T](buf)
}

// Size reports sizeOf[T]() for callers outside this package (e.g.
// computing chunked-transfer budgets against a specific payload type).
func Size[T any]() int {
	return sizeOf[T]()
}
