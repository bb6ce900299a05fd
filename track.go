package arena

import "unsafe"

// Tracker receives memory-state notifications meant for sanitizer-style
// tooling (Valgrind/ASan equivalents). The default implementation is a
// no-op; callers that run under such tooling can supply their own.
type Tracker interface {
	// MemUndefined marks [p, p+size) as allocated-but-uninitialized.
	MemUndefined(p unsafe.Pointer, size uintptr)
	// MemNoAccess marks [p, p+size) as not safe to touch (freed, or
	// purged-and-decommitted).
	MemNoAccess(p unsafe.Pointer, size uintptr)
}

type noopTracker struct{}

func (noopTracker) MemUndefined(unsafe.Pointer, uintptr) {}
func (noopTracker) MemNoAccess(unsafe.Pointer, uintptr)  {}
