// Package osmem abstracts the operating-system virtual memory calls the
// allocator needs: reserve address space, commit/decommit pages, and
// advise the kernel that committed-but-unused pages can be reclaimed.
//
// The real implementations (osmem_unix.go, osmem_windows.go) are thin
// wrappers over golang.org/x/sys, split by build tag the way
// _examples/joshuapare-hivekit/hive/dirty splits its flush_unix.go and
// flush_windows.go. Everything above this package talks only to the OS
// interface, never to a concrete platform type, so unit tests can swap in
// the in-memory Fake.
package osmem

import (
	"errors"
	"unsafe"
)

// ErrReserveFailed is returned when the OS could not reserve a region of
// the requested size and alignment.
var ErrReserveFailed = errors.New("osmem: address space reservation failed")

// ErrCommitFailed is returned when the OS refused to back a previously
// reserved region with physical pages.
var ErrCommitFailed = errors.New("osmem: commit failed")

// Region describes a block of address space returned by OS.Alloc.
type Region struct {
	Ptr       unsafe.Pointer
	Size      uintptr
	Committed bool
	Zeroed    bool
	IsLarge   bool
	NumaNode  int
}

// OS is the set of virtual-memory primitives the allocator needs from the
// host operating system.
type OS interface {
	// PageSize returns the native page size in bytes.
	PageSize() uintptr

	// Alloc reserves size bytes of address space aligned to align bytes.
	// If commit is true the region is also backed by physical pages and
	// Region.Committed is true on success. numaNode, when >= 0, is a hint
	// to place the backing pages on that NUMA node; -1 means no
	// preference.
	Alloc(size, align uintptr, commit bool, allowLarge bool, numaNode int) (*Region, error)

	// AllocHugeOSPages reserves size bytes using huge/large OS pages,
	// always committed, on the given NUMA node (-1 for no preference).
	AllocHugeOSPages(size uintptr, numaNode int) (*Region, error)

	// Commit backs [ptr, ptr+size) with physical pages.
	Commit(ptr unsafe.Pointer, size uintptr) error

	// Decommit releases the physical pages backing [ptr, ptr+size)
	// without releasing the address space; the range must be recommitted
	// before it is touched again.
	Decommit(ptr unsafe.Pointer, size uintptr) error

	// Purge advises the OS that [ptr, ptr+size) is unused. If
	// allowDecommit is true the pages may actually be decommitted
	// (requiring a subsequent Commit before reuse); otherwise the range is
	// only advised as unused: it is not decommitted and stays valid to
	// touch, though the OS may discard its contents. needsRecommit reports whether
	// the call actually decommitted the range, regardless of what the
	// caller requested; callers must trust this return value, not their
	// own allowDecommit argument, when deciding whether to clear
	// commit-state bookkeeping.
	Purge(ptr unsafe.Pointer, size uintptr, allowDecommit bool) (needsRecommit bool, err error)

	// Free releases a region obtained from Alloc or AllocHugeOSPages back
	// to the OS.
	Free(ptr unsafe.Pointer, size uintptr) error

	// HasOvercommit reports whether the host OS overcommits memory, i.e.
	// whether an uncommitted reservation can be safely treated as
	// already-available without a separate commit step.
	HasOvercommit() bool

	// NumaNodeCount returns the number of NUMA nodes visible to the
	// process, at least 1.
	NumaNodeCount() int

	// CurrentNumaNode returns the NUMA node the calling goroutine's
	// underlying thread is currently running on, or -1 if unknown.
	CurrentNumaNode() int
}
