//go:build linux || darwin || freebsd

package osmem

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/memarena/varena/internal/numa"
)

// hugePageFlag is the mmap flag requesting the kernel back a mapping with
// huge pages where supported. Only Linux honors it; on other unix
// variants it is zero and AllocHugeOSPages degenerates to a regular
// reservation.
var hugePageFlag = hugetlbFlag()

func hugetlbFlag() int {
	if runtime.GOOS == "linux" {
		return 0x40000 // MAP_HUGETLB
	}
	return 0
}

type unixOS struct {
	pageSize uintptr
}

// New returns the unix OS implementation backed by golang.org/x/sys/unix.
func New() OS {
	return &unixOS{pageSize: uintptr(unix.Getpagesize())}
}

func (o *unixOS) PageSize() uintptr { return o.pageSize }

func (o *unixOS) Alloc(size, align uintptr, commit bool, allowLarge bool, numaNode int) (*Region, error) {
	prot := unix.PROT_READ | unix.PROT_WRITE
	flags := unix.MAP_PRIVATE | unix.MAP_ANON
	// Over-allocate so an aligned sub-region can always be carved out,
	// then hand back only the aligned slice; the extra slack stays
	// mapped (matches mimalloc's own posix behavior of not bothering to
	// unmap the unaligned fringe on most unix targets).
	raw, err := unix.Mmap(-1, 0, int(size+align), prot, flags)
	if err != nil {
		return nil, ErrReserveFailed
	}
	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := (base + align - 1) &^ (align - 1)
	ptr := unsafe.Pointer(aligned)

	if commit {
		if err := o.Commit(ptr, size); err != nil {
			unix.Munmap(raw)
			return nil, err
		}
	}
	return &Region{Ptr: ptr, Size: size, Committed: commit, Zeroed: true, NumaNode: numaNode}, nil
}

func (o *unixOS) AllocHugeOSPages(size uintptr, numaNode int) (*Region, error) {
	prot := unix.PROT_READ | unix.PROT_WRITE
	flags := unix.MAP_PRIVATE | unix.MAP_ANON | hugePageFlag
	raw, err := unix.Mmap(-1, 0, int(size), prot, flags)
	if err != nil {
		// Huge pages may be unavailable; fall back to a regular
		// committed reservation rather than failing outright.
		return o.Alloc(size, o.pageSize, true, true, numaNode)
	}
	ptr := unsafe.Pointer(&raw[0])
	return &Region{Ptr: ptr, Size: size, Committed: true, Zeroed: true, IsLarge: true, NumaNode: numaNode}, nil
}

func (o *unixOS) Commit(ptr unsafe.Pointer, size uintptr) error {
	b := unsafe.Slice((*byte)(ptr), size)
	if err := unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return ErrCommitFailed
	}
	return nil
}

func (o *unixOS) Decommit(ptr unsafe.Pointer, size uintptr) error {
	b := unsafe.Slice((*byte)(ptr), size)
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		return err
	}
	return unix.Mprotect(b, unix.PROT_NONE)
}

func (o *unixOS) Purge(ptr unsafe.Pointer, size uintptr, allowDecommit bool) (bool, error) {
	if allowDecommit {
		if err := o.Decommit(ptr, size); err != nil {
			return false, err
		}
		return true, nil
	}
	b := unsafe.Slice((*byte)(ptr), size)
	advice := unix.MADV_FREE
	if runtime.GOOS != "darwin" {
		advice = unix.MADV_DONTNEED
	}
	return false, unix.Madvise(b, advice)
}

func (o *unixOS) Free(ptr unsafe.Pointer, size uintptr) error {
	b := unsafe.Slice((*byte)(ptr), size)
	return unix.Munmap(b)
}

func (o *unixOS) HasOvercommit() bool {
	return runtime.GOOS == "linux"
}

func (o *unixOS) NumaNodeCount() int { return numa.NodeCount() }

func (o *unixOS) CurrentNumaNode() int { return numa.CurrentNode() }
