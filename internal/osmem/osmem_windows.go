//go:build windows

package osmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

type windowsOS struct {
	pageSize uintptr
}

// New returns the Windows OS implementation backed by
// golang.org/x/sys/windows's VirtualAlloc/VirtualFree family.
func New() OS {
	var info windows.SystemInfo
	windows.GetSystemInfo(&info)
	return &windowsOS{pageSize: uintptr(info.PageSize)}
}

func (o *windowsOS) PageSize() uintptr { return o.pageSize }

func (o *windowsOS) Alloc(size, align uintptr, commit bool, allowLarge bool, numaNode int) (*Region, error) {
	// VirtualAlloc reservations are already page-aligned; over-reserve so
	// an `align`-aligned window can be carved out when align exceeds the
	// page size (e.g. huge-page or NUMA-segment alignment requests).
	reserveSize := size + align
	state := uint32(windows.MEM_RESERVE)
	if commit {
		state |= windows.MEM_COMMIT
	}
	addr, err := windows.VirtualAlloc(0, reserveSize, state, windows.PAGE_READWRITE)
	if err != nil {
		return nil, ErrReserveFailed
	}
	aligned := (addr + align - 1) &^ (align - 1)
	return &Region{
		Ptr:       unsafe.Pointer(aligned),
		Size:      size,
		Committed: commit,
		Zeroed:    true,
		NumaNode:  numaNode,
	}, nil
}

func (o *windowsOS) AllocHugeOSPages(size uintptr, numaNode int) (*Region, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_RESERVE|windows.MEM_COMMIT|windows.MEM_LARGE_PAGES, windows.PAGE_READWRITE)
	if err != nil {
		return o.Alloc(size, o.pageSize, true, true, numaNode)
	}
	return &Region{Ptr: unsafe.Pointer(addr), Size: size, Committed: true, Zeroed: true, IsLarge: true, NumaNode: numaNode}, nil
}

func (o *windowsOS) Commit(ptr unsafe.Pointer, size uintptr) error {
	_, err := windows.VirtualAlloc(uintptr(ptr), size, windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return ErrCommitFailed
	}
	return nil
}

func (o *windowsOS) Decommit(ptr unsafe.Pointer, size uintptr) error {
	return windows.VirtualFree(uintptr(ptr), size, windows.MEM_DECOMMIT)
}

func (o *windowsOS) Purge(ptr unsafe.Pointer, size uintptr, allowDecommit bool) (bool, error) {
	if allowDecommit {
		if err := o.Decommit(ptr, size); err != nil {
			return false, err
		}
		return true, nil
	}
	// Windows has no MADV_FREE equivalent for plain VirtualAlloc regions
	// short of decommitting; OfferVirtualMemory exists but only for
	// AWE-mapped memory, so a lazy, no-decommit purge is a no-op here.
	return false, nil
}

func (o *windowsOS) Free(ptr unsafe.Pointer, size uintptr) error {
	return windows.VirtualFree(uintptr(ptr), 0, windows.MEM_RELEASE)
}

func (o *windowsOS) HasOvercommit() bool { return false }

func (o *windowsOS) NumaNodeCount() int {
	var highest uint32
	if err := windows.GetNumaHighestNodeNumber(&highest); err != nil {
		return 1
	}
	return int(highest) + 1
}

func (o *windowsOS) CurrentNumaNode() int {
	var node byte
	if err := windows.GetNumaProcessorNode(windows.GetCurrentProcessorNumber(), &node); err != nil {
		return -1
	}
	return int(node)
}
