package osmem

import (
	"sync"
	"unsafe"
)

// Fake is an in-process OS implementation backed by plain Go byte slices
// instead of real mmap/VirtualAlloc calls. It exists so the allocator's
// unit tests can exercise placement, commit, and purge bookkeeping without
// touching the real address space or depending on a particular kernel's
// NUMA layout.
type Fake struct {
	mu        sync.Mutex
	regions   map[uintptr][]byte
	nextAddr  uintptr
	pageSize  uintptr
	numaNodes int
	curNode   int
	overcommit bool

	PurgeCalls   int
	DecommitCalls int
}

// NewFake returns a Fake configured with the given NUMA node count. The
// current node defaults to 0.
func NewFake(numaNodes int) *Fake {
	if numaNodes < 1 {
		numaNodes = 1
	}
	return &Fake{
		regions:   make(map[uintptr][]byte),
		nextAddr:  0x10000,
		pageSize:  4096,
		numaNodes: numaNodes,
		curNode:   0,
	}
}

// SetCurrentNode lets a test pin the node CurrentNumaNode reports.
func (f *Fake) SetCurrentNode(n int) { f.curNode = n }

// SetOvercommit lets a test control HasOvercommit's answer.
func (f *Fake) SetOvercommit(v bool) { f.overcommit = v }

func (f *Fake) PageSize() uintptr { return f.pageSize }

func (f *Fake) Alloc(size, align uintptr, commit bool, allowLarge bool, numaNode int) (*Region, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, size)
	addr := f.nextAddr
	// The aligned, monotonically increasing fake address is only the key
	// into f.regions; the returned Ptr is the Go buffer's own address and
	// is not aligned to align.
	if align == 0 {
		align = f.pageSize
	}
	addr = (addr + align - 1) &^ (align - 1)
	f.nextAddr = addr + size + align
	f.regions[addr] = buf
	return &Region{
		Ptr:       unsafe.Pointer(&buf[0]),
		Size:      size,
		Committed: commit,
		Zeroed:    true,
		NumaNode:  numaNode,
	}, nil
}

func (f *Fake) AllocHugeOSPages(size uintptr, numaNode int) (*Region, error) {
	r, err := f.Alloc(size, f.pageSize, true, true, numaNode)
	if err != nil {
		return nil, err
	}
	r.IsLarge = true
	return r, nil
}

func (f *Fake) Commit(ptr unsafe.Pointer, size uintptr) error { return nil }

func (f *Fake) Decommit(ptr unsafe.Pointer, size uintptr) error {
	f.mu.Lock()
	f.DecommitCalls++
	f.mu.Unlock()
	return nil
}

func (f *Fake) Purge(ptr unsafe.Pointer, size uintptr, allowDecommit bool) (bool, error) {
	f.mu.Lock()
	f.PurgeCalls++
	f.mu.Unlock()
	if allowDecommit {
		if err := f.Decommit(ptr, size); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (f *Fake) Free(ptr unsafe.Pointer, size uintptr) error { return nil }

func (f *Fake) HasOvercommit() bool { return f.overcommit }

func (f *Fake) NumaNodeCount() int { return f.numaNodes }

func (f *Fake) CurrentNumaNode() int { return f.curNode }
