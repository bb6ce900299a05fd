package arena

import (
	"context"
	"fmt"
	"unsafe"
)

// ManageOSMemory registers a caller-provided, already-allocated region as
// a new arena, so AllocAligned can serve requests from it. region must be
// blockCount*BlockSize bytes. The region is assumed not to be zeroed; use
// ManageOSMemoryEx to say otherwise.
func (r *Registry) ManageOSMemory(region unsafe.Pointer, blockCount uint32, committed bool) (ArenaID, error) {
	return r.ManageOSMemoryEx(region, blockCount, committed, -1, false, false, false)
}

// ManageOSMemoryEx is ManageOSMemory with explicit NUMA node, exclusivity,
// huge-page, and zero-initialization hints. isZero must only be true if
// the caller guarantees region's bytes are all zero; a wrong isZero=true
// here propagates straight into every MemID.InitiallyZero this arena's
// allocations report.
func (r *Registry) ManageOSMemoryEx(region unsafe.Pointer, blockCount uint32, committed bool, numaNode int32, exclusive, isLarge, isZero bool) (ArenaID, error) {
	if region == nil || blockCount == 0 {
		return 0, fmt.Errorf("%w: region and blockCount must be non-empty", ErrPrecondition)
	}
	memid := MemID{Kind: MemKindExternal, InitiallyCommitted: committed, InitiallyZero: isZero}
	a := newArena(region, blockCount, memid, numaNode, exclusive, isLarge, committed, r.os)
	id, ok := r.add(a)
	if !ok {
		return 0, fmt.Errorf("%w: arena registry full", ErrOutOfMemory)
	}
	return id, nil
}

// ReserveOSMemory reserves size bytes of fresh OS memory and registers it
// as a new arena.
func (r *Registry) ReserveOSMemory(size uintptr, commit bool) (ArenaID, error) {
	return r.ReserveOSMemoryEx(size, commit, false, -1, false)
}

// ReserveOSMemoryEx is ReserveOSMemory with explicit huge-page, NUMA node,
// and exclusivity controls.
func (r *Registry) ReserveOSMemoryEx(size uintptr, commit, allowLarge bool, numaNode int32, exclusive bool) (ArenaID, error) {
	node := int(numaNode)
	if numaNode < 0 {
		node = r.os.CurrentNumaNode()
	}
	res, err := r.os.Alloc(size, BlockAlign, commit, allowLarge, node)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	blockCount := uint32(size / BlockSize)
	memid := MemID{Kind: MemKindArena, InitiallyCommitted: res.Committed, InitiallyZero: res.Zeroed}
	a := newArena(res.Ptr, blockCount, memid, int32(node), exclusive, allowLarge, res.Committed, r.os)
	id, ok := r.add(a)
	if !ok {
		r.os.Free(res.Ptr, size)
		return 0, fmt.Errorf("%w: arena registry full", ErrOutOfMemory)
	}
	return id, nil
}

// ReserveHugeOSPagesAt reserves size bytes of huge OS pages on the given
// NUMA node and registers them as a new, exclusive arena. ctx is checked
// once, before the reservation starts: an already canceled or expired ctx
// returns its error, but ctx does not interrupt or bound the OS call.
func (r *Registry) ReserveHugeOSPagesAt(ctx context.Context, size uintptr, numaNode int32) (ArenaID, error) {
	return r.ReserveHugeOSPagesAtEx(ctx, size, numaNode, true)
}

// ReserveHugeOSPagesAtEx is ReserveHugeOSPagesAt with an explicit
// exclusivity flag.
func (r *Registry) ReserveHugeOSPagesAtEx(ctx context.Context, size uintptr, numaNode int32, exclusive bool) (ArenaID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	res, err := r.os.AllocHugeOSPages(size, int(numaNode))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	blockCount := uint32(size / BlockSize)
	memid := MemID{Kind: MemKindArena, InitiallyCommitted: true, InitiallyZero: true}
	a := newArena(res.Ptr, blockCount, memid, numaNode, exclusive, true, true, r.os)
	id, ok := r.add(a)
	if !ok {
		r.os.Free(res.Ptr, size)
		return 0, fmt.Errorf("%w: arena registry full", ErrOutOfMemory)
	}
	return id, nil
}

// ReserveHugeOSPagesInterleave reserves a total of pages*BlockSize worth
// of huge OS pages split as evenly as possible across numaNodes nodes
// (0..numaNodes-1), registering one arena per node. Any remainder page
// goes to the lowest-numbered nodes first. It stops and returns the
// first error if ctx is canceled or a reservation fails partway through;
// arenas already registered before that point remain registered.
func (r *Registry) ReserveHugeOSPagesInterleave(ctx context.Context, pages int, numaNodes int) ([]ArenaID, error) {
	if numaNodes <= 0 {
		numaNodes = 1
	}
	base := pages / numaNodes
	remainder := pages % numaNodes
	ids := make([]ArenaID, 0, numaNodes)
	for node := 0; node < numaNodes; node++ {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		nodePages := base
		if node < remainder {
			nodePages++
		}
		if nodePages == 0 {
			continue
		}
		id, err := r.ReserveHugeOSPagesAt(ctx, uintptr(nodePages)*BlockSize, int32(node))
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ArenaArea returns the base address and size of the arena registered
// under id, or ok=false if id is not currently registered.
func (r *Registry) ArenaArea(id ArenaID) (base unsafe.Pointer, size uintptr, ok bool) {
	a := r.At(id)
	if a == nil {
		return nil, 0, false
	}
	return a.start, uintptr(a.blockCount) * BlockSize, true
}

// package-level forwarders to Default()

func ManageOSMemory(region unsafe.Pointer, blockCount uint32, committed bool) (ArenaID, error) {
	return defaultRegistry.ManageOSMemory(region, blockCount, committed)
}

func ManageOSMemoryEx(region unsafe.Pointer, blockCount uint32, committed bool, numaNode int32, exclusive, isLarge, isZero bool) (ArenaID, error) {
	return defaultRegistry.ManageOSMemoryEx(region, blockCount, committed, numaNode, exclusive, isLarge, isZero)
}

func ReserveOSMemory(size uintptr, commit bool) (ArenaID, error) {
	return defaultRegistry.ReserveOSMemory(size, commit)
}

func ReserveOSMemoryEx(size uintptr, commit, allowLarge bool, numaNode int32, exclusive bool) (ArenaID, error) {
	return defaultRegistry.ReserveOSMemoryEx(size, commit, allowLarge, numaNode, exclusive)
}

func AllocAligned(size, alignment, alignOffset uintptr, commit, allowLarge bool, requestedArenaID ArenaID) (unsafe.Pointer, MemID, error) {
	return defaultRegistry.AllocAligned(size, alignment, alignOffset, commit, allowLarge, requestedArenaID)
}

func Free(ptr unsafe.Pointer, size, committedSize uintptr, memid MemID) error {
	return defaultRegistry.Free(ptr, size, committedSize, memid)
}

func ArenaArea(id ArenaID) (unsafe.Pointer, uintptr, bool) {
	return defaultRegistry.ArenaArea(id)
}
