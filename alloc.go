package arena

import (
	"fmt"
	"unsafe"

	"github.com/memarena/varena/internal/bitmap"
)

func blocksFor(size uintptr) uint32 {
	return uint32((size + BlockSize - 1) / BlockSize)
}

// AllocAligned allocates size bytes aligned to alignment. A nonzero
// alignOffset, like an alignment above BlockAlign, is served only by the
// OS fallback, which returns a pointer alignOffset bytes past an
// alignment-aligned address; arena claims are always exactly
// block-aligned. If commit is true the returned range is guaranteed
// committed; if allowLarge is true, fresh arena reservations and the OS
// fallback may use huge OS pages. requestedArenaID, if nonzero, restricts
// the attempt to that one arena: if the arena is full, AllocAligned
// returns ErrOutOfMemory without trying any other arena or the OS
// fallback; an unknown id, or an alignment or alignOffset that needs the
// OS fallback, returns ErrPrecondition.
func (r *Registry) AllocAligned(size, alignment, alignOffset uintptr, commit, allowLarge bool, requestedArenaID ArenaID) (unsafe.Pointer, MemID, error) {
	if size == 0 {
		return nil, MemID{}, fmt.Errorf("%w: size must be > 0", ErrPrecondition)
	}
	if alignment == 0 {
		alignment = 1
	}
	blocksNeeded := blocksFor(size + alignOffset)
	// Arena claims are always block-aligned; a caller asking for more than
	// that, or for slack before the aligned boundary, can only be served
	// by the OS fallback, never by adding alignOffset onto an
	// already-block-aligned arena pointer after the fact.
	needsOSDelegation := alignment > BlockAlign || alignOffset != 0

	if requestedArenaID != 0 {
		if needsOSDelegation {
			return nil, MemID{}, fmt.Errorf("%w: requested arena cannot satisfy alignment %d with alignOffset %d", ErrPrecondition, alignment, alignOffset)
		}
		a := r.At(requestedArenaID)
		if a == nil {
			return nil, MemID{}, fmt.Errorf("%w: unknown arena id %d", ErrPrecondition, requestedArenaID)
		}
		if ptr, memid, ok := r.tryAllocAt(a, blocksNeeded, commit, alignOffset); ok {
			return ptr, memid, nil
		}
		return nil, MemID{}, ErrOutOfMemory
	}

	if !needsOSDelegation && !r.opts.DisallowArenaAlloc {
		if ptr, memid, ok := r.tryAllocFromRegistered(blocksNeeded, commit); ok {
			return unsafe.Add(ptr, alignOffset), memid, nil
		}
		if a, err := r.reserveFreshArena(blocksNeeded, commit, allowLarge); err == nil {
			if ptr, memid, ok := r.tryAllocAt(a, blocksNeeded, commit, alignOffset); ok {
				return ptr, memid, nil
			}
		} else {
			r.logger.Verbosef("fresh arena reservation failed: %v", err)
		}
	}

	if r.opts.DisallowOSAlloc {
		return nil, MemID{}, ErrOutOfMemory
	}
	return r.allocFromOS(size, alignment, alignOffset, commit, allowLarge)
}

// tryAllocFromRegistered implements the NUMA-local-then-foreign placement
// pass over every non-exclusive registered arena.
func (r *Registry) tryAllocFromRegistered(blocksNeeded uint32, commit bool) (unsafe.Pointer, MemID, bool) {
	n := r.count.Load()
	if n == 0 {
		return nil, MemID{}, false
	}
	here := int32(r.os.CurrentNumaNode())

	for _, wantLocal := range [...]bool{true, false} {
		for i := uint32(0); i < n; i++ {
			a := r.slots[i].Load()
			if a == nil || a.exclusive {
				continue
			}
			local := here < 0 || a.numaNode < 0 || a.numaNode == here
			if local != wantLocal {
				continue
			}
			if ptr, memid, ok := r.tryAllocAt(a, blocksNeeded, commit, 0); ok {
				return ptr, memid, true
			}
		}
	}
	return nil, MemID{}, false
}

// tryAllocAt implements the per-arena claim: find and clear a contiguous
// run of free blocks, establish their dirty/committed state, and clear
// any stale purge-pending bits. Ordering matters here -- blocks are
// cleared from blocksFree first and only afterwards marked committed, so
// a concurrent purge pass, which must itself claim a range's free bits
// before touching it, can never race a commit it doesn't know about yet.
func (r *Registry) tryAllocAt(a *Arena, blocksNeeded uint32, commit bool, alignOffset uintptr) (unsafe.Pointer, MemID, bool) {
	if blocksNeeded > a.blockCount {
		return nil, MemID{}, false
	}
	hint := r.ThreadSeq()
	idx, ok := a.blocksFree.TryFindAndClearN(hint, blocksNeeded)
	if !ok {
		return nil, MemID{}, false
	}

	// A block can only be reported zero if the arena it came from was
	// itself initially zero (e.g. a fresh OS reservation, never true for
	// memory adopted via ManageOSMemoryEx with isZero=false) and has never
	// been dirtied since. An arena that isn't initially zero can never
	// report a zeroed block on its first allocation, regardless of the
	// dirty bit's state.
	var zero bool
	if a.memid.InitiallyZero {
		wasDirty := a.blocksDirty.IsXSetN(bitmap.SetMode, idx, blocksNeeded)
		if !wasDirty {
			a.blocksDirty.XSetN(bitmap.SetMode, idx, blocksNeeded)
		}
		zero = !wasDirty
	} else {
		a.blocksDirty.XSetN(bitmap.SetMode, idx, blocksNeeded)
		zero = false
	}

	wasCommitted := a.blocksCommitted.IsXSetN(bitmap.SetMode, idx, blocksNeeded)
	ptr := a.blockAt(idx)
	if !wasCommitted && commit {
		size := uintptr(blocksNeeded) * BlockSize
		if err := a.os.Commit(ptr, size); err != nil {
			// Nothing else could have observed these bits as free in
			// the meantime; restoring them is a plain set, not a
			// contended claim.
			a.blocksFree.XSetN(bitmap.SetMode, idx, blocksNeeded)
			return nil, MemID{}, false
		}
		a.blocksCommitted.XSetN(bitmap.SetMode, idx, blocksNeeded)
		r.stats.CounterIncrease("committed", int64(size))
	}
	// Blocks that were just free are by definition not purge-pending;
	// clear any stale bits defensively.
	a.blocksPurge.XSetN(bitmap.ClearMode, idx, blocksNeeded)

	memid := MemID{
		Kind:               MemKindArena,
		ArenaID:            a.id,
		BlockIndex:         idx,
		IsExclusive:        a.exclusive,
		IsPinned:           a.isLarge,
		InitiallyCommitted: wasCommitted || commit,
		InitiallyZero:      zero,
	}
	r.stats.CounterIncrease("allocated", int64(blocksNeeded)*BlockSize)
	if !memid.InitiallyZero {
		r.tracker.MemUndefined(ptr, uintptr(blocksNeeded)*BlockSize)
	}
	return unsafe.Add(ptr, alignOffset), memid, true
}

const (
	minReserve      = 8 << 20 // 8 MiB
	maxReserveBytes = uintptr(BitmapMaxBits) * BlockSize
)

// reserveFreshArena implements the exponential arena-scaling reserve
// formula: the base reservation size doubles every 8 existing arenas
// (clamped to a shift of at most 16), and is quartered when the OS facade
// reports it doesn't overcommit (so a failed oversized reservation
// doesn't waste real address space on platforms that back every mapping
// eagerly).
func (r *Registry) reserveFreshArena(blocksNeeded uint32, commit, allowLarge bool) (*Arena, error) {
	base := r.opts.arenaReserve()
	shift := r.count.Load() / 8
	if shift > 16 {
		shift = 16
	}
	size := base << shift
	if !r.os.HasOvercommit() {
		size >>= 2
	}
	if need := uintptr(blocksNeeded) * BlockSize; size < need {
		size = need
	}
	if size < minReserve {
		size = minReserve
	}
	if size > maxReserveBytes {
		size = maxReserveBytes
	}
	size = (size + BlockSize - 1) / BlockSize * BlockSize

	eager := r.opts.ArenaEagerCommit == EagerCommitAlways ||
		(r.opts.ArenaEagerCommit == EagerCommitAuto && size <= 256<<20)
	doCommit := commit || eager
	numaNode := r.os.CurrentNumaNode()

	var ptr unsafe.Pointer
	var isHuge bool
	if allowLarge {
		if hr, err := r.os.AllocHugeOSPages(size, numaNode); err == nil {
			ptr, doCommit, isHuge = hr.Ptr, true, true
		}
	}
	if ptr == nil {
		res, err := r.os.Alloc(size, BlockAlign, doCommit, allowLarge, numaNode)
		if err != nil {
			return nil, err
		}
		ptr, doCommit = res.Ptr, res.Committed
	}

	blockCount := uint32(size / BlockSize)
	memid := MemID{Kind: MemKindArena, InitiallyCommitted: doCommit, InitiallyZero: true}
	a := newArena(ptr, blockCount, memid, int32(numaNode), false, isHuge, doCommit, r.os)
	if _, ok := r.add(a); !ok {
		r.os.Free(ptr, size)
		return nil, fmt.Errorf("%w: arena registry full", ErrOutOfMemory)
	}
	r.logger.Verbosef("reserved arena %d: %d blocks, committed=%v", a.id, blockCount, doCommit)
	return a, nil
}

// allocFromOS serves a request directly from the OS, bypassing arenas
// entirely. Used when no arena can satisfy the request and a fresh arena
// could not be reserved, or when Options.DisallowArenaAlloc is set.
func (r *Registry) allocFromOS(size, alignment, alignOffset uintptr, commit, allowLarge bool) (unsafe.Pointer, MemID, error) {
	total := size + alignOffset
	reg, err := r.os.Alloc(total, alignment, commit, allowLarge, r.os.CurrentNumaNode())
	if err != nil {
		return nil, MemID{}, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	memid := MemID{
		Kind:               MemKindOS,
		InitiallyCommitted: reg.Committed,
		InitiallyZero:      reg.Zeroed,
	}
	r.stats.CounterIncrease("allocated", int64(size))
	return unsafe.Add(reg.Ptr, alignOffset), memid, nil
}
