package arena

import (
	"fmt"
	"unsafe"

	"github.com/memarena/varena/internal/bitmap"
)

// Free releases a region previously returned by AllocAligned. size is the
// originally requested size; committedSize is how much of it the caller
// actually committed and touched, and must be <= size (pass size if the
// whole range was committed). memid must be the MemID returned alongside
// ptr.
//
// Dispatch is by memid.Kind: MemKindArena walks the owning arena's
// bitmaps, MemKindOS releases straight back to the OS, and
// MemKindExternal/MemKindStatic/MemKindNone are no-ops.
func (r *Registry) Free(ptr unsafe.Pointer, size, committedSize uintptr, memid MemID) error {
	switch memid.Kind {
	case MemKindNone, MemKindExternal, MemKindStatic:
		return nil
	case MemKindOS:
		if committedSize < size {
			r.stats.CounterDecrease("committed", int64(committedSize))
		}
		return r.os.Free(ptr, size)
	case MemKindArena:
		return r.freeArena(ptr, size, committedSize, memid)
	default:
		return ErrInvalidFree
	}
}

func (r *Registry) freeArena(ptr unsafe.Pointer, size, committedSize uintptr, memid MemID) error {
	a := r.At(memid.ArenaID)
	if a == nil {
		return ErrInvalidFree
	}
	idx, inRange := a.blockIndexOf(ptr)
	if !inRange || idx != memid.BlockIndex {
		return ErrInvalidFree
	}
	n := blocksFor(size)
	if n == 0 || idx+n > a.blockCount || idx < a.metaBlocks {
		return ErrInvalidFree
	}

	// A pinned or always-committed range can never be partially
	// committed; a caller claiming otherwise has a corrupted accounting
	// of its own allocation.
	var uncommittedBytes uintptr
	if memid.IsPinned || memid.InitiallyCommitted {
		if committedSize != size {
			return fmt.Errorf("%w: committedSize must equal size for a pinned or always-committed allocation", ErrPrecondition)
		}
	} else if committedSize < size {
		committedBlocks := blocksFor(committedSize)
		if committedBlocks > n {
			committedBlocks = n
		}
		tailIdx, tailN := idx+committedBlocks, n-committedBlocks
		if tailN > 0 {
			a.blocksCommitted.XSetN(bitmap.ClearMode, tailIdx, tailN)
			r.tracker.MemNoAccess(a.blockAt(tailIdx), uintptr(tailN)*BlockSize)
			uncommittedBytes = uintptr(tailN) * BlockSize
		}
	}

	r.tracker.MemNoAccess(ptr, uintptr(n)*BlockSize)
	r.schedulePurge(a, idx, n)

	// The atomic release is itself the double-free check: XSetN reports
	// whether every targeted bit already held the free value before this
	// call, so two concurrent Free calls racing on the same range can
	// never both observe "not yet free". A losing caller has already
	// notified the tracker and scheduled a (harmless, idempotent) purge
	// on blocks it turns out it didn't own; only the steps below (stat
	// decrements and purge passes) are skipped for it.
	alreadyFree := a.blocksFree.XSetN(bitmap.SetMode, idx, n)
	if alreadyFree {
		return ErrDoubleFree
	}
	r.stats.CounterDecrease("allocated", int64(n)*BlockSize)
	if uncommittedBytes > 0 {
		r.stats.CounterDecrease("committed", int64(uncommittedBytes))
	}
	if r.opts.purgeDelayMS() == 0 {
		// Synchronous purge: schedulePurge only marked the range, which is
		// now released and goes through the same transient claim a
		// Collect pass uses.
		r.purgeRange(a, idx, n)
	}
	// One opportunistic, non-forced purge pass over whatever is due.
	r.Collect(false, false)
	return nil
}
