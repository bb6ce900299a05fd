// Package arena implements a thread-safe virtual-memory arena allocator:
// large, block-aligned ranges are carved out of OS-reserved regions via an
// atomic bitmap claim protocol, with a commit/dirty/purge state machine
// and NUMA-aware placement.
//
// # Basic usage
//
//	r := arena.Default()
//	ptr, memid, err := r.AllocAligned(1<<20, arena.BlockAlign, 0, true, false, 0)
//	if err != nil {
//		// handle ErrOutOfMemory
//	}
//	defer r.Free(ptr, 1<<20, 1<<20, memid)
//
// # Thread safety
//
// The allocation, free, purge and query methods of a Registry are safe
// for concurrent use by many goroutines with no external synchronization.
// UnsafeDestroyAll and the SetStats/SetTracker/SetLogger setters are not:
// nothing else may use the Registry while they run. There is no per-arena
// lock: claim and release go through internal/bitmap's atomic
// compare-and-swap protocol, and the arena registry itself is a lock-free
// append-only array of atomic pointers.
//
// # Memory layout
//
// A Registry holds up to MaxArenas arenas. Each arena reserves a
// contiguous range of BlockSize-sized blocks from the OS and tracks their
// free/committed/dirty/purge-pending state in four parallel bitmaps, one
// bit per block.
package arena

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/memarena/varena/internal/bitmap"
	"github.com/memarena/varena/internal/osmem"
)

const (
	// BlockSize is the granularity of every arena allocation.
	BlockSize = 4 << 20
	// BlockAlign is the alignment every block-aligned allocation
	// satisfies; equal to BlockSize.
	BlockAlign = BlockSize
	// MaxArenas bounds how many arenas a single Registry can hold.
	MaxArenas = 1024
	// BitmapMaxBits is the largest block count a single arena's bitmaps
	// can track.
	BitmapMaxBits = bitmap.MaxBits
	// BinCount sizes the reserved (and currently unused) abandoned-block
	// bitmap array; abandoned-page tracking is not implemented by this
	// module, see DESIGN.md.
	BinCount = 8
	// MinObjSize is the smallest object this allocator is designed to
	// serve; requests smaller than this still work but waste a
	// disproportionate share of a block.
	MinObjSize = 8
	// MaxObjSize is the largest single object a single block can hold.
	MaxObjSize = BlockSize
)

// ArenaID identifies a registered arena. The zero value means
// "unspecified". id - 1 is the arena's index in a Registry's slot array.
type ArenaID uint32

// Arena is the descriptor for one contiguous, block-aligned region of
// address space and the four bitmaps tracking its block state.
//
// Whenever no Free or purge pass is in progress, blocksPurge is a subset
// of blocksFree: a block is only purge-pending while it is also free. An
// allocation clears the purge bits of the blocks it claims; Free marks a
// range purge-pending just before setting its free bits; a purge pass's
// transient claim clears free bits while keeping the purge bits it is
// acting on.
type Arena struct {
	memid      MemID
	id         ArenaID
	blockCount uint32
	numaNode   int32
	exclusive  bool
	isLarge    bool

	start unsafe.Pointer
	os    osmem.OS

	blocksFree      bitmap.Bitmap
	blocksCommitted bitmap.Bitmap
	blocksDirty     bitmap.Bitmap
	blocksPurge     bitmap.Bitmap

	// blocksAbandoned is reserved space for a feature this module does
	// not implement (abandoned-page tracking); kept allocated and
	// zero-initialized only so block accounting matches what a future
	// implementation would extend, per DESIGN.md.
	blocksAbandoned [BinCount]bitmap.Bitmap

	abandonedVisitLock sync.Mutex
	purgeExpire        atomic.Int64

	// metaBlocks is the count of low-index blocks permanently reserved
	// for this descriptor's own bookkeeping; never claimable, always
	// committed. See newArena's doc comment.
	metaBlocks uint32
}

// ID returns the arena's registry-assigned identifier.
func (a *Arena) ID() ArenaID { return a.id }

// NumaNode returns the NUMA node this arena's pages were placed on, or -1
// if unknown/not NUMA-pinned.
func (a *Arena) NumaNode() int32 { return a.numaNode }

// BlockCount returns the number of BlockSize blocks this arena spans,
// including the reserved metadata blocks.
func (a *Arena) BlockCount() uint32 { return a.blockCount }

// IsExclusive reports whether this arena only serves requests that name
// it explicitly by ArenaID.
func (a *Arena) IsExclusive() bool { return a.exclusive }

// blockAt returns a pointer to the start of the i'th block.
func (a *Arena) blockAt(i uint32) unsafe.Pointer {
	return unsafe.Add(a.start, uintptr(i)*BlockSize)
}

// blockIndexOf returns the block index containing p, and whether p falls
// inside this arena's region at all.
func (a *Arena) blockIndexOf(p unsafe.Pointer) (uint32, bool) {
	start := uintptr(a.start)
	addr := uintptr(p)
	if addr < start {
		return 0, false
	}
	off := addr - start
	if off >= uintptr(a.blockCount)*BlockSize {
		return 0, false
	}
	return uint32(off / BlockSize), true
}

// newArena builds the descriptor for a freshly reserved region and seeds
// its bitmaps. region must already be reserved (and, if committed is
// true, already backed by physical pages) OS memory of
// blockCount*BlockSize bytes.
//
// The metadata-block range (the first metaBlocks blocks) is marked
// permanently not-free, committed and dirty whether or not the region is
// committed; the remaining blocks start free and clean, and are marked
// committed only if committed is true -- mirroring a layout where a self-hosted header lives in those
// blocks, except here the Arena struct itself is an ordinary Go heap
// value rather than bytes inside region. Reserving the block range anyway
// keeps block accounting identical to that layout, so "blocks
// 0..metaBlocks are never claimable" holds regardless of where the Go
// struct actually lives.
func newArena(region unsafe.Pointer, blockCount uint32, memid MemID, numaNode int32, exclusive, isLarge, committed bool, os osmem.OS) *Arena {
	a := &Arena{
		memid:      memid,
		blockCount: blockCount,
		numaNode:   numaNode,
		exclusive:  exclusive,
		isLarge:    isLarge,
		start:      region,
		os:         os,
		metaBlocks: 1,
	}
	a.blocksFree.Init(blockCount)
	a.blocksCommitted.Init(blockCount)
	a.blocksDirty.Init(blockCount)
	a.blocksPurge.Init(blockCount)
	for i := range a.blocksAbandoned {
		a.blocksAbandoned[i].Init(blockCount)
	}

	// All blocks start free except the reserved metadata range.
	a.blocksFree.UnsafeXSetN(bitmap.SetMode, a.metaBlocks, blockCount-a.metaBlocks)
	if committed {
		a.blocksCommitted.UnsafeXSetN(bitmap.SetMode, 0, blockCount)
	} else {
		a.blocksCommitted.UnsafeXSetN(bitmap.SetMode, 0, a.metaBlocks)
	}
	// Only the metadata range starts dirty; every other block stays clean
	// until its first claim, so an initially-zero arena reports it zeroed.
	a.blocksDirty.UnsafeXSetN(bitmap.SetMode, 0, a.metaBlocks)
	return a
}
