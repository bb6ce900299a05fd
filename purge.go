package arena

import (
	"time"

	"github.com/memarena/varena/internal/bitmap"
)

func nowMS() int64 { return time.Now().UnixMilli() }

// schedulePurge records that blocks [idx, idx+n) of a are about to be
// released by Free and are eligible for purge once the configured delay
// elapses. PurgeDelayMS < 0 disables purging outright (the blocks stay
// free, never purge-pending); == 0 marks them purge-pending and leaves the
// purge itself to freeArena, which runs it right after releasing the
// blocks, before Free returns; > 0 marks them purge-pending and arms the
// arena's expiry timestamp if it isn't already armed sooner.
func (r *Registry) schedulePurge(a *Arena, idx, n uint32) {
	delay := r.opts.purgeDelayMS()
	if delay < 0 {
		return
	}
	a.blocksPurge.XSetN(bitmap.SetMode, idx, n)
	if delay == 0 {
		return
	}
	expire := nowMS() + delay
	for {
		cur := a.purgeExpire.Load()
		if cur != 0 && cur <= expire {
			return
		}
		if a.purgeExpire.CompareAndSwap(cur, expire) {
			return
		}
	}
}

// purgeRange performs the transient-claim purge dance over exactly
// [idx, idx+n): clear the free bit so no allocator can race the OS call,
// purge, update committed/dirty bookkeeping on success, then restore the
// free bit unconditionally. On failure to purge, the purge-pending bit is
// left set, and purgeDueArena re-arms the arena's expiry so a later pass
// retries it.
//
// Whether the OS call is allowed to actually decommit is decided from the
// range's own committed state, not Options.PurgeDecommits alone: a range
// that isn't fully committed is never decommitted; it only gets the
// advisory purge (allowDecommit false) regardless of the option. And whether blocksCommitted/blocksDirty
// get cleared afterwards is decided by what the OS call reports it
// actually did (needsRecommit), not by echoing the option back -- a range
// that was never committed must never have the committed stat decremented
// for memory it never held.
func (r *Registry) purgeRange(a *Arena, idx, n uint32) {
	if !a.blocksFree.TryClaimRange(idx, n) {
		// No longer free (reallocated, or already being purged by
		// another caller); the purge-pending bit for whatever is there
		// now is stale.
		a.blocksPurge.XSetN(bitmap.ClearMode, idx, n)
		return
	}
	ptr := a.blockAt(idx)
	size := uintptr(n) * BlockSize
	fullyCommitted := a.blocksCommitted.IsXSetN(bitmap.SetMode, idx, n)
	allowDecommit := fullyCommitted && r.opts.PurgeDecommits
	needsRecommit, err := a.os.Purge(ptr, size, allowDecommit)
	if err == nil {
		if needsRecommit {
			a.blocksCommitted.XSetN(bitmap.ClearMode, idx, n)
			a.blocksDirty.XSetN(bitmap.ClearMode, idx, n)
			r.stats.CounterDecrease("committed", int64(size))
		}
		a.blocksPurge.XSetN(bitmap.ClearMode, idx, n)
		r.stats.CounterIncrease("purged", int64(size))
	} else {
		r.logger.Warnf("purge of arena %d blocks [%d,%d) failed: %v", a.id, idx, idx+n, err)
	}
	a.blocksFree.XSetN(bitmap.SetMode, idx, n)
}

// purgeDueArena runs a purge pass over every currently free and
// purge-pending run in a, regardless of whether the run's own expiry has
// elapsed -- that check is done once at the arena granularity by the
// caller (Collect) before calling this. If any purge-pending bit is still
// set afterwards, the arena's expiry is re-armed one purge delay from now.
func (r *Registry) purgeDueArena(a *Arena) {
	var runs [][2]uint32
	a.blocksPurge.ForEachRun(bitmap.SetMode, func(i, n uint32) {
		runs = append(runs, [2]uint32{i, n})
	})
	for _, run := range runs {
		r.purgeRange(a, run[0], run[1])
	}
	if a.blocksPurge.CountSet() != 0 {
		a.purgeExpire.Store(nowMS() + r.opts.purgeDelayMS())
	} else {
		a.purgeExpire.Store(0)
	}
}

// Collect runs a purge pass over the Registry's arenas. If forcePurge is
// true, every arena with any purge-pending block is purged regardless of
// its expiry timestamp; otherwise only arenas whose expiry has elapsed
// are visited. If visitAll is false, Collect stops at the first arena
// with nothing due. Only one Collect call across the whole Registry runs
// at a time; concurrent callers that lose the race return immediately
// without doing any work.
func (r *Registry) Collect(forcePurge, visitAll bool) {
	if !r.purgeGuard.CompareAndSwap(false, true) {
		return
	}
	defer r.purgeGuard.Store(false)

	now := nowMS()
	n := r.count.Load()
	for i := uint32(0); i < n; i++ {
		a := r.slots[i].Load()
		if a == nil {
			continue
		}
		due := forcePurge || (a.purgeExpire.Load() != 0 && a.purgeExpire.Load() <= now)
		if !due {
			if !visitAll {
				break
			}
			continue
		}
		r.purgeDueArena(a)
	}
}

// Collect delegates to Default().Collect.
func Collect(forcePurge, visitAll bool) { defaultRegistry.Collect(forcePurge, visitAll) }
