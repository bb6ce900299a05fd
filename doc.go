// Package arena (extended documentation).
//
// # Overview
//
// This allocator exists for callers who want to reserve a large,
// block-aligned region of address space up front and hand out pieces of
// it without going through the OS on every call. It is useful for:
//
//   - GC-backed programs that still want explicit control over a large,
//     long-lived region (off-heap buffers, ring buffers, shared-memory
//     staging areas)
//   - Building a custom allocator on top of block-granularity primitives
//     instead of the OS's page granularity
//   - Workloads that allocate and free large objects in bursts and want
//     the purge scheduler to reclaim pages lazily rather than on every
//     free
//
// # Performance characteristics
//
//   - AllocAligned: amortized O(1) on the fast path (a free run exists in
//     an already-registered arena); O(blocks in a fresh reservation) on
//     the slow path that reserves a new arena.
//   - Free: O(blocks released), plus one non-forced Collect pass that
//     does work only where an arena's purge delay has elapsed; never
//     blocks on another goroutine's allocation or free.
//   - Collect: O(arenas) to decide what's due, O(blocks purged) to act on
//     it; at most one Collect call runs at a time per Registry.
//
// # Important notes
//
//   - Allocated memory is valid until Free is called on it, or
//     UnsafeDestroyAll tears down the whole Registry.
//   - There is no generational or typed allocation API: AllocAligned
//     hands back raw, block-aligned memory and a MemID; building a typed
//     arena on top is the caller's job.
//   - Freshly committed, never-before-dirtied memory is guaranteed zero
//     (MemID.InitiallyZero); memory reused from a prior allocation in the
//     same blocks is not zeroed automatically.
package arena
