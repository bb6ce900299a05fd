package arena_test

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/memarena/varena"
)

// BenchmarkWebServerScenarios simulates a server handing each request its
// own arena-backed scratch region, released as soon as the request
// finishes, against the same workload using plain make/GC.
func BenchmarkWebServerScenarios(b *testing.B) {
	b.Run("PerRequestArena", func(b *testing.B) {
		r := arena.NewRegistry(nil, arena.Options{ArenaReserve: 64 << 20})
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			ptr, memid, err := r.AllocAligned(arena.BlockSize, arena.BlockAlign, 0, true, false, 0)
			if err != nil {
				b.Fatal(err)
			}
			buf := unsafeBytes(ptr, arena.BlockSize)
			buf[0] = 1
			r.Free(ptr, arena.BlockSize, arena.BlockSize, memid)
		}
	})

	b.Run("Builtin", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			buf := make([]byte, arena.BlockSize)
			buf[0] = 1
		}
	})
}

// BenchmarkWorkerPoolScenario simulates a fixed pool of worker goroutines
// that each keep one exclusive arena for the life of the pool, handing out
// block-sized jobs from it, against a shared Registry used by all workers.
func BenchmarkWorkerPoolScenario(b *testing.B) {
	const workers = 8

	b.Run("ExclusiveArenaPerWorker", func(b *testing.B) {
		r := arena.NewRegistry(nil, arena.Options{})
		ids := make([]arena.ArenaID, workers)
		for w := range ids {
			id, err := r.ReserveOSMemoryEx(32<<20, true, false, int32(w%2), true)
			if err != nil {
				b.Fatal(err)
			}
			ids[w] = id
		}

		b.ResetTimer()
		var wg sync.WaitGroup
		perWorker := b.N / workers
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(id arena.ArenaID) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					ptr, memid, err := r.AllocAligned(arena.BlockSize, arena.BlockAlign, 0, true, false, id)
					if err != nil {
						return
					}
					r.Free(ptr, arena.BlockSize, arena.BlockSize, memid)
				}
			}(ids[w])
		}
		wg.Wait()
	})

	b.Run("SharedRegistry", func(b *testing.B) {
		r := arena.NewRegistry(nil, arena.Options{ArenaReserve: 256 << 20})

		b.ResetTimer()
		var wg sync.WaitGroup
		perWorker := b.N / workers
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					ptr, memid, err := r.AllocAligned(arena.BlockSize, arena.BlockAlign, 0, true, false, 0)
					if err != nil {
						return
					}
					r.Free(ptr, arena.BlockSize, arena.BlockSize, memid)
				}
			}()
		}
		wg.Wait()
	})
}

// BenchmarkBurstyAllocationAndDeferredPurge simulates a workload that
// allocates in bursts, frees everything, and relies on the purge scheduler
// to reclaim pages lazily between bursts instead of on every free.
func BenchmarkBurstyAllocationAndDeferredPurge(b *testing.B) {
	r := arena.NewRegistry(nil, arena.Options{
		ArenaReserve:   128 << 20,
		PurgeDelayMS:   5_000,
		PurgeDecommits: true,
	})

	const burst = 20
	var ptrs [burst]unsafe.Pointer
	var memids [burst]arena.MemID

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := 0; j < burst; j++ {
			ptr, memid, err := r.AllocAligned(arena.BlockSize, arena.BlockAlign, 0, true, false, 0)
			if err != nil {
				b.Fatal(err)
			}
			ptrs[j], memids[j] = ptr, memid
		}
		for j := 0; j < burst; j++ {
			r.Free(ptrs[j], arena.BlockSize, arena.BlockSize, memids[j])
		}
		r.Collect(false, true)
	}
}
