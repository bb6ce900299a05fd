package arena_test

import (
	"fmt"
	"testing"

	"github.com/memarena/varena"
)

// BenchmarkBlockCounts sweeps how allocation cost scales with the number of
// BlockSize blocks requested per call.
func BenchmarkBlockCounts(b *testing.B) {
	for _, blocks := range []int{1, 2, 4, 8, 16} {
		size := uintptr(blocks) * arena.BlockSize

		b.Run(fmt.Sprintf("Registry_%dBlocks", blocks), func(b *testing.B) {
			r := arena.NewRegistry(nil, arena.Options{ArenaReserve: 256 << 20})
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ptr, memid, err := r.AllocAligned(size, arena.BlockAlign, 0, true, false, 0)
				if err != nil {
					b.Fatal(err)
				}
				r.Free(ptr, size, size, memid)
			}
		})

		b.Run(fmt.Sprintf("Builtin_%dBlocks", blocks), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = make([]byte, size)
			}
		})
	}
}

// BenchmarkEagerVsLazyCommit compares reserving a fresh arena with every
// block eagerly committed against leaving commit to happen on first claim.
func BenchmarkEagerVsLazyCommit(b *testing.B) {
	b.Run("EagerCommitAlways", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			r := arena.NewRegistry(nil, arena.Options{
				ArenaReserve:     16 << 20,
				ArenaEagerCommit: arena.EagerCommitAlways,
			})
			if _, _, err := r.AllocAligned(arena.BlockSize, arena.BlockAlign, 0, true, false, 0); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("EagerCommitNever", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			r := arena.NewRegistry(nil, arena.Options{
				ArenaReserve:     16 << 20,
				ArenaEagerCommit: arena.EagerCommitNever,
			})
			if _, _, err := r.AllocAligned(arena.BlockSize, arena.BlockAlign, 0, true, false, 0); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkRequestedVsAutoPlacement compares pinning every allocation to one
// pre-reserved arena against letting the Registry place each call itself.
func BenchmarkRequestedVsAutoPlacement(b *testing.B) {
	b.Run("RequestedArena", func(b *testing.B) {
		r := arena.NewRegistry(nil, arena.Options{ArenaReserve: 256 << 20})
		ptr, memid, err := r.AllocAligned(arena.BlockSize, arena.BlockAlign, 0, true, false, 0)
		if err != nil {
			b.Fatal(err)
		}
		id := memid.ArenaID
		r.Free(ptr, arena.BlockSize, arena.BlockSize, memid)

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			ptr, memid, err := r.AllocAligned(arena.BlockSize, arena.BlockAlign, 0, true, false, id)
			if err != nil {
				b.Fatal(err)
			}
			r.Free(ptr, arena.BlockSize, arena.BlockSize, memid)
		}
	})

	b.Run("AutoPlacement", func(b *testing.B) {
		r := arena.NewRegistry(nil, arena.Options{ArenaReserve: 256 << 20})
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			ptr, memid, err := r.AllocAligned(arena.BlockSize, arena.BlockAlign, 0, true, false, 0)
			if err != nil {
				b.Fatal(err)
			}
			r.Free(ptr, arena.BlockSize, arena.BlockSize, memid)
		}
	})
}
