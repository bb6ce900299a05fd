package arena

import (
	"testing"

	"github.com/memarena/varena/internal/osmem"
)

func TestAllocAlignedBasic(t *testing.T) {
	r := newTestRegistry(Options{ArenaReserve: 16 << 20})
	ptr, memid, err := r.AllocAligned(1024, 8, 0, true, false, 0)
	if err != nil {
		t.Fatalf("AllocAligned: %v", err)
	}
	if ptr == nil {
		t.Fatal("AllocAligned returned nil ptr")
	}
	if !memid.IsArena() {
		t.Fatalf("memid.Kind = %v, want MemKindArena", memid.Kind)
	}
	if !memid.InitiallyZero {
		t.Error("a fresh arena's first allocation should be InitiallyZero")
	}
}

func TestAllocAlignedRejectsZeroSize(t *testing.T) {
	r := newTestRegistry(Options{})
	if _, _, err := r.AllocAligned(0, 8, 0, true, false, 0); err == nil {
		t.Fatal("expected an error for a zero-size request")
	}
}

func TestAllocAlignedOversizedAlignmentDelegatesToOS(t *testing.T) {
	r := newTestRegistry(Options{})
	_, memid, err := r.AllocAligned(1024, BlockAlign*2, 0, true, false, 0)
	if err != nil {
		t.Fatalf("AllocAligned: %v", err)
	}
	if memid.Kind != MemKindOS {
		t.Fatalf("memid.Kind = %v, want MemKindOS: alignment beyond BlockAlign can't be served by an arena", memid.Kind)
	}
}

func TestAllocAlignedOversizedAlignmentWithRequestedArenaFails(t *testing.T) {
	r := newTestRegistry(Options{ArenaReserve: 16 << 20})
	a, err := r.reserveFreshArena(1, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.AllocAligned(1024, BlockAlign*2, 0, true, false, a.ID()); err == nil {
		t.Fatal("expected an error: a named arena can't satisfy alignment beyond BlockAlign and can't delegate to the OS")
	}
}

func TestAllocAlignedReusesSameArena(t *testing.T) {
	r := newTestRegistry(Options{ArenaReserve: 64 << 20})
	_, memid1, err := r.AllocAligned(BlockSize, BlockAlign, 0, true, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, memid2, err := r.AllocAligned(BlockSize, BlockAlign, 0, true, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if memid1.ArenaID != memid2.ArenaID {
		t.Fatalf("expected both allocations to land in the same arena, got %d and %d", memid1.ArenaID, memid2.ArenaID)
	}
	if memid1.BlockIndex == memid2.BlockIndex {
		t.Fatal("expected disjoint block indices for two separate allocations")
	}
}

func TestAllocAlignedRequestedArenaID(t *testing.T) {
	r := newTestRegistry(Options{ArenaReserve: 16 << 20})
	a, err := r.reserveFreshArena(1, true, false)
	if err != nil {
		t.Fatal(err)
	}
	_, memid, err := r.AllocAligned(BlockSize, BlockAlign, 0, true, false, a.ID())
	if err != nil {
		t.Fatalf("AllocAligned with requestedArenaID: %v", err)
	}
	if memid.ArenaID != a.ID() {
		t.Fatalf("memid.ArenaID = %d, want %d", memid.ArenaID, a.ID())
	}

	if _, _, err := r.AllocAligned(BlockSize, BlockAlign, 0, true, false, ArenaID(999)); err == nil {
		t.Fatal("expected an error for an unknown requested arena id")
	}
}

func TestAllocAlignedFallsBackToOS(t *testing.T) {
	r := newTestRegistry(Options{DisallowArenaAlloc: true})
	_, memid, err := r.AllocAligned(1024, 8, 0, true, false, 0)
	if err != nil {
		t.Fatalf("AllocAligned: %v", err)
	}
	if memid.Kind != MemKindOS {
		t.Fatalf("memid.Kind = %v, want MemKindOS", memid.Kind)
	}
}

func TestAllocAlignedDisallowOSAllocFails(t *testing.T) {
	fake := osmem.NewFake(1)
	r := NewRegistry(fake, Options{DisallowArenaAlloc: true, DisallowOSAlloc: true})
	if _, _, err := r.AllocAligned(1024, 8, 0, true, false, 0); err == nil {
		t.Fatal("expected ErrOutOfMemory when both arena and OS paths are disallowed")
	}
}

func TestFreeThenReuse(t *testing.T) {
	r := newTestRegistry(Options{ArenaReserve: 16 << 20})
	ptr, memid, err := r.AllocAligned(BlockSize, BlockAlign, 0, true, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Free(ptr, BlockSize, BlockSize, memid); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := r.Free(ptr, BlockSize, BlockSize, memid); err != ErrDoubleFree {
		t.Fatalf("second Free = %v, want ErrDoubleFree", err)
	}
}

func TestAllocAlignedMultiBlock(t *testing.T) {
	r := newTestRegistry(Options{ArenaReserve: 64 << 20})
	ptr, memid, err := r.AllocAligned(BlockSize*3, BlockAlign, 0, true, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ptr == nil {
		t.Fatal("expected a non-nil pointer")
	}
	if err := r.Free(ptr, BlockSize*3, BlockSize*3, memid); err != nil {
		t.Fatalf("Free: %v", err)
	}
}

func BenchmarkAllocAligned(b *testing.B) {
	r := newTestRegistry(Options{ArenaReserve: 256 << 20})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ptr, memid, err := r.AllocAligned(BlockSize, BlockAlign, 0, true, false, 0)
		if err != nil {
			b.Fatal(err)
		}
		r.Free(ptr, BlockSize, BlockSize, memid)
	}
}
