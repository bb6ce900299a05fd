package arena

import (
	"testing"

	"github.com/memarena/varena/internal/bitmap"
	"github.com/memarena/varena/internal/osmem"
)

func newTestRegistry(opts Options) *Registry {
	return NewRegistry(osmem.NewFake(1), opts)
}

func TestReserveFreshArenaBasic(t *testing.T) {
	r := newTestRegistry(Options{ArenaReserve: 16 << 20})
	a, err := r.reserveFreshArena(1, true, false)
	if err != nil {
		t.Fatalf("reserveFreshArena: %v", err)
	}
	if a.BlockCount() == 0 {
		t.Fatal("expected a non-zero block count")
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}
	if a.ID() != 1 {
		t.Fatalf("first arena id = %d, want 1", a.ID())
	}
}

func TestReserveFreshArenaScalesWithCount(t *testing.T) {
	// The base must be large enough that the doubling at 8 arenas is not
	// hidden by the 8 MiB minimum reservation.
	r := newTestRegistry(Options{ArenaReserve: 32 << 20})
	for i := 0; i < 9; i++ {
		if _, err := r.reserveFreshArena(1, true, false); err != nil {
			t.Fatalf("reserveFreshArena[%d]: %v", i, err)
		}
	}
	small := r.At(1)
	big := r.At(9)
	if big.BlockCount() <= small.BlockCount() {
		t.Fatalf("expected later arena to be larger: first=%d ninth=%d", small.BlockCount(), big.BlockCount())
	}
}

func TestMetaBlocksNeverFree(t *testing.T) {
	r := newTestRegistry(Options{ArenaReserve: 16 << 20})
	a, err := r.reserveFreshArena(1, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if !a.blocksFree.IsXSetN(bitmap.ClearMode, 0, a.metaBlocks) {
		t.Fatal("expected metadata blocks to be clear (not-free) in blocksFree")
	}
}

func TestArenaArea(t *testing.T) {
	r := newTestRegistry(Options{ArenaReserve: 8 << 20})
	a, err := r.reserveFreshArena(1, true, false)
	if err != nil {
		t.Fatal(err)
	}
	base, size, ok := r.ArenaArea(a.ID())
	if !ok {
		t.Fatal("ArenaArea should find the registered arena")
	}
	if base == nil || size != uintptr(a.BlockCount())*BlockSize {
		t.Fatalf("ArenaArea = (%v, %d), want size %d", base, size, uintptr(a.BlockCount())*BlockSize)
	}
	if _, _, ok := r.ArenaArea(ArenaID(999)); ok {
		t.Fatal("ArenaArea should fail for an unregistered id")
	}
}
