package arena

// MemKind classifies where a memory region came from, which in turn
// determines how Registry.Free must release it.
type MemKind int

const (
	// MemKindNone marks a zero-value MemID; never returned by a
	// successful allocation.
	MemKindNone MemKind = iota
	// MemKindArena means the region is a run of blocks inside a
	// registered Arena and must be released through that arena's
	// bitmaps.
	MemKindArena
	// MemKindOS means the region was allocated directly from the OS,
	// bypassing arenas entirely (the AllocAligned fallback path, or
	// explicit DisallowArenaAlloc).
	MemKindOS
	// MemKindExternal means the region was not allocated by this module
	// at all; Free on it is always a no-op.
	MemKindExternal
	// MemKindStatic means the region is a compile-time or
	// caller-provided static buffer; Free on it is always a no-op.
	MemKindStatic
)

// MemID identifies the origin of a region handed back by AllocAligned, and
// carries everything Registry.Free needs to release it correctly. It is a
// plain value, safe to copy and store alongside the pointer it describes.
type MemID struct {
	Kind               MemKind
	ArenaID            ArenaID
	BlockIndex         uint32
	IsExclusive        bool
	IsPinned           bool
	InitiallyCommitted bool
	InitiallyZero      bool
}

// IsArena reports whether id was allocated from a registered arena.
func (id MemID) IsArena() bool { return id.Kind == MemKindArena }
