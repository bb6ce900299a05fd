package arena

import "errors"

// ErrOutOfMemory is returned when no arena, and no OS fallback, could
// satisfy an allocation request.
var ErrOutOfMemory = errors.New("arena: out of memory")

// ErrInvalidFree is returned when Free is called with a MemID that does
// not describe a live allocation (corrupted MemID, or one that was never
// valid). The allocator's state is left untouched; no bitmap is mutated.
var ErrInvalidFree = errors.New("arena: invalid free")

// ErrDoubleFree is returned when Free is called twice on the same
// MemID, detected via the arena's free bitmap already showing the
// blocks as free.
var ErrDoubleFree = errors.New("arena: double free")

// ErrPrecondition is returned when a caller violates an argument
// precondition (bad size/alignment, out-of-range arena id, and so on).
var ErrPrecondition = errors.New("arena: precondition violated")
