package arena

import (
	"sync/atomic"

	"github.com/memarena/varena/internal/osmem"
)

// Registry owns a fixed-capacity set of arenas plus the OS facade,
// options, stats, tracker, and logger they're built and released
// through. The zero value is not usable; construct with NewRegistry.
type Registry struct {
	slots [MaxArenas]atomic.Pointer[Arena]
	count atomic.Uint32

	os      osmem.OS
	opts    Options
	stats   Stats
	tracker Tracker
	logger  Logger

	purgeGuard atomic.Bool
	threadSeq  atomic.Uint32
}

// NewRegistry constructs a Registry over the given OS facade and options.
// A nil os selects the platform-default implementation.
func NewRegistry(os osmem.OS, opts Options) *Registry {
	if os == nil {
		os = osmem.New()
	}
	return &Registry{
		os:      os,
		opts:    opts,
		stats:   &AtomicStats{},
		tracker: noopTracker{},
		logger:  defaultLogger,
	}
}

var defaultRegistry = NewRegistry(nil, Options{})

// Default returns the process-wide Registry used by the package-level
// allocation functions.
func Default() *Registry { return defaultRegistry }

// SetStats replaces the Registry's Stats collaborator.
func (r *Registry) SetStats(s Stats) {
	if s == nil {
		s = noopStats{}
	}
	r.stats = s
}

// SetTracker replaces the Registry's Tracker collaborator.
func (r *Registry) SetTracker(t Tracker) {
	if t == nil {
		t = noopTracker{}
	}
	r.tracker = t
}

// SetLogger replaces the Registry's Logger collaborator.
func (r *Registry) SetLogger(l Logger) {
	if l == nil {
		l = defaultLogger
	}
	r.logger = l
}

// Count returns the number of arenas currently registered.
func (r *Registry) Count() uint32 { return r.count.Load() }

// At returns the arena with the given id, or nil if id is unregistered or
// out of range.
func (r *Registry) At(id ArenaID) *Arena {
	if id == 0 || uint32(id) > MaxArenas {
		return nil
	}
	return r.slots[id-1].Load()
}

// add reserves the next slot, publishes a, and returns its assigned id.
// It follows the acquire/release publication protocol: the slot count is
// bumped first (with rollback on overflow), then the fully-built
// descriptor is released-stored into the reserved slot. A goroutine that
// observes the new count may still load a nil slot until that store
// lands, and readers skip nil slots; a non-nil slot always holds a fully
// initialized Arena.
func (r *Registry) add(a *Arena) (ArenaID, bool) {
	idx := r.count.Add(1) - 1
	if idx >= MaxArenas {
		r.count.Add(^uint32(0)) // roll back
		return 0, false
	}
	id := ArenaID(idx + 1)
	a.id = id
	r.slots[idx].Store(a)
	r.stats.CounterIncrease("arenaCount", 1)
	return id, true
}

// ThreadSeq returns a process-wide, best-effort round-robin counter used
// to bias per-call search hints across goroutines. It carries no
// per-goroutine affinity; it exists so concurrent callers fan out across
// arenas and bitmap chunks instead of converging on the same starting
// point.
func (r *Registry) ThreadSeq() uint32 {
	return r.threadSeq.Add(1)
}

// ThreadSeq delegates to Default().ThreadSeq.
func ThreadSeq() uint32 { return defaultRegistry.ThreadSeq() }

// UnsafeDestroyAll releases every registered arena's backing OS memory
// and resets the Registry to empty. It is unsafe: any outstanding pointer
// into an arena becomes invalid the instant this call returns, and the
// caller is responsible for ensuring nothing else is concurrently
// allocating from or freeing into this Registry.
func (r *Registry) UnsafeDestroyAll() {
	n := r.count.Load()
	for i := uint32(0); i < n; i++ {
		a := r.slots[i].Swap(nil)
		if a == nil {
			continue
		}
		size := uintptr(a.blockCount) * BlockSize
		r.os.Free(a.start, size)
	}
	r.count.Store(0)
}
