package arena

// ArenaMetrics is a point-in-time snapshot of one arena's block
// accounting.
type ArenaMetrics struct {
	ArenaID         ArenaID
	BlockCount      uint32
	FreeBlocks      uint32
	CommittedBlocks uint32
	DirtyBlocks     uint32
	PurgePending    uint32
	NumaNode        int32
	IsExclusive     bool
}

// Metrics returns a snapshot of this arena's current block state. It is
// a set of independent atomic reads, not a single consistent
// transaction, so under concurrent allocation the counts may not sum
// perfectly at any one instant.
func (a *Arena) Metrics() ArenaMetrics {
	return ArenaMetrics{
		ArenaID:         a.id,
		BlockCount:      a.blockCount,
		FreeBlocks:      a.blocksFree.CountSet(),
		CommittedBlocks: a.blocksCommitted.CountSet(),
		DirtyBlocks:     a.blocksDirty.CountSet(),
		PurgePending:    a.blocksPurge.CountSet(),
		NumaNode:        a.numaNode,
		IsExclusive:     a.exclusive,
	}
}

// Utilization returns the fraction of this arena's blocks currently in
// use, in [0, 1].
func (m ArenaMetrics) Utilization() float64 {
	if m.BlockCount == 0 {
		return 0
	}
	inUse := m.BlockCount - m.FreeBlocks
	return float64(inUse) / float64(m.BlockCount)
}

// Metrics returns a snapshot of every registered arena, in registration
// order.
func (r *Registry) Metrics() []ArenaMetrics {
	n := r.count.Load()
	out := make([]ArenaMetrics, 0, n)
	for i := uint32(0); i < n; i++ {
		if a := r.slots[i].Load(); a != nil {
			out = append(out, a.Metrics())
		}
	}
	return out
}
