package arena

import (
	"fmt"
	"io"
)

// DebugShowArenas writes a human-readable dump of every registered arena to
// w: one header line per arena (id, block count, NUMA node, exclusivity),
// followed by the requested bitmaps rendered with bitmap.Render. It exists
// for interactive debugging, not for parsing.
func (r *Registry) DebugShowArenas(w io.Writer, showInUse, showAbandoned, showPurge bool) {
	n := r.count.Load()
	for i := uint32(0); i < n; i++ {
		a := r.slots[i].Load()
		if a == nil {
			continue
		}
		fmt.Fprintf(w, "arena %d: %d blocks, numa=%d, exclusive=%v, large=%v\n",
			a.id, a.blockCount, a.numaNode, a.exclusive, a.isLarge)
		if showInUse {
			fmt.Fprintln(w, "  in-use ('x' = allocated):")
			a.blocksFree.Render(w, '.', 'x')
		}
		if showPurge {
			fmt.Fprintln(w, "  purge-pending:")
			a.blocksPurge.Render(w, 'p', '.')
		}
		if showAbandoned {
			for bin := range a.blocksAbandoned {
				fmt.Fprintf(w, "  abandoned bin %d:\n", bin)
				a.blocksAbandoned[bin].Render(w, 'a', '.')
			}
		}
	}
}

// DebugShowArenas delegates to Default().DebugShowArenas.
func DebugShowArenas(w io.Writer, showInUse, showAbandoned, showPurge bool) {
	defaultRegistry.DebugShowArenas(w, showInUse, showAbandoned, showPurge)
}
