package bsp

// Stats is a snapshot of a tree's occupancy and diagnostic counters.
type Stats struct {
	Dimensions int `json:"dimensions"`
	MaxDepth   int `json:"max_depth"`
	Capacity   int `json:"capacity"`

	BranchesUsed int `json:"branches_used"`
	BranchesFree int `json:"branches_free"`
	DepthReached int `json:"depth_reached"`

	Leaves         int `json:"leaves"`
	InfiniteLeaves int `json:"infinite_leaves"`

	// The number of times a branch could not be allocated.
	PoolExhausted uint64 `json:"pool_exhausted"`

	// The number of leaves rejected for having a box of the wrong
	// dimensionality.
	DimensionMismatches uint64 `json:"dimension_mismatches"`

	Bounds AABB `json:"bounds"`
}

func (t *Tree) Stats() Stats {
	s := Stats{
		Dimensions:          t.dimensions,
		MaxDepth:            t.depth,
		Capacity:            len(t.branches),
		BranchesUsed:        len(t.used),
		BranchesFree:        len(t.free),
		Leaves:              t.leafCount,
		InfiniteLeaves:      t.infinite.count,
		PoolExhausted:       t.exhausted,
		DimensionMismatches: t.mismatched,
		Bounds:              t.bbox,
	}

	for _, idx := range t.used {
		if d := t.branches[idx].depth; d > s.DepthReached {
			s.DepthReached = d
		}
	}
	return s
}
