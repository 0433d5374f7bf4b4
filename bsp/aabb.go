package bsp

import (
	"math"

	"github.com/segmentio/encoding/json"
)

// MaxDimensions is the highest dimensionality a tree supports. A branch has
// 2^MaxDimensions child slots at most, tracked in a 64 bit occupancy mask.
const MaxDimensions = 6

// AABB is an axis-aligned bounding box of 1 to MaxDimensions dimensions. The
// zero value is an empty box that overlaps and contains nothing.
type AABB struct {
	dim  int
	mins [MaxDimensions]float64
	mids [MaxDimensions]float64
	maxs [MaxDimensions]float64
}

// NewAABB returns the box spanning mins to maxs. Swapped bounds on an axis are
// reordered. An empty box is returned when the slices differ in length, are
// longer than MaxDimensions or contain NaN.
func NewAABB(mins, maxs []float64) AABB {
	if len(mins) == 0 || len(mins) != len(maxs) || len(mins) > MaxDimensions {
		return AABB{}
	}

	var a AABB
	for i := range mins {
		lo, hi := mins[i], maxs[i]
		if math.IsNaN(lo) || math.IsNaN(hi) {
			return AABB{}
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		a.set(i, lo, hi)
	}
	a.dim = len(mins)
	return a
}

func (a *AABB) set(axis int, lo, hi float64) {
	a.mins[axis] = lo
	a.maxs[axis] = hi
	a.mids[axis] = midpoint(lo, hi)
}

// midpoint keeps mins <= mids <= maxs for unbounded axes too.
func midpoint(lo, hi float64) float64 {
	switch {
	case math.IsInf(lo, -1) && math.IsInf(hi, 1):
		return 0
	case math.IsInf(lo, 0):
		return hi
	case math.IsInf(hi, 0):
		return lo
	}
	return (lo + hi) / 2
}

// Reset marks the box empty.
func (a *AABB) Reset() {
	*a = AABB{}
}

// FromBoundingVolume fills the box with the first dim axes of src. It returns
// false and leaves the box empty when src does not have enough axes.
func (a *AABB) FromBoundingVolume(src BoundingVolume, dim int) bool {
	a.Reset()

	if src == nil || dim <= 0 || dim > MaxDimensions || src.Dimensions() < dim {
		return false
	}

	for i := 0; i < dim; i++ {
		lo, hi := src.Extent(i)
		if math.IsNaN(lo) || math.IsNaN(hi) {
			a.Reset()
			return false
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		a.set(i, lo, hi)
	}
	a.dim = dim
	return true
}

func (a AABB) Dim() int {
	return a.dim
}

func (a AABB) IsEmpty() bool {
	return a.dim == 0
}

// IsFinite reports whether the box is non-empty and bounded on every axis.
func (a AABB) IsFinite() bool {
	if a.IsEmpty() {
		return false
	}
	for i := 0; i < a.dim; i++ {
		if math.IsInf(a.mins[i], 0) || math.IsInf(a.maxs[i], 0) {
			return false
		}
	}
	return true
}

func (a AABB) Min(axis int) float64 {
	return a.mins[axis]
}

func (a AABB) Mid(axis int) float64 {
	return a.mids[axis]
}

func (a AABB) Max(axis int) float64 {
	return a.maxs[axis]
}

func (a AABB) Mins() []float64 {
	return append([]float64(nil), a.mins[:a.dim]...)
}

func (a AABB) Mids() []float64 {
	return append([]float64(nil), a.mids[:a.dim]...)
}

func (a AABB) Maxs() []float64 {
	return append([]float64(nil), a.maxs[:a.dim]...)
}

// Overlaps reports whether both boxes share at least one point. Touching
// faces overlap. Empty boxes and boxes of different dimensionality never do.
func (a AABB) Overlaps(b AABB) bool {
	if a.dim == 0 || a.dim != b.dim {
		return false
	}
	for i := 0; i < a.dim; i++ {
		if a.mins[i] > b.maxs[i] || b.mins[i] > a.maxs[i] {
			return false
		}
	}
	return true
}

// Contains reports whether b lies entirely inside a, faces included.
func (a AABB) Contains(b AABB) bool {
	if a.dim == 0 || a.dim != b.dim {
		return false
	}
	for i := 0; i < a.dim; i++ {
		if a.mins[i] > b.mins[i] || b.maxs[i] > a.maxs[i] {
			return false
		}
	}
	return true
}

// Join returns the smallest box containing both a and b. An empty operand is
// ignored. Boxes of different dimensionality cannot be joined and a is
// returned unchanged.
func (a AABB) Join(b AABB) AABB {
	switch {
	case b.dim == 0:
		return a
	case a.dim == 0:
		return b
	case a.dim != b.dim:
		return a
	}

	var r AABB
	for i := 0; i < a.dim; i++ {
		r.set(i, math.Min(a.mins[i], b.mins[i]), math.Max(a.maxs[i], b.maxs[i]))
	}
	r.dim = a.dim
	return r
}

// Child returns the sub-box of the given child index. Bit i of index selects
// the lower (0) or upper (1) half of axis i. Midpoints of the child are
// recomputed from its own bounds.
func (a AABB) Child(index int) AABB {
	if a.dim == 0 || index < 0 || index >= 1<<a.dim {
		return AABB{}
	}

	var c AABB
	for i := 0; i < a.dim; i++ {
		if index&(1<<i) == 0 {
			c.set(i, a.mins[i], a.mids[i])
		} else {
			c.set(i, a.mids[i], a.maxs[i])
		}
	}
	c.dim = a.dim
	return c
}

// IntersectsSegment reports whether the segment from -> to crosses the box.
// It is the slab test restricted to the parametric range [0, 1].
func (a AABB) IntersectsSegment(from, to []float64) bool {
	if a.dim == 0 || len(from) != a.dim || len(to) != a.dim {
		return false
	}

	tMin, tMax := 0.0, 1.0
	for i := 0; i < a.dim; i++ {
		d := to[i] - from[i]
		if d == 0 {
			if from[i] < a.mins[i] || from[i] > a.maxs[i] {
				return false
			}
			continue
		}

		t1 := (a.mins[i] - from[i]) / d
		t2 := (a.maxs[i] - from[i]) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return false
		}
	}
	return true
}

type aabbJSON struct {
	Mins []float64 `json:"mins"`
	Maxs []float64 `json:"maxs"`
}

func (a AABB) MarshalJSON() ([]byte, error) {
	return json.Marshal(aabbJSON{
		Mins: a.Mins(),
		Maxs: a.Maxs(),
	})
}

func (a *AABB) UnmarshalJSON(b []byte) error {
	var v aabbJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*a = NewAABB(v.Mins, v.Maxs)
	return nil
}
