package bsp

// BoundingVolume is an externally computed volume an AABB can be derived from.
type BoundingVolume interface {
	// Returns the number of axis aligned axes the volume exposes.
	Dimensions() int

	// Returns the extent of the volume along the given axis.
	Extent(axis int) (min, max float64)
}

// Octagonal bumper axes. The first three are the cartesian axes; XY and YX
// are the diagonals x+y and y-x.
const (
	OctX = iota
	OctY
	OctZ
	OctXY
	OctYX
	OctCount
)

// OctBumper is an octagonal bounding volume: a box in x, y and z whose
// vertical edges are clipped by the two diagonal axes.
type OctBumper struct {
	Mins [OctCount]float64
	Maxs [OctCount]float64
}

// NewOctBumper returns a bumper centered on the origin horizontally, with the
// given horizontal half size, diagonal half size and a height starting at
// z = 0. A diagonal size of zero or less yields a square footprint.
func NewOctBumper(size, sizeBig, height float64) OctBumper {
	if sizeBig <= 0 {
		sizeBig = 2 * size
	}

	var b OctBumper
	b.Mins[OctX], b.Maxs[OctX] = -size, size
	b.Mins[OctY], b.Maxs[OctY] = -size, size
	b.Mins[OctZ], b.Maxs[OctZ] = 0, height
	b.Mins[OctXY], b.Maxs[OctXY] = -sizeBig, sizeBig
	b.Mins[OctYX], b.Maxs[OctYX] = -sizeBig, sizeBig
	return b
}

func (b OctBumper) Dimensions() int {
	return 3
}

func (b OctBumper) Extent(axis int) (float64, float64) {
	return b.Mins[axis], b.Maxs[axis]
}

// Translate moves the bumper by the given offset.
func (b OctBumper) Translate(x, y, z float64) OctBumper {
	offsets := [OctCount]float64{x, y, z, x + y, y - x}
	for i := range offsets {
		b.Mins[i] += offsets[i]
		b.Maxs[i] += offsets[i]
	}
	return b
}

// Overlaps tests the two bumpers on all five axes.
func (b OctBumper) Overlaps(o OctBumper) bool {
	for i := 0; i < OctCount; i++ {
		if b.Mins[i] > o.Maxs[i] || o.Mins[i] > b.Maxs[i] {
			return false
		}
	}
	return true
}
