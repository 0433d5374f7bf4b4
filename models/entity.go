package models

import (
	"math"
	"sync"

	"github.com/aukilabs/bsptree/bsp"
	"github.com/go-gl/mathgl/mgl64"
)

// EntityKind is stored as the data type of an entity's leaf.
type EntityKind int

const (
	EntityKindCharacter EntityKind = iota + 1
	EntityKindParticle
)

func (k EntityKind) String() string {
	switch k {
	case EntityKindCharacter:
		return "character"
	case EntityKindParticle:
		return "particle"
	default:
		return "unknown"
	}
}

// Pose describes where an entity is and how it moves.
type Pose struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
}

// Shape is the size of an entity's octagonal bumper.
type Shape struct {
	// Horizontal half size.
	Size float64

	// Half size along the diagonals. Zero yields a square footprint.
	SizeBig float64

	Height float64
}

// DefaultSizeBig returns the diagonal half size that clips the footprint
// corners into a regular-ish octagon.
func DefaultSizeBig(size float64) float64 {
	return size * math.Sqrt2
}

type Entity struct {
	ID    uint32
	Kind  EntityKind
	Shape Shape

	mutex sync.RWMutex
	pose  Pose
	leaf  *bsp.Leaf
}

// NewEntity returns an entity with its own detached leaf.
func NewEntity(id uint32, kind EntityKind, shape Shape, pose Pose) *Entity {
	e := &Entity{
		ID:    id,
		Kind:  kind,
		Shape: shape,
		pose:  pose,
	}
	e.leaf = bsp.NewLeaf(int(kind), e, int(id))
	return e
}

func (e *Entity) SetPose(v Pose) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.pose = v
}

func (e *Entity) Pose() Pose {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.pose
}

// Leaf returns the leaf that links the entity into a world tree.
func (e *Entity) Leaf() *bsp.Leaf {
	return e.leaf
}

// Bumper returns the entity's octagonal bumper at its current position.
func (e *Entity) Bumper() bsp.OctBumper {
	return e.bumperAt(e.Pose().Position)
}

func (e *Entity) bumperAt(p mgl64.Vec3) bsp.OctBumper {
	return bsp.NewOctBumper(e.Shape.Size, e.Shape.SizeBig, e.Shape.Height).
		Translate(p.X(), p.Y(), p.Z())
}

// Bounds returns the box of the entity bumper over the first dim axes.
func (e *Entity) Bounds(dim int) bsp.AABB {
	return e.boundsAt(e.Pose().Position, dim)
}

func (e *Entity) boundsAt(p mgl64.Vec3, dim int) bsp.AABB {
	var box bsp.AABB
	box.FromBoundingVolume(e.bumperAt(p), dim)
	return box
}

// EntityFromLeaf returns the entity referenced by a leaf, if any.
func EntityFromLeaf(l *bsp.Leaf) (*Entity, bool) {
	if l == nil {
		return nil, false
	}
	e, ok := l.Data.(*Entity)
	return e, ok
}
