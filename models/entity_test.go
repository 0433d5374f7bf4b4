package models

import (
	"testing"

	"github.com/aukilabs/bsptree/bsp"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func TestEntityPose(t *testing.T) {
	e := NewEntity(1, EntityKindCharacter, Shape{Size: 1}, Pose{})

	p := Pose{
		Position: mgl64.Vec3{1, 2, 3},
		Velocity: mgl64.Vec3{4, 5, 6},
	}

	e.SetPose(p)
	require.Equal(t, p, e.Pose())
}

func TestEntityLeaf(t *testing.T) {
	e := NewEntity(7, EntityKindParticle, Shape{Size: 1}, Pose{})

	l := e.Leaf()
	require.Equal(t, int(EntityKindParticle), l.DataType)
	require.Equal(t, 7, l.Index)
	require.False(t, l.Inserted())

	found, ok := EntityFromLeaf(l)
	require.True(t, ok)
	require.Equal(t, e, found)

	_, ok = EntityFromLeaf(bsp.NewLeaf(0, "other", 0))
	require.False(t, ok)

	_, ok = EntityFromLeaf(nil)
	require.False(t, ok)
}

func TestEntityBounds(t *testing.T) {
	e := NewEntity(1, EntityKindCharacter, Shape{Size: 2, Height: 4}, Pose{
		Position: mgl64.Vec3{10, 20, 1},
	})

	box := e.Bounds(2)
	require.Equal(t, []float64{8, 18}, box.Mins())
	require.Equal(t, []float64{12, 22}, box.Maxs())

	box = e.Bounds(3)
	require.Equal(t, []float64{8, 18, 1}, box.Mins())
	require.Equal(t, []float64{12, 22, 5}, box.Maxs())
}

func TestEntityBumper(t *testing.T) {
	shape := Shape{Size: 1, SizeBig: DefaultSizeBig(1), Height: 2}
	a := NewEntity(1, EntityKindCharacter, shape, Pose{Position: mgl64.Vec3{0, 0, 0}})
	b := NewEntity(2, EntityKindCharacter, shape, Pose{Position: mgl64.Vec3{1.9, 1.9, 0}})
	c := NewEntity(3, EntityKindCharacter, shape, Pose{Position: mgl64.Vec3{1.5, 0, 0}})

	require.True(t, a.Bounds(2).Overlaps(b.Bounds(2)))
	require.False(t, a.Bumper().Overlaps(b.Bumper()))
	require.True(t, a.Bumper().Overlaps(c.Bumper()))
}

func TestEntityKindString(t *testing.T) {
	require.Equal(t, "character", EntityKindCharacter.String())
	require.Equal(t, "particle", EntityKindParticle.String())
	require.Equal(t, "unknown", EntityKind(0).String())
}
