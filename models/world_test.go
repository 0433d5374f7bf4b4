package models

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/bsptree/bsp"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newTestWorld(t *testing.T, conf WorldConfig) *World {
	if conf.Dimensions == 0 {
		conf.Dimensions = 2
	}
	if conf.MaxDepth == 0 {
		conf.MaxDepth = 4
	}
	if conf.BranchCapacity == 0 {
		conf.BranchCapacity = 64
	}
	if conf.Size == 0 {
		conf.Size = 128
	}
	if conf.FrameDuration == 0 {
		conf.FrameDuration = time.Hour
	}

	w, err := NewWorld(1, conf)
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w
}

func queryIDs(w *World, box bsp.AABB) []int {
	var ids []int
	w.WithTree(func(tree *bsp.Tree) {
		for _, l := range tree.QueryOverlap(box) {
			ids = append(ids, l.Index)
		}
	})
	return ids
}

func TestNewWorld(t *testing.T) {
	t.Run("creates a world", func(t *testing.T) {
		w := newTestWorld(t, WorldConfig{Dimensions: 3})
		require.NotEmpty(t, w.UUID)
		require.Equal(t, 3, w.Dimensions())
		require.Equal(t, 128.0, w.Size())
		require.Equal(t, UniverseBox(3, 128), w.Tree().Bounds())
	})

	t.Run("rejects invalid dimensions", func(t *testing.T) {
		_, err := NewWorld(1, WorldConfig{Dimensions: 4, MaxDepth: 1, BranchCapacity: 1, Size: 1})
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidWorldDimensions, errors.Type(err))
	})

	t.Run("rejects invalid size", func(t *testing.T) {
		_, err := NewWorld(1, WorldConfig{Dimensions: 2, MaxDepth: 1, BranchCapacity: 1})
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidWorldSize, errors.Type(err))
	})

	t.Run("wraps tree errors", func(t *testing.T) {
		_, err := NewWorld(1, WorldConfig{Dimensions: 2, MaxDepth: 1, Size: 1})
		require.Error(t, err)
		require.Equal(t, ErrTypeWorldTree, errors.Type(err))
	})
}

func TestWorldAddEntity(t *testing.T) {
	w := newTestWorld(t, WorldConfig{})
	e := NewEntity(w.NewEntityID(), EntityKindCharacter, Shape{Size: 2}, Pose{
		Position: mgl64.Vec3{10, 10, 0},
	})

	w.AddEntity(e)
	require.True(t, e.Leaf().Inserted())
	require.Equal(t, 1, w.EntityCount())

	found, ok := w.EntityByID(e.ID)
	require.True(t, ok)
	require.Equal(t, e, found)
	require.Len(t, w.Entities(), 1)

	require.Equal(t, []int{int(e.ID)}, queryIDs(w, bsp.NewAABB([]float64{0, 0}, []float64{9, 9})))

	w.RemoveEntity(e)
	require.False(t, e.Leaf().Inserted())
	require.Zero(t, w.EntityCount())
	require.Empty(t, queryIDs(w, UniverseBox(2, 128)))
}

func TestWorldStep(t *testing.T) {
	t.Run("moves entities and relinks their leaves", func(t *testing.T) {
		w := newTestWorld(t, WorldConfig{})
		e := NewEntity(w.NewEntityID(), EntityKindCharacter, Shape{Size: 1}, Pose{
			Position: mgl64.Vec3{10, 10, 0},
			Velocity: mgl64.Vec3{50, 0, 0},
		})
		w.AddEntity(e)

		frame := w.Step(time.Second)
		require.Equal(t, uint64(1), frame.Number)
		require.Equal(t, time.Second, frame.Delta)
		require.Equal(t, mgl64.Vec3{60, 10, 0}, e.Pose().Position)

		box := bsp.NewAABB([]float64{59, 9}, []float64{61, 11})
		require.Equal(t, []int{int(e.ID)}, queryIDs(w, box))
		require.Empty(t, queryIDs(w, bsp.NewAABB([]float64{0, 0}, []float64{20, 20})))
	})

	t.Run("bounces entities off the universe walls", func(t *testing.T) {
		w := newTestWorld(t, WorldConfig{})
		e := NewEntity(w.NewEntityID(), EntityKindCharacter, Shape{Size: 1}, Pose{
			Position: mgl64.Vec3{120, 10, 0},
			Velocity: mgl64.Vec3{10, 0, 0},
		})
		w.AddEntity(e)

		w.Step(time.Second)
		require.Equal(t, mgl64.Vec3{-10, 0, 0}, e.Pose().Velocity)
		require.Equal(t, mgl64.Vec3{127, 10, 0}, e.Pose().Position)

		w.Step(time.Second)
		require.Equal(t, mgl64.Vec3{117, 10, 0}, e.Pose().Position)
	})

	t.Run("bouncing entities do not grow the universe", func(t *testing.T) {
		w := newTestWorld(t, WorldConfig{GrowBounds: true})
		e := NewEntity(w.NewEntityID(), EntityKindCharacter, Shape{Size: 1}, Pose{
			Position: mgl64.Vec3{120, 10, 0},
			Velocity: mgl64.Vec3{10, 3, 0},
		})
		w.AddEntity(e)

		for i := 0; i < 1000; i++ {
			w.Step(time.Second)
			require.True(t, w.Universe().Contains(e.Bounds(2)), "frame %d", i+1)
		}

		var stats bsp.Stats
		w.WithTree(func(tree *bsp.Tree) {
			stats = tree.Stats()
		})
		require.Equal(t, UniverseBox(2, 128), stats.Bounds)
		require.Zero(t, stats.InfiniteLeaves)
		require.Equal(t, 1, stats.Leaves)
	})

	t.Run("entities placed outside turn back without being clamped", func(t *testing.T) {
		w := newTestWorld(t, WorldConfig{})
		e := NewEntity(w.NewEntityID(), EntityKindCharacter, Shape{Size: 1}, Pose{
			Position: mgl64.Vec3{200, 10, 0},
			Velocity: mgl64.Vec3{10, 0, 0},
		})
		w.AddEntity(e)

		w.Step(time.Second)
		require.Equal(t, mgl64.Vec3{210, 10, 0}, e.Pose().Position)
		require.Equal(t, mgl64.Vec3{-10, 0, 0}, e.Pose().Velocity)
	})

	t.Run("runs frame handlers in registration order", func(t *testing.T) {
		w := newTestWorld(t, WorldConfig{})

		var calls []string
		w.HandleFrame(func(f Frame) {
			calls = append(calls, fmt.Sprintf("a%d", f.Number))
		})
		cancel := w.HandleFrame(func(f Frame) {
			calls = append(calls, fmt.Sprintf("b%d", f.Number))
		})
		w.HandleFrame(func(f Frame) {
			require.NotNil(t, w.Tree())
			calls = append(calls, fmt.Sprintf("c%d", f.Number))
		})

		w.Step(time.Millisecond)
		cancel()
		w.Step(time.Millisecond)

		require.Equal(t, []string{"a1", "b1", "c1", "a2", "c2"}, calls)
	})

	t.Run("prunes on the configured interval", func(t *testing.T) {
		w := newTestWorld(t, WorldConfig{PruneInterval: 2})
		e := NewEntity(w.NewEntityID(), EntityKindCharacter, Shape{Size: 1}, Pose{
			Position: mgl64.Vec3{3, 3, 0},
		})
		w.AddEntity(e)

		var used int
		w.WithTree(func(tree *bsp.Tree) {
			used = tree.Stats().BranchesUsed
		})
		require.Equal(t, 5, used)

		w.RemoveEntity(e)
		w.Step(time.Millisecond)
		w.WithTree(func(tree *bsp.Tree) {
			used = tree.Stats().BranchesUsed
		})
		require.Equal(t, 5, used)

		w.Step(time.Millisecond)
		w.WithTree(func(tree *bsp.Tree) {
			used = tree.Stats().BranchesUsed
		})
		require.Equal(t, 1, used)
	})

	t.Run("grows the universe to fit outside entities", func(t *testing.T) {
		w := newTestWorld(t, WorldConfig{GrowBounds: true})
		e := NewEntity(w.NewEntityID(), EntityKindCharacter, Shape{Size: 1}, Pose{
			Position: mgl64.Vec3{200, 10, 0},
		})
		w.AddEntity(e)

		var stats bsp.Stats
		w.WithTree(func(tree *bsp.Tree) {
			stats = tree.Stats()
		})
		require.Equal(t, 1, stats.InfiniteLeaves)

		w.Step(time.Millisecond)
		w.WithTree(func(tree *bsp.Tree) {
			stats = tree.Stats()
		})
		require.Equal(t, 0, stats.InfiniteLeaves)
		require.Equal(t, 1, stats.Leaves)
		require.Equal(t, []float64{201, 128}, stats.Bounds.Maxs())
	})

	t.Run("keeps outside entities on the infinite list without growth", func(t *testing.T) {
		w := newTestWorld(t, WorldConfig{})
		e := NewEntity(w.NewEntityID(), EntityKindCharacter, Shape{Size: 1}, Pose{
			Position: mgl64.Vec3{200, 10, 0},
		})
		w.AddEntity(e)
		w.Step(time.Millisecond)

		var stats bsp.Stats
		w.WithTree(func(tree *bsp.Tree) {
			stats = tree.Stats()
		})
		require.Equal(t, 1, stats.InfiniteLeaves)
		require.Equal(t, UniverseBox(2, 128), stats.Bounds)
	})
}

func TestWorldCloseDeletesMetrics(t *testing.T) {
	w, err := NewWorld(1, WorldConfig{
		Dimensions:     2,
		MaxDepth:       4,
		BranchCapacity: 64,
		Size:           128,
		FrameDuration:  time.Hour,
	})
	require.NoError(t, err)

	w.AddEntity(NewEntity(w.NewEntityID(), EntityKindCharacter, Shape{Size: 1}, Pose{
		Position: mgl64.Vec3{10, 10, 0},
	}))
	w.Step(time.Millisecond)
	w.Close()

	labels := prometheus.Labels{worldLabel: w.UUID}
	require.False(t, worldEntityCount.Delete(labels))
	require.False(t, worldFrameDuration.Delete(labels))
	require.False(t, bspBranchesUsed.Delete(labels))
	require.False(t, bspLeaves.Delete(labels))
	require.False(t, bspDimensionMismatches.Delete(labels))
}

func TestWorldModuleState(t *testing.T) {
	w := newTestWorld(t, WorldConfig{})

	_, ok := w.ModuleState("test")
	require.False(t, ok)

	w.SetModuleState("test", 42)
	state, ok := w.ModuleState("test")
	require.True(t, ok)
	require.Equal(t, 42, state)
}

func TestWorldStartDispatchFrames(t *testing.T) {
	w := newTestWorld(t, WorldConfig{FrameDuration: time.Millisecond})

	var wg sync.WaitGroup
	var once sync.Once
	wg.Add(1)
	w.HandleFrame(func(Frame) {
		once.Do(wg.Done)
	})

	go w.StartDispatchFrames()
	wg.Wait()
	w.Close()
}

func TestWorldLogSummary(t *testing.T) {
	w := newTestWorld(t, WorldConfig{})
	w.AddEntity(NewEntity(w.NewEntityID(), EntityKindCharacter, Shape{Size: 1}, Pose{
		Position: mgl64.Vec3{10, 10, 0},
	}))

	var b strings.Builder
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		fmt.Fprint(&b, e)
	})

	w.logSummary(time.Second)

	out := b.String()
	require.Contains(t, out, "tree summary")
	require.Contains(t, out, `"entities":1`)
	require.Contains(t, out, w.UUID)
	t.Log(out)
}
