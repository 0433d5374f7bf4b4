package models

import (
	"time"

	"github.com/aukilabs/bsptree/bsp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	worldLabel = "world"
)

var (
	worldEntityCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "world_entity_count",
		Help: "The number of entities in a world.",
	}, []string{worldLabel})

	worldFrameDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "world_frame_duration_seconds",
		Help:    "The time spent running a world frame.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	}, []string{worldLabel})

	worldBoundsGrown = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "world_bounds_grown_total",
		Help: "The number of times the world universe box has been grown.",
	}, []string{worldLabel})

	bspBranchesUsed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bsp_branches_used",
		Help: "The number of allocated tree branches.",
	}, []string{worldLabel})

	bspBranchesFree = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bsp_branches_free",
		Help: "The number of free tree branches.",
	}, []string{worldLabel})

	bspLeaves = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bsp_leaves",
		Help: "The number of leaves attached to tree branches.",
	}, []string{worldLabel})

	bspInfiniteLeaves = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bsp_infinite_leaves",
		Help: "The number of leaves on the tree infinite list.",
	}, []string{worldLabel})

	bspDepthReached = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bsp_depth_reached",
		Help: "The depth of the deepest allocated branch.",
	}, []string{worldLabel})

	bspPoolExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsp_branch_pool_exhausted_total",
		Help: "The number of branch allocations that failed because the pool was empty.",
	}, []string{worldLabel})

	bspDimensionMismatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsp_dimension_mismatches_total",
		Help: "The number of leaves rejected for a bounding box of the wrong dimensionality.",
	}, []string{worldLabel})

	bspBranchesPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsp_branches_pruned_total",
		Help: "The number of branches returned to the pool by pruning.",
	}, []string{worldLabel})
)

func instrumentEntityCount(world string, count int) {
	worldEntityCount.
		With(prometheus.Labels{worldLabel: world}).
		Set(float64(count))
}

func instrumentFrameDuration(world string, start time.Time) {
	worldFrameDuration.
		With(prometheus.Labels{worldLabel: world}).
		Observe(time.Since(start).Seconds())
}

func instrumentBoundsGrown(world string) {
	worldBoundsGrown.
		With(prometheus.Labels{worldLabel: world}).
		Inc()
}

func instrumentBranchesPruned(world string, n int) {
	bspBranchesPruned.
		With(prometheus.Labels{worldLabel: world}).
		Add(float64(n))
}

// instrumentTreeStats publishes the tree occupancy. Counters are increased by
// the difference with the previously published stats.
func instrumentTreeStats(world string, prev, s bsp.Stats) {
	labels := prometheus.Labels{worldLabel: world}

	bspBranchesUsed.With(labels).Set(float64(s.BranchesUsed))
	bspBranchesFree.With(labels).Set(float64(s.BranchesFree))
	bspLeaves.With(labels).Set(float64(s.Leaves))
	bspInfiniteLeaves.With(labels).Set(float64(s.InfiniteLeaves))
	bspDepthReached.With(labels).Set(float64(s.DepthReached))

	if s.PoolExhausted > prev.PoolExhausted {
		bspPoolExhausted.With(labels).Add(float64(s.PoolExhausted - prev.PoolExhausted))
	}
	if s.DimensionMismatches > prev.DimensionMismatches {
		bspDimensionMismatches.With(labels).Add(float64(s.DimensionMismatches - prev.DimensionMismatches))
	}
}

func resetMetrics(world string) {
	labels := prometheus.Labels{worldLabel: world}

	worldEntityCount.Delete(labels)
	worldFrameDuration.Delete(labels)
	worldBoundsGrown.Delete(labels)
	bspBranchesUsed.Delete(labels)
	bspBranchesFree.Delete(labels)
	bspLeaves.Delete(labels)
	bspInfiniteLeaves.Delete(labels)
	bspDepthReached.Delete(labels)
	bspPoolExhausted.Delete(labels)
	bspDimensionMismatches.Delete(labels)
	bspBranchesPruned.Delete(labels)
}
