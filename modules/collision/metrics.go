package collision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	worldLabel = "world"
)

var (
	collisionContacts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "collision_contacts",
		Help: "The number of contacts found during the last frame.",
	}, []string{worldLabel})

	collisionCandidates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collision_candidates_total",
		Help: "The number of leaves returned by tree overlap queries.",
	}, []string{worldLabel})

	collisionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collision_rejections_total",
		Help: "The number of candidates whose bumpers did not overlap.",
	}, []string{worldLabel})
)

func instrumentPass(world string, contacts, candidates, rejections int) {
	collisionContacts.WithLabelValues(world).Set(float64(contacts))
	collisionCandidates.WithLabelValues(world).Add(float64(candidates))
	collisionRejections.WithLabelValues(world).Add(float64(rejections))
}

func resetMetrics(world string) {
	collisionContacts.DeleteLabelValues(world)
	collisionCandidates.DeleteLabelValues(world)
	collisionRejections.DeleteLabelValues(world)
}
