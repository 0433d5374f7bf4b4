package particles

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	worldLabel = "world"
)

var (
	particlesAlive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "particles_alive",
		Help: "The number of particles linked into a world tree.",
	}, []string{worldLabel})

	particlesSpawned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "particles_spawned_total",
		Help: "The number of spawned particles.",
	}, []string{worldLabel})

	particlesExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "particles_expired_total",
		Help: "The number of particles removed at the end of their lifetime.",
	}, []string{worldLabel})
)

func instrumentFrame(world string, alive, spawned, expired int) {
	particlesAlive.WithLabelValues(world).Set(float64(alive))
	particlesSpawned.WithLabelValues(world).Add(float64(spawned))
	particlesExpired.WithLabelValues(world).Add(float64(expired))
}

func resetMetrics(world string) {
	particlesAlive.DeleteLabelValues(world)
	particlesSpawned.DeleteLabelValues(world)
	particlesExpired.DeleteLabelValues(world)
}
