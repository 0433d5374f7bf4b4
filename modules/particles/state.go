package particles

import (
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/bsptree/models"
)

type particle struct {
	entity    *models.Entity
	remaining time.Duration
}

// State represents the particles alive in a world.
type State struct {
	mutex       sync.RWMutex
	particleIDs models.SequentialIDGenerator
	particles   map[uint32]*particle
	spawned     uint64
	expired     uint64
}

func (s *State) NewParticleID() uint32 {
	return s.particleIDs.New()
}

func (s *State) add(p *particle) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.particles == nil {
		s.particles = make(map[uint32]*particle)
	}

	s.particles[p.entity.ID] = p
	s.spawned++
}

func (s *State) remove(id uint32, expired bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.particles[id]; !ok {
		return
	}

	delete(s.particles, id)
	s.particleIDs.Reuse(id)
	if expired {
		s.expired++
	}
}

// all returns the particles sorted by id.
func (s *State) all() []*particle {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	particles := make([]*particle, 0, len(s.particles))
	for _, p := range s.particles {
		particles = append(particles, p)
	}

	sort.Slice(particles, func(i, j int) bool {
		return particles[i].entity.ID < particles[j].entity.ID
	})
	return particles
}

// Particles returns the particle entities sorted by id.
func (s *State) Particles() []*models.Entity {
	particles := s.all()

	entities := make([]*models.Entity, len(particles))
	for i, p := range particles {
		entities[i] = p.entity
	}
	return entities
}

func (s *State) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.particles)
}

// Spawned returns the number of particles spawned since the state creation.
func (s *State) Spawned() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.spawned
}

// Expired returns the number of particles that reached the end of their
// lifetime.
func (s *State) Expired() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.expired
}
