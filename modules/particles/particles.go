package particles

import (
	"context"
	"time"

	"github.com/aukilabs/bsptree/bsp"
	"github.com/aukilabs/bsptree/models"
	"github.com/brianvoe/gofakeit/v6"
)

const (
	defaultLifetime = time.Second * 5
	defaultSize     = 0.25
)

type Config struct {
	// The number of particles spawned per frame.
	SpawnRate int

	// The maximum number of particles alive at once.
	MaxParticles int

	// The time a particle stays alive.
	Lifetime time.Duration

	// The maximum speed of a particle on each axis, in units per second.
	Speed float64

	// The half size of a particle.
	Size float64

	// The seed of the spawn generator. Zero uses a random seed.
	Seed int64
}

// Module spawns short lived particles at random places of the world. Each
// particle owns a leaf that is relinked every frame and destroyed when the
// particle expires. Particles bounce off the universe walls.
type Module struct {
	conf  Config
	world *models.World
	state *State
	faker *gofakeit.Faker
}

func New(conf Config) *Module {
	if conf.Lifetime <= 0 {
		conf.Lifetime = defaultLifetime
	}
	if conf.Size <= 0 {
		conf.Size = defaultSize
	}

	return &Module{
		conf:  conf,
		faker: gofakeit.New(conf.Seed),
	}
}

func (m *Module) Name() string {
	return "particles"
}

func (m *Module) Init(w *models.World) {
	m.world = w

	state, ok := w.ModuleState(m.Name())
	if !ok {
		state = &State{}
		w.SetModuleState(m.Name(), state)
	}
	m.state = state.(*State)
}

func (m *Module) State() *State {
	return m.state
}

func (m *Module) HandleFrame(ctx context.Context, f models.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tree := m.world.Tree()
	dim := m.world.Dimensions()
	dt := f.Delta.Seconds()
	universe := m.world.Universe()

	var expired int
	for _, p := range m.state.all() {
		p.remaining -= f.Delta
		if p.remaining <= 0 {
			m.release(tree, p.entity, true)
			expired++
			continue
		}

		pose := p.entity.Pose()
		pose.Position = pose.Position.Add(pose.Velocity.Mul(dt))
		p.entity.SetPose(pose)
		models.Bounce(p.entity, universe, true)
		relink(tree, dim, p.entity)
	}

	var spawned int
	for spawned < m.conf.SpawnRate && m.state.Count() < m.conf.MaxParticles {
		m.spawn(tree, dim)
		spawned++
	}

	instrumentFrame(m.world.UUID, m.state.Count(), spawned, expired)
	return nil
}

func (m *Module) spawn(tree *bsp.Tree, dim int) {
	size := m.world.Size()

	// The bumper spans [-Size, Size] horizontally and [0, 2*Size] vertically.
	var pose models.Pose
	for i := 0; i < dim; i++ {
		lo, hi := m.conf.Size, size-m.conf.Size
		if i == 2 {
			lo, hi = 0, size-2*m.conf.Size
		}
		pose.Position[i] = m.faker.Float64Range(lo, hi)
		pose.Velocity[i] = m.faker.Float64Range(-m.conf.Speed, m.conf.Speed)
	}

	e := models.NewEntity(m.state.NewParticleID(), models.EntityKindParticle, models.Shape{
		Size:    m.conf.Size,
		SizeBig: models.DefaultSizeBig(m.conf.Size),
		Height:  m.conf.Size * 2,
	}, pose)

	relink(tree, dim, e)
	m.state.add(&particle{
		entity:    e,
		remaining: m.conf.Lifetime,
	})
}

func (m *Module) release(tree *bsp.Tree, e *models.Entity, expired bool) {
	leaf := e.Leaf()
	tree.RemoveLeaf(leaf)
	leaf.Destroy()
	m.state.remove(e.ID, expired)
}

func relink(tree *bsp.Tree, dim int, e *models.Entity) {
	leaf := e.Leaf()
	tree.RemoveLeaf(leaf)
	leaf.SetBounds(e.Bounds(dim))
	tree.InsertLeaf(leaf)
}

// Close unlinks and destroys every particle.
func (m *Module) Close() {
	m.world.WithTree(func(tree *bsp.Tree) {
		for _, p := range m.state.all() {
			m.release(tree, p.entity, false)
		}
	})
	resetMetrics(m.world.UUID)
}
