package collision

import (
	"context"
	"sort"

	"github.com/aukilabs/bsptree/bsp"
	"github.com/aukilabs/bsptree/models"
)

// Module finds the entities every character touches. Candidates come from a
// tree overlap query on the character box and are refined with the octagonal
// bumpers.
type Module struct {
	world    *models.World
	state    *State
	leaves   []*bsp.Leaf
	contacts []Contact
}

func (m *Module) Name() string {
	return "collision"
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

// State returns the contacts found by the module.
func (m *Module) State() *State {
	return m.state
}

func (m *Module) HandleFrame(ctx context.Context, f models.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tree := m.world.Tree()
	dim := m.world.Dimensions()

	var candidates, rejections int
	m.contacts = m.contacts[:0]

	for _, e := range m.world.Entities() {
		if e.Kind != models.EntityKindCharacter {
			continue
		}

		bumper := e.Bumper()
		m.leaves = tree.Collide(e.Bounds(dim), m.leaves[:0])
		candidates += len(m.leaves)

		for _, l := range m.leaves {
			other, ok := models.EntityFromLeaf(l)
			if !ok || other == e {
				continue
			}

			// Character pairs are reported once, from the lower id.
			if other.Kind == models.EntityKindCharacter && other.ID < e.ID {
				continue
			}

			if !bumper.Overlaps(other.Bumper()) {
				rejections++
				continue
			}

			m.contacts = append(m.contacts, Contact{
				A:    e.ID,
				B:    other.ID,
				Kind: other.Kind,
			})
		}
	}

	for i := range m.leaves {
		m.leaves[i] = nil
	}

	sort.Slice(m.contacts, func(i, j int) bool {
		a, b := m.contacts[i], m.contacts[j]
		if a.A != b.A {
			return a.A < b.A
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.B < b.B
	})

	m.state.SetContacts(f.Number, m.contacts)
	instrumentPass(m.world.UUID, len(m.contacts), candidates, rejections)
	return nil
}

func (m *Module) Close() {
	m.state.Reset()
	resetMetrics(m.world.UUID)
}
