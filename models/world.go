package models

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/aukilabs/bsptree/bsp"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

const (
	ErrTypeInvalidWorldDimensions = "world-invalid-dimensions"
	ErrTypeInvalidWorldSize       = "world-invalid-size"
	ErrTypeWorldTree              = "world-tree"

	defaultFrameDuration = time.Millisecond * 15
)

// WorldConfig describes the universe of a world and the tree indexing it.
type WorldConfig struct {
	// The number of indexed axes, 2 or 3. With 2, entities are indexed by
	// their x and y extents only.
	Dimensions int

	// The maximum subdivision depth of the tree.
	MaxDepth int

	// The number of branches preallocated for the tree.
	BranchCapacity int

	// The universe is the box [0, Size] on every indexed axis.
	Size float64

	// The split plane tolerance. Zero uses bsp.DefaultSplitEpsilon.
	SplitEpsilon float64

	// The duration between two frames dispatched by StartDispatchFrames.
	FrameDuration time.Duration

	// Empty branches are pruned every PruneInterval frames. Zero disables
	// pruning.
	PruneInterval uint64

	// Whether the universe grows to fit entities placed outside of it.
	GrowBounds bool
}

// Frame is one pass of the world update loop.
type Frame struct {
	Number uint64
	Delta  time.Duration
}

type frameHandler struct {
	id     uint32
	handle func(Frame)
}

// World owns the entities of a simulation and the tree indexing them.
//
// Tree operations are confined to the frame pass: frame handlers may use the
// tree returned by Tree directly, any other caller goes through WithTree.
type World struct {
	ID   uint32
	UUID string

	dimensions    int
	size          float64
	pruneInterval uint64
	growBounds    bool

	entityIDs   SequentialIDGenerator
	entityMutex sync.RWMutex
	entities    map[uint32]*Entity

	moduleStates map[string]any
	moduleMutex  sync.RWMutex

	treeMutex   sync.Mutex
	tree        *bsp.Tree
	frame       uint64
	lastStats   bsp.Stats
	infiniteBuf []*bsp.Leaf

	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   []frameHandler
	frameMutex      sync.RWMutex

	closeOnce sync.Once
}

func NewWorld(id uint32, conf WorldConfig) (*World, error) {
	if conf.Dimensions != 2 && conf.Dimensions != 3 {
		return nil, errors.New("world dimensions must be 2 or 3").
			WithType(ErrTypeInvalidWorldDimensions).
			WithTag("dimensions", conf.Dimensions)
	}

	if conf.Size <= 0 {
		return nil, errors.New("world size must be positive").
			WithType(ErrTypeInvalidWorldSize).
			WithTag("size", conf.Size)
	}

	epsilon := conf.SplitEpsilon
	if epsilon == 0 {
		epsilon = bsp.DefaultSplitEpsilon
	}

	tree, err := bsp.NewTree(conf.Dimensions, conf.MaxDepth, conf.BranchCapacity,
		bsp.WithBounds(UniverseBox(conf.Dimensions, conf.Size)),
		bsp.WithSplitEpsilon(epsilon),
	)
	if err != nil {
		return nil, errors.New("creating world tree failed").
			WithType(ErrTypeWorldTree).
			Wrap(err)
	}

	frameDuration := conf.FrameDuration
	if frameDuration <= 0 {
		frameDuration = defaultFrameDuration
	}

	return &World{
		ID:             id,
		UUID:           uuid.New().String(),
		dimensions:     conf.Dimensions,
		size:           conf.Size,
		pruneInterval:  conf.PruneInterval,
		growBounds:     conf.GrowBounds,
		entities:       make(map[uint32]*Entity),
		moduleStates:   make(map[string]any),
		tree:           tree,
		closeFrameChan: make(chan struct{}, 1),
		frameTicker:    time.NewTicker(frameDuration),
	}, nil
}

// UniverseBox returns the box [0, size] over dim axes.
func UniverseBox(dim int, size float64) bsp.AABB {
	mins := make([]float64, dim)
	maxs := make([]float64, dim)
	for i := range maxs {
		maxs[i] = size
	}
	return bsp.NewAABB(mins, maxs)
}

func (w *World) Dimensions() int {
	return w.dimensions
}

func (w *World) Size() float64 {
	return w.size
}

// Close stops the frame dispatch, releases the tree and deletes the world
// metric series.
func (w *World) Close() {
	w.closeOnce.Do(func() {
		w.frameTicker.Stop()
		w.closeFrameChan <- struct{}{}

		w.treeMutex.Lock()
		defer w.treeMutex.Unlock()
		w.tree.Destroy()

		resetMetrics(w.UUID)
	})
}

func (w *World) NewEntityID() uint32 {
	return w.entityIDs.New()
}

// AddEntity registers the entity and links its leaf into the tree. It must not
// be called from a frame handler.
func (w *World) AddEntity(e *Entity) {
	w.entityMutex.Lock()
	w.entities[e.ID] = e
	count := len(w.entities)
	w.entityMutex.Unlock()

	w.treeMutex.Lock()
	w.reinsert(e)
	w.treeMutex.Unlock()

	instrumentEntityCount(w.UUID, count)
}

// RemoveEntity unlinks the entity leaf and forgets the entity. It must not be
// called from a frame handler.
func (w *World) RemoveEntity(e *Entity) {
	w.treeMutex.Lock()
	w.tree.RemoveLeaf(e.Leaf())
	w.treeMutex.Unlock()

	w.entityMutex.Lock()
	delete(w.entities, e.ID)
	count := len(w.entities)
	w.entityMutex.Unlock()

	w.entityIDs.Reuse(e.ID)
	instrumentEntityCount(w.UUID, count)
}

func (w *World) EntityByID(id uint32) (*Entity, bool) {
	w.entityMutex.RLock()
	defer w.entityMutex.RUnlock()

	e, ok := w.entities[id]
	return e, ok
}

func (w *World) Entities() []*Entity {
	w.entityMutex.RLock()
	defer w.entityMutex.RUnlock()

	entities := make([]*Entity, 0, len(w.entities))
	for _, e := range w.entities {
		entities = append(entities, e)
	}
	return entities
}

func (w *World) EntityCount() int {
	w.entityMutex.RLock()
	defer w.entityMutex.RUnlock()

	return len(w.entities)
}

func (w *World) SetModuleState(moduleName string, state any) {
	w.moduleMutex.Lock()
	defer w.moduleMutex.Unlock()

	w.moduleStates[moduleName] = state
}

func (w *World) ModuleState(moduleName string) (any, bool) {
	w.moduleMutex.RLock()
	defer w.moduleMutex.RUnlock()

	state, ok := w.moduleStates[moduleName]
	return state, ok
}

// Tree returns the world tree. It is only safe to use from a frame handler.
func (w *World) Tree() *bsp.Tree {
	return w.tree
}

// WithTree runs fn with exclusive access to the tree. It must not be called
// from a frame handler.
func (w *World) WithTree(fn func(*bsp.Tree)) {
	w.treeMutex.Lock()
	defer w.treeMutex.Unlock()

	fn(w.tree)
}

// HandleFrame registers a handler called on every frame, after entities have
// moved. Handlers run in registration order.
func (w *World) HandleFrame(h func(Frame)) (cancel func()) {
	w.frameMutex.Lock()
	defer w.frameMutex.Unlock()

	id := w.frameHandlerIDs.New()
	w.frameHandlers = append(w.frameHandlers, frameHandler{id: id, handle: h})

	return func() {
		w.frameMutex.Lock()
		defer w.frameMutex.Unlock()

		for i, fh := range w.frameHandlers {
			if fh.id == id {
				w.frameHandlers = append(w.frameHandlers[:i], w.frameHandlers[i+1:]...)
				w.frameHandlerIDs.Reuse(id)
				return
			}
		}
	}
}

func (w *World) StartDispatchFrames() {
	w.startFrameOnce.Do(func() {
		last := time.Now()

		for {
			select {
			case <-w.closeFrameChan:
				return

			case now := <-w.frameTicker.C:
				w.Step(now.Sub(last))
				last = now
			}
		}
	})
}

// Step runs one frame: entities move, the universe grows if needed, frame
// handlers run and empty branches are pruned on the configured interval.
func (w *World) Step(delta time.Duration) Frame {
	start := time.Now()
	defer instrumentFrameDuration(w.UUID, start)

	w.treeMutex.Lock()
	defer w.treeMutex.Unlock()

	w.frame++
	frame := Frame{
		Number: w.frame,
		Delta:  delta,
	}

	w.moveEntities(delta)

	if w.growBounds {
		w.growUniverse()
	}

	w.frameMutex.RLock()
	handlers := make([]func(Frame), len(w.frameHandlers))
	for i, fh := range w.frameHandlers {
		handlers[i] = fh.handle
	}
	w.frameMutex.RUnlock()

	for _, h := range handlers {
		h(frame)
	}

	if w.pruneInterval != 0 && frame.Number%w.pruneInterval == 0 {
		if freed := w.tree.Prune(); freed != 0 {
			instrumentBranchesPruned(w.UUID, freed)
			logs.WithTag("world", w.UUID).
				WithTag("frame", frame.Number).
				WithTag("freed", freed).
				Debug("tree branches pruned")
		}
	}

	w.publishStats()
	return frame
}

func (w *World) moveEntities(delta time.Duration) {
	dt := delta.Seconds()
	if dt <= 0 {
		return
	}

	w.entityMutex.RLock()
	defer w.entityMutex.RUnlock()

	universe := w.Universe()
	for _, e := range w.entities {
		pose := e.Pose()
		if pose.Velocity == (mgl64.Vec3{}) {
			continue
		}

		inside := universe.Contains(e.Bounds(w.dimensions))
		pose.Position = pose.Position.Add(pose.Velocity.Mul(dt))
		e.SetPose(pose)
		Bounce(e, universe, inside)
		w.reinsert(e)
	}
}

// Universe returns the box [0, size] entities bounce in. The tree bounds may
// be larger when the world grew to fit entities placed outside of it.
func (w *World) Universe() bsp.AABB {
	return UniverseBox(w.dimensions, w.size)
}

// Bounce turns an entity around when its bumper is past a universe wall and
// heading away. With clamp, the entity is also moved back so that its bumper
// fits in the universe again.
func Bounce(e *Entity, universe bsp.AABB, clamp bool) {
	pose := e.Pose()
	box := e.Bounds(universe.Dim())

	for i := 0; i < box.Dim() && i < 3; i++ {
		v := pose.Velocity[i]

		switch {
		case box.Min(i) < universe.Min(i):
			if v < 0 {
				pose.Velocity[i] = -v
			}
			if clamp {
				pose.Position[i] += universe.Min(i) - box.Min(i)
			}

		case box.Max(i) > universe.Max(i):
			if v > 0 {
				pose.Velocity[i] = -v
			}
			if clamp {
				pose.Position[i] -= box.Max(i) - universe.Max(i)
			}
		}
	}

	// Rounding may leave the bumper an ulp past a wall.
	for n := 0; clamp && n < 8; n++ {
		box = e.boundsAt(pose.Position, universe.Dim())
		if universe.Contains(box) {
			break
		}

		for i := 0; i < box.Dim() && i < 3; i++ {
			if box.Min(i) < universe.Min(i) {
				pose.Position[i] = math.Nextafter(pose.Position[i], math.Inf(1))
			} else if box.Max(i) > universe.Max(i) {
				pose.Position[i] = math.Nextafter(pose.Position[i], math.Inf(-1))
			}
		}
	}

	e.SetPose(pose)
}

// reinsert relinks the entity leaf under its current bounds.
func (w *World) reinsert(e *Entity) {
	leaf := e.Leaf()

	w.tree.RemoveLeaf(leaf)
	leaf.SetBounds(e.Bounds(w.dimensions))
	w.tree.InsertLeaf(leaf)
}

func (w *World) growUniverse() {
	w.infiniteBuf = w.tree.Infinite(w.infiniteBuf[:0])
	if len(w.infiniteBuf) == 0 {
		return
	}

	bounds := w.tree.Bounds()
	grown := bounds
	for _, l := range w.infiniteBuf {
		box := l.Bounds()
		if box.IsFinite() && box.Dim() == w.dimensions {
			grown = grown.Join(box)
		}
	}

	// Release the references held by the buffer.
	for i := range w.infiniteBuf {
		w.infiniteBuf[i] = nil
	}

	if grown == bounds {
		return
	}

	w.tree.SetBounds(grown)
	instrumentBoundsGrown(w.UUID)
	logs.WithTag("world", w.UUID).
		WithTag("bounds", grown).
		Info("world bounds grown")
}

func (w *World) publishStats() {
	s := w.tree.Stats()
	instrumentTreeStats(w.UUID, w.lastStats, s)
	w.lastStats = s
}

// StartSummaryWorker logs a summary of the tree occupancy every interval until
// the context is canceled.
func (w *World) StartSummaryWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.logSummary(interval)
		}
	}
}

func (w *World) logSummary(interval time.Duration) {
	var s bsp.Stats
	var frame uint64
	w.WithTree(func(t *bsp.Tree) {
		s = t.Stats()
		frame = w.frame
	})

	logs.WithTag("world", w.UUID).
		WithTag("frame", frame).
		WithTag("entities", w.EntityCount()).
		WithTag("branches_used", s.BranchesUsed).
		WithTag("branches_free", s.BranchesFree).
		WithTag("depth_reached", s.DepthReached).
		WithTag("leaves", s.Leaves).
		WithTag("infinite_leaves", s.InfiniteLeaves).
		WithTag("pool_exhausted", s.PoolExhausted).
		WithTag("time_interval", interval).
		Info("tree summary")
}
