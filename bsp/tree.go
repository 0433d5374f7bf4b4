// Package bsp implements a dynamic bounding volume index for broad-phase
// spatial queries over moving objects.
//
// The space covered by a Tree is recursively halved along every axis, giving
// each branch up to 2^d children for d dimensions. A leaf is attached to the
// deepest branch whose box fully contains its own; leaves that straddle a
// split plane stay on the branch where the split happens. Leaves that cannot
// be placed at all, such as unbounded query volumes or boxes outside the
// universe, are kept on a side list that every query returns.
//
// Branches live in a slab sized when the tree is created. Running out of
// branches never fails an insertion: the leaf is attached to the deepest
// branch reached instead.
//
// A Tree is not safe for concurrent use.
package bsp

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeInvalidDimensions = "bsp-invalid-dimensions"
	ErrTypeInvalidDepth      = "bsp-invalid-depth"
	ErrTypeInvalidCapacity   = "bsp-invalid-capacity"
	ErrTypeInvalidBounds     = "bsp-invalid-bounds"
	ErrTypeInvalidEpsilon    = "bsp-invalid-epsilon"
)

// DefaultSplitEpsilon is the distance under which a leaf face is considered
// to lie on a split plane.
const DefaultSplitEpsilon = 1e-6

// Tree is a dynamic bounding volume index.
type Tree struct {
	dimensions int
	depth      int
	epsilon    float64
	bbox       AABB

	branches []branch
	used     []int
	free     []int
	root     int

	infinite  leafList
	leafCount int

	exhausted       uint64
	exhaustedLogged bool
	mismatched      uint64
}

// Option configures a Tree on creation.
type Option func(*Tree)

// WithBounds sets the universe box. Leaves outside of it go to the infinite
// list until the bounds are grown with SetBounds.
func WithBounds(box AABB) Option {
	return func(t *Tree) {
		t.bbox = box
	}
}

// WithSplitEpsilon sets the split plane tolerance.
func WithSplitEpsilon(epsilon float64) Option {
	return func(t *Tree) {
		t.epsilon = epsilon
	}
}

// NewTree creates a tree of the given dimensionality that subdivides at most
// maxDepth times and holds at most branchCapacity branches.
func NewTree(dimensions, maxDepth, branchCapacity int, opts ...Option) (*Tree, error) {
	if dimensions < 1 || dimensions > MaxDimensions {
		return nil, errors.New("invalid tree dimensions").
			WithType(ErrTypeInvalidDimensions).
			WithTag("dimensions", dimensions).
			WithTag("max", MaxDimensions)
	}

	if maxDepth < 0 {
		return nil, errors.New("invalid tree depth").
			WithType(ErrTypeInvalidDepth).
			WithTag("depth", maxDepth)
	}

	if branchCapacity < 1 {
		return nil, errors.New("invalid branch capacity").
			WithType(ErrTypeInvalidCapacity).
			WithTag("capacity", branchCapacity)
	}

	t := &Tree{
		dimensions: dimensions,
		depth:      maxDepth,
		epsilon:    DefaultSplitEpsilon,
		root:       noBranch,
	}
	for _, opt := range opts {
		opt(t)
	}

	if !t.bbox.IsEmpty() && (t.bbox.Dim() != dimensions || !t.bbox.IsFinite()) {
		return nil, errors.New("invalid tree bounds").
			WithType(ErrTypeInvalidBounds).
			WithTag("dimensions", dimensions).
			WithTag("bounds_dimensions", t.bbox.Dim())
	}

	if t.epsilon < 0 {
		return nil, errors.New("invalid split epsilon").
			WithType(ErrTypeInvalidEpsilon).
			WithTag("epsilon", t.epsilon)
	}

	t.initPool(branchCapacity)
	return t, nil
}

// Destroy releases the branch storage. Leaves still linked are detached. The
// tree must not be used afterwards.
func (t *Tree) Destroy() {
	t.releaseAll(nil)
	for l := t.infinite.head; l != nil; {
		next := l.next
		l.detach()
		l = next
	}
	t.infinite = leafList{}

	t.branches = nil
	t.used = nil
	t.free = nil
}

func (t *Tree) Dimensions() int {
	return t.dimensions
}

func (t *Tree) MaxDepth() int {
	return t.depth
}

func (t *Tree) Bounds() AABB {
	return t.bbox
}

// SetBounds replaces the universe box and re-threads every linked leaf under
// it, including the ones on the infinite list.
func (t *Tree) SetBounds(box AABB) bool {
	if t.branches == nil || box.Dim() != t.dimensions || !box.IsFinite() {
		return false
	}

	leaves := t.releaseAll(nil)
	for l := t.infinite.head; l != nil; {
		next := l.next
		l.detach()
		leaves = append(leaves, l)
		l = next
	}
	t.infinite = leafList{}

	t.bbox = box
	for _, l := range leaves {
		// Mismatched leaves were already counted when first inserted.
		if !l.bbox.IsEmpty() && l.bbox.Dim() != t.dimensions {
			t.linkInfinite(l)
			continue
		}
		t.InsertLeaf(l)
	}
	return true
}

// InsertLeaf links the leaf into the tree. It returns false when the leaf is
// already linked, which leaves it untouched, and when its box dimensionality
// differs from the tree's, in which case the leaf is kept on the infinite
// list.
func (t *Tree) InsertLeaf(l *Leaf) bool {
	if l == nil || l.inserted || t.branches == nil {
		return false
	}

	if !l.bbox.IsEmpty() && l.bbox.Dim() != t.dimensions {
		t.mismatched++
		t.linkInfinite(l)
		return false
	}

	if l.bbox.IsEmpty() || !t.bbox.Contains(l.bbox) {
		t.linkInfinite(l)
		return true
	}

	idx, ok := t.ensureRoot()
	if !ok {
		t.linkInfinite(l)
		return true
	}

	for t.branches[idx].depth+1 <= t.depth {
		child, ok := t.childFor(idx, l.bbox)
		if !ok {
			break
		}

		next, ok := t.ensureBranch(idx, child)
		if !ok {
			break
		}
		idx = next
	}

	t.link(idx, l)
	return true
}

// childFor returns the child slot of the branch that fully contains box. A
// box within epsilon of a split plane straddles it and has no child.
func (t *Tree) childFor(idx int, box AABB) (int, bool) {
	b := &t.branches[idx]

	child := 0
	for i := 0; i < t.dimensions; i++ {
		mid := b.bbox.mids[i]

		switch {
		case box.maxs[i] < mid-t.epsilon:
		case box.mins[i] > mid+t.epsilon:
			child |= 1 << i
		default:
			return 0, false
		}
	}
	return child, true
}

func (t *Tree) link(idx int, l *Leaf) {
	b := &t.branches[idx]
	b.leaves.push(l)
	l.inserted = true
	l.tree = t
	l.branch = idx
	l.gen = b.gen
	t.leafCount++
}

func (t *Tree) linkInfinite(l *Leaf) {
	t.infinite.push(l)
	l.inserted = true
	l.tree = t
	l.branch = infiniteSlot
	l.gen = 0
}

// RemoveLeaf unlinks the leaf from the tree. It returns false when the leaf is
// not linked into this tree.
func (t *Tree) RemoveLeaf(l *Leaf) bool {
	if l == nil || !l.inserted || l.tree != t {
		return false
	}

	if l.branch == infiniteSlot {
		t.infinite.unlink(l)
		l.detach()
		return true
	}

	if l.branch < 0 || l.branch >= len(t.branches) {
		l.detach()
		return false
	}

	b := &t.branches[l.branch]
	if !b.used || b.gen != l.gen {
		l.detach()
		return false
	}

	b.leaves.unlink(l)
	t.leafCount--
	l.detach()
	return true
}

// QueryOverlap returns the leaves whose box overlaps query, preceded by every
// leaf of the infinite list.
func (t *Tree) QueryOverlap(query AABB) []*Leaf {
	return t.Collide(query, nil)
}

// Collide appends to dst the infinite leaves and the leaves overlapping query.
func (t *Tree) Collide(query AABB, dst []*Leaf) []*Leaf {
	dst = t.infinite.appendTo(dst)
	if t.root == noBranch || query.IsEmpty() {
		return dst
	}
	return t.collide(t.root, query, dst)
}

func (t *Tree) collide(idx int, query AABB, dst []*Leaf) []*Leaf {
	b := &t.branches[idx]
	if !b.bbox.Overlaps(query) {
		return dst
	}

	for l := b.leaves.head; l != nil; l = l.next {
		if l.bbox.Overlaps(query) {
			dst = append(dst, l)
		}
	}

	if b.mask == 0 {
		return dst
	}
	for _, c := range b.children {
		if c != noBranch {
			dst = t.collide(c, query, dst)
		}
	}
	return dst
}

// CollideSegment appends to dst the infinite leaves and the leaves whose box
// is crossed by the segment from -> to.
func (t *Tree) CollideSegment(from, to []float64, dst []*Leaf) []*Leaf {
	dst = t.infinite.appendTo(dst)
	if t.root == noBranch || len(from) != t.dimensions || len(to) != t.dimensions {
		return dst
	}

	t.visit(t.root, func(box AABB) bool {
		return box.IntersectsSegment(from, to)
	}, func(l *Leaf) bool {
		dst = append(dst, l)
		return true
	})
	return dst
}

// Search calls fn for every leaf overlapping query, infinite leaves included,
// until fn returns false.
func (t *Tree) Search(query AABB, fn func(*Leaf) bool) {
	for l := t.infinite.head; l != nil; {
		next := l.next
		if !fn(l) {
			return
		}
		l = next
	}

	if t.root == noBranch || query.IsEmpty() {
		return
	}

	t.visit(t.root, query.Overlaps, fn)
}

// visit walks the branches whose box passes test and calls fn for each leaf
// whose box passes test too. It stops as soon as fn returns false.
func (t *Tree) visit(idx int, test func(AABB) bool, fn func(*Leaf) bool) bool {
	b := &t.branches[idx]
	if !test(b.bbox) {
		return true
	}

	for l := b.leaves.head; l != nil; {
		next := l.next
		if test(l.bbox) && !fn(l) {
			return false
		}
		l = next
	}

	if b.mask == 0 {
		return true
	}
	for _, c := range b.children {
		if c != noBranch && !t.visit(c, test, fn) {
			return false
		}
	}
	return true
}

// Infinite appends the leaves of the infinite list to dst.
func (t *Tree) Infinite(dst []*Leaf) []*Leaf {
	return t.infinite.appendTo(dst)
}

// Prune returns every empty branch below the root to the pool, bottom-up, and
// reports how many were freed. The root is kept.
func (t *Tree) Prune() int {
	if t.root == noBranch {
		return 0
	}
	return t.prune(t.root)
}

func (t *Tree) prune(idx int) int {
	b := &t.branches[idx]
	if b.mask == 0 {
		return 0
	}

	freed := 0
	for _, c := range b.children {
		if c == noBranch {
			continue
		}

		freed += t.prune(c)
		if t.freeBranch(c) {
			freed++
		}
	}
	return freed
}

// Walk calls fn for every branch reachable from the root, parents before
// children, until fn returns false.
func (t *Tree) Walk(fn func(BranchInfo) bool) {
	if t.root == noBranch {
		return
	}
	t.walk(t.root, fn)
}

func (t *Tree) walk(idx int, fn func(BranchInfo) bool) bool {
	b := &t.branches[idx]

	info := BranchInfo{
		ID:       idx,
		Parent:   b.parent,
		Depth:    b.depth,
		Bounds:   b.bbox,
		Leaves:   b.leaves.count,
		Children: b.childCount(),
	}
	if !fn(info) {
		return false
	}

	for _, c := range b.children {
		if c != noBranch && !t.walk(c, fn) {
			return false
		}
	}
	return true
}
