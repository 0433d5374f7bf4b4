package bsp

import (
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/hideo55/go-popcount"
)

const (
	noBranch     = -1
	infiniteSlot = -2
)

// branch is an internal node stored in the tree's slab. Every reference to a
// branch is an index into that slab.
type branch struct {
	used   bool
	gen    uint32
	usedAt int

	parent   int
	slot     int
	children []int
	mask     uint64

	leaves leafList
	bbox   AABB
	depth  int
}

func (b *branch) childCount() int {
	return int(popcount.Count(b.mask))
}

func (b *branch) empty() bool {
	return b.mask == 0 && b.leaves.count == 0
}

func (b *branch) clear() {
	b.parent = noBranch
	b.slot = -1
	for i := range b.children {
		b.children[i] = noBranch
	}
	b.mask = 0
	b.leaves = leafList{}
	b.bbox.Reset()
	b.depth = -1
}

// BranchInfo is a read-only view of a branch used for traversal.
type BranchInfo struct {
	ID       int  `json:"id"`
	Parent   int  `json:"parent"`
	Depth    int  `json:"depth"`
	Bounds   AABB `json:"bounds"`
	Leaves   int  `json:"leaves"`
	Children int  `json:"children"`
}

func (t *Tree) initPool(capacity int) {
	children := 1 << t.dimensions

	t.branches = make([]branch, capacity)
	t.used = make([]int, 0, capacity)
	t.free = make([]int, 0, capacity)

	for i := range t.branches {
		t.branches[i].children = make([]int, children)
		t.branches[i].clear()
	}
	t.resetFreeList()
}

// resetFreeList orders the free list so that low slots are handed out first.
func (t *Tree) resetFreeList() {
	t.free = t.free[:0]
	for i := len(t.branches) - 1; i >= 0; i-- {
		t.free = append(t.free, i)
	}
}

func (t *Tree) allocateBranch() (int, bool) {
	if len(t.free) == 0 {
		t.exhausted++
		if !t.exhaustedLogged {
			t.exhaustedLogged = true
			logs.WithTag("capacity", len(t.branches)).
				WithTag("dimensions", t.dimensions).
				Debug("branch pool exhausted")
		}
		return noBranch, false
	}

	idx := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]

	b := &t.branches[idx]
	b.clear()
	b.used = true
	b.usedAt = len(t.used)
	t.used = append(t.used, idx)
	return idx, true
}

// freeBranch returns an empty branch to the pool and unlinks it from its
// parent. Branches that still hold leaves or children are left untouched.
func (t *Tree) freeBranch(idx int) bool {
	if idx < 0 || idx >= len(t.branches) {
		return false
	}

	b := &t.branches[idx]
	if !b.used || !b.empty() {
		return false
	}

	if b.parent != noBranch {
		p := &t.branches[b.parent]
		p.children[b.slot] = noBranch
		p.mask &^= 1 << uint(b.slot)
	}
	if t.root == idx {
		t.root = noBranch
	}

	last := t.used[len(t.used)-1]
	t.used[b.usedAt] = last
	t.branches[last].usedAt = b.usedAt
	t.used = t.used[:len(t.used)-1]

	b.clear()
	b.used = false
	b.gen++
	t.free = append(t.free, idx)
	t.exhaustedLogged = false
	return true
}

func (t *Tree) ensureRoot() (int, bool) {
	if t.root != noBranch {
		return t.root, true
	}

	idx, ok := t.allocateBranch()
	if !ok {
		return noBranch, false
	}

	b := &t.branches[idx]
	b.bbox = t.bbox
	b.depth = 0
	t.root = idx
	return idx, true
}

func (t *Tree) ensureBranch(parent, child int) (int, bool) {
	if idx := t.branches[parent].children[child]; idx != noBranch {
		return idx, true
	}

	idx, ok := t.allocateBranch()
	if !ok {
		return noBranch, false
	}

	p := &t.branches[parent]
	b := &t.branches[idx]
	b.bbox = p.bbox.Child(child)
	b.depth = p.depth + 1
	b.parent = parent
	b.slot = child
	p.children[child] = idx
	p.mask |= 1 << uint(child)
	return idx, true
}

// releaseAll returns every branch to the pool and detaches the leaves they
// hold. Detached leaves are appended to dst.
func (t *Tree) releaseAll(dst []*Leaf) []*Leaf {
	for _, idx := range t.used {
		b := &t.branches[idx]
		for l := b.leaves.head; l != nil; {
			next := l.next
			l.detach()
			dst = append(dst, l)
			l = next
		}
		b.clear()
		b.used = false
		b.gen++
	}
	t.used = t.used[:0]
	t.root = noBranch
	t.leafCount = 0
	t.exhaustedLogged = false
	t.resetFreeList()
	return dst
}
