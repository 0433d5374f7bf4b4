package bsp

// Leaf associates one external object with a bounding box inside a Tree.
// Leaves are created and owned by the caller. A tree only threads them into
// its lists and never frees them.
type Leaf struct {
	// The caller defined kind of the referenced object.
	DataType int

	// The referenced object. The tree never reads it.
	Data any

	// The caller's identity for the object, such as an entity id.
	Index int

	bbox AABB

	inserted bool
	tree     *Tree
	branch   int
	gen      uint32
	prev     *Leaf
	next     *Leaf
}

// NewLeaf returns a detached leaf with an empty bounding box.
func NewLeaf(dataType int, data any, index int) *Leaf {
	return &Leaf{
		DataType: dataType,
		Data:     data,
		Index:    index,
		branch:   noBranch,
	}
}

func (l *Leaf) Bounds() AABB {
	return l.bbox
}

// SetBounds replaces the leaf bounding box. A linked leaf must be removed from
// its tree first, SetBounds returns false otherwise.
func (l *Leaf) SetBounds(box AABB) bool {
	if l.inserted {
		return false
	}
	l.bbox = box
	return true
}

// Inserted reports whether the leaf is linked into a tree.
func (l *Leaf) Inserted() bool {
	return l.inserted
}

// Destroy drops the leaf's object reference and bounds. It refuses to destroy
// a leaf that is still linked into a tree.
func (l *Leaf) Destroy() bool {
	if l.inserted {
		return false
	}

	l.Data = nil
	l.bbox.Reset()
	l.detach()
	return true
}

func (l *Leaf) detach() {
	l.inserted = false
	l.tree = nil
	l.branch = noBranch
	l.gen = 0
	l.prev = nil
	l.next = nil
}

// leafList is an intrusive doubly linked list threaded through leaves.
type leafList struct {
	head  *Leaf
	count int
}

func (ll *leafList) push(l *Leaf) {
	l.prev = nil
	l.next = ll.head
	if ll.head != nil {
		ll.head.prev = l
	}
	ll.head = l
	ll.count++
}

func (ll *leafList) unlink(l *Leaf) {
	if l.prev != nil {
		l.prev.next = l.next
	} else {
		ll.head = l.next
	}
	if l.next != nil {
		l.next.prev = l.prev
	}
	l.prev = nil
	l.next = nil
	ll.count--
}

func (ll *leafList) appendTo(dst []*Leaf) []*Leaf {
	for l := ll.head; l != nil; l = l.next {
		dst = append(dst, l)
	}
	return dst
}
