package cache

// nilSlot marks the absence of a neighbour or an empty list.
const nilSlot = -1

// node is an arena slot. Links are slot indices into recency.nodes rather
// than pointers, so the list never owns cycles of heap objects.
type node[K comparable, V any] struct {
	key   K
	value V
	prev  int
	next  int
}

// recency is a doubly linked list threaded through a slice arena.
// head is the MRU slot and tail the LRU slot. Released slots are chained
// through their next field starting at free.
type recency[K comparable, V any] struct {
	nodes []node[K, V]
	head  int
	tail  int
	free  int
	len   int
}

func newRecency[K comparable, V any](capacity int) recency[K, V] {
	prealloc := capacity
	if prealloc > maxPrealloc {
		prealloc = maxPrealloc
	}
	return recency[K, V]{
		nodes: make([]node[K, V], 0, prealloc),
		head:  nilSlot,
		tail:  nilSlot,
		free:  nilSlot,
	}
}

// maxPrealloc bounds the arena allocated up front for very large capacities.
const maxPrealloc = 1 << 16

// alloc stores key and value in a free slot, growing the arena if needed.
// The slot is not linked.
func (r *recency[K, V]) alloc(key K, value V) int {
	n := node[K, V]{key: key, value: value, prev: nilSlot, next: nilSlot}
	if r.free != nilSlot {
		i := r.free
		r.free = r.nodes[i].next
		r.nodes[i] = n
		return i
	}
	r.nodes = append(r.nodes, n)
	return len(r.nodes) - 1
}

// release clears slot i and puts it on the free list. i must be unlinked.
func (r *recency[K, V]) release(i int) {
	r.nodes[i] = node[K, V]{prev: nilSlot, next: r.free}
	r.free = i
}

func (r *recency[K, V]) pushFront(i int) {
	n := &r.nodes[i]
	n.prev = nilSlot
	n.next = r.head
	if r.head != nilSlot {
		r.nodes[r.head].prev = i
	} else {
		r.tail = i
	}
	r.head = i
	r.len++
}

func (r *recency[K, V]) unlink(i int) {
	n := &r.nodes[i]
	if n.prev != nilSlot {
		r.nodes[n.prev].next = n.next
	} else {
		r.head = n.next
	}
	if n.next != nilSlot {
		r.nodes[n.next].prev = n.prev
	} else {
		r.tail = n.prev
	}
	n.prev, n.next = nilSlot, nilSlot
	r.len--
}

func (r *recency[K, V]) moveToFront(i int) {
	if r.head == i {
		return
	}
	r.unlink(i)
	r.pushFront(i)
}

// keys returns the linked keys from MRU to LRU.
func (r *recency[K, V]) keys() []K {
	out := make([]K, 0, r.len)
	for i := r.head; i != nilSlot; i = r.nodes[i].next {
		out = append(out, r.nodes[i].key)
	}
	return out
}
