// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

// pool is a fixed-size array plus a freelist head, exactly as component
// 4.B specifies: allocate returns the head element or ErrPoolExhausted if
// the freelist is terminated, advancing the head to the allocated
// element's stored next; free pushes the element back onto the head.
// Allocation touches only the freelist bookkeeping, never the payload — callers
// that need a clean object (TD descriptor fields) zero it explicitly.
//
// Neither allocate nor free is itself interrupt-safe; a caller that may
// free from a simulated ISR context (host-mode reaping) wraps the pool
// with criticalSection, as usb/host.go does.
type pool[T any] struct {
	items []T
	next  []int32
	head  int32
}

func newPool[T any](capacity int) *pool[T] {
	p := &pool[T]{
		items: make([]T, capacity),
		next:  make([]int32, capacity),
		head:  -1,
	}

	for i := capacity - 1; i >= 0; i-- {
		p.next[i] = p.head
		p.head = int32(i)
	}

	return p
}

func (p *pool[T]) capacity() int {
	return len(p.items)
}

// allocate pops the freelist head. The returned index is only valid until
// the corresponding free() call.
func (p *pool[T]) allocate() (int32, *T, error) {
	if p.head < 0 {
		return -1, nil, ErrPoolExhausted
	}

	i := p.head
	p.head = p.next[i]

	return i, &p.items[i], nil
}

// free pushes index i back onto the freelist head. The caller must not
// still hold a hardware-visible reference to it (§3 invariant: never
// simultaneously on the freelist and referenced by hardware).
func (p *pool[T]) free(i int32) {
	p.next[i] = p.head
	p.head = i
}

// at returns a pointer to the pooled object at index i, regardless of
// whether it is currently allocated. Used by ring-walking code that holds
// indices rather than pointers so it survives pool growth-free reuse.
func (p *pool[T]) at(i int32) *T {
	return &p.items[i]
}

// available counts free slots, for diagnostics and the pool round-trip
// test property (allocate N from a pool of capacity N, free all N in any
// order, N further allocations must succeed).
func (p *pool[T]) available() int {
	n := 0

	for i := p.head; i >= 0; i = p.next[i] {
		n++
	}

	return n
}
