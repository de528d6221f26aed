// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package dma provides a best-fit memory allocator for DMA-visible buffers
// (transfer descriptor data pages) and a byte-oriented read/write interface
// over them, so that driver code above never carries native Go pointers
// across the hardware boundary.
package dma

import (
	"fmt"
	"sync"
	"unsafe"
)

type block struct {
	addr uint32
	size int
}

// Region is a best-fit allocator over a fixed memory range: each Alloc takes
// the smallest free block that fits the request and its alignment. One Region
// backs the device's transfer-buffer arena; tests construct their own
// Region over a plain Go byte slice standing in for physical memory.
type Region struct {
	mu sync.Mutex

	start uint32
	size  int
	store []byte

	free map[uint32]*block
	used map[uint32]*block
}

// NewRegion allocates `size` bytes of ordinary Go memory and returns a
// Region managing it. The returned addresses are only meaningful to Read,
// Write, Alloc and Free on this Region — they are not physical addresses.
func NewRegion(size int) *Region {
	store := make([]byte, size)
	start := uint32(uintptr(unsafe.Pointer(&store[0])))

	r := &Region{
		start: start,
		size:  size,
		store: store,
		free:  make(map[uint32]*block),
		used:  make(map[uint32]*block),
	}

	r.free[start] = &block{addr: start, size: size}

	return r
}

func align(addr uint32, a int) uint32 {
	if a <= 1 {
		return addr
	}

	m := uint32(a - 1)

	return (addr + m) &^ m
}

// alloc must be called with mu held.
func (r *Region) alloc(size int, a int) (*block, error) {
	var bestAddr uint32
	var best *block

	for addr, b := range r.free {
		aligned := align(addr, a)
		need := size + int(aligned-addr)

		if b.size < need {
			continue
		}

		if best == nil || b.size < best.size {
			best, bestAddr = b, addr
		}
	}

	if best == nil {
		return nil, fmt.Errorf("dma: out of space (requested %d bytes, align %d)", size, a)
	}

	delete(r.free, bestAddr)

	aligned := align(bestAddr, a)
	lead := int(aligned - bestAddr)

	if lead > 0 {
		r.free[bestAddr] = &block{addr: bestAddr, size: lead}
	}

	tailAddr := aligned + uint32(size)
	tailSize := best.size - lead - size

	if tailSize > 0 {
		r.free[tailAddr] = &block{addr: tailAddr, size: tailSize}
	}

	nb := &block{addr: aligned, size: size}
	r.used[aligned] = nb

	return nb, nil
}

// Alloc reserves `size` bytes, aligned to `align` bytes (0 or 1 for no
// alignment requirement beyond natural), and returns their address.
func (r *Region) Alloc(size int, align int) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.alloc(size, align)
	if err != nil {
		return 0, err
	}

	return b.addr, nil
}

// Free releases a block previously returned by Alloc.
func (r *Region) Free(addr uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.used[addr]
	if !ok {
		return
	}

	delete(r.used, addr)
	r.free[addr] = b

	r.defrag()
}

// defrag coalesces adjacent free blocks; must be called with mu held.
func (r *Region) defrag() {
	addrs := make([]uint32, 0, len(r.free))

	for a := range r.free {
		addrs = append(addrs, a)
	}

	merged := true

	for merged {
		merged = false

		for _, a := range addrs {
			b, ok := r.free[a]
			if !ok {
				continue
			}

			next, ok := r.free[a+uint32(b.size)]
			if !ok {
				continue
			}

			b.size += next.size
			delete(r.free, next.addr)
			merged = true
		}
	}
}

func (r *Region) slice(addr uint32, off int, n int) []byte {
	i := int(addr-r.start) + off
	return r.store[i : i+n]
}

// Read copies n bytes starting at addr+off into buf.
func (r *Region) Read(addr uint32, off int, buf []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copy(buf, r.slice(addr, off, len(buf)))
}

// Write copies buf into the region at addr+off.
func (r *Region) Write(addr uint32, off int, buf []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copy(r.slice(addr, off, len(buf)), buf)
}

// Stats reports allocator occupancy for debugging/metrics.
func (r *Region) Stats() (usedBytes, freeBytes int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.used {
		usedBytes += b.size
	}

	for _, b := range r.free {
		freeBytes += b.size
	}

	return
}
