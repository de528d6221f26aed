// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package reg provides primitives for retrieving and modifying memory-mapped
// hardware registers. It is the register façade every controller driver in
// this module builds on: every read of a composite status register followed
// by a write-back to clear is a single read and a write of that same read
// value, so that interrupt bits arriving between the two are preserved.
package reg

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/time/rate"
)

// ErrControllerUnresponsive is returned by the bounded busy-wait helpers
// when a hardware acknowledgement bit fails to reach the requested value
// within the spin budget. The source this package is modeled on loops
// forever on these acks (see DESIGN.md, "4.A Register façade"); this is the
// bounded replacement the redesign calls for.
type ErrControllerUnresponsive struct {
	Addr uint32
	Pos  int
}

func (e *ErrControllerUnresponsive) Error() string {
	return fmt.Sprintf("reg: controller unresponsive waiting on %#08x bit %d", e.Addr, e.Pos)
}

func ptr(addr uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(uintptr(addr)))
}

// Read returns the raw register value.
func Read(addr uint32) uint32 {
	return atomic.LoadUint32(ptr(addr))
}

// Write stores a raw register value.
func Write(addr uint32, val uint32) {
	atomic.StoreUint32(ptr(addr), val)
}

// Get returns a bitfield at pos, masked, from a register.
func Get(addr uint32, pos int, mask int) uint32 {
	r := Read(addr)
	return (r >> uint(pos)) & uint32(mask)
}

// Set sets an individual register bit.
func Set(addr uint32, pos int) {
	r := ptr(addr)

	for {
		old := atomic.LoadUint32(r)
		new := old | (1 << uint(pos))

		if atomic.CompareAndSwapUint32(r, old, new) {
			return
		}
	}
}

// Clear clears an individual register bit.
func Clear(addr uint32, pos int) {
	r := ptr(addr)

	for {
		old := atomic.LoadUint32(r)
		new := old &^ (1 << uint(pos))

		if atomic.CompareAndSwapUint32(r, old, new) {
			return
		}
	}
}

// SetN sets a bitfield at pos, masked, to val.
func SetN(addr uint32, pos int, mask int, val uint32) {
	r := ptr(addr)

	for {
		old := atomic.LoadUint32(r)
		new := (old &^ (uint32(mask) << uint(pos))) | ((val & uint32(mask)) << uint(pos))

		if atomic.CompareAndSwapUint32(r, old, new) {
			return
		}
	}
}

// Or ORs a raw value into a register.
func Or(addr uint32, val uint32) {
	r := ptr(addr)

	for {
		old := atomic.LoadUint32(r)
		new := old | val

		if atomic.CompareAndSwapUint32(r, old, new) {
			return
		}
	}
}

// WriteBack reads a composite status/interrupt register and writes the same
// value back, clearing only the bits that were set at read time. Any bit
// that the hardware sets between the read and the write survives, which is
// the guarantee §4.A of the spec requires from every status-clear path
// (ENDPTSETUPSTAT, ENDPTCOMPLETE, USBSTS).
func WriteBack(addr uint32) uint32 {
	v := Read(addr)
	Write(addr, v)
	return v
}

// Wait spins until a register bitfield matches val, with no bound. Only used
// where the caller has already established, by construction, that the
// condition is guaranteed to eventually hold (e.g. waiting for a CAS-free
// single-writer bit this goroutine itself is about to clear).
func Wait(addr uint32, pos int, mask int, val uint32) {
	for Get(addr, pos, mask) != val {
		runtime.Gosched()
	}
}

// spinLimiter throttles the busy-wait poll rate so a stuck hardware bit
// spins at a bounded rate instead of saturating a core.
var spinLimiter = rate.NewLimiter(rate.Every(20*time.Microsecond), 4)

// WaitFor waits, bounded by timeout, for a register bitfield to reach val.
// It returns ErrControllerUnresponsive instead of looping forever when the
// hardware never acknowledges, resolving the "no software timeout is
// currently enforced" open question against every busy-wait in this driver.
func WaitFor(timeout time.Duration, addr uint32, pos int, mask int, val uint32) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for Get(addr, pos, mask) != val {
		if err := spinLimiter.Wait(ctx); err != nil {
			return &ErrControllerUnresponsive{Addr: addr, Pos: pos}
		}

		runtime.Gosched()
	}

	return nil
}
