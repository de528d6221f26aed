// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package reg

import (
	"testing"
	"time"
	"unsafe"
)

// testAddr returns the raw address of a plain Go word to drive the register
// primitives against, the same "ordinary memory standing in for a register"
// technique internal/dma uses for its arena.
func testAddr(v *uint32) uint32 {
	return uint32(uintptr(unsafe.Pointer(v)))
}

func TestSetClearGet(t *testing.T) {
	var word uint32
	addr := testAddr(&word)

	Set(addr, 4)

	if Get(addr, 4, 1) != 1 {
		t.Fatal("expected bit 4 set")
	}

	Clear(addr, 4)

	if Get(addr, 4, 1) != 0 {
		t.Fatal("expected bit 4 clear")
	}
}

func TestSetN(t *testing.T) {
	var word uint32
	addr := testAddr(&word)

	SetN(addr, 8, 0xff, 0x3c)

	if got := Get(addr, 8, 0xff); got != 0x3c {
		t.Fatalf("got %#x, want 0x3c", got)
	}
}

func TestWriteBackReturnsObservedValue(t *testing.T) {
	var word uint32
	addr := testAddr(&word)

	Write(addr, 0b0101)

	got := WriteBack(addr)

	if got != 0b0101 {
		t.Fatalf("expected WriteBack to return the value it read, got %#b", got)
	}

	if Read(addr) != 0b0101 {
		t.Fatal("expected the register to be unchanged by writing back its own read value")
	}
}

func TestWaitForTimesOut(t *testing.T) {
	var word uint32
	addr := testAddr(&word)

	err := WaitFor(10*time.Millisecond, addr, 0, 1, 1)

	if err == nil {
		t.Fatal("expected a timeout error when the bit never reaches the target value")
	}

	if _, ok := err.(*ErrControllerUnresponsive); !ok {
		t.Fatalf("expected *ErrControllerUnresponsive, got %T", err)
	}
}

func TestWaitForSucceeds(t *testing.T) {
	var word uint32
	addr := testAddr(&word)

	go func() {
		time.Sleep(2 * time.Millisecond)
		Set(addr, 2)
	}()

	if err := WaitFor(200*time.Millisecond, addr, 2, 1, 1); err != nil {
		t.Fatalf("expected the bit to be observed before the timeout: %v", err)
	}
}
