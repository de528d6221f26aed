// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import "testing"

func TestPoolAllocateExhausted(t *testing.T) {
	p := newPool[TD](4)

	for i := 0; i < 4; i++ {
		if _, _, err := p.allocate(); err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}

	if _, _, err := p.allocate(); err != ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestPoolRoundTrip(t *testing.T) {
	const capacity = 16

	p := newPool[TD](capacity)

	var indices []int32

	for i := 0; i < capacity; i++ {
		idx, _, err := p.allocate()

		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}

		indices = append(indices, idx)
	}

	if n := p.available(); n != 0 {
		t.Fatalf("expected 0 available, got %d", n)
	}

	for _, idx := range indices {
		p.free(idx)
	}

	if n := p.available(); n != capacity {
		t.Fatalf("expected %d available after freeing all, got %d", capacity, n)
	}

	for i := 0; i < capacity; i++ {
		if _, _, err := p.allocate(); err != nil {
			t.Fatalf("re-allocate %d: %v", i, err)
		}
	}
}

func TestPoolAtSurvivesReuse(t *testing.T) {
	p := newPool[TD](2)

	idx, td, err := p.allocate()

	if err != nil {
		t.Fatal(err)
	}

	td.Token = 0xdeadbeef

	if got := p.at(idx).Token; got != 0xdeadbeef {
		t.Fatalf("at() returned stale data: %#x", got)
	}
}
