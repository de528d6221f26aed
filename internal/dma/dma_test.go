// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package dma

import "testing"

func TestAllocFree(t *testing.T) {
	r := NewRegion(4096)

	a, err := r.Alloc(256, 64)

	if err != nil {
		t.Fatal(err)
	}

	if a%64 != 0 {
		t.Fatalf("expected 64-byte alignment, got %#x", a)
	}

	b, err := r.Alloc(256, 64)

	if err != nil {
		t.Fatal(err)
	}

	if a == b {
		t.Fatal("expected distinct allocations")
	}

	used, free := r.Stats()

	if used != 512 {
		t.Fatalf("expected 512 used bytes, got %d", used)
	}

	r.Free(a)
	r.Free(b)

	used, free = r.Stats()

	if used != 0 {
		t.Fatalf("expected 0 used bytes after freeing both, got %d", used)
	}

	if free != 4096 {
		t.Fatalf("expected defrag to recover the full region, got %d free", free)
	}
}

func TestAllocOutOfSpace(t *testing.T) {
	r := NewRegion(128)

	if _, err := r.Alloc(256, 1); err == nil {
		t.Fatal("expected an out-of-space error")
	}
}

func TestReadWrite(t *testing.T) {
	r := NewRegion(1024)

	addr, err := r.Alloc(16, 1)

	if err != nil {
		t.Fatal(err)
	}

	want := []byte("0123456789abcdef")[:16]
	r.Write(addr, 0, want)

	got := make([]byte, 16)
	r.Read(addr, 0, got)

	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}
