// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package bits

import "testing"

func TestSetClearGet(t *testing.T) {
	var v uint32

	Set(&v, 3)

	if !Get(&v, 3) {
		t.Fatal("expected bit 3 set")
	}

	Clear(&v, 3)

	if Get(&v, 3) {
		t.Fatal("expected bit 3 clear")
	}
}

func TestSetTo(t *testing.T) {
	var v uint32

	SetTo(&v, 5, true)

	if !Get(&v, 5) {
		t.Fatal("expected bit 5 set")
	}

	SetTo(&v, 5, false)

	if Get(&v, 5) {
		t.Fatal("expected bit 5 clear")
	}
}

func TestSetNGetN(t *testing.T) {
	var v uint32

	SetN(&v, 8, 0xff, 0xab)

	if got := GetN(&v, 8, 0xff); got != 0xab {
		t.Fatalf("got %#x, want 0xab", got)
	}

	// adjacent bits must be untouched.
	Set(&v, 0)
	Set(&v, 20)

	if got := GetN(&v, 8, 0xff); got != 0xab {
		t.Fatalf("adjacent bits corrupted field: got %#x", got)
	}
}
