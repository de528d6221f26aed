// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import "testing"

func TestMakeLinkRoundTrip(t *testing.T) {
	for _, idx := range []int32{0, 1, 42, 1<<20 - 1} {
		l := makeLink(idx, false)

		if l.isTerminated() {
			t.Fatalf("index %d: expected not terminated", idx)
		}

		if got := l.index(); got != idx {
			t.Fatalf("index %d: round-tripped as %d", idx, got)
		}
	}
}

func TestTerminatedLink(t *testing.T) {
	if !terminatedLink.isTerminated() {
		t.Fatal("terminatedLink must report terminated")
	}

	l := makeLink(7, true)

	if !l.isTerminated() {
		t.Fatal("link built with terminate=true must report terminated")
	}

	if got := l.index(); got != 7 {
		t.Fatalf("index lost under terminate bit: got %d", got)
	}
}
