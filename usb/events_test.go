// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import "testing"

func TestEventQueueFIFO(t *testing.T) {
	eq := newEventQueue()

	eq.Push(Event{Kind: EventPortChange})
	eq.Push(Event{Kind: EventSuspend})

	if eq.Len() != 2 {
		t.Fatalf("expected 2 pending events, got %d", eq.Len())
	}

	e, ok := eq.Pop()

	if !ok || e.Kind != EventPortChange {
		t.Fatalf("expected EventPortChange first, got %+v ok=%v", e, ok)
	}

	e, ok = eq.Pop()

	if !ok || e.Kind != EventSuspend {
		t.Fatalf("expected EventSuspend second, got %+v ok=%v", e, ok)
	}

	if _, ok := eq.Pop(); ok {
		t.Fatal("expected empty queue to report ok=false")
	}
}
