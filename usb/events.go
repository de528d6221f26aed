// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import (
	"sync"

	"github.com/eapache/queue"
)

// EventKind identifies one of the design-level observer hooks §4.D and
// §4.G call for: port-status changes, suspend, and host-mode start-of-PID.
type EventKind uint8

const (
	EventPortChange EventKind = iota
	EventSuspend
	EventStartOfPID
)

// Event is a single observer notification pushed from the ISR.
type Event struct {
	Kind EventKind
	// EndpointAddress / DeviceAddress are populated for EventStartOfPID,
	// zero otherwise.
	EndpointAddress uint8
	DeviceAddress   uint8
}

// eventQueue is a non-blocking, non-allocating (amortized) ring buffer the
// ISR pushes into and the cooperative main context drains. A plain
// unbounded channel would risk an ISR send blocking on a full buffer; a
// slice-backed ring queue lets Push always succeed in O(1) without the
// producer ever waiting on the consumer, matching the "ISR never yields"
// ordering guarantee of §5.
type eventQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newEventQueue() *eventQueue {
	return &eventQueue{q: queue.New()}
}

// Push enqueues an event from ISR context. It never blocks.
func (eq *eventQueue) Push(e Event) {
	eq.mu.Lock()
	defer eq.mu.Unlock()

	eq.q.Add(e)
}

// Pop dequeues the oldest pending event, if any, for the main context to
// process. ok is false when the queue is empty.
func (eq *eventQueue) Pop() (e Event, ok bool) {
	eq.mu.Lock()
	defer eq.mu.Unlock()

	if eq.q.Length() == 0 {
		return Event{}, false
	}

	v := eq.q.Remove()
	return v.(Event), true
}

// Len reports the number of pending events, for debug/metrics reporting.
func (eq *eventQueue) Len() int {
	eq.mu.Lock()
	defer eq.mu.Unlock()

	return eq.q.Length()
}
