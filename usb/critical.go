// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import "sync"

// criticalSection is the explicit acquire/release primitive the REDESIGN
// FLAGS call for in place of implicit interrupt-disable scoping. On real
// silicon this would mask the controller's IRQ line for its duration; this
// module has no bare-metal IRQ controller to drive, so it serializes the
// simulated ISR goroutine against the cooperative main-context caller with
// a mutex, which reproduces the same mutual-exclusion guarantee §5
// requires for the host-mode append path and pending-list mutation.
type criticalSection struct {
	mu sync.Mutex
}

// enter begins a critical section. The returned function must be called to
// leave it; callers use `defer cs.enter()()`.
func (cs *criticalSection) enter() func() {
	cs.mu.Lock()
	return cs.mu.Unlock
}
