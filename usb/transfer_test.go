// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import "testing"

func TestQueueTransferPrimesIdleEndpoint(t *testing.T) {
	p, _ := newTestPeripheral(t, 2)

	var gotBytes int
	var gotErr error

	err := p.QueueTransfer(1, In, make([]byte, 8), func(n int, e error) {
		gotBytes = n
		gotErr = e
	})
	if err != nil {
		t.Fatal(err)
	}

	ep := p.device.endpoint(1, In)
	if ep.tailIndex < 0 {
		t.Fatal("expected tailIndex to record the primed TD")
	}

	td := p.device.tdPool.at(ep.tailIndex)
	if !td.active() {
		t.Fatal("expected the primed TD to be active")
	}

	td.Token &^= tokenStatusActive
	td.Token &^= uint32(tokenBytesMask) << tokenBytesShift

	ep.OnTransferComplete(ep)

	if gotErr != nil {
		t.Fatalf("unexpected transport error: %v", gotErr)
	}
	if gotBytes != 8 {
		t.Fatalf("expected 8 bytes transferred, got %d", gotBytes)
	}
	if ep.tailIndex != -1 {
		t.Fatal("expected tailIndex to reset to -1 once the only TD is reaped")
	}
}

// TestQueueTransferAppendsViaScheduleAppend forces the append path by
// queuing a second transfer before the first TD completes: the endpoint is
// already primed (tailIndex >= 0), so QueueTransfer must link the new TD
// onto the existing chain through scheduleAppend's ATDTW handshake rather
// than calling prime again.
func TestQueueTransferAppendsViaScheduleAppend(t *testing.T) {
	p, _ := newTestPeripheral(t, 2)

	if err := p.QueueTransfer(1, Out, make([]byte, 8), nil); err != nil {
		t.Fatal(err)
	}

	ep := p.device.endpoint(1, Out)
	firstIdx := ep.tailIndex

	if err := p.QueueTransfer(1, Out, make([]byte, 8), nil); err != nil {
		t.Fatal(err)
	}

	secondIdx := ep.tailIndex

	if secondIdx == firstIdx {
		t.Fatal("expected the second QueueTransfer to allocate a new TD")
	}

	firstTD := p.device.tdPool.at(firstIdx)

	if firstTD.Next.index() != secondIdx {
		t.Fatalf("expected scheduleAppend to link the first TD's Next to the second TD, got index %d", firstTD.Next.index())
	}
}

func TestQueueTransferRejectsControlEndpoint(t *testing.T) {
	p, _ := newTestPeripheral(t, 2)

	if err := p.QueueTransfer(0, Out, make([]byte, 8), nil); err != ErrStall {
		t.Fatalf("expected ErrStall for endpoint 0, got %v", err)
	}
}

func TestQueueTransferRejectsOversizedTransfer(t *testing.T) {
	p, _ := newTestPeripheral(t, 2)

	data := make([]byte, TDPages*tdPageSize+1)

	if err := p.QueueTransfer(1, Out, data, nil); err != ErrStall {
		t.Fatalf("expected ErrStall for an oversized transfer, got %v", err)
	}
}
