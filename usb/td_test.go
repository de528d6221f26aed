// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import "testing"

func TestBuildTD(t *testing.T) {
	var td TD

	buildTD(&td, PIDIn, true, 0x1000, 512)

	if !td.active() {
		t.Fatal("expected active after build")
	}

	if td.halted() || td.transactionError() {
		t.Fatal("expected no error flags after build")
	}

	if td.pid() != PIDIn {
		t.Fatalf("expected PIDIn, got %d", td.pid())
	}

	if !td.dataToggle() {
		t.Fatal("expected data toggle bit set")
	}

	if got := td.remaining(); got != 512 {
		t.Fatalf("expected remaining=512 immediately after build, got %d", got)
	}

	if !td.Next.isTerminated() || !td.AltNext.isTerminated() {
		t.Fatal("expected Next/AltNext terminated on a freshly built TD")
	}
}

func TestBuildTDPageLayout(t *testing.T) {
	var td TD

	addr := uint32(0x2000 + 100) // unaligned within its page

	buildTD(&td, PIDOut, false, addr, tdPageSize*2)

	if td.Buffer[0] != addr {
		t.Fatalf("first page pointer must keep the unaligned offset: got %#x want %#x", td.Buffer[0], addr)
	}

	if td.Buffer[1] != addr+tdPageSize-100 {
		t.Fatalf("second page pointer must be page-aligned: got %#x", td.Buffer[1])
	}
}

func TestTDCompletionStatus(t *testing.T) {
	var td TD

	buildTD(&td, PIDOut, false, 0x4000, 64)

	td.Token &^= tokenStatusActive
	td.Token |= tokenStatusHalted

	if td.active() {
		t.Fatal("expected inactive after clearing active bit")
	}

	if !td.halted() {
		t.Fatal("expected halted bit observed")
	}
}
