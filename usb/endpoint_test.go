// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import (
	"testing"
	"time"

	"github.com/usbarmory/sehci/internal/reg"
)

func TestEndpointPos(t *testing.T) {
	p, _ := newTestPeripheral(t, 3)

	out := p.device.endpoint(2, Out)
	in := p.device.endpoint(2, In)

	if out.pos() != 2 {
		t.Fatalf("OUT endpoint 2: got pos %d, want 2", out.pos())
	}

	if in.pos() != 18 {
		t.Fatalf("IN endpoint 2: got pos %d, want 18", in.pos())
	}
}

func TestEndpointEnableDisable(t *testing.T) {
	p, _ := newTestPeripheral(t, 3)

	in := p.device.endpoint(1, In)
	in.enable(2, 64)

	ctrl := p.regs.endptctrl(1)

	if readBits(ctrl, bitENDPTCTRL_TXE, 1) != 1 {
		t.Fatal("expected TXE set after enable")
	}

	if readBits(ctrl, bitENDPTCTRL_TXT, 0b11) != 2 {
		t.Fatal("expected transfer type field set to 2")
	}

	// disable() waits on the hardware flush-complete bit; simulate the
	// controller acknowledging it, as a real device would within a few
	// microseconds.
	go func() {
		time.Sleep(2 * time.Millisecond)
		reg.Clear(p.regs.flush, in.pos())
	}()

	if err := in.disable(); err != nil {
		t.Fatal(err)
	}

	if readBits(ctrl, bitENDPTCTRL_TXE, 1) != 0 {
		t.Fatal("expected TXE clear after disable")
	}
}

func TestEndpointZeroNeverEnabled(t *testing.T) {
	p, _ := newTestPeripheral(t, 1)

	ep0 := p.device.endpoint(0, In)
	before := readBits(p.regs.endptctrl(0), bitENDPTCTRL_TXE, 1)

	ep0.enable(0, 64)

	if readBits(p.regs.endptctrl(0), bitENDPTCTRL_TXE, 1) != before {
		t.Fatal("endpoint 0 must never be touched by enable()")
	}
}
