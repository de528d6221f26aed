// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import "testing"

func TestQHCharacteristics(t *testing.T) {
	var qh QH

	qh.setDeviceAddress(0x5a)
	qh.setEndpointNumber(3)
	qh.setSpeed(SpeedHigh)
	qh.setControlEndpoint(true)
	qh.setMaxPacketLength(512)
	qh.setHeadOfReclamationList(true)
	qh.setDataToggleControl(true)

	if got := (qh.Characteristics >> charDeviceAddrShift) & charDeviceAddrMask; got != 0x5a {
		t.Fatalf("device address: got %#x", got)
	}

	if got := (qh.Characteristics >> charEndpointShift) & charEndpointMask; got != 3 {
		t.Fatalf("endpoint number: got %d", got)
	}

	if got := (qh.Characteristics >> charSpeedShift) & charSpeedMask; got != uint32(SpeedHigh) {
		t.Fatalf("speed: got %d", got)
	}

	if got := (qh.Characteristics >> charMaxPacketShift) & charMaxPacketMask; got != 512 {
		t.Fatalf("max packet: got %d", got)
	}

	if !qh.dataToggleControl() {
		t.Fatal("expected data toggle control set")
	}
}

func TestQHHub(t *testing.T) {
	var qh QH

	qh.setHub(0x12, 0x04)

	if got := (qh.Capabilities >> capHubAddrShift) & capHubAddrMask; got != 0x12 {
		t.Fatalf("hub addr: got %#x", got)
	}

	if got := (qh.Capabilities >> capPortShift) & capPortMask; got != 0x04 {
		t.Fatalf("port: got %#x", got)
	}
}
