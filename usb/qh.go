// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import "github.com/usbarmory/sehci/internal/bits"

// Characteristics word bit positions (EHCI §3.6.1).
const (
	charDeviceAddrShift = 0
	charDeviceAddrMask  = 0x7f

	charEndpointShift = 8
	charEndpointMask  = 0xf

	charSpeedShift = 12
	charSpeedMask  = 0b11

	charControlEndpoint = 14

	charMaxPacketShift = 16
	charMaxPacketMask  = 0x7ff

	charHeadOfList     = 27
	charDataToggleCtrl = 28
)

// Capabilities word bit positions (EHCI §3.6.2, micro-frame S/C masks).
const (
	capSMaskShift = 0
	capSMaskMask  = 0xff

	capCMaskShift = 8
	capCMaskMask  = 0xff

	capHubAddrShift = 16
	capHubAddrMask  = 0x7f

	capPortShift = 23
	capPortMask  = 0x7f

	capMultShift = 30
	capMultMask  = 0b11
)

// QH is a 64-byte-aligned Queue Head, the per-endpoint control block both
// device mode (one per logical endpoint, in the dQH table) and host mode
// (one per downstream asynchronous endpoint, spliced into the async ring)
// share. Overlay is the scratch transfer descriptor the controller loads
// from Current at prime time; EndpointRef is software-only bookkeeping the
// hardware never reads or writes.
type QH struct {
	Horizontal      linkWord
	Characteristics uint32
	Capabilities    uint32
	Current         linkWord
	Overlay         TD

	// EndpointRef carries the logical endpoint identity in device mode
	// (back-reference word, §3); unused (zero) in host mode.
	EndpointRef uint32
}

func (qh *QH) setDeviceAddress(addr uint8) {
	bits.SetN(&qh.Characteristics, charDeviceAddrShift, charDeviceAddrMask, uint32(addr))
}

func (qh *QH) deviceAddress() uint8 {
	return uint8(bits.GetN(&qh.Characteristics, charDeviceAddrShift, charDeviceAddrMask))
}

func (qh *QH) setEndpointNumber(n int) {
	bits.SetN(&qh.Characteristics, charEndpointShift, charEndpointMask, uint32(n))
}

func (qh *QH) endpointNumber() int {
	return int(bits.GetN(&qh.Characteristics, charEndpointShift, charEndpointMask))
}

func (qh *QH) setSpeed(s Speed) {
	bits.SetN(&qh.Characteristics, charSpeedShift, charSpeedMask, uint32(s))
}

func (qh *QH) setControlEndpoint(v bool) {
	bits.SetTo(&qh.Characteristics, charControlEndpoint, v)
}

func (qh *QH) setMaxPacketLength(n int) {
	bits.SetN(&qh.Characteristics, charMaxPacketShift, charMaxPacketMask, uint32(n))
}

func (qh *QH) setHeadOfReclamationList(v bool) {
	bits.SetTo(&qh.Characteristics, charHeadOfList, v)
}

func (qh *QH) setDataToggleControl(v bool) {
	bits.SetTo(&qh.Characteristics, charDataToggleCtrl, v)
}

func (qh *QH) dataToggleControl() bool {
	return bits.Get(&qh.Characteristics, charDataToggleCtrl)
}

func (qh *QH) setMult(mult int) {
	bits.SetN(&qh.Capabilities, capMultShift, capMultMask, uint32(mult))
}

func (qh *QH) setHub(hubAddr, port int) {
	bits.SetN(&qh.Capabilities, capHubAddrShift, capHubAddrMask, uint32(hubAddr))
	bits.SetN(&qh.Capabilities, capPortShift, capPortMask, uint32(port))
}
