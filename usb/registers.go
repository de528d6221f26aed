// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import (
	"github.com/usbarmory/sehci/internal/reg"
)

// Register block layout, EHCI capability + operational + device/host
// extension registers. Offsets are grounded on the NXP USBOH3USBO2 register
// map (UM10503-equivalent layout this core's LPC43xx-class target shares)
// and are identical in shape to the teacher driver's `USB_UOGx_*` constant
// block, extended with the host-mode registers (FRINDEX, ASYNCLISTADDR
// shares DEVICEADDR/ENDPOINTLISTADDR's storage with device mode per EHCI
// §2.3 and §4.8) this core's teacher never needed.
const (
	regUSBCMD  = 0x140
	regUSBSTS  = 0x144
	regUSBINTR = 0x148
	regFRINDEX = 0x14c

	// DEVICEADDR in device mode, PERIODICLISTBASE in host mode.
	regDEVICEADDR = 0x154

	// ENDPOINTLISTADDR in device mode, ASYNCLISTADDR in host mode.
	regENDPOINTLISTADDR = 0x158

	regPORTSC1 = 0x184
	regOTGSC   = 0x1a4
	regUSBMODE = 0x1a8

	regENDPTSETUPSTAT = 0x1ac
	regENDPTPRIME     = 0x1b0
	regENDPTFLUSH     = 0x1b4
	regENDPTSTAT      = 0x1b8
	regENDPTCOMPLETE  = 0x1bc
	regENDPTCTRL      = 0x1c0
)

// USBCMD bits
const (
	bitUSBCMD_RS    = 0
	bitUSBCMD_RST   = 1
	bitUSBCMD_ATDTW = 14
	bitUSBCMD_ITC   = 16
)

// USBSTS / USBINTR event bits, shared numbering between the status and
// interrupt-enable registers (p3848/p3852 of the reference manual).
const (
	EventUI    = 0  // USB interrupt (transaction complete)
	EventUEI   = 1  // USB error interrupt
	EventPCI   = 2  // port change
	EventFRI   = 3  // frame list rollover
	EventSEI   = 4
	EventAAI   = 5  // async advance
	EventURI   = 6  // USB reset received
	EventSRI   = 7  // start of frame
	EventSLI   = 8  // suspend
	EventNAKI  = 16 // NAK interrupt
)

// DEVICEADDR bits
const (
	bitDEVICEADDR_USBADR  = 25
	bitDEVICEADDR_USBADRA = 24
)

// PORTSC bits
const (
	bitPORTSC_PR   = 8
	bitPORTSC_PSPD = 26
)

// USBMODE bits
const (
	bitUSBMODE_CM   = 0
	bitUSBMODE_SLOM = 3
	bitUSBMODE_SDIS = 4
)

// USBMODE controller-mode values
const (
	ModeIdle   = 0b00
	ModeDevice = 0b10
	ModeHost   = 0b11
)

// ENDPTCTRL bits (per-endpoint control register, one per endpoint number)
const (
	bitENDPTCTRL_RXS = 0
	bitENDPTCTRL_RXT = 2
	bitENDPTCTRL_RXI = 5
	bitENDPTCTRL_RXR = 6
	bitENDPTCTRL_RXE = 7

	bitENDPTCTRL_TXS = 16
	bitENDPTCTRL_TXT = 18
	bitENDPTCTRL_TXI = 21
	bitENDPTCTRL_TXR = 22
	bitENDPTCTRL_TXE = 23
)

// registers is the typed accessor over one controller's memory-mapped
// register block (component 4.A). It computes absolute addresses once, in
// newRegisters, exactly as the teacher's USB struct caches `hw.cmd`, `hw.sts`, etc.
type registers struct {
	base uint32

	cmd      uint32
	sts      uint32
	intr     uint32
	frindex  uint32
	addr     uint32
	eplist   uint32
	portsc   uint32
	otgsc    uint32
	mode     uint32
	setup    uint32
	prime    uint32
	flush    uint32
	stat     uint32
	complete uint32
	epctrl   uint32
}

func newRegisters(base uint32) *registers {
	return &registers{
		base:     base,
		cmd:      base + regUSBCMD,
		sts:      base + regUSBSTS,
		intr:     base + regUSBINTR,
		frindex:  base + regFRINDEX,
		addr:     base + regDEVICEADDR,
		eplist:   base + regENDPOINTLISTADDR,
		portsc:   base + regPORTSC1,
		otgsc:    base + regOTGSC,
		mode:     base + regUSBMODE,
		setup:    base + regENDPTSETUPSTAT,
		prime:    base + regENDPTPRIME,
		flush:    base + regENDPTFLUSH,
		stat:     base + regENDPTSTAT,
		complete: base + regENDPTCOMPLETE,
		epctrl:   base + regENDPTCTRL,
	}
}

func (r *registers) endptctrl(n int) uint32 {
	return r.epctrl + uint32(4*n)
}

// EnableInterrupt enables interrupt generation for a specific event.
func (r *registers) EnableInterrupt(event int) {
	reg.Set(r.intr, event)
}

// readAndClearStatus performs the read-then-write-back-the-same-value
// pattern that clears only the bits observed at read time (4.A guarantee).
func (r *registers) readAndClearStatus(mask uint32) uint32 {
	v := reg.Read(r.sts) & mask
	reg.Write(r.sts, v)
	return v
}

// Speed returns the negotiated port speed.
func (r *registers) Speed() Speed {
	switch reg.Get(r.portsc, bitPORTSC_PSPD, 0b11) {
	case 0b00:
		return SpeedFull
	case 0b01:
		return SpeedLow
	default:
		return SpeedHigh
	}
}

// DumpRegisters reads the named subset of a controller's register block at
// the given base address, for diagnostic tooling that has no other way to
// observe driver state (cmd/sehci-inspect).
func DumpRegisters(base uint32) map[string]uint32 {
	r := newRegisters(base)

	return map[string]uint32{
		"USBCMD":           reg.Read(r.cmd),
		"USBSTS":           reg.Read(r.sts),
		"USBINTR":          reg.Read(r.intr),
		"FRINDEX":          reg.Read(r.frindex),
		"DEVICEADDR":       reg.Read(r.addr),
		"ENDPOINTLISTADDR": reg.Read(r.eplist),
		"PORTSC1":          reg.Read(r.portsc),
		"OTGSC":            reg.Read(r.otgsc),
		"USBMODE":          reg.Read(r.mode),
		"ENDPTSETUPSTAT":   reg.Read(r.setup),
		"ENDPTPRIME":       reg.Read(r.prime),
		"ENDPTFLUSH":       reg.Read(r.flush),
		"ENDPTSTAT":        reg.Read(r.stat),
		"ENDPTCOMPLETE":    reg.Read(r.complete),
	}
}
