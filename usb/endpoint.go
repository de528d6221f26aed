// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import (
	"time"

	"github.com/usbarmory/sehci/internal/bits"
	"github.com/usbarmory/sehci/internal/invariant"
	"github.com/usbarmory/sehci/internal/reg"
)

// Direction is the USB transfer direction bit (bit 7 of the endpoint
// address byte).
type Direction uint8

const (
	Out Direction = 0
	In  Direction = 1
)

// defaultAckTimeout bounds every busy-wait in this file; see the
// ErrControllerUnresponsive redesign note in internal/reg.
const defaultAckTimeout = 100 * time.Millisecond

// Endpoint is the logical per-direction endpoint object of §3: address,
// owning peripheral, sibling pointer to the paired IN/OUT endpoint, a
// cached 8-byte setup packet (device-mode only, populated by the ISR), and
// the two dispatch callbacks.
type Endpoint struct {
	Number    int
	Direction Direction

	peripheral *Peripheral
	sibling    *Endpoint

	setup SetupPacket

	// tailIndex is the device-mode TD pool index of the last TD appended
	// to this endpoint's chain by QueueTransfer, or -1 when the chain is
	// empty. Unused on EP0, whose control stages go through the QH's
	// Overlay TD directly instead of a pooled chain.
	tailIndex int32

	// OnSetupComplete is invoked after the ISR has copied a new SETUP
	// packet into this endpoint's cache and cleared the corresponding
	// ENDPTSETUPSTAT bit.
	OnSetupComplete func(*Endpoint)

	// OnTransferComplete is invoked after the ISR observes this
	// endpoint's ENDPTCOMPLETE bit set.
	OnTransferComplete func(*Endpoint)
}

// pos is the bit position this endpoint occupies in ENDPTPRIME,
// ENDPTFLUSH, ENDPTSTAT and ENDPTCOMPLETE: IN endpoints at bit 16+n, OUT
// endpoints at bit n.
func (ep *Endpoint) pos() int {
	return int(ep.Direction)*16 + ep.Number
}

func (ep *Endpoint) qh() *QH {
	return ep.peripheral.device.qh(ep.Number, ep.Direction)
}

// prime writes firstTD as the QH's current-dTD pointer, clears the
// overlay's active/halted flags, then sets PRIME. The caller must ensure
// the endpoint is not currently priming — either it is idle, or the ATDTW
// handshake in scheduleAppend is used instead.
func (ep *Endpoint) prime(firstTD linkWord) {
	regs := ep.peripheral.regs

	if reg.Get(regs.prime, ep.pos(), 1) == 1 {
		invariant.Violate("endpoint primed while already priming, without the ATDTW handshake")
	}

	qh := ep.qh()

	qh.Overlay.Token &^= (tokenStatusActive | tokenStatusHalted)
	qh.Current = firstTD

	reg.Set(regs.prime, ep.pos())
}

// scheduleAppend links tail.Next = newTD; if the endpoint's PRIME bit is
// still set, the controller has not yet loaded the chain and will reach the
// new TD on its own, so nothing more is done. Otherwise it runs the
// Add-dTD-Transfer-While-Priming handshake: repeatedly set ATDTW and
// observe whether the endpoint reports ready while ATDTW reads back set.
// Once that observation is coherent, if the endpoint was not ready (the
// hardware had already drained the previous chain before our link update
// became visible) the new TD is primed explicitly; otherwise the hardware
// picks it up on its own. This is the only thing preventing a lost-wakeup
// race between the append and the controller's completion of the previous
// chain.
func (ep *Endpoint) scheduleAppend(tail *TD, newTD linkWord) error {
	tail.Next = newTD

	regs := ep.peripheral.regs
	pos := ep.pos()

	if reg.Get(regs.prime, pos, 1) == 1 {
		return nil
	}

	deadline := time.Now().Add(defaultAckTimeout)
	var ready bool

	for {
		reg.Set(regs.cmd, bitUSBCMD_ATDTW)

		ready = reg.Get(regs.stat, pos, 1) == 1

		if reg.Get(regs.cmd, bitUSBCMD_ATDTW, 1) == 1 {
			break
		}

		if time.Now().After(deadline) {
			return &reg.ErrControllerUnresponsive{Addr: regs.cmd, Pos: bitUSBCMD_ATDTW}
		}
	}

	reg.Clear(regs.cmd, bitUSBCMD_ATDTW)

	if !ready {
		ep.prime(newTD)
	}

	return nil
}

// flush issues FLUSH for the endpoint then waits for the flush-complete
// bit, bounded per the REDESIGN FLAGS busy-wait note.
func (ep *Endpoint) flush() error {
	regs := ep.peripheral.regs
	pos := ep.pos()

	reg.Set(regs.flush, pos)

	return reg.WaitFor(defaultAckTimeout, regs.flush, pos, 1, 0)
}

// stall sets both RXS and TXS for the endpoint pair (stalling is defined on
// the pair, not the direction). For endpoint 0 (protocol stall) both IN and
// OUT sides are flushed afterward.
func (ep *Endpoint) stall() error {
	ctrl := ep.peripheral.regs.endptctrl(ep.Number)

	reg.Set(ctrl, bitENDPTCTRL_RXS)
	reg.Set(ctrl, bitENDPTCTRL_TXS)

	if ep.Number == 0 {
		if err := ep.flush(); err != nil {
			return err
		}

		if ep.sibling != nil {
			return ep.sibling.flush()
		}
	}

	return nil
}

// disable clears the endpoint enable bit, clears its pending complete bit,
// then flushes the hardware. Transfers queued on the endpoint through
// QueueTransfer are not released: their pending entries, TDs and buffers
// stay allocated, and the endpoint's tailIndex is left as it was.
func (ep *Endpoint) disable() error {
	ctrl := ep.peripheral.regs.endptctrl(ep.Number)

	if ep.Direction == In {
		reg.Clear(ctrl, bitENDPTCTRL_TXE)
	} else {
		reg.Clear(ctrl, bitENDPTCTRL_RXE)
	}

	regs := ep.peripheral.regs
	reg.Write(regs.complete, 1<<ep.pos())

	return ep.flush()
}

// isReady reports whether the endpoint's hardware status bit is set.
func (ep *Endpoint) isReady() bool {
	regs := ep.peripheral.regs
	return reg.Get(regs.stat, ep.pos(), 1) == 1
}

// isComplete reports whether the endpoint's completion bit is set.
func (ep *Endpoint) isComplete() bool {
	regs := ep.peripheral.regs
	return reg.Get(regs.complete, ep.pos(), 1) == 1
}

// enable configures and enables an endpoint's control register for the
// given transfer type. Endpoint 0 is always enabled by the controller and
// never needs this.
func (ep *Endpoint) enable(transferType int, maxPacket int) {
	if ep.Number == 0 {
		return
	}

	ctrl := ep.peripheral.regs.endptctrl(ep.Number)
	c := reg.Read(ctrl)

	if ep.Direction == In {
		bits.Set(&c, bitENDPTCTRL_TXE)
		bits.Set(&c, bitENDPTCTRL_TXR)
		bits.SetN(&c, bitENDPTCTRL_TXT, 0b11, uint32(transferType))
		bits.Clear(&c, bitENDPTCTRL_TXS)
	} else {
		bits.Set(&c, bitENDPTCTRL_RXE)
		bits.Set(&c, bitENDPTCTRL_RXR)
		bits.SetN(&c, bitENDPTCTRL_RXT, 0b11, uint32(transferType))
		bits.Clear(&c, bitENDPTCTRL_RXS)
	}

	reg.Write(ctrl, c)
}
