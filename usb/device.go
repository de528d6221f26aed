// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import (
	"log"
	"time"

	"github.com/usbarmory/sehci/internal/dma"
	"github.com/usbarmory/sehci/internal/reg"
)

// dqhAlignment is the dQH table's required alignment (EHCI §2.3.1 /
// component 4.D).
const dqhAlignment = 2048

// deviceTDsPerEndpoint bounds how many data-stage/bulk/interrupt TDs may be
// in flight at once across all of a device-mode peripheral's non-control
// endpoints, sized against the endpoint count the same way the host-mode
// pools are sized against the caller's QH/TD capacity.
const deviceTDsPerEndpoint = 4

// resetTimeout bounds the USBCMD.RST self-clear busy-wait.
const resetTimeout = 100 * time.Millisecond

// deviceState is the device-mode substate of a Peripheral: the dQH table,
// the logical Endpoint objects paired with it, the descriptor hierarchy and
// active configuration, the standard/class/vendor handler trio, and the
// three-stage setup tracker (§4.F lives in setup.go; this struct only owns
// the storage it operates on).
type deviceState struct {
	endpointCount int

	dqhArena uint32 // DMA-arena base address of the dQH table
	qhs      []*QH  // 2*endpointCount entries, OUT at 2n, IN at 2n+1

	endpoints []*Endpoint // same indexing as qhs

	arena *dma.Region

	// tdPool and pending back QueueTransfer: the append-to-queue race
	// handler (scheduleAppend, §4.C) is only reachable through a
	// non-control endpoint's data transfer, which needs its own TD pool
	// since EP0's control stages only ever use the dQH's Overlay TD.
	tdPool  *pool[TD]
	pending map[int32]*devicePendingTransfer

	Device *Device

	stage setupStage

	address            uint8
	addressAfterStatus uint8
	addressPending     bool

	handlers handlerTrio
}

func newDeviceState(endpointCount int) *deviceState {
	d := &deviceState{
		endpointCount: endpointCount,
		qhs:           make([]*QH, endpointCount*2),
		endpoints:     make([]*Endpoint, endpointCount*2),
		tdPool:        newPool[TD](endpointCount * deviceTDsPerEndpoint),
		pending:       make(map[int32]*devicePendingTransfer),
	}

	for n := 0; n < endpointCount; n++ {
		d.qhs[2*n] = &QH{}
		d.qhs[2*n+1] = &QH{}

		out := &Endpoint{Number: n, Direction: Out, tailIndex: -1}
		in := &Endpoint{Number: n, Direction: In, tailIndex: -1}
		out.sibling = in
		in.sibling = out

		d.endpoints[2*n] = out
		d.endpoints[2*n+1] = in
	}

	return d
}

// qh returns the dQH entry for a logical endpoint number/direction pair,
// indexed (endpoint_number*2)+is_in per §3.
func (d *deviceState) qh(n int, dir Direction) *QH {
	return d.qhs[2*n+int(dir)]
}

func (d *deviceState) endpoint(n int, dir Direction) *Endpoint {
	return d.endpoints[2*n+int(dir)]
}

// Init brings a device-mode controller up: stop and reset the controller,
// select device mode, turn setup lockout off (USBMODE.SLOM), zero
// interrupt throttling (ITC=0, one
// interrupt per transaction), place the dQH table, and unmask the interrupt
// set the ISR loop cares about. Grounded on the teacher's DeviceMode/Start
// bring-up sequence, restructured so bring-up and the running ISR are
// separate entry points instead of one blocking loop.
func (p *Peripheral) Init(arena *dma.Region) error {
	d := p.device
	regs := p.regs

	d.arena = arena

	reg.Clear(regs.cmd, bitUSBCMD_RS)

	reg.Set(regs.cmd, bitUSBCMD_RST)
	if err := reg.WaitFor(resetTimeout, regs.cmd, bitUSBCMD_RST, 1, 0); err != nil {
		return err
	}

	reg.SetN(regs.mode, bitUSBMODE_CM, 0b11, ModeDevice)
	reg.Set(regs.mode, bitUSBMODE_SLOM)

	reg.SetN(regs.cmd, bitUSBCMD_ITC, 0xff, 0)

	size := d.endpointCount * 2 * 64
	addr, err := arena.Alloc(size, dqhAlignment)
	if err != nil {
		return err
	}

	d.dqhArena = addr
	reg.Write(regs.eplist, addr)

	for _, ev := range []int{EventUI, EventUEI, EventPCI, EventURI, EventSLI} {
		regs.EnableInterrupt(ev)
	}

	reg.Set(regs.cmd, bitUSBCMD_RS)

	log.Printf("usb: device controller started, base=%#08x dqh=%#08x", regs.base, addr)

	return nil
}

// Reset performs the bus-reset recovery §4.D requires: every endpoint is
// disabled and flushed, all pending interrupt status is cleared, the device
// address (DEVICEADDR included) and active configuration both return to
// zero, and EP0 OUT's overlay TD is given a scratch buffer (see
// primeControlOUT).
func (d *deviceState) Reset(p *Peripheral) {
	for _, ep := range d.endpoints {
		if ep == nil {
			continue
		}

		ep.disable()
	}

	reg.WriteBack(p.regs.setup)
	reg.WriteBack(p.regs.complete)

	p.SetAddressImmediate(0)
	d.addressPending = false

	if d.Device != nil {
		d.Device.ConfigurationValue = 0
	}

	d.stage = setupStageIdle

	d.primeControlOUT(p)
}

// primeControlOUT gives EP0 OUT's overlay TD a 64-byte scratch buffer and an
// OUT TD over it, the first time it is called; once the buffer exists it
// does nothing. It does not set the endpoint's PRIME bit.
func (d *deviceState) primeControlOUT(p *Peripheral) {
	ep := d.endpoint(0, Out)
	qh := ep.qh()

	if qh.Overlay.bufAddr == 0 && d.arena != nil {
		addr, err := d.arena.Alloc(64, 64)
		if err == nil {
			buildTD(&qh.Overlay, PIDOut, false, addr, 0)
		}
	}
}

// HandleInterrupt is the ISR top-half (§4.D, §5): it reads and clears
// USBSTS, then, in order, handles bus reset, SETUP packets (before
// completions, since a SETUP can invalidate an in-flight completion for the
// same endpoint), then endpoint completions OUT-then-IN, then port-change
// and suspend notifications pushed to the observer queue.
func (p *Peripheral) HandleInterrupt() {
	d := p.device
	regs := p.regs

	status := regs.readAndClearStatus(^uint32(0))

	if status&(1<<EventURI) != 0 {
		d.Reset(p)
		p.events.Push(Event{Kind: EventPortChange})
	}

	setupStat := reg.WriteBack(regs.setup)
	if setupStat != 0 {
		d.handleSetupStatus(p, setupStat)
	}

	complete := reg.WriteBack(regs.complete)
	if complete != 0 {
		d.handleCompletions(p, complete, Out)
		d.handleCompletions(p, complete, In)
	}

	if status&(1<<EventPCI) != 0 {
		p.events.Push(Event{Kind: EventPortChange})
	}

	if status&(1<<EventSLI) != 0 {
		p.events.Push(Event{Kind: EventSuspend})
	}

	if d.addressPending && d.stage == setupStageIdle {
		reg.SetN(regs.addr, bitDEVICEADDR_USBADR, 0x7f, uint32(d.addressAfterStatus))
		d.addressPending = false
	}
}

// handleSetupStatus scans ENDPTSETUPSTAT for endpoints with a new SETUP
// packet. Per §4.D the 8-byte setup word is copied into both the OUT and IN
// sibling endpoints' caches before the handshake proceeds, so that whichever
// side the 3-stage state machine next touches already has it.
func (d *deviceState) handleSetupStatus(p *Peripheral, setupStat uint32) {
	for n := 0; n < d.endpointCount; n++ {
		if setupStat&(1<<uint(n)) == 0 {
			continue
		}

		out := d.endpoint(n, Out)
		in := d.endpoint(n, In)

		sp := readSetupPacket(&out.qh().Overlay)

		out.setup = sp
		in.setup = sp

		if out.OnSetupComplete != nil {
			out.OnSetupComplete(out)
		}
	}
}

// handleCompletions scans ENDPTCOMPLETE for one direction, invoking each
// ready endpoint's completion callback.
func (d *deviceState) handleCompletions(p *Peripheral, complete uint32, dir Direction) {
	base := 0
	if dir == In {
		base = 16
	}

	for n := 0; n < d.endpointCount; n++ {
		if complete&(1<<uint(base+n)) == 0 {
			continue
		}

		ep := d.endpoint(n, dir)
		if ep.OnTransferComplete != nil {
			ep.OnTransferComplete(ep)
		}
	}
}

// SetAddressImmediate assigns the device address directly (USBADRA=0 path):
// the new address takes effect as soon as it is written, before the status
// stage of the SET_ADDRESS request completes.
func (p *Peripheral) SetAddressImmediate(addr uint8) {
	reg.SetN(p.regs.addr, bitDEVICEADDR_USBADR, 0x7f, uint32(addr))
	p.device.address = addr
}

// SetAddressDeferred arms USBADRA so the controller itself holds off
// applying the new address until it has transmitted the status-stage ACK,
// then records the pending address for HandleInterrupt to observe once the
// setup state machine returns to idle.
func (p *Peripheral) SetAddressDeferred(addr uint8) {
	reg.Set(p.regs.addr, bitDEVICEADDR_USBADRA)
	p.device.addressAfterStatus = addr
	p.device.addressPending = true
	p.device.address = addr
}
