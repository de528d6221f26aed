// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import (
	"github.com/usbarmory/sehci/internal/dma"
	"github.com/usbarmory/sehci/internal/reg"
)

// qhInfo is host-mode-only bookkeeping for one asynchronous endpoint's QH:
// whether it is currently spliced into the ring, and the pool index of the
// last TD appended to its chain (-1 when the chain is empty, meaning the
// next scheduled transfer becomes the QH's Current directly rather than
// being linked after a tail).
type qhInfo struct {
	inUse     bool
	dir       Direction
	tailIndex int32
}

// pendingTransfer tracks one outstanding host-mode transfer between
// scheduling and reaping: the DMA buffer it owns (freed on completion) and
// the caller's completion callback.
type pendingTransfer struct {
	qh         int32
	bufAddr    uint32
	bufLen     int
	onComplete func(bytesTransferred int, err error)
}

// hostState is the host-mode substate of a Peripheral: fixed QH/TD pools
// (component 4.B), the asynchronous schedule ring anchored at a permanent
// sentinel QH, and the pending-transfer set the reaping pass drains. No
// example driver in this module's lineage implements host-mode async queue
// management; this component follows the data-model and register-access
// idioms of the device-mode code it sits beside, built directly from EHCI
// §3.6/§4.8 and §4.G/§4.G of the component design.
type hostState struct {
	qhPool *pool[QH]
	tdPool *pool[TD]

	qhInfo []qhInfo

	sentinel int32

	cs criticalSection

	pending map[int32]*pendingTransfer

	arena *dma.Region
}

func newHostState(qhCapacity, tdCapacity int) *hostState {
	h := &hostState{
		qhPool:  newPool[QH](qhCapacity),
		tdPool:  newPool[TD](tdCapacity),
		qhInfo:  make([]qhInfo, qhCapacity),
		pending: make(map[int32]*pendingTransfer),
	}

	idx, sentinel, err := h.qhPool.allocate()
	if err != nil {
		panic("usb: host QH pool capacity must be at least 1 for the async sentinel")
	}

	sentinel.Horizontal = makeLink(idx, false)
	sentinel.setHeadOfReclamationList(true)
	sentinel.Current = terminatedLink

	h.sentinel = idx

	return h
}

// InitHost brings a host-mode controller up: reset, select host mode, write
// the async list head to the sentinel QH, and unmask the interrupts the
// reaping pass depends on.
func (p *Peripheral) InitHost(arena *dma.Region) error {
	h := p.host
	regs := p.regs

	h.arena = arena

	reg.Clear(regs.cmd, bitUSBCMD_RS)

	reg.Set(regs.cmd, bitUSBCMD_RST)
	if err := reg.WaitFor(resetTimeout, regs.cmd, bitUSBCMD_RST, 1, 0); err != nil {
		return err
	}

	reg.SetN(regs.mode, bitUSBMODE_CM, 0b11, ModeHost)

	reg.Write(regs.eplist, asyncListAddr(h.sentinel))

	for _, ev := range []int{EventUI, EventUEI, EventPCI, EventAAI} {
		regs.EnableInterrupt(ev)
	}

	reg.Set(regs.cmd, bitUSBCMD_RS)

	return nil
}

// asyncListAddr is a placeholder address scheme: the pool index is not a
// DMA address by itself, so a real backend would need its QH pool allocated
// from the same dma.Region as transfer buffers and translate indices to
// addresses here. This core's test backends address QHs by index directly
// and never program ASYNCLISTADDR against real silicon.
func asyncListAddr(idx int32) uint32 {
	return uint32(idx)
}

// SetUpAsyncEndpoint allocates a QH for one downstream endpoint and splices
// it into the asynchronous schedule immediately after the sentinel,
// per EHCI §4.8's "insert after head" rule (insertion order among
// non-sentinel QHs does not matter since the schedule is a ring the
// controller walks continuously). isControl marks a control endpoint (the
// control-endpoint flag is only meaningful, and only set, for a non-HS
// control endpoint — HS control endpoints use the same ping/complete-split
// machinery as bulk); handleDataToggleInHW selects which side manages the
// data toggle, per §4.G: data-toggle-control = NOT(handleDataToggleInHW) so
// a caller that needs to force a toggle (e.g. after a stall/retry) can ask
// for software control instead of leaving it to the hardware.
func (p *Peripheral) SetUpAsyncEndpoint(devAddr uint8, epNum int, dir Direction, speed Speed, isControl bool, handleDataToggleInHW bool, maxPacket int) (int32, error) {
	h := p.host

	idx, qh, err := h.qhPool.allocate()
	if err != nil {
		return -1, err
	}

	qh.setDeviceAddress(devAddr)
	qh.setEndpointNumber(epNum)
	qh.setSpeed(speed)
	qh.setMaxPacketLength(maxPacket)
	qh.setControlEndpoint(isControl && speed != SpeedHigh)
	qh.setDataToggleControl(!handleDataToggleInHW)
	qh.Current = terminatedLink

	defer h.cs.enter()()

	sentinel := h.qhPool.at(h.sentinel)
	qh.Horizontal = sentinel.Horizontal
	sentinel.Horizontal = makeLink(idx, false)

	h.qhInfo[idx] = qhInfo{inUse: true, dir: dir, tailIndex: -1}

	return idx, nil
}

// TeardownAsyncEndpoint removes a QH from the schedule and returns it to
// the pool. The caller must ensure no transfer against it is pending.
func (p *Peripheral) TeardownAsyncEndpoint(idx int32) {
	h := p.host

	defer h.cs.enter()()

	prev := h.qhPool.at(h.sentinel)

	for {
		next := prev.Horizontal.index()
		if next == idx {
			prev.Horizontal = h.qhPool.at(idx).Horizontal
			break
		}
		if next == h.sentinel {
			return
		}
		prev = h.qhPool.at(next)
	}

	h.qhInfo[idx] = qhInfo{}
	h.qhPool.free(idx)
}

// ScheduleTransfer allocates a TD for up to TDPages*4KiB of data, fills its
// buffer from (or, for an IN transfer, reserves space to later receive
// into) the host-mode DMA arena, and appends it to the named QH's chain
// under the critical section, per §4.G and §5's pending-transfer-list
// guarantee. dataToggle is the caller-supplied toggle bit for this TD; it
// only has effect when the QH's data-toggle-control bit delegates toggle
// management to software (handleDataToggleInHW=false at SetUpAsyncEndpoint
// time) — otherwise the controller manages and overwrites it on the wire.
func (p *Peripheral) ScheduleTransfer(qhIndex int32, pid PID, dataToggle bool, data []byte, onComplete func(bytesTransferred int, err error)) error {
	h := p.host

	if len(data) > TDPages*tdPageSize {
		return ErrStall
	}

	tdIdx, td, err := h.tdPool.allocate()
	if err != nil {
		return err
	}

	var addr uint32

	if len(data) > 0 {
		addr, err = h.arena.Alloc(len(data), 64)
		if err != nil {
			h.tdPool.free(tdIdx)
			return err
		}

		if pid == PIDOut {
			h.arena.Write(addr, 0, data)
		}
	}

	buildTD(td, pid, dataToggle, addr, len(data))

	defer h.cs.enter()()

	h.pending[tdIdx] = &pendingTransfer{
		qh:         qhIndex,
		bufAddr:    addr,
		bufLen:     len(data),
		onComplete: onComplete,
	}

	qh := h.qhPool.at(qhIndex)
	info := &h.qhInfo[qhIndex]

	if info.tailIndex < 0 {
		qh.Overlay.Token &^= (tokenStatusActive | tokenStatusHalted)
		qh.Current = makeLink(tdIdx, false)
	} else {
		tail := h.tdPool.at(info.tailIndex)
		tail.Next = makeLink(tdIdx, false)
	}

	info.tailIndex = tdIdx

	p.events.Push(Event{
		Kind:            EventStartOfPID,
		EndpointAddress: uint8(qh.endpointNumber()),
		DeviceAddress:   qh.deviceAddress(),
	})

	return nil
}

// ReapCompletions is the host-mode ISR bottom half: every pending transfer
// is checked on every call, regardless of whether an earlier entry in the
// set was still active, so one stalled endpoint never blocks completions on
// another. TDs found no longer active are removed from the pending set,
// their buffer released, and their completion callback invoked with the
// final byte count and any transport error observed.
func (p *Peripheral) ReapCompletions() {
	h := p.host

	defer h.cs.enter()()

	for tdIdx, pend := range h.pending {
		td := h.tdPool.at(tdIdx)

		if td.active() {
			continue
		}

		delete(h.pending, tdIdx)

		if info := &h.qhInfo[pend.qh]; info.tailIndex == tdIdx {
			info.tailIndex = -1
		}

		sent := pend.bufLen - td.remaining()

		var err error
		if td.halted() || td.transactionError() {
			err = &TransportError{
				Halted:           td.halted(),
				TransactionError: td.transactionError(),
				BytesTransferred: sent,
			}
		}

		if pend.bufAddr != 0 {
			h.arena.Free(pend.bufAddr)
		}

		h.tdPool.free(tdIdx)

		if pend.onComplete != nil {
			pend.onComplete(sent, err)
		}
	}
}
