// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

// devicePendingTransfer tracks one outstanding device-mode data transfer on
// a non-control endpoint between QueueTransfer and reapEndpointTransfer: the
// DMA buffer it owns (freed on completion) and the caller's completion
// callback, mirroring host.go's pendingTransfer.
type devicePendingTransfer struct {
	bufAddr    uint32
	bufLen     int
	onComplete func(bytesTransferred int, err error)
}

// QueueTransfer schedules a data transfer on a non-control endpoint: EP0
// is out of scope here since its three stages are driven entirely through
// the dQH Overlay TD by the setup-stage state machine in setup.go. The TD
// is allocated from the device-mode pool and either becomes the endpoint's
// new chain head via prime, or is appended to the existing chain via the
// ATDTW handshake in scheduleAppend when a transfer is already in flight —
// this is the only device-mode caller of scheduleAppend, closing the gap
// the race handler exists to cover (§4.C).
func (p *Peripheral) QueueTransfer(epNum int, dir Direction, data []byte, onComplete func(bytesTransferred int, err error)) error {
	if epNum == 0 {
		return ErrStall
	}

	if len(data) > TDPages*tdPageSize {
		return ErrStall
	}

	d := p.device

	tdIdx, td, err := d.tdPool.allocate()
	if err != nil {
		return err
	}

	var addr uint32

	if len(data) > 0 {
		addr, err = d.arena.Alloc(len(data), 64)
		if err != nil {
			d.tdPool.free(tdIdx)
			return err
		}

		if dir == Out {
			d.arena.Write(addr, 0, data)
		}
	}

	pid := PIDIn
	if dir == Out {
		pid = PIDOut
	}

	buildTD(td, pid, false, addr, len(data))

	ep := d.endpoint(epNum, dir)

	d.pending[tdIdx] = &devicePendingTransfer{
		bufAddr:    addr,
		bufLen:     len(data),
		onComplete: onComplete,
	}

	if ep.tailIndex < 0 {
		ep.prime(makeLink(tdIdx, false))
	} else if err := ep.scheduleAppend(d.tdPool.at(ep.tailIndex), makeLink(tdIdx, false)); err != nil {
		delete(d.pending, tdIdx)
		d.tdPool.free(tdIdx)
		if addr != 0 {
			d.arena.Free(addr)
		}
		return err
	}

	ep.tailIndex = tdIdx

	if ep.OnTransferComplete == nil {
		ep.OnTransferComplete = d.reapEndpointTransfer
	}

	return nil
}

// reapEndpointTransfer is the device-mode completion callback QueueTransfer
// installs on a non-control endpoint: it scans every pending transfer on
// every call, exactly as ReapCompletions does for the host-mode async
// queue, so one stalled transfer never masks another endpoint's
// completion. A reaped TD that was the chain tail resets the endpoint back
// to idle (tailIndex = -1) so the next QueueTransfer call primes afresh
// instead of appending.
func (d *deviceState) reapEndpointTransfer(ep *Endpoint) {
	for tdIdx, pend := range d.pending {
		td := d.tdPool.at(tdIdx)

		if td.active() {
			continue
		}

		delete(d.pending, tdIdx)

		sent := pend.bufLen - td.remaining()

		var transferErr error
		if td.halted() || td.transactionError() {
			transferErr = &TransportError{
				Halted:           td.halted(),
				TransactionError: td.transactionError(),
				BytesTransferred: sent,
			}
		}

		if pend.bufAddr != 0 {
			d.arena.Free(pend.bufAddr)
		}

		for _, owner := range d.endpoints {
			if owner.tailIndex == tdIdx {
				owner.tailIndex = -1
			}
		}

		d.tdPool.free(tdIdx)

		if pend.onComplete != nil {
			pend.onComplete(sent, transferErr)
		}
	}
}
