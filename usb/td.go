// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

// Transfer descriptor token bit layout. Bits 0-7 mirror the real EHCI qTD
// status byte (transaction error at bit 3, halted at bit 6, active at bit
// 7); bits 8-9 carry the PID code, which buildTD fills in for both device-
// and host-mode TDs; bit 15 is
// interrupt-on-complete; bits 16-30 are the remaining byte count; bit 31 is
// the data toggle, set only when the owning QH's data-toggle-control bit
// delegates toggle management to software (§4.G).
const (
	tokenStatusTransactionError = 1 << 3
	tokenStatusHalted           = 1 << 6
	tokenStatusActive           = 1 << 7
	tokenStatusMask             = 0xff

	tokenPIDShift = 8
	tokenPIDMask  = 0b11

	tokenIOC = 1 << 15

	tokenBytesShift = 16
	tokenBytesMask  = 0x7fff

	tokenDataToggle = 1 << 31
)

const (
	// TDPages is the number of fixed 4 KiB physical buffer pages a TD
	// carries, per §3.
	TDPages    = 5
	tdPageSize = 4096
)

// TD is a 64-byte-aligned Transfer Descriptor. Next/AltNext are DMA-visible
// link words (terminate bit in the low bit); Token carries status, PID,
// IOC, byte count and data toggle; Buffer holds up to TDPages physical
// page pointers.
type TD struct {
	Next    linkWord
	AltNext linkWord
	Token   uint32
	Buffer  [TDPages]uint32

	// bufAddr/bufLen record the DMA arena allocation backing Buffer; the
	// EP0 control stages in setup.go and device.go reuse it as their
	// scratch buffer.
	bufAddr uint32
	bufLen  int
}

func (t *TD) active() bool {
	return t.Token&tokenStatusActive != 0
}

func (t *TD) halted() bool {
	return t.Token&tokenStatusHalted != 0
}

func (t *TD) transactionError() bool {
	return t.Token&tokenStatusTransactionError != 0
}

func (t *TD) pid() PID {
	return PID((t.Token >> tokenPIDShift) & tokenPIDMask)
}

func (t *TD) remaining() int {
	return int((t.Token >> tokenBytesShift) & tokenBytesMask)
}

func (t *TD) dataToggle() bool {
	return t.Token&tokenDataToggle != 0
}

// buildTD fills in a freshly allocated TD for a transfer of up to
// TDPages*4KiB, per "Building a Transfer Descriptor": next/alt-next
// terminated, active set, IOC set, total byte count set, PID and data
// toggle from the caller, and the five page pointers derived from addr.
func buildTD(t *TD, pid PID, dataToggle bool, addr uint32, size int) {
	*t = TD{
		Next:    terminatedLink,
		AltNext: terminatedLink,
		bufAddr: addr,
		bufLen:  size,
	}

	token := uint32(size&tokenBytesMask) << tokenBytesShift
	token |= tokenIOC
	token |= tokenStatusActive
	token |= uint32(pid) << tokenPIDShift

	if dataToggle {
		token |= tokenDataToggle
	}

	t.Token = token

	for i := 0; i < TDPages; i++ {
		page := addr + uint32(i*tdPageSize)
		t.Buffer[i] = page &^ (tdPageSize - 1)

		if i == 0 {
			// first page pointer keeps the actual (possibly
			// unaligned within the page) start offset.
			t.Buffer[i] = addr
		}
	}
}
