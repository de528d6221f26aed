// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy in the error handling design: stall is
// the only response a standard-request handler can give for an unhandled or
// malformed request; pool exhaustion is returned synchronously and never
// blocks; resolver miss covers an unknown descriptor or configuration
// value.
var (
	// ErrStall indicates the request could not be serviced and the
	// endpoint should be protocol-stalled.
	ErrStall = errors.New("usb: request stalled")

	// ErrPoolExhausted indicates a QH or TD pool had no free entries.
	ErrPoolExhausted = errors.New("usb: dma object pool exhausted")

	// ErrNoDescriptor indicates a GET_DESCRIPTOR/SET_CONFIGURATION target
	// does not resolve to any known descriptor or configuration.
	ErrNoDescriptor = errors.New("usb: no matching descriptor")
)

// TransportError carries the halted/transaction-error completion status of
// a host-mode transfer, surfaced to the completion callback rather than
// retried: no retry policy lives in this core, per the error handling
// design (retry is the class layer's concern).
type TransportError struct {
	Halted           bool
	TransactionError bool
	BytesTransferred int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("usb: transport error (halted=%v transactionError=%v bytesTransferred=%d)",
		e.Halted, e.TransactionError, e.BytesTransferred)
}
