// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package invariant reports violations of caller contracts this module does
// not diagnose at runtime — conditions the error handling design classifies
// as programmer error rather than a recoverable fault, such as priming an
// endpoint that is already priming without going through the ATDTW
// handshake. Violate prints the caller's source location and panics, rather
// than silently corrupting the DMA ring.
package invariant

import "runtime"

// Violate prints the file/line of the function two frames up the stack (the
// caller of the function that detected the violation) and panics with msg.
func Violate(msg string) {
	pc, _, _, ok := runtime.Caller(2)

	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			file, line := fn.FileLine(pc)
			print("\t", file, ":", line, "\n")
		}
	}

	panic("usb: " + msg)
}
