// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

// linkWord is the DMA-visible horizontal-link / next-pointer encoding EHCI
// requires: a 32-bit word whose low bit is a terminate flag. In this
// package the remaining bits hold a pool index shifted left by one, not a
// physical address. Per the REDESIGN FLAGS
// note, the rest of this package treats native Go pointers/indices as the
// currency for in-process bookkeeping and only folds them into a linkWord
// at the DMA boundary (here: when a QH/TD is made visible to the "hardware"
// ring, i.e. to an ISR goroutine walking the same structures).
//
// The word is not used as a freelist link: pool keeps its freelist in a
// separate index array, so a pooled object's linkWord says nothing about
// whether that object is free or allocated.
type linkWord uint32

const linkTerminate = 1

// terminatedLink is the canonical "not linked to anything" value.
const terminatedLink linkWord = linkTerminate

func makeLink(index int32, terminate bool) linkWord {
	w := linkWord(uint32(index) << 1)

	if terminate {
		w |= linkTerminate
	}

	return w
}

// isTerminated reports whether the terminate bit is set.
func (l linkWord) isTerminated() bool {
	return l&linkTerminate != 0
}

// index recovers the pool index encoded in the link. The index bits are
// kept whether or not the terminate bit is set; terminatedLink itself
// encodes index 0.
func (l linkWord) index() int32 {
	return int32(l >> 1)
}
