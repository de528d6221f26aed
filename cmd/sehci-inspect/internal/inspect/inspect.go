// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package inspect backs the sehci-inspect subcommands: mapping a
// controller's register block and reading it out, either as a named dump or
// as a blake2b fingerprint suitable for diffing two snapshots.
package inspect

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/usbarmory/sehci/platform"
	"github.com/usbarmory/sehci/usb"
)

// registerBlockSize bounds the mmap window; it covers every offset
// usb.DumpRegisters reads.
const registerBlockSize = 0x200

// RegisterNames is the stable key order Dump's result is printed and hashed
// in, matching usb.DumpRegisters' keys.
var RegisterNames = []string{
	"USBCMD",
	"USBSTS",
	"USBINTR",
	"FRINDEX",
	"DEVICEADDR",
	"ENDPOINTLISTADDR",
	"PORTSC1",
	"OTGSC",
	"USBMODE",
	"ENDPTSETUPSTAT",
	"ENDPTPRIME",
	"ENDPTFLUSH",
	"ENDPTSTAT",
	"ENDPTCOMPLETE",
}

// Dump maps the controller at physBase on device and reads back the named
// register subset usb.DumpRegisters defines.
func Dump(device string, physBase uint32) (map[string]uint32, error) {
	region, err := platform.OpenMMIORegion(device, physBase, registerBlockSize)
	if err != nil {
		return nil, err
	}
	defer region.Close()

	return usb.DumpRegisters(region.Base()), nil
}

// Fingerprint hashes the register dump, in RegisterNames order, with
// blake2b-256.
func Fingerprint(device string, physBase uint32) ([]byte, error) {
	regs, err := Dump(device, physBase)
	if err != nil {
		return nil, err
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 4)

	for _, name := range RegisterNames {
		binary.LittleEndian.PutUint32(buf, regs[name])
		h.Write(buf)
	}

	return h.Sum(nil), nil
}
