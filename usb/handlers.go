// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

// SetClassHandler installs the class-specific request handler (bmRequestType
// type bits == 1), invoked by the setup dispatcher for any request this core
// itself does not define. A nil handler (the default) stalls every class
// request.
func (p *Peripheral) SetClassHandler(h func(p *Peripheral, sp SetupPacket) ([]byte, error)) {
	p.device.handlers.Class = h
}

// SetVendorHandler installs the vendor-specific request handler
// (bmRequestType type bits == 2). A nil handler (the default) stalls every
// vendor request.
func (p *Peripheral) SetVendorHandler(h func(p *Peripheral, sp SetupPacket) ([]byte, error)) {
	p.device.handlers.Vendor = h
}

// SetDevice attaches the descriptor hierarchy a device-mode Peripheral
// serves standard requests from.
func (p *Peripheral) SetDevice(d *Device) {
	p.device.Device = d
}
