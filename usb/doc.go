// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package usb implements a dual-role driver core for an EHCI/SEHCI-shaped
// USB 2.0 controller: device mode (answering enumeration from an external
// host) and host mode (driving an asynchronous transfer queue against
// downstream devices), sharing the same DMA-visible Queue Head (QH) and
// Transfer Descriptor (TD) data model.
//
// The register-level bringup, endpoint priming/flush, and Chapter 9 standard
// request handling are grounded on the NXP USBOH3USBO2 device-mode driver;
// the host-mode queue manager has no such model and is built directly on
// EHCI (see DESIGN.md). comms/transport framing, vendor command dispatch,
// SoC clock and pin-mux bringup and board peripherals (LEDs, debug ring,
// reset) are out of scope: callers wire this package's {Class, Vendor} handler
// hooks (standard requests are served by the package itself) and
// port/suspend/start-of-PID observers to whatever sits above it.
package usb
