// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"unicode/utf16"
)

// Standard USB descriptor sizes (USB2.0 §9.6).
const (
	DeviceDescriptorLength          = 18
	ConfigurationDescriptorLength   = 9
	InterfaceDescriptorLength       = 9
	EndpointDescriptorLength        = 7
	DeviceQualifierDescriptorLength = 10
)

// Descriptor type codes (USB2.0, Table 9-5).
const (
	DescDevice                  = 1
	DescConfiguration           = 2
	DescString                  = 3
	DescInterface               = 4
	DescEndpoint                = 5
	DescDeviceQualifier         = 6
	DescOtherSpeedConfiguration = 7
	DescInterfacePower          = 8
)

// DeviceDescriptor implements USB2.0 Table 9-8.
type DeviceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	BCDUSB            uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize     uint8
	VendorID          uint16
	ProductID         uint16
	Device            uint16
	Manufacturer      uint8
	Product           uint8
	SerialNumber      uint8
	NumConfigurations uint8
}

// SetDefaults fills in the fixed fields of a standard device descriptor.
func (d *DeviceDescriptor) SetDefaults() {
	d.Length = DeviceDescriptorLength
	d.DescriptorType = DescDevice
	d.BCDUSB = 0x0200
	d.MaxPacketSize = 64
}

// Bytes serializes the descriptor, little-endian, as it appears on the wire.
func (d *DeviceDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, d)
	return buf.Bytes()
}

// DeviceQualifierDescriptor implements USB2.0 §9.6.2.
type DeviceQualifierDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	BCDUSB            uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize     uint8
	NumConfigurations uint8
	Reserved          uint8
}

func (d *DeviceQualifierDescriptor) SetDefaults() {
	d.Length = DeviceQualifierDescriptorLength
	d.DescriptorType = DescDeviceQualifier
	d.BCDUSB = 0x0200
	d.MaxPacketSize = 64
}

func (d *DeviceQualifierDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, d)
	return buf.Bytes()
}

// EndpointDescriptor implements USB2.0 Table 9-13.
type EndpointDescriptor struct {
	Length          uint8
	DescriptorType  uint8
	EndpointAddress uint8
	Attributes      uint8
	MaxPacketSize   uint16
	Interval        uint8
}

func (d *EndpointDescriptor) SetDefaults() {
	d.Length = EndpointDescriptorLength
	d.DescriptorType = DescEndpoint
}

func (d *EndpointDescriptor) Number() int {
	return int(d.EndpointAddress & 0x0f)
}

func (d *EndpointDescriptor) DirectionOf() Direction {
	if d.EndpointAddress&0x80 != 0 {
		return In
	}
	return Out
}

func (d *EndpointDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, d)
	return buf.Bytes()
}

// InterfaceDescriptor implements USB2.0 Table 9-12.
type InterfaceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	InterfaceNumber   uint8
	AlternateSetting  uint8
	NumEndpoints      uint8
	InterfaceClass    uint8
	InterfaceSubClass uint8
	InterfaceProtocol uint8
	Interface         uint8

	Endpoints []*EndpointDescriptor
}

func (d *InterfaceDescriptor) SetDefaults() {
	d.Length = InterfaceDescriptorLength
	d.DescriptorType = DescInterface
}

func (d *InterfaceDescriptor) Bytes() []byte {
	buf := new(bytes.Buffer)

	binary.Write(buf, binary.LittleEndian, d.Length)
	binary.Write(buf, binary.LittleEndian, d.DescriptorType)
	binary.Write(buf, binary.LittleEndian, d.InterfaceNumber)
	binary.Write(buf, binary.LittleEndian, d.AlternateSetting)
	binary.Write(buf, binary.LittleEndian, d.NumEndpoints)
	binary.Write(buf, binary.LittleEndian, d.InterfaceClass)
	binary.Write(buf, binary.LittleEndian, d.InterfaceSubClass)
	binary.Write(buf, binary.LittleEndian, d.InterfaceProtocol)
	binary.Write(buf, binary.LittleEndian, d.Interface)

	for _, ep := range d.Endpoints {
		buf.Write(ep.Bytes())
	}

	return buf.Bytes()
}

// ConfigurationDescriptor implements USB2.0 Table 9-10. TotalLength is
// recomputed by Bytes() to cover the configuration plus every subordinate
// interface/endpoint descriptor, concatenated in enumeration order.
type ConfigurationDescriptor struct {
	Length             uint8
	DescriptorType     uint8
	TotalLength        uint16
	NumInterfaces      uint8
	ConfigurationValue uint8
	Configuration      uint8
	Attributes         uint8
	MaxPower           uint8

	Interfaces []*InterfaceDescriptor
}

func (d *ConfigurationDescriptor) SetDefaults() {
	d.Length = ConfigurationDescriptorLength
	d.DescriptorType = DescConfiguration
	d.Attributes = 0x80
}

func (d *ConfigurationDescriptor) AddInterface(iface *InterfaceDescriptor) {
	iface.InterfaceNumber = uint8(len(d.Interfaces))
	d.NumInterfaces++
	d.Interfaces = append(d.Interfaces, iface)
}

// Bytes serializes the configuration descriptor followed by every
// subordinate descriptor and recomputes TotalLength to match.
func (d *ConfigurationDescriptor) Bytes() []byte {
	var sub []byte

	for _, iface := range d.Interfaces {
		sub = append(sub, iface.Bytes()...)
	}

	d.TotalLength = uint16(d.Length) + uint16(len(sub))

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, d.Length)
	binary.Write(buf, binary.LittleEndian, d.DescriptorType)
	binary.Write(buf, binary.LittleEndian, d.TotalLength)
	binary.Write(buf, binary.LittleEndian, d.NumInterfaces)
	binary.Write(buf, binary.LittleEndian, d.ConfigurationValue)
	binary.Write(buf, binary.LittleEndian, d.Configuration)
	binary.Write(buf, binary.LittleEndian, d.Attributes)
	binary.Write(buf, binary.LittleEndian, d.MaxPower)
	buf.Write(sub)

	return buf.Bytes()
}

// StringDescriptor is a UTF-16LE string descriptor body, prefixed with the
// standard length/type header (USB2.0 §9.6.7).
type StringDescriptor []byte

func newStringDescriptor(body []byte) StringDescriptor {
	hdr := []byte{uint8(2 + len(body)), DescString}
	return append(hdr, body...)
}

// Device collects the descriptor hierarchy and host-driven settings for one
// USB device, extended from the single-speed-pool teacher version with a
// configuration pool per negotiated speed, as component 4.E requires.
type Device struct {
	Descriptor *DeviceDescriptor
	Qualifier  *DeviceQualifierDescriptor

	// ConfigurationsBySpeed holds each speed's configuration pool, which
	// findConfiguration searches linearly by ConfigurationValue.
	ConfigurationsBySpeed map[Speed][]*ConfigurationDescriptor

	// Strings is a sparse index -> descriptor map; index 0 conventionally
	// carries the supported-languages descriptor.
	Strings map[uint8]StringDescriptor

	ConfigurationValue uint8
	AlternateSetting   uint8
}

func NewDevice() *Device {
	return &Device{
		ConfigurationsBySpeed: make(map[Speed][]*ConfigurationDescriptor),
		Strings:               make(map[uint8]StringDescriptor),
	}
}

// SetLanguageCodes sets string descriptor index 0 (USB2.0 Table 9-15).
func (d *Device) SetLanguageCodes(codes []uint16) {
	var body []byte

	for _, c := range codes {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, c)
		body = append(body, b...)
	}

	d.Strings[0] = newStringDescriptor(body)
}

// AddString adds a UTF-16LE string descriptor and returns its index.
func (d *Device) AddString(s string) uint8 {
	u := utf16.Encode([]rune(s))
	body := make([]byte, 0, len(u)*2)

	for _, r := range u {
		body = append(body, byte(r), byte(r>>8))
	}

	idx := uint8(len(d.Strings))
	for {
		if _, used := d.Strings[idx]; !used {
			break
		}
		idx++
	}

	d.Strings[idx] = newStringDescriptor(body)

	return idx
}

// AddConfiguration registers a configuration descriptor for a given speed
// pool (full, low or high), updating the device descriptor's configuration
// count accordingly.
func (d *Device) AddConfiguration(speed Speed, conf *ConfigurationDescriptor) error {
	if d.Descriptor == nil {
		return errors.New("usb: device descriptor not set")
	}

	d.ConfigurationsBySpeed[speed] = append(d.ConfigurationsBySpeed[speed], conf)
	d.Descriptor.NumConfigurations = uint8(len(d.ConfigurationsBySpeed[speed]))

	return nil
}

// findConfiguration searches the given speed's configuration pool by
// ConfigurationValue. Value 0 is the well-defined "not configured" state:
// it returns (nil, nil), not an error.
func (d *Device) findConfiguration(speed Speed, value uint8) (*ConfigurationDescriptor, error) {
	if value == 0 {
		return nil, nil
	}

	for _, c := range d.ConfigurationsBySpeed[speed] {
		if c.ConfigurationValue == value {
			return c, nil
		}
	}

	return nil, ErrNoDescriptor
}

// findOtherSpeedConfiguration mirrors findConfiguration but searches the
// speed pool opposite to the one given.
func (d *Device) findOtherSpeedConfiguration(speed Speed, value uint8) (*ConfigurationDescriptor, error) {
	other := SpeedFull
	if speed == SpeedFull {
		other = SpeedHigh
	}

	return d.findConfiguration(other, value)
}

// findEndpointDescriptor walks a configuration's subordinate descriptors
// linearly, comparing endpoint address, per §4.E.
func findEndpointDescriptor(conf *ConfigurationDescriptor, addr uint8) *EndpointDescriptor {
	for _, iface := range conf.Interfaces {
		for _, ep := range iface.Endpoints {
			if ep.EndpointAddress == addr {
				return ep
			}
		}
	}

	return nil
}

func trimToLength(buf []byte, wLength uint16) []byte {
	if int(wLength) < len(buf) {
		return buf[:wLength]
	}

	return buf
}
