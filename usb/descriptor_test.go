// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import (
	"bytes"
	"testing"
)

func sampleConfiguration(value uint8) *ConfigurationDescriptor {
	conf := &ConfigurationDescriptor{}
	conf.SetDefaults()
	conf.ConfigurationValue = value

	iface := &InterfaceDescriptor{}
	iface.SetDefaults()

	ep := &EndpointDescriptor{EndpointAddress: 0x81, MaxPacketSize: 64}
	ep.SetDefaults()

	iface.Endpoints = append(iface.Endpoints, ep)
	conf.AddInterface(iface)

	return conf
}

func TestConfigurationDescriptorTotalLength(t *testing.T) {
	conf := sampleConfiguration(1)

	b := conf.Bytes()

	wantLen := ConfigurationDescriptorLength + InterfaceDescriptorLength + EndpointDescriptorLength

	if len(b) != wantLen {
		t.Fatalf("got %d bytes, want %d", len(b), wantLen)
	}

	if int(conf.TotalLength) != wantLen {
		t.Fatalf("TotalLength = %d, want %d", conf.TotalLength, wantLen)
	}
}

func TestFindEndpointDescriptor(t *testing.T) {
	conf := sampleConfiguration(1)

	ep := findEndpointDescriptor(conf, 0x81)

	if ep == nil {
		t.Fatal("expected to find endpoint 0x81")
	}

	if ep.Number() != 1 || ep.DirectionOf() != In {
		t.Fatalf("got number=%d direction=%v", ep.Number(), ep.DirectionOf())
	}

	if findEndpointDescriptor(conf, 0x02) != nil {
		t.Fatal("expected no match for an endpoint address not present")
	}
}

func TestDeviceAddStringAndFind(t *testing.T) {
	d := NewDevice()

	idx := d.AddString("usbarmory")

	got, ok := d.Strings[idx]

	if !ok {
		t.Fatal("expected string descriptor to be stored")
	}

	if got[1] != DescString {
		t.Fatalf("expected descriptor type %d, got %d", DescString, got[1])
	}
}

func TestFindConfigurationNotConfigured(t *testing.T) {
	d := NewDevice()
	d.Descriptor = &DeviceDescriptor{}
	d.Descriptor.SetDefaults()

	conf, err := d.findConfiguration(SpeedHigh, 0)

	if err != nil {
		t.Fatalf("value 0 must not be an error: %v", err)
	}

	if conf != nil {
		t.Fatal("value 0 must resolve to no configuration")
	}
}

func TestFindConfigurationUnknown(t *testing.T) {
	d := NewDevice()
	d.Descriptor = &DeviceDescriptor{}
	d.Descriptor.SetDefaults()

	if err := d.AddConfiguration(SpeedHigh, sampleConfiguration(1)); err != nil {
		t.Fatal(err)
	}

	if _, err := d.findConfiguration(SpeedHigh, 9); err != ErrNoDescriptor {
		t.Fatalf("expected ErrNoDescriptor, got %v", err)
	}
}

func TestTrimToLength(t *testing.T) {
	b := []byte("0123456789")

	if got := trimToLength(b, 4); !bytes.Equal(got, []byte("0123")) {
		t.Fatalf("got %q", got)
	}

	if got := trimToLength(b, 100); !bytes.Equal(got, b) {
		t.Fatalf("expected untruncated slice when wLength exceeds len, got %q", got)
	}
}
