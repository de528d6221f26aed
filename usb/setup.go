// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb

import (
	"encoding/binary"
	"log"
)

// SetupPacket is the 8-byte wire layout of a USB2.0 Table 9-2 setup packet.
type SetupPacket struct {
	BMRequestType uint8
	BRequest      uint8
	WValue        uint16
	WIndex        uint16
	WLength       uint16
}

func readSetupPacket(td *TD) SetupPacket {
	b := make([]byte, 8)

	b[0] = byte(td.Buffer[0])
	b[1] = byte(td.Buffer[0] >> 8)
	b[2] = byte(td.Buffer[0] >> 16)
	b[3] = byte(td.Buffer[0] >> 24)
	b[4] = byte(td.Buffer[1])
	b[5] = byte(td.Buffer[1] >> 8)
	b[6] = byte(td.Buffer[1] >> 16)
	b[7] = byte(td.Buffer[1] >> 24)

	return SetupPacket{
		BMRequestType: b[0],
		BRequest:      b[1],
		WValue:        binary.LittleEndian.Uint16(b[2:4]),
		WIndex:        binary.LittleEndian.Uint16(b[4:6]),
		WLength:       binary.LittleEndian.Uint16(b[6:8]),
	}
}

// bmRequestType bit layout (USB2.0 Table 9-2).
const (
	reqDirDeviceToHost = 1 << 7

	reqTypeShift    = 5
	reqTypeMask     = 0b11
	reqTypeStandard = 0
	reqTypeClass    = 1
	reqTypeVendor   = 2
)

// Standard request codes (USB2.0 Table 9-4).
const (
	reqGetStatus        = 0
	reqClearFeature     = 1
	reqSetFeature       = 3
	reqSetAddress       = 5
	reqGetDescriptor    = 6
	reqSetDescriptor    = 7
	reqGetConfiguration = 8
	reqSetConfiguration = 9
	reqGetInterface     = 10
	reqSetInterface     = 11
)

func (sp SetupPacket) direction() Direction {
	if sp.BMRequestType&reqDirDeviceToHost != 0 {
		return In
	}
	return Out
}

func (sp SetupPacket) requestType() int {
	return int((sp.BMRequestType >> reqTypeShift) & reqTypeMask)
}

func (sp SetupPacket) descriptorType() uint8 {
	return uint8(sp.WValue >> 8)
}

func (sp SetupPacket) descriptorIndex() uint8 {
	return uint8(sp.WValue)
}

// setupStage tracks the 3-stage control transfer state machine (§4.F):
// idle between transfers, data while a multi-packet data stage is being
// clocked out, status while waiting for the closing zero-length handshake.
type setupStage uint8

const (
	setupStageIdle setupStage = iota
	setupStageData
	setupStageStatus
)

// requestHandler services one class of request (standard, class or vendor)
// and returns the response payload for an IN data stage, or nil for a
// status-only request. Returning an error stalls the endpoint.
type requestHandler func(p *Peripheral, sp SetupPacket) ([]byte, error)

type handlerTrio struct {
	Standard requestHandler
	Class    requestHandler
	Vendor   requestHandler
}

// controlScratchSize bounds the IN data-stage scratch buffer. GET_DESCRIPTOR
// responses (configuration descriptors with subordinate interfaces and
// endpoints) are the largest payload this core serves.
const controlScratchSize = 512

// dispatchSetup is wired as EP0 OUT's OnSetupComplete. It runs the request
// through the handler trio selected by the request-type bits, then either
// queues an IN data stage, arms a status-only handshake, or stalls.
func (d *deviceState) dispatchSetup(p *Peripheral, ep *Endpoint) {
	sp := ep.setup
	d.stage = setupStageData

	var handler requestHandler

	switch sp.requestType() {
	case reqTypeStandard:
		handler = d.handleStandardRequest
	case reqTypeClass:
		handler = d.handlers.Class
	case reqTypeVendor:
		handler = d.handlers.Vendor
	default:
		handler = nil
	}

	if handler == nil {
		d.stallControl(ep)
		return
	}

	data, err := handler(p, sp)
	if err != nil {
		log.Printf("usb: setup error, %v", err)
		d.stallControl(ep)
		return
	}

	if sp.direction() == In && sp.WLength > 0 {
		d.queueControlIn(p, trimToLength(data, sp.WLength))
	} else {
		d.armStatusStage(p)
	}
}

func (d *deviceState) stallControl(ep *Endpoint) {
	d.stage = setupStageIdle
	ep.stall()
}

// queueControlIn writes the response into the EP0 IN scratch buffer and
// primes it, then arms the closing OUT status stage.
func (d *deviceState) queueControlIn(p *Peripheral, data []byte) {
	in := d.endpoint(0, In)
	qh := in.qh()

	if qh.Overlay.bufAddr == 0 || qh.Overlay.bufLen < controlScratchSize {
		addr, err := d.arena.Alloc(controlScratchSize, 64)
		if err != nil {
			d.stallControl(in)
			return
		}

		qh.Overlay.bufAddr = addr
		qh.Overlay.bufLen = controlScratchSize
	}

	d.arena.Write(qh.Overlay.bufAddr, 0, data)
	buildTD(&qh.Overlay, PIDIn, false, qh.Overlay.bufAddr, len(data))

	in.prime(terminatedLink)

	d.stage = setupStageStatus
	d.armStatusStage(p)
}

// armStatusStage primes the direction opposite the data stage (or IN, for
// a no-data-stage request) with a zero-length transfer to close the
// transfer, per USB2.0 §8.5.3.
func (d *deviceState) armStatusStage(p *Peripheral) {
	sp := d.endpoint(0, Out).setup

	dir, pid := In, PIDIn
	if sp.direction() == In && sp.WLength > 0 {
		dir, pid = Out, PIDOut
	}

	ep := d.endpoint(0, dir)
	qh := ep.qh()

	buildTD(&qh.Overlay, pid, false, qh.Overlay.bufAddr, 0)
	ep.prime(terminatedLink)

	d.stage = setupStageIdle
}

// handleStandardRequest implements the Chapter 9 standard requests this
// core serves: GET_STATUS, SET_ADDRESS, GET_DESCRIPTOR, GET_CONFIGURATION
// and SET_CONFIGURATION. Anything else stalls.
func (d *deviceState) handleStandardRequest(p *Peripheral, sp SetupPacket) ([]byte, error) {
	switch sp.BRequest {
	case reqGetStatus:
		return []byte{0x00, 0x00}, nil

	case reqSetAddress:
		addr := uint8(sp.WValue)

		if addr == 0 {
			p.SetAddressImmediate(0)
		} else {
			p.SetAddressDeferred(addr)
		}

		return nil, nil

	case reqGetDescriptor:
		return d.getDescriptor(p, sp)

	case reqGetConfiguration:
		if sp.WLength != 1 {
			return nil, ErrStall
		}
		return []byte{d.Device.ConfigurationValue}, nil

	case reqSetConfiguration:
		return nil, d.setConfiguration(p, sp)

	default:
		return nil, ErrStall
	}
}

// getDescriptor resolves GET_DESCRIPTOR against the negotiated speed's
// descriptor pool.
//
// The configuration/other-speed-configuration lookup below adds one to the
// requested index before searching ConfigurationsBySpeed: the source this
// behavior is carried from indexes its configuration table by (value-1) but
// compares against the raw wValue low byte without subtracting, an
// off-by-one that downstream hosts have come to depend on. See the open
// question this resolves in DESIGN.md.
func (d *deviceState) getDescriptor(p *Peripheral, sp SetupPacket) ([]byte, error) {
	if d.Device == nil {
		return nil, ErrNoDescriptor
	}

	speed := p.Speed()

	switch sp.descriptorType() {
	case DescDevice:
		return d.Device.Descriptor.Bytes(), nil

	case DescDeviceQualifier:
		if d.Device.Qualifier == nil {
			return nil, ErrNoDescriptor
		}
		return d.Device.Qualifier.Bytes(), nil

	case DescConfiguration:
		conf, err := d.Device.findConfiguration(speed, sp.descriptorIndex()+1)
		if err != nil || conf == nil {
			return nil, ErrNoDescriptor
		}
		return conf.Bytes(), nil

	case DescOtherSpeedConfiguration:
		conf, err := d.Device.findOtherSpeedConfiguration(speed, sp.descriptorIndex()+1)
		if err != nil || conf == nil {
			return nil, ErrNoDescriptor
		}
		return conf.Bytes(), nil

	case DescString:
		s, ok := d.Device.Strings[sp.descriptorIndex()]
		if !ok {
			return nil, ErrNoDescriptor
		}
		return s, nil

	default:
		return nil, ErrNoDescriptor
	}
}

// setConfiguration applies a SET_CONFIGURATION request: value 0 returns the
// device to the unconfigured state, any other value must resolve in the
// current speed's configuration pool, after which every endpoint it
// describes is enabled.
func (d *deviceState) setConfiguration(p *Peripheral, sp SetupPacket) error {
	value := uint8(sp.WValue)

	if value == 0 {
		d.Device.ConfigurationValue = 0
		return nil
	}

	conf, err := d.Device.findConfiguration(p.Speed(), value)
	if err != nil {
		return err
	}

	for _, iface := range conf.Interfaces {
		for _, epd := range iface.Endpoints {
			ep := d.endpoint(epd.Number(), epd.DirectionOf())
			ep.peripheral = p
			ep.qh().setMaxPacketLength(int(epd.MaxPacketSize))
			ep.enable(int(epd.Attributes&0b11), int(epd.MaxPacketSize))
		}
	}

	d.Device.ConfigurationValue = value

	return nil
}
