// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usb


// Speed is the negotiated USB port speed, encoded in QH.Characteristics
// exactly as EHCI §3.6 mandates (FS=0, LS=1, HS=2). There is no constant
// for SuperSpeed (3); this core never negotiates it.
type Speed uint8

const (
	SpeedFull Speed = 0
	SpeedLow  Speed = 1
	SpeedHigh Speed = 2
)

func (s Speed) String() string {
	switch s {
	case SpeedFull:
		return "full"
	case SpeedLow:
		return "low"
	case SpeedHigh:
		return "high"
	default:
		return "unknown"
	}
}

// PID identifies the token type of a transfer descriptor.
type PID uint8

const (
	PIDOut   PID = 0
	PIDIn    PID = 1
	PIDSetup PID = 2
)

// Role discriminates which disjoint sub-state a Peripheral owns. Expressed
// as a sum type (role tag + two mutually exclusive pointer fields) rather
// than the teacher's overlapping-field union, per the REDESIGN FLAGS note
// on tagged unions of peripheral mode.
type Role uint8

const (
	RoleDevice Role = iota
	RoleHost
)

// Peripheral is one hardware controller instance, holding the register
// façade and exactly one role's substate. Operations dispatch on role at
// call sites where the role is statically known (the device ISR only calls
// device-mode methods, the host scheduler only calls host-mode methods) —
// there is no runtime "is this device or host" branch inside either half.
type Peripheral struct {
	regs *registers
	role Role

	device *deviceState // nil unless role == RoleDevice
	host   *hostState   // nil unless role == RoleHost

	events *eventQueue

	// EndpointCount is the number of logical endpoint numbers (0..N-1)
	// this controller instance exposes; the dQH table has 2x this many
	// entries, per §3's (endpoint_number*2)+is_in indexing invariant.
	EndpointCount int
}

// NewDevicePeripheral constructs a Peripheral in device mode over the given
// register base address.
func NewDevicePeripheral(base uint32, endpointCount int) *Peripheral {
	p := &Peripheral{
		regs:          newRegisters(base),
		role:          RoleDevice,
		EndpointCount: endpointCount,
		events:        newEventQueue(),
	}

	p.device = newDeviceState(endpointCount)

	for _, ep := range p.device.endpoints {
		ep.peripheral = p
	}

	p.device.endpoint(0, Out).OnSetupComplete = func(ep *Endpoint) {
		p.device.dispatchSetup(p, ep)
	}

	return p
}

// NewHostPeripheral constructs a Peripheral in host mode over the given
// register base address.
func NewHostPeripheral(base uint32, qhCapacity, tdCapacity int) *Peripheral {
	p := &Peripheral{
		regs:   newRegisters(base),
		role:   RoleHost,
		events: newEventQueue(),
	}

	p.host = newHostState(qhCapacity, tdCapacity)

	return p
}

// Role reports whether this peripheral is operating as a device or a host.
func (p *Peripheral) Role() Role {
	return p.role
}

// Speed returns the current negotiated port speed.
func (p *Peripheral) Speed() Speed {
	return p.regs.Speed()
}

// Events returns the observer queue fed by the ISR (port change, suspend,
// start-of-PID); see usb/events.go.
func (p *Peripheral) Events() *eventQueue {
	return p.events
}
