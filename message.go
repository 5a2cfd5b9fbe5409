package leosim

// Address identifies a node. Satellite ids and ground station addresses share
// the space and are disjoint. Zero means "no node".
type Address int

// NoAddress is the zero Address.
const NoAddress Address = 0

// Message is the closed set of payloads carried by arrival events. Data
// packets and routing advertisements are the only variants; timers carry no
// payload.
type Message interface {
	messageBits() float64
}

// DataPacket is one application packet. All fields but HopCount are immutable
// after creation; HopCount increments on each forwarding hop.
type DataPacket struct {
	Src      Address
	Dst      Address
	ID       uint64
	HopCount int
	Created  float64 // virtual seconds
	Bits     float64
}

func (p *DataPacket) messageBits() float64 { return p.Bits }

// AdvertisedRoute is one (destination, cost) pair inside an advertisement.
type AdvertisedRoute struct {
	Dest Address
	Cost float64
}

// RoutingAdvertisement carries a satellite's routing table to a neighbour,
// including the self-entry at cost zero.
type RoutingAdvertisement struct {
	Source  Address
	Entries []AdvertisedRoute
}

// Advertisements ride the control plane and do not consume link bandwidth.
func (a *RoutingAdvertisement) messageBits() float64 { return 0 }
