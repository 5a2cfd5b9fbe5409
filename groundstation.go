package leosim

import (
	"math"

	kitlog "github.com/go-kit/kit/log"
)

// HandoverInterval is the period of the serving-satellite re-evaluation in
// virtual seconds.
const HandoverInterval = 1.0

// Role determines a ground station's traffic pattern.
type Role string

const (
	// RoleHub sends to a uniformly chosen leaf each interval.
	RoleHub Role = "hub"
	// RoleLeaf sends to the hub each interval.
	RoleLeaf Role = "leaf"
	// RoleNone sends to the configured peer address, if any.
	RoleNone Role = ""
)

// GroundStation is a fixed Earth endpoint. It sources and sinks application
// traffic and re-parents to the nearest visible satellite once per second.
type GroundStation struct {
	netdev

	latΦ, longθ float64 // radians
	altitude    float64 // km
	pos         []float64
	maxRange    float64 // km

	sendInterval float64 // s
	packetSize   int     // bytes
	role         Role
	peer         Address

	serving     Address // NoAddress when unattached
	servingGate int     // radio gate index on the serving satellite
	handovers   uint64
	nextPktID   uint64

	handoverTimer *Event
	trafficTimer  *Event
}

// NewGroundStation returns a ground station at the given geographic
// coordinate. Angles in degrees, altitude in km.
func NewGroundStation(addr Address, latDeg, lonDeg, altitude, maxRange float64, logger kitlog.Logger) *GroundStation {
	gs := &GroundStation{
		netdev:   newNetdev(addr, gsLabel(addr), logger),
		latΦ:     latDeg * deg2rad,
		longθ:    lonDeg * deg2rad,
		altitude: altitude,
		maxRange: maxRange,
	}
	gs.pos = GEO2ECEF(altitude, gs.latΦ, gs.longθ)
	// Gate 0 is the single dynamic uplink, disconnected until first handover.
	gs.gates = []gate{{}}
	return gs
}

func gsLabel(addr Address) string {
	return "gs-" + itoa(int(addr))
}

// Position returns the fixed ECEF position in km.
func (g *GroundStation) Position() []float64 { return g.pos }

// Serving returns the currently attached satellite, or NoAddress.
func (g *GroundStation) Serving() Address { return g.serving }

// Handovers returns how many times the serving satellite changed.
func (g *GroundStation) Handovers() uint64 { return g.handovers }

// SetTraffic configures the traffic generator.
func (g *GroundStation) SetTraffic(interval float64, packetSize int, role Role, peer Address) {
	g.sendInterval = interval
	g.packetSize = packetSize
	g.role = role
	g.peer = peer
}

// HandleEvent dispatches one event to the ground station.
func (g *GroundStation) HandleEvent(sim *Sim, ev *Event) {
	switch ev.Kind {
	case EvHandoverTick:
		g.evaluateHandover(sim)
		g.handoverTimer = sim.Schedule(sim.Now()+HandoverInterval, EvHandoverTick, g.addr, nil)
	case EvTrafficTick:
		g.generatePacket(sim)
		g.trafficTimer = sim.Schedule(sim.Now()+g.sendInterval, EvTrafficTick, g.addr, nil)
	case EvTxWake:
		g.handleTxWake(sim)
	case EvArrival:
		switch m := ev.Msg.(type) {
		case *DataPacket:
			g.receiveData(sim, m)
		case *RoutingAdvertisement:
			// Ground stations run no routing; advertisements die here.
		default:
			panic("unknown message variant")
		}
	default:
		panic("unexpected event at ground station: " + ev.Kind.String())
	}
}

// evaluateHandover picks the nearest in-range satellite and re-parents the
// dynamic link when the choice changed. Ties go to the lowest satellite id.
func (g *GroundStation) evaluateHandover(sim *Sim) {
	best := NoAddress
	bestDist := math.Inf(1)
	for _, sat := range sim.Satellites() {
		satPos := sat.orbit.ECEFAt(sim.Now(), sim.GST0())
		d := Dist(g.pos, satPos)
		if d > g.maxRange {
			continue
		}
		if sim.requireElevation && g.ElevationDeg(satPos) <= 0 {
			continue
		}
		if d < bestDist {
			best, bestDist = sat.addr, d
		}
	}
	if best == g.serving {
		return
	}

	if g.serving != NoAddress {
		old := sim.Node(g.serving).(*Satellite)
		old.dropRadioGate(g.servingGate)
		g.gates[0] = gate{}
	}
	if best != NoAddress {
		sat := sim.Node(best).(*Satellite)
		delay := bestDist/LightSpeed + ProcessingDelay
		up := &Link{Datarate: RadioDatarate, Delay: delay, jitter: sim.jitter}
		down := &Link{Datarate: RadioDatarate, Delay: delay, jitter: sim.jitter}
		g.servingGate = sat.addRadioGate(g.addr, down)
		g.gates[0] = gate{peer: best, link: up}
		g.logger.Log("level", "info", "subsys", "gs", "handover", best, "distance(km)", bestDist, "t", sim.Now())
	} else {
		g.logger.Log("level", "info", "subsys", "gs", "handover", "none", "t", sim.Now())
	}
	g.serving = best
	g.handovers++
}

// ElevationDeg returns the elevation of an ECEF position above this station's
// horizon, in degrees. The slant vector rotates into the SEZ frame; its z
// component over the slant range is the sine of the elevation.
func (g *GroundStation) ElevationDeg(satECEF []float64) float64 {
	ρECEF := diff(satECEF, g.pos)
	rSEZ := applyRot(rotY(math.Pi/2-g.latΦ), applyRot(rotZ(g.longθ), ρECEF))
	return math.Asin(rSEZ[2]/Norm(ρECEF)) * rad2deg
}

// generatePacket emits one application packet towards the role-derived
// destination. An unattached station tail-drops immediately.
func (g *GroundStation) generatePacket(sim *Sim) {
	dst := g.destination(sim)
	if dst == NoAddress {
		return
	}
	g.nextPktID++
	g.stats.Sent++
	pkt := &DataPacket{
		Src:     g.addr,
		Dst:     dst,
		ID:      g.nextPktID,
		Created: sim.Now(),
		Bits:    float64(g.packetSize) * 8,
	}
	if g.serving == NoAddress {
		g.stats.drop(DropUnattached)
		g.logger.Log("level", "debug", "subsys", "net", "drop", DropUnattached, "dst", dst)
		return
	}
	g.enqueue(sim, pkt, 0)
}

func (g *GroundStation) destination(sim *Sim) Address {
	switch g.role {
	case RoleHub:
		leaves := sim.Leaves()
		if len(leaves) == 0 {
			return NoAddress
		}
		return leaves[sim.RNG().Intn(len(leaves))]
	case RoleLeaf:
		return sim.Hub()
	default:
		return g.peer
	}
}

// receiveData sinks a packet addressed to this station and records its
// end-to-end metrics.
func (g *GroundStation) receiveData(sim *Sim, pkt *DataPacket) {
	if pkt.Dst != g.addr {
		// Mis-delivered during a handover race; the packet dies here.
		g.stats.drop(DropNoRoute)
		return
	}
	g.stats.recordRx(sim.Now(), pkt)
}

// Shutdown cancels the station's outstanding timers.
func (g *GroundStation) Shutdown(sim *Sim) {
	if g.handoverTimer != nil {
		sim.Cancel(g.handoverTimer)
		g.handoverTimer = nil
	}
	if g.trafficTimer != nil {
		sim.Cancel(g.trafficTimer)
		g.trafficTimer = nil
	}
	g.cancelWake(sim)
}
