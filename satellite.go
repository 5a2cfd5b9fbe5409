package leosim

import (
	kitlog "github.com/go-kit/kit/log"
)

// TopologyInterval is the period of the per-satellite topology refresh in
// virtual seconds.
const TopologyInterval = 1.0

// Satellite is an on-orbit router. It carries no application traffic of its
// own: packets transit through it between ground stations.
type Satellite struct {
	netdev

	orbit       OrbitParams
	maxISLRange float64

	pos       []float64 // cached ECEF, refreshed each topology tick
	islGates  int       // gates below this index are static ISLs
	neighbors []neighbor
	table     RoutingTable

	topoTimer *Event
}

// NewSatellite returns a satellite with the given id and orbit. ISL gates are
// wired at scenario build; radio gates grow as ground stations attach.
func NewSatellite(id Address, orbit OrbitParams, maxISLRange float64, logger kitlog.Logger) *Satellite {
	sat := &Satellite{
		netdev:      newNetdev(id, satLabel(id), logger),
		orbit:       orbit,
		maxISLRange: maxISLRange,
		table:       make(RoutingTable),
	}
	sat.pos = orbit.ECEFAt(0, 0)
	return sat
}

func satLabel(id Address) string {
	return "sat-" + itoa(int(id))
}

// Position returns the last cached ECEF position in km.
func (s *Satellite) Position() []float64 { return s.pos }

// Orbit returns the satellite's orbital elements.
func (s *Satellite) Orbit() OrbitParams { return s.orbit }

// Table returns the live routing table.
func (s *Satellite) Table() RoutingTable { return s.table }

// addISLGate wires a static inter-satellite channel and returns its gate
// index. Only valid before any radio gate exists.
func (s *Satellite) addISLGate(peer Address, link *Link) int {
	if s.islGates != len(s.gates) {
		panic("ISL gates must be wired before any radio gate")
	}
	s.gates = append(s.gates, gate{peer: peer, link: link})
	s.islGates++
	return len(s.gates) - 1
}

// addRadioGate grows the radio gate array by one for a newly attached ground
// station and returns the fresh index.
func (s *Satellite) addRadioGate(peer Address, link *Link) int {
	s.gates = append(s.gates, gate{peer: peer, link: link})
	return len(s.gates) - 1
}

// dropRadioGate invalidates the dynamic gate at idx during handover detach.
// The index stays allocated so queued packets drop cleanly on it.
func (s *Satellite) dropRadioGate(idx int) {
	s.gates[idx] = gate{}
}

// HandleEvent dispatches one event to the satellite.
func (s *Satellite) HandleEvent(sim *Sim, ev *Event) {
	switch ev.Kind {
	case EvTopologyTick:
		s.refreshTopology(sim)
		s.topoTimer = sim.Schedule(sim.Now()+TopologyInterval, EvTopologyTick, s.addr, nil)
	case EvTxWake:
		s.handleTxWake(sim)
	case EvArrival:
		switch m := ev.Msg.(type) {
		case *DataPacket:
			s.receiveData(sim, m)
		case *RoutingAdvertisement:
			s.receiveAdvertisement(m)
		default:
			panic("unknown message variant")
		}
	default:
		panic("unexpected event at satellite: " + ev.Kind.String())
	}
}

// refreshTopology recomputes the satellite position, refreshes every
// connected gate's distance and delay, rebuilds the neighbour set and runs
// the routing update plus broadcast.
func (s *Satellite) refreshTopology(sim *Sim) {
	pos, converged := s.orbit.ecefAt(sim.Now(), sim.GST0())
	if !converged {
		s.logger.Log("level", "warning", "subsys", "orbit", "message", "Kepler solver did not converge, keeping last iterate", "t", sim.Now())
	}
	s.pos = pos

	s.neighbors = s.neighbors[:0]
	for idx := range s.gates {
		g := s.gates[idx]
		if !g.connected() {
			continue
		}
		switch peer := sim.Node(g.peer).(type) {
		case *Satellite:
			peerPos := peer.orbit.ECEFAt(sim.Now(), sim.GST0())
			d := Dist(pos, peerPos)
			g.link.Delay = d/LightSpeed + ProcessingDelay
			if d > s.maxISLRange {
				// Out of range: the channel stays up but routing ignores it.
				continue
			}
			s.neighbors = append(s.neighbors, neighbor{addr: g.peer, dist: d, gateIdx: idx})
		case *GroundStation:
			d := Dist(pos, peer.Position())
			s.neighbors = append(s.neighbors, neighbor{addr: g.peer, dist: d, gateIdx: idx})
		default:
			panic("unknown peer type")
		}
	}

	s.updateLocalRoutes()
	s.broadcastRoutes(sim)
}

// receiveData forwards a transiting packet. A packet addressed to the
// satellite itself is recorded and consumed; regular traffic always
// terminates at a ground station.
func (s *Satellite) receiveData(sim *Sim, pkt *DataPacket) {
	if pkt.Dst == s.addr {
		s.stats.recordRx(sim.Now(), pkt)
		return
	}
	s.forward(sim, pkt)
}

// forward routes a packet by table lookup and enqueues it on the next hop's
// outbound gate.
func (s *Satellite) forward(sim *Sim, pkt *DataPacket) {
	entry, ok := s.table[pkt.Dst]
	if !ok {
		s.stats.drop(DropNoRoute)
		s.logger.Log("level", "debug", "subsys", "route", "drop", DropNoRoute, "dst", pkt.Dst)
		return
	}
	for _, nb := range s.neighbors {
		if nb.addr == entry.NextHop {
			pkt.HopCount++
			s.enqueue(sim, pkt, nb.gateIdx)
			return
		}
	}
	// The table invariant ties next hops to neighbours; a miss here means the
	// adjacency vanished in this very tick.
	s.stats.drop(DropNoRoute)
	s.logger.Log("level", "debug", "subsys", "route", "drop", DropNoRoute, "dst", pkt.Dst)
}

// Shutdown cancels the satellite's outstanding timers.
func (s *Satellite) Shutdown(sim *Sim) {
	if s.topoTimer != nil {
		sim.Cancel(s.topoTimer)
		s.topoTimer = nil
	}
	s.cancelWake(sim)
}
