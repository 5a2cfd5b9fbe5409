package leosim

import "sort"

// routeEntry is the forwarding decision for one destination.
type routeEntry struct {
	NextHop Address
	Cost    float64 // km of accumulated link distance
}

// RoutingTable maps destination addresses to next hops. One entry per
// destination; the next hop is always a current neighbour.
type RoutingTable map[Address]routeEntry

// neighbor is one usable adjacency: peer handle, cached distance and the
// outbound gate to reach it.
type neighbor struct {
	addr    Address
	dist    float64
	gateIdx int
}

// updateLocalRoutes refreshes the table after a neighbour rebuild: routes
// whose next hop left the neighbour set are purged, and every current
// neighbour gets a direct entry at link distance. Entries learned from
// advertisements survive as long as their next hop stays adjacent; the
// protocol runs no split horizon, and a learned route is neither re-costed
// nor removed by the refresh while its next hop remains a neighbour.
func (s *Satellite) updateLocalRoutes() {
	adjacent := make(map[Address]bool, len(s.neighbors))
	for _, nb := range s.neighbors {
		adjacent[nb.addr] = true
	}
	for dest, entry := range s.table {
		if !adjacent[entry.NextHop] {
			delete(s.table, dest)
		}
	}
	for _, nb := range s.neighbors {
		s.table[nb.addr] = routeEntry{NextHop: nb.addr, Cost: nb.dist}
	}
}

// broadcastRoutes sends one advertisement, carrying the full table plus the
// self-entry at cost zero, to every current neighbour. Advertisements travel
// at the link propagation delay without occupying the data queue.
func (s *Satellite) broadcastRoutes(sim *Sim) {
	entries := make([]AdvertisedRoute, 0, len(s.table)+1)
	entries = append(entries, AdvertisedRoute{Dest: s.addr, Cost: 0})
	for dest, entry := range s.table {
		entries = append(entries, AdvertisedRoute{Dest: dest, Cost: entry.Cost})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Dest < entries[j].Dest })
	adv := &RoutingAdvertisement{Source: s.addr, Entries: entries}
	for _, nb := range s.neighbors {
		g := s.gates[nb.gateIdx]
		if !g.connected() {
			continue
		}
		sim.Schedule(sim.Now()+g.link.Delay, EvArrival, nb.addr, adv)
	}
}

// receiveAdvertisement folds a neighbour's advertisement into the table. The
// link cost is the cached distance to the source; entries only ever replace
// an existing route when strictly cheaper, so ties keep the older route and
// costs decrease monotonically between refreshes.
func (s *Satellite) receiveAdvertisement(adv *RoutingAdvertisement) {
	var ℓ float64
	found := false
	for _, nb := range s.neighbors {
		if nb.addr == adv.Source {
			ℓ = nb.dist
			found = true
			break
		}
	}
	if !found {
		// Stale advertisement from a peer that drifted out of range.
		return
	}
	for _, e := range adv.Entries {
		if e.Dest == s.addr {
			continue
		}
		total := e.Cost + ℓ
		existing, ok := s.table[e.Dest]
		if !ok || total < existing.Cost {
			s.table[e.Dest] = routeEntry{NextHop: adv.Source, Cost: total}
		}
	}
}
