package leosim

import (
	"container/heap"
	"fmt"
	"math/rand"
	"os"
	"strconv"

	kitlog "github.com/go-kit/kit/log"
)

// statusInterval is how often the driver logs progress, in virtual seconds.
const statusInterval = 60.0

func itoa(v int) string { return strconv.Itoa(v) }

// Sim is the simulation context: the virtual clock, the event queue, the node
// registry and the scenario RNG. It is handed explicitly to every handler;
// there is exactly one logical thread draining the queue, so handlers run
// atomically with respect to each other.
type Sim struct {
	logger  kitlog.Logger
	horizon float64

	now    float64
	seq    uint64
	events eventHeap

	nodes map[Address]Node
	sats  []*Satellite
	gss   []*GroundStation

	hub    Address
	leaves []Address

	rng    *rand.Rand
	gst0   float64
	jitter *jitterSampler

	requireElevation bool
	dispatched       uint64
	statusTimer      *Event
}

// NewSim returns an empty simulation running to the given horizon, with a
// deterministic RNG stream for the given seed.
func NewSim(horizon float64, seed int64, logger kitlog.Logger) *Sim {
	return &Sim{
		logger:  logger,
		horizon: horizon,
		nodes:   make(map[Address]Node),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// SimLogInit builds the root logfmt logger. Unless verbose, records carrying
// level=debug (per-packet drops, routing chatter) are filtered out.
func SimLogInit(name string, verbose bool) kitlog.Logger {
	var klog kitlog.Logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	if !verbose {
		klog = debugFilter{next: klog}
	}
	return kitlog.With(klog, "sim", name)
}

type debugFilter struct{ next kitlog.Logger }

func (f debugFilter) Log(keyvals ...interface{}) error {
	for i := 0; i+1 < len(keyvals); i += 2 {
		if keyvals[i] == "level" && keyvals[i+1] == "debug" {
			return nil
		}
	}
	return f.next.Log(keyvals...)
}

// Now returns the current virtual time in seconds.
func (s *Sim) Now() float64 { return s.now }

// Horizon returns the configured end of the run.
func (s *Sim) Horizon() float64 { return s.horizon }

// GST0 returns the Greenwich sidereal angle at the scenario epoch.
func (s *Sim) GST0() float64 { return s.gst0 }

// SetEpochGST sets the sidereal angle at epoch; zero when no epoch is set.
func (s *Sim) SetEpochGST(θ float64) { s.gst0 = θ }

// RNG returns the scenario random stream. Handlers only draw from it inside
// event dispatch, so the draw order is fixed by the event order.
func (s *Sim) RNG() *rand.Rand { return s.rng }

// Logger returns the root logger.
func (s *Sim) Logger() kitlog.Logger { return s.logger }

// Node resolves an address to its node, or nil.
func (s *Sim) Node(addr Address) Node { return s.nodes[addr] }

// Satellites returns all satellites in ascending id order.
func (s *Sim) Satellites() []*Satellite { return s.sats }

// GroundStations returns all ground stations in scenario order.
func (s *Sim) GroundStations() []*GroundStation { return s.gss }

// Hub returns the hub station address, or NoAddress.
func (s *Sim) Hub() Address { return s.hub }

// Leaves returns the leaf station addresses in scenario order.
func (s *Sim) Leaves() []Address { return s.leaves }

// AddSatellite registers a satellite. Ids must be unique across all nodes.
func (s *Sim) AddSatellite(sat *Satellite) {
	if _, taken := s.nodes[sat.addr]; taken {
		panic(fmt.Errorf("address %d already registered", sat.addr))
	}
	s.nodes[sat.addr] = sat
	s.sats = append(s.sats, sat)
}

// AddGroundStation registers a ground station and its traffic role.
func (s *Sim) AddGroundStation(gs *GroundStation) {
	if _, taken := s.nodes[gs.addr]; taken {
		panic(fmt.Errorf("address %d already registered", gs.addr))
	}
	s.nodes[gs.addr] = gs
	s.gss = append(s.gss, gs)
	switch gs.role {
	case RoleHub:
		s.hub = gs.addr
	case RoleLeaf:
		s.leaves = append(s.leaves, gs.addr)
	}
}

// EnableJitter installs the shared Gaussian processing-jitter sampler over
// the scenario RNG.
func (s *Sim) EnableJitter(σ float64) {
	if σ > 0 {
		s.jitter = newJitterSampler(σ, s.rng)
	}
}

// RequireElevation turns on horizon gating for handover candidates.
func (s *Sim) RequireElevation(on bool) { s.requireElevation = on }

// Schedule inserts an event at virtual time t. Scheduling in the past is a
// programmer error and panics.
func (s *Sim) Schedule(t float64, kind EventKind, target Address, msg Message) *Event {
	if t < s.now {
		panic(fmt.Errorf("schedule at t=%f before now=%f", t, s.now))
	}
	s.seq++
	ev := &Event{Time: t, Kind: kind, Target: target, Msg: msg, seq: s.seq}
	s.events.push(ev)
	return ev
}

// Cancel tombstones an event. Cancelling twice, or cancelling an event that
// already fired, is a no-op.
func (s *Sim) Cancel(ev *Event) {
	if ev == nil || ev.canceled {
		return
	}
	ev.canceled = true
	if ev.index >= 0 {
		heap.Remove(&s.events, ev.index)
	}
}

// Run drains the event queue until it empties or the horizon passes, then
// shuts every node down and logs the summary scalars.
func (s *Sim) Run() {
	s.logger.Log("level", "info", "subsys", "sim", "status", "started", "horizon(s)", s.horizon)
	if s.horizon > statusInterval {
		s.statusTimer = s.Schedule(statusInterval, EvStatusTick, NoAddress, nil)
	}
	for {
		ev := s.events.pop()
		if ev == nil {
			break
		}
		if ev.Time > s.horizon {
			break
		}
		s.now = ev.Time
		s.dispatched++
		if ev.Target == NoAddress {
			s.handleStatusTick()
			continue
		}
		node := s.nodes[ev.Target]
		if node == nil {
			panic(fmt.Errorf("event for unknown node %d", ev.Target))
		}
		node.HandleEvent(s, ev)
	}
	s.now = s.horizon
	for _, node := range s.nodes {
		node.Shutdown(s)
	}
	s.logSummary()
}

func (s *Sim) handleStatusTick() {
	inFlight := 0
	for _, h := range s.events {
		if h.Kind == EvArrival && !h.canceled {
			if _, isData := h.Msg.(*DataPacket); isData {
				inFlight++
			}
		}
	}
	s.logger.Log("level", "info", "subsys", "sim", "t", s.now, "events", s.dispatched, "inflight", inFlight)
	next := s.now + statusInterval
	if next <= s.horizon {
		s.statusTimer = s.Schedule(next, EvStatusTick, NoAddress, nil)
	}
}

func (s *Sim) logSummary() {
	var sent, received, dropped, forwarded uint64
	for _, node := range s.allNodes() {
		st := node.Stats()
		sent += st.Sent
		received += st.Received
		dropped += st.Dropped
		forwarded += st.Forwarded
	}
	s.logger.Log("level", "notice", "subsys", "sim", "status", "finished",
		"t", s.now, "events", s.dispatched,
		"sent", sent, "received", received, "dropped", dropped, "forwarded", forwarded)
}

// allNodes returns satellites then ground stations, in registration order.
func (s *Sim) allNodes() []Node {
	nodes := make([]Node, 0, len(s.sats)+len(s.gss))
	for _, sat := range s.sats {
		nodes = append(nodes, sat)
	}
	for _, gs := range s.gss {
		nodes = append(nodes, gs)
	}
	return nodes
}
