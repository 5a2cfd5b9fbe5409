package leosim

import (
	kitlog "github.com/go-kit/kit/log"
)

// DefaultQueueSize is the transmit queue capacity in messages.
const DefaultQueueSize = 1000

// Node is a simulation endpoint: a satellite or a ground station.
type Node interface {
	Address() Address
	Label() string
	HandleEvent(s *Sim, ev *Event)
	Stats() *NodeStats
	Shutdown(s *Sim)
}

// DropReason classifies why a packet was discarded.
type DropReason uint8

const (
	// DropQueueOverflow is a tail drop at enqueue.
	DropQueueOverflow DropReason = iota + 1
	// DropGateDisconnected means the outbound gate lost its peer while the
	// packet was queued.
	DropGateDisconnected
	// DropNoRoute means the routing table has no entry for the destination.
	DropNoRoute
	// DropUnattached means a ground station tried to send with no serving
	// satellite.
	DropUnattached
)

func (r DropReason) String() string {
	switch r {
	case DropQueueOverflow:
		return "queue-overflow"
	case DropGateDisconnected:
		return "gate-disconnected"
	case DropNoRoute:
		return "no-route"
	case DropUnattached:
		return "no-serving-satellite"
	default:
		panic("unknown drop reason")
	}
}

// NodeStats accumulates the per-node scalar counters and metric vectors.
type NodeStats struct {
	Sent      uint64
	Received  uint64
	Dropped   uint64
	Forwarded uint64

	DropsByReason map[DropReason]uint64

	BitsReceived     float64
	FirstRx, LastRx  float64
	ForwardBits      float64
	FirstFwd, LastFwd float64

	EndToEndDelay []float64
	HopCounts     []int
}

func newNodeStats() NodeStats {
	return NodeStats{DropsByReason: make(map[DropReason]uint64)}
}

func (st *NodeStats) drop(reason DropReason) {
	st.Dropped++
	st.DropsByReason[reason]++
}

func (st *NodeStats) recordRx(now float64, pkt *DataPacket) {
	if st.Received == 0 {
		st.FirstRx = now
	}
	st.Received++
	st.LastRx = now
	st.BitsReceived += pkt.Bits
	st.EndToEndDelay = append(st.EndToEndDelay, now-pkt.Created)
	st.HopCounts = append(st.HopCounts, pkt.HopCount)
}

func (st *NodeStats) recordForward(now float64, pkt *DataPacket) {
	if st.Forwarded == 0 {
		st.FirstFwd = now
	}
	st.Forwarded++
	st.LastFwd = now
	st.ForwardBits += pkt.Bits
}

// Throughput returns the received application throughput in bit/s.
func (st *NodeStats) Throughput() float64 {
	if st.LastRx > st.FirstRx {
		return st.BitsReceived / (st.LastRx - st.FirstRx)
	}
	return 0
}

// ForwardThroughput returns the forwarded throughput in bit/s.
func (st *NodeStats) ForwardThroughput() float64 {
	if st.LastFwd > st.FirstFwd {
		return st.ForwardBits / (st.LastFwd - st.FirstFwd)
	}
	return 0
}

// DeliveryRatio returns success/(success+drops) with 1.0 for an idle node.
func (st *NodeStats) DeliveryRatio(success uint64) float64 {
	total := success + st.Dropped
	if total == 0 {
		return 1.0
	}
	return float64(success) / float64(total)
}

// gate is one outbound port of a node: a peer handle plus the owned channel
// towards it. A zero gate is disconnected.
type gate struct {
	peer Address
	link *Link
}

func (g gate) connected() bool { return g.peer != NoAddress && g.link != nil }

// txItem is a queued packet bound to a specific outbound gate.
type txItem struct {
	pkt     *DataPacket
	gateIdx int
}

// netdev is the transmit machinery shared by satellites and ground stations:
// the gate array, the bounded FIFO, the counters and the logger. The packet
// being transmitted stays at the queue head until the channel frees, so the
// queue bound covers it too.
type netdev struct {
	addr      Address
	label     string
	gates     []gate
	queue     []txItem
	qmax      int
	inService bool
	wake      *Event
	stats     NodeStats
	logger    kitlog.Logger
}

func newNetdev(addr Address, label string, logger kitlog.Logger) netdev {
	return netdev{
		addr:   addr,
		label:  label,
		qmax:   DefaultQueueSize,
		stats:  newNodeStats(),
		logger: kitlog.With(logger, "node", label),
	}
}

// Address returns the node address.
func (d *netdev) Address() Address { return d.addr }

// Label returns the display name of the node.
func (d *netdev) Label() string { return d.label }

// Stats exposes the node counters.
func (d *netdev) Stats() *NodeStats { return &d.stats }

// QueueLen returns the current transmit queue occupancy.
func (d *netdev) QueueLen() int { return len(d.queue) }

// enqueue appends a packet to the transmit queue, tail-dropping when full,
// then runs the queue.
func (d *netdev) enqueue(s *Sim, pkt *DataPacket, gateIdx int) {
	if len(d.queue) >= d.qmax {
		d.stats.drop(DropQueueOverflow)
		d.logger.Log("level", "debug", "subsys", "net", "drop", DropQueueOverflow, "dst", pkt.Dst)
		return
	}
	d.queue = append(d.queue, txItem{pkt: pkt, gateIdx: gateIdx})
	d.processTxQueue(s)
}

// processTxQueue serves the head of the FIFO until the queue empties, the
// channel is busy, or the gate disconnects. The head stays queued while its
// bits are on the wire and is popped once the channel frees; a busy channel
// schedules a single self-wake at its busy-until time, never two.
func (d *netdev) processTxQueue(s *Sim) {
	for len(d.queue) > 0 {
		head := d.queue[0]
		g := d.gates[head.gateIdx]
		if d.inService {
			if g.connected() && g.link.Busy(s.Now()) {
				if d.wake == nil {
					d.wake = s.Schedule(g.link.BusyUntil(), EvTxWake, d.addr, nil)
				}
				return
			}
			// Transmission complete; the bits left before any disconnect.
			d.queue = d.queue[1:]
			d.inService = false
			continue
		}
		if !g.connected() {
			d.stats.drop(DropGateDisconnected)
			d.logger.Log("level", "debug", "subsys", "net", "drop", DropGateDisconnected, "dst", head.pkt.Dst)
			d.queue = d.queue[1:]
			continue
		}
		if g.link.Busy(s.Now()) {
			if d.wake == nil {
				d.wake = s.Schedule(g.link.BusyUntil(), EvTxWake, d.addr, nil)
			}
			return
		}
		g.link.Transmit(s, g.peer, head.pkt)
		if head.pkt.Src != d.addr {
			d.stats.recordForward(s.Now(), head.pkt)
		}
		d.inService = true
		if d.wake == nil {
			d.wake = s.Schedule(g.link.BusyUntil(), EvTxWake, d.addr, nil)
		}
		return
	}
}

// handleTxWake clears the pending wake and re-runs the queue.
func (d *netdev) handleTxWake(s *Sim) {
	d.wake = nil
	d.processTxQueue(s)
}

// cancelWake drops any outstanding self-wake, used at shutdown.
func (d *netdev) cancelWake(s *Sim) {
	if d.wake != nil {
		s.Cancel(d.wake)
		d.wake = nil
	}
}
