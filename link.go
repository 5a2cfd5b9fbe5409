package leosim

import "math"

const (
	// DefaultISLDatarate is the datarate of an inter-satellite link in bit/s.
	DefaultISLDatarate = 10e9
	// RadioDatarate is the datarate of a ground-to-satellite link in bit/s.
	RadioDatarate = 4e9
	// ProcessingDelay is the fixed per-hop processing allowance added to the
	// propagation delay whenever a link delay is refreshed.
	ProcessingDelay = 1e-3
)

// Link is a unidirectional point-to-point channel. Full duplex between two
// endpoints is modelled as two links. The sender side owns the link; the
// receiver only ever observes arrival events.
type Link struct {
	Datarate float64 // bit/s
	Delay    float64 // one-way, seconds
	jitter   *jitterSampler

	busyUntil float64
}

// Busy reports whether the channel is still transmitting at the given time.
// The comparison is strict: a packet submitted exactly at busyUntil goes out
// immediately.
func (l *Link) Busy(now float64) bool {
	return now < l.busyUntil
}

// BusyUntil returns the time the current transmission completes.
func (l *Link) BusyUntil() float64 { return l.busyUntil }

// Transmit admits a message on the channel: the link stays busy for the
// transmission duration and the message arrives at the peer one propagation
// delay later. Delay refreshes by the topology manager only affect messages
// admitted afterwards; in-flight ones keep their arrival time.
func (l *Link) Transmit(s *Sim, to Address, msg Message) (arrival float64) {
	now := s.Now()
	txDuration := msg.messageBits() / l.Datarate
	l.busyUntil = now + txDuration
	delay := l.Delay
	if l.jitter != nil {
		delay += math.Abs(l.jitter.draw())
	}
	arrival = l.busyUntil + delay
	s.Schedule(arrival, EvArrival, to, msg)
	return
}
