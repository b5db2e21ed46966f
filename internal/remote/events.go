package remote

import (
	"github.com/cwsl/suscan-remoteclient/internal/proto"
	"github.com/cwsl/suscan-remoteclient/internal/wire"
)

// EventKind discriminates the events a Session delivers to its sink.
type EventKind int

const (
	EventSourceInfo EventKind = iota
	EventStatus
	EventPSD
	EventEOS
	EventHalt
)

// Event is what a Session forwards to the embedding application: the
// RX loop's interpretation of received calls, plus the init-status
// sequence of the connect-and-auth handshake and the terminal HALT the
// TX loop posts on exit.
type Event struct {
	Kind       EventKind
	SourceInfo wire.SourceInfo
	Status     proto.StatusMessage
	PSD        proto.PSDMessage
}

// EventSink is the narrow interface a Session delivers events through.
// It stands in for the original's non-owning back-pointer to the
// embedding analyzer (spec.md §9: "represent as a borrow with explicit
// lifetime, not as shared ownership") — a Session never outlives the
// sink it was given, and never assumes ownership of it.
type EventSink interface {
	Deliver(Event)
}

// ChannelSink is an EventSink backed by a buffered channel, the
// simplest concrete sink for a caller that wants to range over events.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink returns a ChannelSink with the given buffer depth.
// Deliver blocks once the buffer is full, the same backpressure the
// original's "application's outbound queue" exerts on the RX loop.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, buffer)}
}

// Deliver implements EventSink.
func (s *ChannelSink) Deliver(e Event) {
	s.events <- e
}

// Events returns the channel a caller should range over to observe
// delivered events.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// Close closes the underlying channel. Callers must stop calling
// Deliver (i.e. stop using the Session) before calling Close.
func (s *ChannelSink) Close() {
	close(s.events)
}
