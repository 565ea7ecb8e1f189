// Package engine unifies the grid subsystems behind a facade with cached
// faction queries, a fixed-interval coordinator, and reactive glue that
// turns infrastructure notifications into gameplay effects.
package engine

import (
	"github.com/ironveil/fluxgrid/internal/grid"
)

// EventKind enumerates infrastructure notifications. All subsystems
// publish through one ordered log so propagation order stays
// deterministic.
type EventKind uint8

const (
	EventConstruction EventKind = iota
	EventDestruction
	EventRestoration
	EventBlackoutStart
	EventBlackoutEnd
	EventCascadeStart
	EventCascadeResolved
	EventStabilityAlert
	EventCapture
)

// String returns a display name for an event kind.
func (k EventKind) String() string {
	switch k {
	case EventConstruction:
		return "construction"
	case EventDestruction:
		return "destruction"
	case EventRestoration:
		return "restoration"
	case EventBlackoutStart:
		return "blackout_start"
	case EventBlackoutEnd:
		return "blackout_end"
	case EventCascadeStart:
		return "cascade_start"
	case EventCascadeResolved:
		return "cascade_resolved"
	case EventStabilityAlert:
		return "stability_alert"
	case EventCapture:
		return "capture"
	default:
		return "unknown"
	}
}

// Event is one notable grid occurrence.
type Event struct {
	Time        float64   `json:"time"` // sim seconds
	Kind        EventKind `json:"kind"`
	Description string    `json:"description"`

	Generator grid.GeneratorID `json:"generator,omitempty"`
	Line      grid.LineID      `json:"line,omitempty"`
	District  grid.DistrictID  `json:"district,omitempty"`
	Faction   grid.Faction     `json:"faction,omitempty"`
}

// eventLogCap bounds the diagnostic ring buffer.
const eventLogCap = 100

// EventLog is a fixed-capacity ring buffer of recent events.
type EventLog struct {
	buf   []Event
	start int
	count int
	total uint64
}

// NewEventLog creates an empty log with the standard capacity.
func NewEventLog() *EventLog {
	return &EventLog{buf: make([]Event, eventLogCap)}
}

// Append records an event, evicting the oldest once full.
func (l *EventLog) Append(e Event) {
	idx := (l.start + l.count) % len(l.buf)
	l.buf[idx] = e
	if l.count < len(l.buf) {
		l.count++
	} else {
		l.start = (l.start + 1) % len(l.buf)
	}
	l.total++
}

// Len returns the number of retained events.
func (l *EventLog) Len() int { return l.count }

// Total returns the number of events ever appended.
func (l *EventLog) Total() uint64 { return l.total }

// Recent returns up to n of the newest events, oldest first.
func (l *EventLog) Recent(n int) []Event {
	if n > l.count {
		n = l.count
	}
	out := make([]Event, 0, n)
	for i := l.count - n; i < l.count; i++ {
		out = append(out, l.buf[(l.start+i)%len(l.buf)])
	}
	return out
}

// All returns every retained event, oldest first.
func (l *EventLog) All() []Event {
	return l.Recent(l.count)
}
