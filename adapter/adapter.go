// Package adapter defines the pull-based input surface of the
// stabilization pipeline. Sources are polled by the orchestrator on
// each frame request; they never push.
package adapter

import (
	"sort"

	"github.com/noctave/noctave/music"
)

// Source supplies raw input frames to the orchestrator. Poll returns
// zero or more frames containing the events that occurred at or before
// t and have not been delivered by a previous Poll. Implementations
// are not required to be safe for concurrent use: the pipeline is
// single-threaded per part.
type Source interface {
	Poll(t float64) []music.RawInputFrame
}

// ScriptSource replays a pre-loaded or programmatically pushed event
// list. It is the reference Source used by tests and by the SMF replay
// adapter.
type ScriptSource struct {
	events []music.RawEvent // sorted by time
	cursor int
}

// NewScriptSource creates a source over the given events. The events
// are copied and sorted by time.
func NewScriptSource(events []music.RawEvent) *ScriptSource {
	s := &ScriptSource{events: append([]music.RawEvent(nil), events...)}
	sort.SliceStable(s.events, func(i, j int) bool {
		return s.events[i].Time < s.events[j].Time
	})
	return s
}

// Push appends an event. Events pushed out of time order are slotted
// into place, but events earlier than the current poll cursor are
// never re-delivered.
func (s *ScriptSource) Push(ev music.RawEvent) {
	s.events = append(s.events, ev)
	sort.SliceStable(s.events[s.cursor:], func(i, j int) bool {
		return s.events[s.cursor+i].Time < s.events[s.cursor+j].Time
	})
}

// Poll returns the undelivered events with Time <= t as a single frame,
// or nil when there are none.
func (s *ScriptSource) Poll(t float64) []music.RawInputFrame {
	start := s.cursor
	for s.cursor < len(s.events) && s.events[s.cursor].Time <= t {
		s.cursor++
	}
	if s.cursor == start {
		return nil
	}
	return []music.RawInputFrame{{
		Time:   t,
		Events: append([]music.RawEvent(nil), s.events[start:s.cursor]...),
	}}
}

// Rewind resets the poll cursor so the script replays from the start.
func (s *ScriptSource) Rewind() {
	s.cursor = 0
}

// Duration returns the timestamp of the last event, or 0 when empty.
func (s *ScriptSource) Duration() float64 {
	if len(s.events) == 0 {
		return 0
	}
	return s.events[len(s.events)-1].Time
}
