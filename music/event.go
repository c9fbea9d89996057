package music

import "sort"

// EventKind identifies the variant of a RawEvent.
type EventKind int

const (
	EventNoteOn EventKind = iota
	EventNoteOff
	EventOther // present in some streams, ignored by all stabilizers
)

func (k EventKind) String() string {
	switch k {
	case EventNoteOn:
		return "note_on"
	case EventNoteOff:
		return "note_off"
	default:
		return "other"
	}
}

// RawEvent is a single discrete input event. Time is a monotonic,
// session-relative timestamp in milliseconds.
type RawEvent struct {
	Kind     EventKind `json:"kind"`
	Pitch    uint8     `json:"pitch"`    // MIDI note number 0-127
	Velocity uint8     `json:"velocity"` // 0-127, note-on only
	Channel  uint8     `json:"channel"`
	Time     float64   `json:"time"` // ms
}

// RawInputFrame is an ordered batch of raw events sharing a nominal
// request time.
type RawInputFrame struct {
	Time   float64    `json:"time"`
	Events []RawEvent `json:"events"`
}

// MergeRawFrames combines several raw input frames for the same request
// time into one. Event lists are concatenated and re-ordered by event
// time; frames sharing a time are union-merged, never overwritten.
func MergeRawFrames(t float64, frames []RawInputFrame) RawInputFrame {
	merged := RawInputFrame{Time: t}
	for _, f := range frames {
		merged.Events = append(merged.Events, f.Events...)
	}
	sort.SliceStable(merged.Events, func(i, j int) bool {
		return merged.Events[i].Time < merged.Events[j].Time
	})
	return merged
}
