package music

import (
	"fmt"
	"strconv"
)

// NotePhase is the lifecycle phase of a tracked note.
type NotePhase string

const (
	NoteAttack  NotePhase = "attack"
	NoteSustain NotePhase = "sustain"
	NoteRelease NotePhase = "release"
)

// Note is a tracked musical note. Identity is a pure function of
// (part, onset, note name): the same physical note replayed at a
// different time is a different Note.
type Note struct {
	ID         string    `json:"id"`
	Number     uint8     `json:"number"` // MIDI note number
	Class      int       `json:"class"`  // pitch class 0-11
	Octave     int       `json:"octave"`
	Velocity   uint8     `json:"velocity"`
	Onset      float64   `json:"onset"`    // ms
	Duration   float64   `json:"duration"` // frozen once Release is set
	Release    *float64  `json:"release,omitempty"`
	Phase      NotePhase `json:"phase"`
	Confidence float64   `json:"confidence"`
}

// NoteID derives the deterministic identity of a note. Identical
// (part, onset, name) triples always yield identical ids.
func NoteID(part string, onset float64, name string) string {
	return fmt.Sprintf("note:%s:%s:%s", part, FormatMs(onset), name)
}

// FormatMs renders a millisecond timestamp with the shortest exact
// decimal representation, for use in derived identifiers.
func FormatMs(ms float64) string {
	return strconv.FormatFloat(ms, 'f', -1, 64)
}
