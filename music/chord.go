package music

import "fmt"

// ChordPhase is the lifecycle phase of a grouped chord.
type ChordPhase string

const (
	ChordActive   ChordPhase = "active"
	ChordDecaying ChordPhase = "decaying"
)

// Chord is a group of simultaneous or rolled notes with a harmonic
// classification. Quality is a theory label supplied by a classifier,
// or "unknown" when classification failed.
//
// Inversion is the ordinal position of the bass pitch class among the
// sorted distinct pitch classes of the voicing. That is only correct
// for simple close-position triads; the approximation is kept on
// purpose because downstream consumers rely on the numbering.
type Chord struct {
	ID         string     `json:"id"`
	Root       int        `json:"root"` // pitch class 0-11
	Quality    string     `json:"quality"`
	Bass       int        `json:"bass"` // pitch class 0-11
	Inversion  int        `json:"inversion"`
	Voicing    []string   `json:"voicing"` // sorted pitch names
	NoteIDs    []string   `json:"note_ids"`
	Onset      float64    `json:"onset"`
	Duration   float64    `json:"duration"`
	Phase      ChordPhase `json:"phase"`
	Confidence float64    `json:"confidence"`
}

// ChordID derives the deterministic identity of a chord occurrence.
func ChordID(part string, onset float64, root int, quality string) string {
	return fmt.Sprintf("chord:%s:%s:%s:%s", part, FormatMs(onset), ClassName(root), quality)
}
