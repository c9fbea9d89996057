// Package stabilize implements the stabilization pipeline: an
// orchestrator that drives a dependency-ordered chain of stateful
// per-part analysis stages and merges their outputs into one coherent
// musical frame per time-step request.
package stabilize

import "github.com/noctave/noctave/music"

// Stage ids of the built-in stabilizers.
const (
	StageNotes   = "notes"
	StageChords  = "chords"
	StageRhythm  = "rhythm"
	StageHarmony = "harmony"
)

// Stabilizer is a stateful per-part analysis stage. Apply is called
// once per frame request with the merged raw input and an upstream
// frame: the merged current-tick outputs of the stage's dependencies,
// or the stage's own previous output when it declares none, or nil on
// the first tick. Apply must return a complete snapshot frame; it may
// mutate only the stage's own private state.
type Stabilizer interface {
	ID() string
	Dependencies() []string
	Apply(raw *music.RawInputFrame, upstream *music.MusicalFrame) (*music.MusicalFrame, error)

	// Reset clears all private state, as if freshly constructed.
	Reset()

	// Close releases resources. The orchestrator calls it from Close.
	Close()
}

// Registration declares a stabilizer to the orchestrator: its id, the
// ids of the stages whose output it consumes, and a factory producing
// one fresh instance per part. Dependency ids absent from the
// configured set are treated as satisfied, which supports partial
// chains; a true cycle is a construction-time error.
type Registration struct {
	ID           string
	Dependencies []string
	New          func(part string, cfg Config) Stabilizer
}

// DefaultRegistrations returns the standard chain: note lifecycle
// tracking, chord grouping over the tracked notes, rhythm analysis
// straight off the raw onsets, and harmonic tension over the chords.
func DefaultRegistrations() []Registration {
	return []Registration{
		{
			ID: StageNotes,
			New: func(part string, cfg Config) Stabilizer {
				return NewNoteTracker(part, cfg)
			},
		},
		{
			ID:           StageChords,
			Dependencies: []string{StageNotes},
			New: func(part string, cfg Config) Stabilizer {
				return NewChordGrouper(part, cfg)
			},
		},
		{
			ID: StageRhythm,
			New: func(part string, cfg Config) Stabilizer {
				return NewRhythmAnalyzer(part, cfg)
			},
		},
		{
			ID:           StageHarmony,
			Dependencies: []string{StageChords},
			New: func(part string, cfg Config) Stabilizer {
				return NewHarmonicContext(part, cfg)
			},
		},
	}
}
