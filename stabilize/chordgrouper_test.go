package stabilize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noctave/noctave/music"
	"github.com/noctave/noctave/theory"
)

// chordRig drives a tracker and grouper together, the way the
// orchestrator chains them.
type chordRig struct {
	tracker *NoteTracker
	grouper *ChordGrouper
}

func newChordRig(cfg Config) *chordRig {
	return &chordRig{
		tracker: NewNoteTracker("test", cfg),
		grouper: NewChordGrouper("test", cfg),
	}
}

func (r *chordRig) step(t *testing.T, raw *music.RawInputFrame) *music.MusicalFrame {
	t.Helper()
	upstream, err := r.tracker.Apply(raw, nil)
	require.NoError(t, err)
	frame, err := r.grouper.Apply(raw, upstream)
	require.NoError(t, err)
	return frame
}

// cMajor strikes C4, E4, G4 simultaneously.
func cMajor(t float64) []music.RawEvent {
	return []music.RawEvent{
		noteOn(t, 60, 100),
		noteOn(t, 64, 100),
		noteOn(t, 67, 100),
	}
}

func releaseCMajor(t float64) []music.RawEvent {
	return []music.RawEvent{noteOff(t, 60), noteOff(t, 64), noteOff(t, 67)}
}

func TestChordFormsFromSimultaneousNotes(t *testing.T) {
	rig := newChordRig(DefaultConfig())

	frame := rig.step(t, tick(0, cMajor(0)...))
	require.Len(t, frame.Chords, 1)

	chord := frame.Chords[0]
	assert.Equal(t, music.ChordActive, chord.Phase)
	assert.Equal(t, 0, chord.Root)
	assert.Equal(t, "major", chord.Quality)
	assert.Equal(t, 0, chord.Bass)
	assert.Equal(t, 0, chord.Inversion)
	assert.Equal(t, []string{"C4", "E4", "G4"}, chord.Voicing)
	// A plain triad also matches its seventh-chord supersets, so the
	// template classifier reports several alternatives.
	assert.Equal(t, 0.6, chord.Confidence)
}

func TestSingleNoteNeverFormsChord(t *testing.T) {
	rig := newChordRig(DefaultConfig())
	frame := rig.step(t, tick(0, noteOn(0, 60, 100)))
	assert.Empty(t, frame.Chords)
}

func TestOctaveDoublingNeverFormsChord(t *testing.T) {
	// Two pitches of one class carry no interval content to classify.
	rig := newChordRig(DefaultConfig())

	rig.step(t, tick(0, noteOn(0, 48, 100), noteOn(0, 60, 100)))
	rig.step(t, tick(200, noteOff(200, 48), noteOff(200, 60)))
	frame := rig.step(t, tick(400))

	assert.Empty(t, frame.Chords)
	assert.Empty(t, frame.Progression)
}

func TestRolledChordWithinOnsetWindow(t *testing.T) {
	rig := newChordRig(DefaultConfig()) // onset window 100ms

	rig.step(t, tick(0, noteOn(0, 60, 100)))
	rig.step(t, tick(60, noteOn(60, 64, 100)))
	frame := rig.step(t, tick(120, noteOn(120, 67, 100)))

	require.Len(t, frame.Chords, 1)
	assert.Equal(t, "major", frame.Chords[0].Quality)
	assert.Equal(t, 0.0, frame.Chords[0].Onset, "chord onset is the first member's onset")
}

func TestFirstInversionApproximation(t *testing.T) {
	rig := newChordRig(DefaultConfig())

	// E3 in the bass under C major: bass pitch class 4 is ordinal 1
	// among sorted distinct classes {0, 4, 7}.
	frame := rig.step(t, tick(0,
		noteOn(0, 52, 100), // E3
		noteOn(0, 60, 100), // C4
		noteOn(0, 67, 100), // G4
	))
	require.Len(t, frame.Chords, 1)
	assert.Equal(t, 4, frame.Chords[0].Bass)
	assert.Equal(t, 1, frame.Chords[0].Inversion)
}

func TestChordHysteresis(t *testing.T) {
	rig := newChordRig(DefaultConfig())

	// First voicing.
	rig.step(t, tick(0, cMajor(0)...))
	rig.step(t, tick(200, releaseCMajor(200)...))

	// Same harmony re-voiced 300ms later: a new onset group, but the
	// classification is unchanged, so no new chord may be emitted.
	rig.step(t, tick(300, cMajor(300)...))
	rig.step(t, tick(500, releaseCMajor(500)...))

	// Silence beyond the onset window forces finalization.
	frame := rig.step(t, tick(700))

	assert.Len(t, frame.Progression, 1, "re-detection of the same harmony must not add a chord")
}

func TestChordSilenceReset(t *testing.T) {
	rig := newChordRig(DefaultConfig())

	rig.step(t, tick(0, cMajor(0)...))
	rig.step(t, tick(200, releaseCMajor(200)...))
	rig.step(t, tick(400)) // silence beyond the window: finalize, clear memory

	rig.step(t, tick(2000, cMajor(2000)...))
	rig.step(t, tick(2200, releaseCMajor(2200)...))
	frame := rig.step(t, tick(2400))

	require.Len(t, frame.Progression, 2, "the same harmony after a rest is a new occurrence")
	assert.NotEqual(t, frame.Progression[0], frame.Progression[1])
}

func TestDecayingAndActiveChordsCoexist(t *testing.T) {
	rig := newChordRig(DefaultConfig())

	rig.step(t, tick(0, cMajor(0)...))
	rig.step(t, tick(150, releaseCMajor(150)...))

	// A new group right at the transition: the old chord is finalized
	// and decays while the new candidate is already active.
	frame := rig.step(t, tick(250,
		noteOn(250, 62, 100), // D4
		noteOn(250, 65, 100), // F4
		noteOn(250, 69, 100), // A4
	))

	require.Len(t, frame.Chords, 2)
	assert.Equal(t, music.ChordDecaying, frame.Chords[0].Phase)
	assert.Equal(t, "major", frame.Chords[0].Quality)
	assert.Equal(t, music.ChordActive, frame.Chords[1].Phase)
	assert.Equal(t, "minor", frame.Chords[1].Quality)
}

func TestChordEndsAtLastRelease(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChordDecayWindowMs = 500
	rig := newChordRig(cfg)

	rig.step(t, tick(0, cMajor(0)...))
	rig.step(t, tick(200, releaseCMajor(200)...))

	// Silence-forced finalization well after the release: the chord's
	// duration is the sounding span, not the detection latency.
	frame := rig.step(t, tick(350))
	require.Len(t, frame.Chords, 1)
	assert.Equal(t, music.ChordDecaying, frame.Chords[0].Phase)
	assert.Equal(t, 200.0, frame.Chords[0].Duration)
}

func TestReplacedChordEndsAtLastRelease(t *testing.T) {
	rig := newChordRig(DefaultConfig())

	rig.step(t, tick(0, cMajor(0)...))
	rig.step(t, tick(150, releaseCMajor(150)...))

	// The replacing group arrives 100ms after the release; the old
	// chord still ends when its notes did.
	frame := rig.step(t, tick(250,
		noteOn(250, 62, 100),
		noteOn(250, 65, 100),
		noteOn(250, 69, 100),
	))
	require.Len(t, frame.Chords, 2)
	assert.Equal(t, music.ChordDecaying, frame.Chords[0].Phase)
	assert.Equal(t, 150.0, frame.Chords[0].Duration)
}

// stubClassifier returns a fixed number of guesses to pin the
// confidence step function.
type stubClassifier struct {
	guesses []theory.Guess
}

func (s *stubClassifier) Classify([]string) []theory.Guess { return s.guesses }

func TestConfidenceStepsFromAmbiguity(t *testing.T) {
	cases := []struct {
		name    string
		guesses int
		want    float64
	}{
		{"one alternative", 1, 1.0},
		{"two alternatives", 2, 0.8},
		{"three alternatives", 3, 0.6},
		{"five alternatives", 5, 0.6},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			guesses := make([]theory.Guess, c.guesses)
			for i := range guesses {
				guesses[i] = theory.Guess{Root: i, Quality: "major"}
			}
			cfg := DefaultConfig()
			cfg.Classifier = &stubClassifier{guesses: guesses}

			rig := newChordRig(cfg)
			frame := rig.step(t, tick(0, cMajor(0)...))
			require.Len(t, frame.Chords, 1)
			assert.Equal(t, c.want, frame.Chords[0].Confidence)
		})
	}
}

func TestUnclassifiableChordIsUnknown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Classifier = &stubClassifier{} // zero guesses

	rig := newChordRig(cfg)
	frame := rig.step(t, tick(0, cMajor(0)...))
	require.Len(t, frame.Chords, 1)
	assert.Equal(t, "unknown", frame.Chords[0].Quality)
}

func TestProgressionWindowPrunes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProgressionWindowMs = 1000
	rig := newChordRig(cfg)

	rig.step(t, tick(0, cMajor(0)...))
	rig.step(t, tick(200, releaseCMajor(200)...))
	frame := rig.step(t, tick(400)) // forced finalization at 400
	require.Len(t, frame.Progression, 1)

	frame = rig.step(t, tick(2000))
	assert.Empty(t, frame.Progression, "history is pruned by chord end time")
}
