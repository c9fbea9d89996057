package stabilize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noctave/noctave/music"
)

func frameWithNotes(t float64, notes ...music.Note) *music.MusicalFrame {
	f := music.NewFrame("test", t)
	f.Notes = notes
	return f
}

func namedNote(id string, onset float64) music.Note {
	return music.Note{ID: id, Onset: onset, Phase: music.NoteSustain}
}

func TestMergeNilFrames(t *testing.T) {
	assert.Nil(t, MergeFrames("test", 100))
	assert.Nil(t, MergeFrames("test", 100, nil, nil, nil))
}

func TestMergeKeepsLaterNoteOnIDCollision(t *testing.T) {
	early := namedNote("note:test:0:C4", 0)
	early.Velocity = 60
	late := early
	late.Velocity = 110

	merged := MergeFrames("test", 100,
		frameWithNotes(100, early),
		frameWithNotes(100, late),
	)

	require.NotNil(t, merged)
	require.Len(t, merged.Notes, 1)
	assert.Equal(t, uint8(110), merged.Notes[0].Velocity)
}

func TestMergeSortsNotesByOnsetThenID(t *testing.T) {
	merged := MergeFrames("test", 100,
		frameWithNotes(100, namedNote("note:test:50:G4", 50)),
		frameWithNotes(100, namedNote("note:test:0:E4", 0), namedNote("note:test:0:C4", 0)),
	)

	require.Len(t, merged.Notes, 3)
	assert.Equal(t, "note:test:0:C4", merged.Notes[0].ID)
	assert.Equal(t, "note:test:0:E4", merged.Notes[1].ID)
	assert.Equal(t, "note:test:50:G4", merged.Notes[2].ID)
}

func TestMergeUnionsChordsByID(t *testing.T) {
	a := music.NewFrame("test", 100)
	a.Chords = []music.Chord{{ID: "chord:test:0:C:major", Onset: 0, Confidence: 0.6}}
	b := music.NewFrame("test", 100)
	b.Chords = []music.Chord{
		{ID: "chord:test:0:C:major", Onset: 0, Confidence: 1.0},
		{ID: "chord:test:50:D:minor", Onset: 50},
	}

	merged := MergeFrames("test", 100, a, b)
	require.Len(t, merged.Chords, 2)
	assert.Equal(t, "chord:test:0:C:major", merged.Chords[0].ID)
	assert.Equal(t, 1.0, merged.Chords[0].Confidence, "later frame wins the collision")
	assert.Equal(t, "chord:test:50:D:minor", merged.Chords[1].ID)
}

func TestMergeProgressionSetUnionKeepsFirstSeenOrder(t *testing.T) {
	a := music.NewFrame("test", 100)
	a.Progression = []string{"c1", "c2"}
	b := music.NewFrame("test", 100)
	b.Progression = []string{"c2", "c3", "c1"}

	merged := MergeFrames("test", 100, a, b)
	assert.Equal(t, []string{"c1", "c2", "c3"}, merged.Progression)
}

func TestMergeRhythmPrefersInformativeReading(t *testing.T) {
	division := 500.0
	informative := music.NewFrame("test", 100)
	informative.Rhythm = &music.RhythmicAnalysis{DetectedDivision: &division, Confidence: 0.9}
	empty := music.NewFrame("test", 100)
	empty.Rhythm = &music.RhythmicAnalysis{}

	// A later empty reading must not clobber an earlier real one.
	merged := MergeFrames("test", 100, informative, empty)
	require.NotNil(t, merged.Rhythm)
	require.NotNil(t, merged.Rhythm.DetectedDivision)
	assert.Equal(t, 500.0, *merged.Rhythm.DetectedDivision)

	// With only empty readings, the last one is still carried.
	merged = MergeFrames("test", 100, empty)
	require.NotNil(t, merged.Rhythm)
	assert.Nil(t, merged.Rhythm.DetectedDivision)
}

func TestMergeRhythmLastInformativeWins(t *testing.T) {
	d1, d2 := 500.0, 250.0
	a := music.NewFrame("test", 100)
	a.Rhythm = &music.RhythmicAnalysis{DetectedDivision: &d1}
	b := music.NewFrame("test", 100)
	b.Rhythm = &music.RhythmicAnalysis{DetectedDivision: &d2}

	merged := MergeFrames("test", 100, a, b)
	require.NotNil(t, merged.Rhythm)
	assert.Equal(t, 250.0, *merged.Rhythm.DetectedDivision)
}

func TestMergeDynamicsSilentReadingDoesNotClobber(t *testing.T) {
	loud := music.NewFrame("test", 100)
	loud.Dynamics = music.Dynamics{Level: 0.7, Trend: music.TrendRising}
	silent := music.NewFrame("test", 100)

	merged := MergeFrames("test", 100, loud, silent)
	assert.Equal(t, 0.7, merged.Dynamics.Level)
	assert.Equal(t, music.TrendRising, merged.Dynamics.Trend)

	// All-silent inputs keep the silent reading.
	merged = MergeFrames("test", 100, silent)
	assert.Equal(t, 0.0, merged.Dynamics.Level)
	assert.Equal(t, music.TrendSteady, merged.Dynamics.Trend)
}

func TestMergeTensionLastNonNilWins(t *testing.T) {
	t1, t2 := 0.2, 0.8
	a := music.NewFrame("test", 100)
	a.Tension = &t1
	b := music.NewFrame("test", 100)
	b.Tension = &t2
	c := music.NewFrame("test", 100)

	merged := MergeFrames("test", 100, a, b, c)
	require.NotNil(t, merged.Tension)
	assert.Equal(t, 0.8, *merged.Tension)
}

func TestMergeNeverCarriesTempoOrMeter(t *testing.T) {
	f := music.NewFrame("test", 100)
	f.Tempo = &music.Tempo{BPM: 120}
	f.Meter = &music.Meter{BeatsPerBar: 4, BeatUnit: 4}

	merged := MergeFrames("test", 100, f)
	assert.Nil(t, merged.Tempo, "prescribed tempo is reinjected by the orchestrator, never merged")
	assert.Nil(t, merged.Meter)
}
