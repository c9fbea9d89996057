package stabilize

import (
	"sort"

	"github.com/noctave/noctave/music"
)

// MergeFrames combines stabilizer outputs into one frame. It is used
// both to construct a stage's dependency input and to accumulate the
// final emitted frame, with an explicit rule per field:
//
//   - notes and chords are unioned by id; the later frame wins on an
//     id collision
//   - progression ids are unioned as a set, first appearance order
//   - rhythmic analysis and dynamics take the last informative value
//     (non-nil detected division, level > 0), so a stage's default
//     empty reading never clobbers an earlier real one
//   - tension takes the last non-nil value
//   - tempo and meter are never merged; the orchestrator reinjects the
//     user-prescribed values on every emitted frame
//
// Nil frames in the list are skipped. The result is nil only when
// every input is nil.
func MergeFrames(part string, t float64, frames ...*music.MusicalFrame) *music.MusicalFrame {
	merged := music.NewFrame(part, t)
	any := false

	notes := make(map[string]music.Note)
	var noteOrder []string
	chords := make(map[string]music.Chord)
	var chordOrder []string
	progression := make(map[string]bool)

	var lastRhythm *music.RhythmicAnalysis
	var lastDynamics *music.Dynamics

	for _, f := range frames {
		if f == nil {
			continue
		}
		any = true

		for _, n := range f.Notes {
			if _, seen := notes[n.ID]; !seen {
				noteOrder = append(noteOrder, n.ID)
			}
			notes[n.ID] = n
		}
		for _, c := range f.Chords {
			if _, seen := chords[c.ID]; !seen {
				chordOrder = append(chordOrder, c.ID)
			}
			chords[c.ID] = c
		}
		for _, id := range f.Progression {
			if !progression[id] {
				progression[id] = true
				merged.Progression = append(merged.Progression, id)
			}
		}

		if f.Rhythm != nil && f.Rhythm.DetectedDivision != nil {
			merged.Rhythm = f.Rhythm
		} else if f.Rhythm != nil {
			lastRhythm = f.Rhythm
		}

		if f.Dynamics.Level > 0 {
			dyn := f.Dynamics
			merged.Dynamics = dyn
			lastDynamics = &dyn
		} else if lastDynamics == nil {
			merged.Dynamics = f.Dynamics
		}

		if f.Tension != nil {
			merged.Tension = f.Tension
		}
	}

	if !any {
		return nil
	}
	if merged.Rhythm == nil {
		merged.Rhythm = lastRhythm
	}

	for _, id := range noteOrder {
		merged.Notes = append(merged.Notes, notes[id])
	}
	sort.SliceStable(merged.Notes, func(i, j int) bool {
		if merged.Notes[i].Onset != merged.Notes[j].Onset {
			return merged.Notes[i].Onset < merged.Notes[j].Onset
		}
		return merged.Notes[i].ID < merged.Notes[j].ID
	})

	for _, id := range chordOrder {
		merged.Chords = append(merged.Chords, chords[id])
	}
	sort.SliceStable(merged.Chords, func(i, j int) bool {
		if merged.Chords[i].Onset != merged.Chords[j].Onset {
			return merged.Chords[i].Onset < merged.Chords[j].Onset
		}
		return merged.Chords[i].ID < merged.Chords[j].ID
	})

	return merged
}
