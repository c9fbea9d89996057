package stabilize

import (
	"github.com/noctave/noctave/music"
	"github.com/noctave/noctave/theory"
)

// HarmonicContext is the stateless tension stage: it scores the current
// chord's interval content through a pluggable TensionScorer and adds
// the result to the frame. With no chord upstream it contributes
// nothing, which is a valid analysis state rather than an error.
type HarmonicContext struct {
	part   string
	scorer theory.TensionScorer
}

// NewHarmonicContext creates the stage for one part.
func NewHarmonicContext(part string, cfg Config) *HarmonicContext {
	cfg = cfg.withDefaults()
	return &HarmonicContext{part: part, scorer: cfg.Tension}
}

func (hc *HarmonicContext) ID() string             { return StageHarmony }
func (hc *HarmonicContext) Dependencies() []string { return []string{StageChords} }

func (hc *HarmonicContext) Apply(raw *music.RawInputFrame, upstream *music.MusicalFrame) (*music.MusicalFrame, error) {
	frame := music.NewFrame(hc.part, raw.Time)
	if upstream == nil {
		return frame, nil
	}

	chord := currentChord(upstream.Chords)
	if chord == nil {
		return frame, nil
	}

	classes := make([]int, 0, len(chord.Voicing))
	seen := make(map[int]bool)
	for _, name := range chord.Voicing {
		c := music.ParseClass(name)
		if c >= 0 && !seen[c] {
			seen[c] = true
			classes = append(classes, c)
		}
	}

	tension := hc.scorer.Score(theory.PairwiseIntervals(classes))
	frame.Tension = &tension
	return frame, nil
}

// currentChord prefers the active chord over a decaying one.
func currentChord(chords []music.Chord) *music.Chord {
	for i := range chords {
		if chords[i].Phase == music.ChordActive {
			return &chords[i]
		}
	}
	if len(chords) > 0 {
		return &chords[0]
	}
	return nil
}

func (hc *HarmonicContext) Reset() {}
func (hc *HarmonicContext) Close() {}
