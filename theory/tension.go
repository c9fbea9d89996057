package theory

import "github.com/noctave/noctave/music"

// TensionScorer computes a harmonic tension score (0-1) from the
// pairwise pitch-class intervals of a voicing. The scorer is a
// strategy: swap the implementation without touching the harmonic
// context stage around it.
type TensionScorer interface {
	Score(intervals []int) float64
}

// DissonanceTable scores tension as the mean dissonance of interval
// classes, looked up in a fixed table.
type DissonanceTable struct {
	table [7]float64
}

// NewDissonanceTable returns the default interval-dissonance scorer.
// Values follow conventional rankings: unison/octave and perfect
// intervals are consonant, seconds/sevenths and the tritone are tense.
func NewDissonanceTable() *DissonanceTable {
	return &DissonanceTable{
		table: [7]float64{
			0: 0.0,  // unison / octave
			1: 0.9,  // minor second / major seventh
			2: 0.55, // major second / minor seventh
			3: 0.25, // minor third / major sixth
			4: 0.2,  // major third / minor sixth
			5: 0.1,  // perfect fourth / fifth
			6: 0.85, // tritone
		},
	}
}

// Score averages the dissonance of every interval. Empty input scores 0.
func (d *DissonanceTable) Score(intervals []int) float64 {
	if len(intervals) == 0 {
		return 0
	}
	sum := 0.0
	for _, iv := range intervals {
		sum += d.table[music.IntervalClass(iv)]
	}
	return sum / float64(len(intervals))
}

// PairwiseIntervals expands a set of pitch classes into the directed
// intervals of every unordered pair, for feeding a TensionScorer.
func PairwiseIntervals(classes []int) []int {
	var intervals []int
	for i := 0; i < len(classes); i++ {
		for j := i + 1; j < len(classes); j++ {
			intervals = append(intervals, classes[j]-classes[i])
		}
	}
	return intervals
}
