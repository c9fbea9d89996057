package theory

// chordTemplate is an interval pattern for one chord quality. Weight
// biases ranking toward common qualities when scores tie.
type chordTemplate struct {
	quality   string
	intervals []int // semitones from root, always includes 0
	weight    float64
}

// match scores a pitch-class interval set against the template using
// weighted Jaccard overlap: 1.0 for an exact match, falling off with
// missing or extra tones.
func (t chordTemplate) match(intervals map[int]bool) float64 {
	common := 0
	for _, iv := range t.intervals {
		if intervals[iv] {
			common++
		}
	}
	union := len(intervals) + len(t.intervals) - common
	if union == 0 {
		return 0
	}
	return float64(common) / float64(union) * t.weight
}

// chordTemplates returns the built-in template set. Ordering matters:
// earlier templates win ties, so plain triads come before extended
// qualities.
func chordTemplates() []chordTemplate {
	return []chordTemplate{
		{quality: "major", intervals: []int{0, 4, 7}, weight: 1.0},
		{quality: "minor", intervals: []int{0, 3, 7}, weight: 1.0},
		{quality: "diminished", intervals: []int{0, 3, 6}, weight: 0.9},
		{quality: "augmented", intervals: []int{0, 4, 8}, weight: 0.85},
		{quality: "sus2", intervals: []int{0, 2, 7}, weight: 0.85},
		{quality: "sus4", intervals: []int{0, 5, 7}, weight: 0.85},
		{quality: "major7", intervals: []int{0, 4, 7, 11}, weight: 0.95},
		{quality: "minor7", intervals: []int{0, 3, 7, 10}, weight: 0.95},
		{quality: "dominant7", intervals: []int{0, 4, 7, 10}, weight: 0.95},
		{quality: "diminished7", intervals: []int{0, 3, 6, 9}, weight: 0.85},
		{quality: "halfdiminished7", intervals: []int{0, 3, 6, 10}, weight: 0.85},
		{quality: "minmaj7", intervals: []int{0, 3, 7, 11}, weight: 0.8},
		{quality: "add9", intervals: []int{0, 2, 4, 7}, weight: 0.8},
		{quality: "power", intervals: []int{0, 7}, weight: 0.7},
	}
}
