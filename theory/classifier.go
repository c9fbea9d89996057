// Package theory provides chord classification and harmonic tension
// scoring for the stabilization pipeline. The classifier is an
// interface so a remote music-theory service can replace the built-in
// template matcher without touching the chord grouping state machine.
package theory

import (
	"sort"

	"github.com/noctave/noctave/music"
)

// Guess is one ranked (root, quality) interpretation of a pitch set.
type Guess struct {
	Root     int     `json:"root"` // pitch class 0-11
	RootName string  `json:"root_name"`
	Quality  string  `json:"quality"`
	Score    float64 `json:"score"` // 0-1 template match
}

// Classifier maps an unordered set of pitch names (pitch class plus
// arbitrary octave, canonical sharp spelling) to zero or more ranked
// (root, quality) guesses. The grouper consumes only the top guess and
// the count of alternatives.
type Classifier interface {
	Classify(pitchNames []string) []Guess
}

// TemplateClassifier matches pitch-class sets against interval
// templates, trying every member of the set as a candidate root.
type TemplateClassifier struct {
	templates []chordTemplate

	// MinScore is the minimum match score for a guess to be reported.
	MinScore float64
}

// NewTemplateClassifier creates a classifier with the built-in
// template set.
func NewTemplateClassifier() *TemplateClassifier {
	return &TemplateClassifier{
		templates: chordTemplates(),
		MinScore:  0.6,
	}
}

// Classify returns ranked guesses for the given pitch names. Guesses
// are ordered by descending score, then ascending root, then template
// order, so identical inputs always rank identically.
func (tc *TemplateClassifier) Classify(pitchNames []string) []Guess {
	classes := distinctClasses(pitchNames)
	if len(classes) < 2 {
		return nil
	}

	set := make(map[int]bool, len(classes))
	for _, c := range classes {
		set[c] = true
	}

	var guesses []Guess
	for _, root := range classes {
		intervals := make(map[int]bool, len(classes))
		for c := range set {
			intervals[((c-root)%12+12)%12] = true
		}
		for _, tmpl := range tc.templates {
			score := tmpl.match(intervals)
			if score >= tc.MinScore {
				guesses = append(guesses, Guess{
					Root:     root,
					RootName: music.ClassName(root),
					Quality:  tmpl.quality,
					Score:    score,
				})
			}
		}
	}

	sort.SliceStable(guesses, func(i, j int) bool {
		if guesses[i].Score != guesses[j].Score {
			return guesses[i].Score > guesses[j].Score
		}
		return guesses[i].Root < guesses[j].Root
	})
	return guesses
}

// distinctClasses parses pitch names into sorted distinct pitch
// classes, dropping anything unparseable.
func distinctClasses(pitchNames []string) []int {
	seen := make(map[int]bool, len(pitchNames))
	var classes []int
	for _, name := range pitchNames {
		c := music.ParseClass(name)
		if c < 0 || seen[c] {
			continue
		}
		seen[c] = true
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}
