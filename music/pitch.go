package music

import "fmt"

// pitchClassNames is the canonical twelve-name spelling used everywhere
// a pitch class is rendered or parsed. Sharps only, no enharmonic
// alternatives, so name round-trips are exact.
var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// PitchClass returns the chroma (0=C .. 11=B) of a MIDI note number.
func PitchClass(number uint8) int {
	return int(number % 12)
}

// Octave returns the octave of a MIDI note number using the convention
// where middle C (60) is C4.
func Octave(number uint8) int {
	return int(number)/12 - 1
}

// ClassName returns the canonical name of a pitch class.
func ClassName(class int) string {
	return pitchClassNames[((class%12)+12)%12]
}

// NoteName returns the full name of a MIDI note number, e.g. "C4", "F#2".
func NoteName(number uint8) string {
	return fmt.Sprintf("%s%d", ClassName(PitchClass(number)), Octave(number))
}

// ParseClass extracts the pitch class from a note name with or without
// an octave suffix ("C#", "C#4", "A-1"). Returns -1 when the name does
// not start with one of the canonical twelve names.
func ParseClass(name string) int {
	// Longest match first so "C#" is not read as "C".
	for class, want := range pitchClassNames {
		if len(want) == 2 && len(name) >= 2 && name[:2] == want {
			return class
		}
	}
	for class, want := range pitchClassNames {
		if len(want) == 1 && len(name) >= 1 && name[:1] == want {
			return class
		}
	}
	return -1
}

// IntervalClass folds a directed pitch-class interval into the range
// 0-6, where 6 is the tritone.
func IntervalClass(semitones int) int {
	d := ((semitones % 12) + 12) % 12
	if d > 6 {
		d = 12 - d
	}
	return d
}
