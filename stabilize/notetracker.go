package stabilize

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/noctave/noctave/logging"
	"github.com/noctave/noctave/music"
)

// trendEpsilon is the minimum absolute level slope (per ms) that counts
// as a direction; anything flatter reads as steady.
const trendEpsilon = 0.00005

// trackedNote is the tracker's private record of one sounding or
// fading note.
type trackedNote struct {
	number   uint8
	channel  uint8
	velocity uint8
	onset    float64
	release  *float64
}

// NoteTracker converts raw note-on/off events into the authoritative
// Note set for a part: onset, frozen duration, phase and automatic
// expiry after a fade-out retention window.
type NoteTracker struct {
	part   string
	cfg    Config
	logger logging.Logger

	// notes is keyed by (note number, channel) for sounding entries;
	// re-struck notes are re-homed under a synthetic key so the old
	// entry keeps fading while the new strike takes the live key.
	notes map[string]*trackedNote

	// level history for the dynamics trend
	levelTimes []float64
	levels     []float64
}

// NewNoteTracker creates a tracker for one part.
func NewNoteTracker(part string, cfg Config) *NoteTracker {
	return &NoteTracker{
		part:   part,
		cfg:    cfg,
		logger: logging.WithFields(logging.Fields{"component": "note_tracker", "part": part}),
		notes:  make(map[string]*trackedNote),
	}
}

func (nt *NoteTracker) ID() string             { return StageNotes }
func (nt *NoteTracker) Dependencies() []string { return nil }

// liveKey is the key under which the single active (non-released)
// entry for a (note, channel) pair lives.
func liveKey(number, channel uint8) string {
	return fmt.Sprintf("n%d.c%d", number, channel)
}

// fadeKey re-homes a finalized entry so it can fade out independently.
// The release time makes the key deterministic.
func fadeKey(number, channel uint8, release float64) string {
	return fmt.Sprintf("n%d.c%d@%s", number, channel, music.FormatMs(release))
}

// Apply ingests the tick's events and emits the complete note snapshot.
// Expiry runs before event processing so memory stays bounded no
// matter how long the session runs.
func (nt *NoteTracker) Apply(raw *music.RawInputFrame, _ *music.MusicalFrame) (*music.MusicalFrame, error) {
	t := raw.Time

	nt.expire(t)

	for _, ev := range raw.Events {
		switch ev.Kind {
		case music.EventNoteOn:
			nt.noteOn(ev)
		case music.EventNoteOff:
			nt.noteOff(ev)
		}
	}

	frame := music.NewFrame(nt.part, t)
	frame.Notes = nt.snapshot(t)
	frame.Dynamics = nt.dynamics(t, frame.Notes)
	return frame, nil
}

func (nt *NoteTracker) expire(t float64) {
	var stale []string
	for key, n := range nt.notes {
		if n.release != nil && t-*n.release > nt.cfg.ReleaseRetentionMs {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		delete(nt.notes, key)
	}
}

func (nt *NoteTracker) noteOn(ev music.RawEvent) {
	key := liveKey(ev.Pitch, ev.Channel)
	if old, ok := nt.notes[key]; ok {
		// Re-strike: the old entry moves to a synthetic key and keeps
		// fading there, so its retention window is unaffected. A still
		// sounding entry is finalized at the new onset first.
		if old.release == nil {
			release := ev.Time
			old.release = &release
		}
		nt.notes[fadeKey(old.number, old.channel, *old.release)] = old
		nt.logger.Debug("re-struck note", logging.Fields{
			"note": music.NoteName(old.number), "channel": old.channel,
		})
	}
	nt.notes[key] = &trackedNote{
		number:   ev.Pitch,
		channel:  ev.Channel,
		velocity: ev.Velocity,
		onset:    ev.Time,
	}
}

func (nt *NoteTracker) noteOff(ev music.RawEvent) {
	key := liveKey(ev.Pitch, ev.Channel)
	if n, ok := nt.notes[key]; ok && n.release == nil {
		release := ev.Time
		n.release = &release
	}
}

// snapshot renders the tracked entries as Notes, ordered by onset then
// id so identical state always serializes identically.
func (nt *NoteTracker) snapshot(t float64) []music.Note {
	notes := make([]music.Note, 0, len(nt.notes))
	for _, n := range nt.notes {
		notes = append(notes, nt.render(n, t))
	}
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].Onset != notes[j].Onset {
			return notes[i].Onset < notes[j].Onset
		}
		return notes[i].ID < notes[j].ID
	})
	return notes
}

// render derives the public Note. Phase is a pure function of elapsed
// time and release state; duration grows only while release is unset.
func (nt *NoteTracker) render(n *trackedNote, t float64) music.Note {
	duration := t - n.onset
	phase := music.NoteSustain
	switch {
	case n.release != nil:
		duration = *n.release - n.onset
		phase = music.NoteRelease
	case t-n.onset < nt.cfg.AttackWindowMs:
		phase = music.NoteAttack
	}

	return music.Note{
		ID:         music.NoteID(nt.part, n.onset, music.NoteName(n.number)),
		Number:     n.number,
		Class:      music.PitchClass(n.number),
		Octave:     music.Octave(n.number),
		Velocity:   n.velocity,
		Onset:      n.onset,
		Duration:   duration,
		Release:    n.release,
		Phase:      phase,
		Confidence: 1.0,
	}
}

// dynamics computes the current level (mean normalized velocity of the
// sounding notes, or an attenuated reading of the fading ones) and a
// trend from the recent level history.
func (nt *NoteTracker) dynamics(t float64, notes []music.Note) music.Dynamics {
	var sounding, fading []float64
	for _, n := range notes {
		v := float64(n.Velocity) / 127.0
		if n.Phase == music.NoteRelease {
			fading = append(fading, v)
		} else {
			sounding = append(sounding, v)
		}
	}

	level := 0.0
	switch {
	case len(sounding) > 0:
		level = stat.Mean(sounding, nil)
	case len(fading) > 0:
		level = 0.3 * stat.Mean(fading, nil)
	}

	nt.levelTimes = append(nt.levelTimes, t)
	nt.levels = append(nt.levels, level)
	for len(nt.levelTimes) > 0 && t-nt.levelTimes[0] > nt.cfg.TrendWindowMs {
		nt.levelTimes = nt.levelTimes[1:]
		nt.levels = nt.levels[1:]
	}

	return music.Dynamics{Level: level, Trend: nt.trend()}
}

func (nt *NoteTracker) trend() music.DynamicsTrend {
	if len(nt.levels) < 3 {
		return music.TrendSteady
	}
	_, slope := stat.LinearRegression(nt.levelTimes, nt.levels, nil, false)
	switch {
	case slope > trendEpsilon:
		return music.TrendRising
	case slope < -trendEpsilon:
		return music.TrendFalling
	default:
		return music.TrendSteady
	}
}

func (nt *NoteTracker) Reset() {
	nt.notes = make(map[string]*trackedNote)
	nt.levelTimes = nil
	nt.levels = nil
}

func (nt *NoteTracker) Close() {
	nt.Reset()
}
