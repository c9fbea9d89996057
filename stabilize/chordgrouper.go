package stabilize

import (
	"sort"

	"github.com/noctave/noctave/logging"
	"github.com/noctave/noctave/music"
	"github.com/noctave/noctave/theory"
)

// pendingChord accumulates notes whose onsets fall within one onset
// window of each other (simultaneous or rolled).
type pendingChord struct {
	noteIDs []string
	names   []string
	numbers []uint8
	onset   float64 // first member's onset
	lastAdd float64 // most recent member's onset
	end     float64 // latest observed member release, 0 while sounding
}

func (p *pendingChord) add(n music.Note) {
	p.noteIDs = append(p.noteIDs, n.ID)
	p.names = append(p.names, music.NoteName(n.Number))
	p.numbers = append(p.numbers, n.Number)
	p.lastAdd = n.Onset
}

func (p *pendingChord) contains(id string) bool {
	for _, have := range p.noteIDs {
		if have == id {
			return true
		}
	}
	return false
}

// observeReleases advances the group's end time from the tracker's
// release timestamps, so a silence-forced finalization does not inflate
// the chord duration to the detection tick.
func (p *pendingChord) observeReleases(notes []music.Note) {
	for _, n := range notes {
		if n.Release != nil && *n.Release > p.end && p.contains(n.ID) {
			p.end = *n.Release
		}
	}
}

// distinctClasses returns the sorted distinct pitch classes of the
// accumulated notes.
func (p *pendingChord) distinctClasses() []int {
	seen := make(map[int]bool)
	var classes []int
	for _, num := range p.numbers {
		c := music.PitchClass(num)
		if !seen[c] {
			seen[c] = true
			classes = append(classes, c)
		}
	}
	sort.Ints(classes)
	return classes
}

// chordRecord is a finalized chord retained for progression tracking.
type chordRecord struct {
	id  string
	end float64
}

// ChordGrouper clusters the tracker's active notes into chord
// candidates, classifies their pitch sets, and manages chord
// continuation versus replacement with silence-based finalization and
// hysteresis against re-detection churn.
type ChordGrouper struct {
	part       string
	cfg        Config
	classifier theory.Classifier
	logger     logging.Logger

	pending  *pendingChord
	consumed map[string]bool // note ids already routed to an accumulator

	// hysteresis memory: the (root, quality) of the last finalized chord
	hasLast     bool
	lastRoot    int
	lastQuality string

	// display retention of the most recent finalized chord
	lastFinalized    *music.Chord
	lastFinalizedEnd float64

	history      []chordRecord
	silenceSince *float64
}

// NewChordGrouper creates a grouper for one part.
func NewChordGrouper(part string, cfg Config) *ChordGrouper {
	cfg = cfg.withDefaults()
	return &ChordGrouper{
		part:       part,
		cfg:        cfg,
		classifier: cfg.Classifier,
		logger:     logging.WithFields(logging.Fields{"component": "chord_grouper", "part": part}),
		consumed:   make(map[string]bool),
	}
}

func (cg *ChordGrouper) ID() string             { return StageChords }
func (cg *ChordGrouper) Dependencies() []string { return []string{StageNotes} }

// Apply routes the tracker's active notes into the accumulator and
// emits the current chord picture: the speculative in-progress
// candidate plus the most recently finalized chord while it decays.
func (cg *ChordGrouper) Apply(raw *music.RawInputFrame, upstream *music.MusicalFrame) (*music.MusicalFrame, error) {
	t := raw.Time
	frame := music.NewFrame(cg.part, t)
	if upstream == nil {
		return frame, nil
	}

	cg.pruneConsumed(upstream.Notes)

	active := 0
	for _, n := range upstream.Notes {
		if n.Phase == music.NoteRelease {
			continue
		}
		active++
		if cg.consumed[n.ID] {
			continue
		}
		cg.consumed[n.ID] = true
		cg.route(n)
	}

	if cg.pending != nil {
		cg.pending.observeReleases(upstream.Notes)
	}

	if active == 0 {
		if cg.silenceSince == nil {
			since := t
			cg.silenceSince = &since
		} else if t-*cg.silenceSince > cg.cfg.OnsetWindowMs {
			// A full onset window of silence: force finalization and
			// forget the last chord, so a replayed harmony after a rest
			// counts as a new occurrence.
			if cg.pending != nil {
				cg.finalize(cg.pending, t)
				cg.pending = nil
			}
			cg.hasLast = false
		}
	} else {
		cg.silenceSince = nil
	}

	cg.pruneHistory(t)

	if cg.lastFinalized != nil && t-cg.lastFinalizedEnd <= cg.cfg.ChordDecayWindowMs {
		decaying := *cg.lastFinalized
		decaying.Phase = music.ChordDecaying
		decaying.Duration = cg.lastFinalizedEnd - decaying.Onset
		frame.Chords = append(frame.Chords, decaying)
	}

	if spec := cg.speculative(t); spec != nil {
		frame.Chords = append(frame.Chords, *spec)
	}

	for _, rec := range cg.history {
		frame.Progression = append(frame.Progression, rec.id)
	}

	return frame, nil
}

// route either joins the note to the accumulator or finalizes the
// accumulator and starts a new one, depending on the onset gap.
func (cg *ChordGrouper) route(n music.Note) {
	if cg.pending == nil {
		cg.pending = &pendingChord{onset: n.Onset, lastAdd: n.Onset}
		cg.pending.add(n)
		return
	}
	if n.Onset-cg.pending.lastAdd <= cg.cfg.OnsetWindowMs {
		cg.pending.add(n)
		return
	}
	cg.finalize(cg.pending, n.Onset)
	cg.pending = &pendingChord{onset: n.Onset, lastAdd: n.Onset}
	cg.pending.add(n)
}

// finalize classifies the accumulator and appends a new chord to
// history, unless it repeats the previous (root, quality) — the
// hysteresis that keeps a re-voiced harmony from flickering into a new
// chord. Fewer than two distinct pitch classes never form a chord:
// octave doublings of one class carry no interval content to classify.
// The chord ends at the last observed member release when that is
// earlier than the finalization tick.
func (cg *ChordGrouper) finalize(p *pendingChord, at float64) {
	if len(p.distinctClasses()) < 2 {
		return
	}

	root, quality, confidence := cg.classify(p)
	if cg.hasLast && root == cg.lastRoot && quality == cg.lastQuality {
		cg.logger.Debug("suppressed repeated chord", logging.Fields{
			"root": music.ClassName(root), "quality": quality,
		})
		return
	}

	end := at
	if p.end > 0 && p.end < at {
		end = p.end
	}

	chord := cg.build(p, root, quality, confidence)
	chord.Duration = end - p.onset
	chord.Phase = music.ChordActive

	cg.hasLast = true
	cg.lastRoot = root
	cg.lastQuality = quality
	cg.lastFinalized = &chord
	cg.lastFinalizedEnd = end
	cg.history = append(cg.history, chordRecord{id: chord.ID, end: end})
}

// speculative renders the in-progress accumulator as an active chord
// candidate once it holds at least two distinct pitches.
func (cg *ChordGrouper) speculative(t float64) *music.Chord {
	if cg.pending == nil || len(cg.pending.distinctClasses()) < 2 {
		return nil
	}
	root, quality, confidence := cg.classify(cg.pending)
	chord := cg.build(cg.pending, root, quality, confidence)
	chord.Duration = t - cg.pending.onset
	chord.Phase = music.ChordActive
	return &chord
}

// classify asks the classifier for the top (root, quality) guess.
// Confidence is a fixed step function of the alternative count: the
// classifier's ambiguity count is meaningful, its score magnitudes are
// not.
func (cg *ChordGrouper) classify(p *pendingChord) (root int, quality string, confidence float64) {
	guesses := cg.classifier.Classify(p.names)
	if len(guesses) == 0 {
		classes := p.distinctClasses()
		return classes[0], "unknown", 0.3
	}

	switch len(guesses) {
	case 1:
		confidence = 1.0
	case 2:
		confidence = 0.8
	default:
		confidence = 0.6
	}
	return guesses[0].Root, guesses[0].Quality, confidence
}

// build assembles the chord value shared by the speculative and
// finalized paths. Inversion is the ordinal position of the bass pitch
// class among the sorted distinct pitch classes, a simplification that
// is only exact for close-position triads.
func (cg *ChordGrouper) build(p *pendingChord, root int, quality string, confidence float64) music.Chord {
	numbers := append([]uint8(nil), p.numbers...)
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	voicing := make([]string, len(numbers))
	for i, num := range numbers {
		voicing[i] = music.NoteName(num)
	}

	bass := music.PitchClass(numbers[0])
	classes := p.distinctClasses()
	inversion := 0
	for i, c := range classes {
		if c == bass {
			inversion = i
			break
		}
	}

	return music.Chord{
		ID:         music.ChordID(cg.part, p.onset, root, quality),
		Root:       root,
		Quality:    quality,
		Bass:       bass,
		Inversion:  inversion,
		Voicing:    voicing,
		NoteIDs:    append([]string(nil), p.noteIDs...),
		Onset:      p.onset,
		Confidence: confidence,
	}
}

// pruneConsumed drops bookkeeping for note ids the tracker no longer
// reports, keeping the consumed set bounded.
func (cg *ChordGrouper) pruneConsumed(notes []music.Note) {
	current := make(map[string]bool, len(notes))
	for _, n := range notes {
		current[n.ID] = true
	}
	for id := range cg.consumed {
		if !current[id] {
			delete(cg.consumed, id)
		}
	}
}

// pruneHistory enforces the progression retention window, which is
// independent of (and much longer than) the onset window.
func (cg *ChordGrouper) pruneHistory(t float64) {
	keep := cg.history[:0]
	for _, rec := range cg.history {
		if t-rec.end <= cg.cfg.ProgressionWindowMs {
			keep = append(keep, rec)
		}
	}
	cg.history = keep
}

func (cg *ChordGrouper) Reset() {
	cg.pending = nil
	cg.consumed = make(map[string]bool)
	cg.hasLast = false
	cg.lastFinalized = nil
	cg.lastFinalizedEnd = 0
	cg.history = nil
	cg.silenceSince = nil
}

func (cg *ChordGrouper) Close() {
	cg.Reset()
}
