package adapter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/noctave/noctave/music"
)

// SMFSource replays a Standard MIDI File as raw events against the
// session clock, so recorded material can drive the pipeline exactly
// like a live stream would.
type SMFSource struct {
	*ScriptSource
}

// NewSMFSource reads and reduces a MIDI file into a replayable source.
func NewSMFSource(path string) (*SMFSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading midi file: %w", err)
	}
	return NewSMFSourceFromBytes(data)
}

// NewSMFSourceFromBytes parses SMF bytes into a replayable source.
func NewSMFSourceFromBytes(data []byte) (src *SMFSource, err error) {
	// The SMF parser panics on some malformed files
	// (https://github.com/gomidi/midi/issues/20).
	defer func() {
		if r, ok := recover().(string); ok {
			err = errors.New(r)
		}
	}()

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing midi file: %w", err)
	}

	events := reduceTracks(s)
	return &SMFSource{ScriptSource: NewScriptSource(events)}, nil
}

// reduceTracks flattens all tracks into session-relative note events in
// milliseconds. At equal timestamps note-offs sort before note-ons so a
// re-struck note releases its predecessor first.
func reduceTracks(s *smf.SMF) []music.RawEvent {
	var events []music.RawEvent
	for _, track := range s.Tracks {
		var absTicks int64
		for _, ev := range track {
			absTicks += int64(ev.Delta)
			timeMs := float64(s.TimeAt(absTicks)) / 1000.0

			var channel, key, velocity uint8
			switch {
			case ev.Message.GetNoteStart(&channel, &key, &velocity):
				events = append(events, music.RawEvent{
					Kind:     music.EventNoteOn,
					Pitch:    key,
					Velocity: velocity,
					Channel:  channel,
					Time:     timeMs,
				})
			case ev.Message.GetNoteEnd(&channel, &key):
				events = append(events, music.RawEvent{
					Kind:    music.EventNoteOff,
					Pitch:   key,
					Channel: channel,
					Time:    timeMs,
				})
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		return events[i].Kind == music.EventNoteOff && events[j].Kind != music.EventNoteOff
	})
	return events
}
