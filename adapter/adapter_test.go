package adapter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/noctave/noctave/music"
)

func rawOn(t float64, pitch uint8) music.RawEvent {
	return music.RawEvent{Kind: music.EventNoteOn, Pitch: pitch, Velocity: 100, Time: t}
}

func rawOff(t float64, pitch uint8) music.RawEvent {
	return music.RawEvent{Kind: music.EventNoteOff, Pitch: pitch, Time: t}
}

func TestScriptSourcePollBoundaryIsInclusive(t *testing.T) {
	src := NewScriptSource([]music.RawEvent{rawOn(100, 60)})

	assert.Nil(t, src.Poll(99))

	frames := src.Poll(100)
	require.Len(t, frames, 1)
	assert.Equal(t, 100.0, frames[0].Time)
	require.Len(t, frames[0].Events, 1)
	assert.Equal(t, uint8(60), frames[0].Events[0].Pitch)
}

func TestScriptSourceNeverRedelivers(t *testing.T) {
	src := NewScriptSource([]music.RawEvent{rawOn(0, 60), rawOn(500, 64)})

	frames := src.Poll(500)
	require.Len(t, frames, 1)
	assert.Len(t, frames[0].Events, 2)

	assert.Nil(t, src.Poll(500))
	assert.Nil(t, src.Poll(1000))
}

func TestScriptSourceSortsOutOfOrderEvents(t *testing.T) {
	src := NewScriptSource([]music.RawEvent{rawOn(500, 64), rawOn(0, 60)})

	frames := src.Poll(500)
	require.Len(t, frames, 1)
	require.Len(t, frames[0].Events, 2)
	assert.Equal(t, 0.0, frames[0].Events[0].Time)
	assert.Equal(t, 500.0, frames[0].Events[1].Time)
}

func TestScriptSourcePushDeliversOnNextPoll(t *testing.T) {
	src := NewScriptSource([]music.RawEvent{rawOn(0, 60)})
	require.Len(t, src.Poll(100), 1)

	src.Push(rawOn(150, 64))
	src.Push(rawOn(120, 62)) // out of push order, still sorted

	frames := src.Poll(200)
	require.Len(t, frames, 1)
	require.Len(t, frames[0].Events, 2)
	assert.Equal(t, uint8(62), frames[0].Events[0].Pitch)
	assert.Equal(t, uint8(64), frames[0].Events[1].Pitch)
}

func TestScriptSourceRewindReplaysFromStart(t *testing.T) {
	src := NewScriptSource([]music.RawEvent{rawOn(0, 60), rawOff(200, 60)})
	require.Len(t, src.Poll(200), 1)
	require.Nil(t, src.Poll(200))

	src.Rewind()
	frames := src.Poll(200)
	require.Len(t, frames, 1)
	assert.Len(t, frames[0].Events, 2)
}

func TestScriptSourceDuration(t *testing.T) {
	assert.Equal(t, 0.0, NewScriptSource(nil).Duration())

	src := NewScriptSource([]music.RawEvent{rawOn(0, 60), rawOff(700, 60)})
	assert.Equal(t, 700.0, src.Duration())
}

// buildTestSMF writes a one-track file at 120 BPM: a C4/E4 dyad at the
// start, C4 re-struck on the second beat, everything released on the
// third.
func buildTestSMF(t *testing.T) []byte {
	t.Helper()

	clock := smf.MetricTicks(960)
	s := smf.New()
	s.TimeFormat = clock

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(0, midi.NoteOn(0, 64, 100))
	tr.Add(clock.Ticks4th(), midi.NoteOff(0, 60))
	tr.Add(0, midi.NoteOn(0, 60, 90))
	tr.Add(clock.Ticks4th(), midi.NoteOff(0, 64))
	tr.Add(0, midi.NoteOff(0, 60))
	tr.Close(0)
	require.NoError(t, s.Add(tr))

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestSMFSourceRoundTrip(t *testing.T) {
	src, err := NewSMFSourceFromBytes(buildTestSMF(t))
	require.NoError(t, err)

	frames := src.Poll(10000)
	require.Len(t, frames, 1)
	events := frames[0].Events
	require.Len(t, events, 6)

	kinds := make([]music.EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []music.EventKind{
		music.EventNoteOn, music.EventNoteOn, // the dyad
		music.EventNoteOff, music.EventNoteOn, // release sorts before the re-strike
		music.EventNoteOff, music.EventNoteOff,
	}, kinds)

	// 120 BPM and 960 ticks per quarter put the beats at 500ms.
	assert.InDelta(t, 0, events[0].Time, 1)
	assert.InDelta(t, 500, events[2].Time, 1)
	assert.InDelta(t, 500, events[3].Time, 1)
	assert.Equal(t, uint8(90), events[3].Velocity)
	assert.InDelta(t, 1000, events[4].Time, 1)

	assert.InDelta(t, 1000, src.Duration(), 1)
}

func TestSMFSourceRejectsGarbage(t *testing.T) {
	_, err := NewSMFSourceFromBytes([]byte("not a midi file"))
	assert.Error(t, err)
}
