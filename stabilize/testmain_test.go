package stabilize

import (
	"os"
	"testing"

	"github.com/noctave/noctave/logging"
	"github.com/noctave/noctave/music"
)

func TestMain(m *testing.M) {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
	os.Exit(m.Run())
}

// tick builds the raw frame for a request time with the given events.
func tick(t float64, events ...music.RawEvent) *music.RawInputFrame {
	return &music.RawInputFrame{Time: t, Events: events}
}

// noteOn and noteOff are event constructors shared by the stage tests.
func noteOn(t float64, pitch, velocity uint8) music.RawEvent {
	return music.RawEvent{Kind: music.EventNoteOn, Pitch: pitch, Velocity: velocity, Time: t}
}

func noteOff(t float64, pitch uint8) music.RawEvent {
	return music.RawEvent{Kind: music.EventNoteOff, Pitch: pitch, Time: t}
}
