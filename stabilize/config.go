package stabilize

import (
	"github.com/noctave/noctave/music"
	"github.com/noctave/noctave/theory"
)

// Config carries the numeric windows and thresholds for every
// stabilizer plus the pipeline-level user surface (prescribed tempo and
// meter, classifier, tension scorer). All durations are milliseconds.
type Config struct {
	// Note lifecycle tracker
	AttackWindowMs     float64 `json:"attack_window_ms"`     // attack -> sustain boundary
	ReleaseRetentionMs float64 `json:"release_retention_ms"` // fade-out retention after release
	TrendWindowMs      float64 `json:"trend_window_ms"`      // dynamics level history for trend

	// Chord grouper
	OnsetWindowMs       float64 `json:"onset_window_ms"`       // simultaneity window for rolled chords
	ChordDecayWindowMs  float64 `json:"chord_decay_window_ms"` // post-finalization display retention
	ProgressionWindowMs float64 `json:"progression_window_ms"` // rolling chord history for progressions

	// Rhythm analyzer
	ClusteringIntervalMs float64 `json:"clustering_interval_ms"` // re-clustering throttle
	RhythmWindowMs       float64 `json:"rhythm_window_ms"`       // onset retention by age
	MaxOnsets            int     `json:"max_onsets"`             // onset retention by count
	MinOnsets            int     `json:"min_onsets"`             // below this, analysis is "unknown"
	IOIToleranceMs       float64 `json:"ioi_tolerance_ms"`       // cluster assignment tolerance
	MinIOIMs             float64 `json:"min_ioi_ms"`             // shorter IOIs are chords, not beats
	MaxIOIMs             float64 `json:"max_ioi_ms"`             // longer IOIs are rests, not tempo
	StabilityNormMs      float64 `json:"stability_norm_ms"`      // typical human timing variance

	// User/control surface, injected verbatim into every emitted frame.
	Tempo *music.Tempo `json:"tempo,omitempty"`
	Meter *music.Meter `json:"meter,omitempty"`

	// Collaborators. Nil values fall back to the built-in
	// implementations at orchestrator construction.
	Classifier theory.Classifier    `json:"-"`
	Tension    theory.TensionScorer `json:"-"`
}

// DefaultConfig returns the calibrated defaults. The IOI tolerance,
// bounds and stability normalization are fixed constants of the
// clustering method rather than tunables; they are still exposed so
// tests can pin them.
func DefaultConfig() Config {
	return Config{
		AttackWindowMs:     120,
		ReleaseRetentionMs: 1500,
		TrendWindowMs:      2000,

		OnsetWindowMs:       100,
		ChordDecayWindowMs:  100,
		ProgressionWindowMs: 8000,

		ClusteringIntervalMs: 500,
		RhythmWindowMs:       6000,
		MaxOnsets:            64,
		MinOnsets:            4,
		IOIToleranceMs:       25,
		MinIOIMs:             100,
		MaxIOIMs:             2000,
		StabilityNormMs:      50,
	}
}

// withDefaults fills nil collaborators with the built-ins.
func (c Config) withDefaults() Config {
	if c.Classifier == nil {
		c.Classifier = theory.NewTemplateClassifier()
	}
	if c.Tension == nil {
		c.Tension = theory.NewDissonanceTable()
	}
	if c.ChordDecayWindowMs == 0 {
		c.ChordDecayWindowMs = c.OnsetWindowMs
	}
	return c
}
