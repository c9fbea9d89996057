package music

// Tempo is a user-prescribed tempo. It is injected by the pipeline
// configuration and never derived by any stabilizer.
type Tempo struct {
	BPM float64 `json:"bpm"`
}

// BeatPeriodMs returns the duration of one beat in milliseconds.
func (t Tempo) BeatPeriodMs() float64 {
	return 60000.0 / t.BPM
}

// Meter is a user-prescribed meter (e.g. 3/4 is BeatsPerBar=3, BeatUnit=4).
type Meter struct {
	BeatsPerBar int `json:"beats_per_bar"`
	BeatUnit    int `json:"beat_unit"`
}

// DynamicsTrend describes the recent direction of the dynamics level.
type DynamicsTrend string

const (
	TrendRising  DynamicsTrend = "rising"
	TrendFalling DynamicsTrend = "falling"
	TrendSteady  DynamicsTrend = "steady"
)

// Dynamics carries the current loudness estimate for a part.
type Dynamics struct {
	Level float64       `json:"level"` // 0-1
	Trend DynamicsTrend `json:"trend"`
}

// DriftTier is one subdivision tier of an onset's drift measurement.
// Drift is the signed offset in milliseconds from the nearest grid
// point of the tier's period; positive means late. Fraction is the
// same offset expressed as a fraction of the period, used to decide
// which tier is nearest.
type DriftTier struct {
	Label    string  `json:"label"`
	Period   float64 `json:"period"` // ms
	Drift    float64 `json:"drift"`  // ms, signed
	Fraction float64 `json:"fraction"`
	Nearest  bool    `json:"nearest"`
}

// OnsetDrift reports the drift of a single retained onset against each
// subdivision tier of the current base period.
type OnsetDrift struct {
	Onset float64     `json:"onset"`
	Tiers []DriftTier `json:"tiers"`
}

// RhythmicAnalysis is the descriptive output of the rhythm analyzer.
// DetectedDivision is the dominant inter-onset period, or nil when the
// analyzer has too little signal — never a guessed default. The
// analysis never claims to know the true tempo or meter; it reports
// distances and leaves interpretation to consumers.
type RhythmicAnalysis struct {
	DetectedDivision *float64     `json:"detected_division,omitempty"` // ms
	Stability        float64      `json:"stability"`                   // 0-1
	Confidence       float64      `json:"confidence"`                  // 0-1
	Periodicity      float64      `json:"periodicity"`                 // 0-1, autocorrelation corroboration
	Drift            []OnsetDrift `json:"drift,omitempty"`
}

// MusicalFrame is the unit exchanged between stabilizers and emitted by
// the orchestrator. Every frame is a complete snapshot: no stabilizer
// may assume a consumer retains history.
type MusicalFrame struct {
	Time        float64           `json:"time"`
	PartID      string            `json:"part_id"`
	Notes       []Note            `json:"notes"`
	Chords      []Chord           `json:"chords"`
	Rhythm      *RhythmicAnalysis `json:"rhythm,omitempty"`
	Dynamics    Dynamics          `json:"dynamics"`
	Tempo       *Tempo            `json:"tempo,omitempty"`
	Meter       *Meter            `json:"meter,omitempty"`
	Progression []string          `json:"progression,omitempty"`
	Tension     *float64          `json:"tension,omitempty"`
}

// NewFrame returns an empty, well-formed frame for a part.
func NewFrame(part string, t float64) *MusicalFrame {
	return &MusicalFrame{
		Time:     t,
		PartID:   part,
		Dynamics: Dynamics{Trend: TrendSteady},
	}
}
