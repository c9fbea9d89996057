package stabilize

import (
	"math"
	"math/cmplx"
	"sort"
	"strconv"

	"github.com/mjibson/go-dsp/fft"

	"github.com/noctave/noctave/logging"
	"github.com/noctave/noctave/music"
)

// acBinMs is the quantization step of the onset impulse train used for
// the autocorrelation corroboration.
const acBinMs = 10.0

// driftTierCount is fixed at four (base, /2, /4, /8). Triplet tiers are
// deliberately not modeled.
const driftTierCount = 4

// ioiCluster is one inter-onset-interval cluster with an online mean
// and sum of squared deviations (Welford).
type ioiCluster struct {
	mean  float64
	n     int
	m2    float64
	score float64
}

func (c *ioiCluster) add(x float64) {
	c.n++
	delta := x - c.mean
	c.mean += delta / float64(c.n)
	c.m2 += delta * (x - c.mean)
}

// meanSquaredDeviation is the within-cluster variance.
func (c *ioiCluster) meanSquaredDeviation() float64 {
	if c.n == 0 {
		return 0
	}
	return c.m2 / float64(c.n)
}

// RhythmAnalyzer detects the dominant inter-onset period by greedy IOI
// clustering with harmonic rescoring, estimates its stability and
// confidence, and reports per-onset drift against either the detected
// period or a user-prescribed tempo. It consumes raw onsets directly
// rather than the tracker's output, to avoid compounding latency.
//
// The output is descriptive only: the analyzer never claims to know
// the true tempo, meter, or intended subdivision.
type RhythmAnalyzer struct {
	part   string
	cfg    Config
	logger logging.Logger

	onsets []float64 // retained onsets, ascending

	// cached clustering results, refreshed every ClusteringIntervalMs
	clustered     bool
	lastClusterAt float64
	division      *float64
	stability     float64
	confidence    float64
	periodicity   float64
}

// NewRhythmAnalyzer creates an analyzer for one part.
func NewRhythmAnalyzer(part string, cfg Config) *RhythmAnalyzer {
	return &RhythmAnalyzer{
		part:   part,
		cfg:    cfg,
		logger: logging.WithFields(logging.Fields{"component": "rhythm_analyzer", "part": part}),
	}
}

func (ra *RhythmAnalyzer) ID() string             { return StageRhythm }
func (ra *RhythmAnalyzer) Dependencies() []string { return nil }

// Apply ingests the tick's onsets, re-clusters when the throttle
// allows, and recomputes drift on every call (cheap).
func (ra *RhythmAnalyzer) Apply(raw *music.RawInputFrame, _ *music.MusicalFrame) (*music.MusicalFrame, error) {
	t := raw.Time

	for _, ev := range raw.Events {
		if ev.Kind == music.EventNoteOn {
			ra.onsets = append(ra.onsets, ev.Time)
		}
	}
	sort.Float64s(ra.onsets)
	ra.prune(t)

	if !ra.clustered || t-ra.lastClusterAt >= ra.cfg.ClusteringIntervalMs {
		ra.recluster(t)
		ra.clustered = true
		ra.lastClusterAt = t
	}

	frame := music.NewFrame(ra.part, t)
	frame.Rhythm = &music.RhythmicAnalysis{
		DetectedDivision: ra.division,
		Stability:        ra.stability,
		Confidence:       ra.confidence,
		Periodicity:      ra.periodicity,
		Drift:            ra.drift(),
	}
	return frame, nil
}

// prune bounds onset retention by elapsed time and by count.
func (ra *RhythmAnalyzer) prune(t float64) {
	cut := 0
	for cut < len(ra.onsets) && t-ra.onsets[cut] > ra.cfg.RhythmWindowMs {
		cut++
	}
	if over := len(ra.onsets) - cut - ra.cfg.MaxOnsets; over > 0 {
		cut += over
	}
	if cut > 0 {
		ra.onsets = append([]float64(nil), ra.onsets[cut:]...)
	}
}

// recluster runs the full IOI clustering pass. Insufficient signal
// yields an explicit "unknown" (nil division, zero scores), never a
// guessed default.
func (ra *RhythmAnalyzer) recluster(t float64) {
	ra.division = nil
	ra.stability = 0
	ra.confidence = 0
	ra.periodicity = 0

	if len(ra.onsets) < ra.cfg.MinOnsets {
		return
	}

	// Consecutive IOIs, discarding pathological ones: too short is a
	// chord roll, not a beat subdivision; too long is a rest, not a
	// tempo signal.
	var iois []float64
	for i := 1; i < len(ra.onsets); i++ {
		ioi := ra.onsets[i] - ra.onsets[i-1]
		if ioi >= ra.cfg.MinIOIMs && ioi <= ra.cfg.MaxIOIMs {
			iois = append(iois, ioi)
		}
	}
	if len(iois) < 2 {
		return
	}

	clusters := ra.cluster(iois)
	ra.rescore(clusters)

	var winner *ioiCluster
	total := 0.0
	for _, c := range clusters {
		total += c.score
		if c.n < 2 {
			continue
		}
		if winner == nil || c.score > winner.score {
			winner = c
		}
	}
	if winner == nil || total <= 0 {
		return
	}

	division := winner.mean
	ra.division = &division
	ra.confidence = winner.score / total
	ra.stability = clamp01(1 - math.Sqrt(winner.meanSquaredDeviation())/ra.cfg.StabilityNormMs)
	ra.periodicity = ra.autocorrelation(division, t)

	ra.logger.Debug("re-clustered onsets", logging.Fields{
		"division":   division,
		"stability":  ra.stability,
		"confidence": ra.confidence,
		"clusters":   len(clusters),
	})
}

// cluster greedily assigns each IOI to the nearest existing cluster
// within the fixed tolerance, starting a new cluster otherwise.
func (ra *RhythmAnalyzer) cluster(iois []float64) []*ioiCluster {
	var clusters []*ioiCluster
	for _, ioi := range iois {
		var best *ioiCluster
		bestDist := math.Inf(1)
		for _, c := range clusters {
			if d := math.Abs(c.mean - ioi); d < bestDist {
				bestDist = d
				best = c
			}
		}
		if best != nil && bestDist <= ra.cfg.IOIToleranceMs {
			best.add(ioi)
		} else {
			fresh := &ioiCluster{}
			fresh.add(ioi)
			clusters = append(clusters, fresh)
		}
	}
	for _, c := range clusters {
		c.score = float64(c.n)
	}
	return clusters
}

// rescore awards each cluster whose mean is close to an integer
// multiple (2x, 3x, 4x) of a shorter cluster's mean a bonus
// proportional to the shorter cluster's weight and inversely
// proportional to the multiplier. The bias toward the coarser period
// is intentional: quarter notes should beat the eighth notes that also
// fit the data.
func (ra *RhythmAnalyzer) rescore(clusters []*ioiCluster) {
	for _, short := range clusters {
		for _, long := range clusters {
			if short == long {
				continue
			}
			for m := 2; m <= 4; m++ {
				tolerance := ra.cfg.IOIToleranceMs * float64(m)
				if math.Abs(long.mean-float64(m)*short.mean) <= tolerance {
					long.score += float64(short.n) / float64(m)
				}
			}
		}
	}
}

// autocorrelation corroborates the detected division by measuring the
// normalized autocorrelation of the quantized onset impulse train at
// the division lag. Purely descriptive; it never overrides the
// clustering result.
func (ra *RhythmAnalyzer) autocorrelation(division, t float64) float64 {
	lag := int(math.Round(division / acBinMs))
	bins := int(ra.cfg.RhythmWindowMs/acBinMs) + 1
	if lag <= 0 || lag >= bins || len(ra.onsets) == 0 {
		return 0
	}

	// Zero-padded to twice the window so the FFT autocorrelation does
	// not wrap around.
	train := make([]float64, 2*bins)
	origin := t - ra.cfg.RhythmWindowMs
	for _, on := range ra.onsets {
		idx := int(math.Round((on - origin) / acBinMs))
		if idx >= 0 && idx < bins {
			train[idx] = 1.0
		}
	}

	spectrum := fft.FFTReal(train)
	power := make([]complex128, len(spectrum))
	for i, v := range spectrum {
		power[i] = v * cmplx.Conj(v)
	}
	ac := fft.IFFT(power)

	zero := real(ac[0])
	if zero <= 0 {
		return 0
	}
	return clamp01(real(ac[lag]) / zero)
}

// drift recomputes the per-onset subdivision drift. The base period is
// the prescribed tempo's beat period when one is set, else the cached
// detected division; with neither, each onset gets an empty record.
// Grids are anchored at absolute time zero so drift values are stable
// across re-analyses.
func (ra *RhythmAnalyzer) drift() []music.OnsetDrift {
	drifts := make([]music.OnsetDrift, 0, len(ra.onsets))

	var base float64
	var musical bool
	switch {
	case ra.cfg.Tempo != nil:
		base = ra.cfg.Tempo.BeatPeriodMs()
		musical = true
	case ra.division != nil:
		base = *ra.division
	default:
		for _, on := range ra.onsets {
			drifts = append(drifts, music.OnsetDrift{Onset: on})
		}
		return drifts
	}

	labels := ra.tierLabels(musical)
	for _, on := range ra.onsets {
		tiers := make([]music.DriftTier, driftTierCount)
		nearest := 0
		for i := range tiers {
			period := base / float64(int(1)<<uint(i))
			grid := math.Round(on/period) * period
			d := on - grid // positive when late
			tiers[i] = music.DriftTier{
				Label:    labels[i],
				Period:   period,
				Drift:    d,
				Fraction: d / period,
			}
			if math.Abs(tiers[i].Fraction) < math.Abs(tiers[nearest].Fraction) {
				nearest = i
			}
		}
		tiers[nearest].Nearest = true
		drifts = append(drifts, music.OnsetDrift{Onset: on, Tiers: tiers})
	}
	return drifts
}

// tierLabels names the four tiers musically when the tempo (and
// therefore the beat unit) is prescribed, generically otherwise.
func (ra *RhythmAnalyzer) tierLabels(musical bool) [driftTierCount]string {
	if !musical {
		return [driftTierCount]string{"base", "base/2", "base/4", "base/8"}
	}
	unit := 4
	if ra.cfg.Meter != nil && ra.cfg.Meter.BeatUnit > 0 {
		unit = ra.cfg.Meter.BeatUnit
	}
	var labels [driftTierCount]string
	for i := range labels {
		labels[i] = subdivisionLabel(unit << uint(i))
	}
	return labels
}

func subdivisionLabel(unit int) string {
	switch unit {
	case 1:
		return "whole"
	case 2:
		return "half"
	case 4:
		return "quarter"
	case 8:
		return "eighth"
	case 16:
		return "sixteenth"
	case 32:
		return "thirty-second"
	case 64:
		return "sixty-fourth"
	default:
		return "base/" + strconv.Itoa(unit)
	}
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func (ra *RhythmAnalyzer) Reset() {
	ra.onsets = nil
	ra.clustered = false
	ra.lastClusterAt = 0
	ra.division = nil
	ra.stability = 0
	ra.confidence = 0
	ra.periodicity = 0
}

func (ra *RhythmAnalyzer) Close() {
	ra.Reset()
}
