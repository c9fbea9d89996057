package stabilize

import (
	"sort"

	"github.com/google/uuid"

	"github.com/noctave/noctave/adapter"
	"github.com/noctave/noctave/logging"
	"github.com/noctave/noctave/music"
)

// partChain is the per-part set of stabilizer instances plus each
// stage's cached previous output.
type partChain struct {
	stages []Stabilizer
	prev   map[string]*music.MusicalFrame
}

// Orchestrator owns one independent instance of every configured
// stabilizer per part, runs them in dependency order on each frame
// request, and merges their outputs into one musical frame. All state
// is owned by the orchestrator instance; there is no global registry.
//
// The orchestrator is single-threaded and pull-based: a RequestFrame
// call fully completes before returning, and nothing in it is safe for
// concurrent use across the same part.
type Orchestrator struct {
	cfg    Config
	regs   []Registration // dependency-sorted
	logger logging.Logger

	parts   map[string]*partChain
	sources map[string][]adapter.Source
}

// NewOrchestrator validates the configured stabilizers and computes
// their execution order. A dependency cycle is a wiring bug and fails
// construction; no frame is ever processed against a cyclic chain.
func NewOrchestrator(cfg Config, regs ...Registration) (*Orchestrator, error) {
	sorted, err := sortRegistrations(regs)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:  cfg.withDefaults(),
		regs: sorted,
		logger: logging.WithFields(logging.Fields{
			"component": "orchestrator",
			"session":   uuid.NewString(),
		}),
		parts:   make(map[string]*partChain),
		sources: make(map[string][]adapter.Source),
	}, nil
}

// AddSource registers an input source for a part. Sources are polled
// on every frame request in registration order.
func (o *Orchestrator) AddSource(part string, src adapter.Source) {
	o.sources[part] = append(o.sources[part], src)
}

// Parts returns the part ids currently known, sorted.
func (o *Orchestrator) Parts() []string {
	parts := make([]string, 0, len(o.parts))
	for part := range o.parts {
		parts = append(parts, part)
	}
	sort.Strings(parts)
	return parts
}

// RequestFrame advances the part's chain to time t and returns the
// merged frame. A part with zero configured stabilizers still yields a
// well-formed empty frame. A single stage's failure is isolated: its
// contribution is skipped for this tick and its cached previous output
// is left unchanged for the next attempt, while sibling outputs are
// kept.
func (o *Orchestrator) RequestFrame(part string, t float64) *music.MusicalFrame {
	chain := o.chain(part)

	var rawFrames []music.RawInputFrame
	for _, src := range o.sources[part] {
		rawFrames = append(rawFrames, src.Poll(t)...)
	}
	raw := music.MergeRawFrames(t, rawFrames)

	current := make(map[string]*music.MusicalFrame, len(chain.stages))
	var outputs []*music.MusicalFrame

	for _, stage := range chain.stages {
		upstream := o.upstream(chain, stage, current, part, t)

		out, err := stage.Apply(&raw, upstream)
		if err != nil {
			o.logger.Error(err, "stabilizer failed, skipping its contribution", logging.Fields{
				"stabilizer": stage.ID(),
				"part":       part,
				"time":       t,
			})
			continue
		}
		current[stage.ID()] = out
		chain.prev[stage.ID()] = out
		outputs = append(outputs, out)
	}

	frame := MergeFrames(part, t, outputs...)
	if frame == nil {
		frame = music.NewFrame(part, t)
	}
	frame.Time = t
	frame.PartID = part

	// Prescribed tempo and meter come from pipeline configuration,
	// never from a stabilizer, so they are reinjected on every frame.
	frame.Tempo = o.cfg.Tempo
	frame.Meter = o.cfg.Meter

	return frame
}

// upstream computes a stage's input frame: the merged current-tick
// outputs of its declared dependencies, or — when it declares none —
// the stage's own previous output. With no dependency output yet, the
// upstream is nil.
func (o *Orchestrator) upstream(chain *partChain, stage Stabilizer, current map[string]*music.MusicalFrame, part string, t float64) *music.MusicalFrame {
	deps := stage.Dependencies()
	if len(deps) == 0 {
		return chain.prev[stage.ID()]
	}

	var inputs []*music.MusicalFrame
	for _, dep := range deps {
		if out, ok := current[dep]; ok {
			inputs = append(inputs, out)
		}
	}
	if len(inputs) == 0 {
		return nil
	}
	if len(inputs) == 1 {
		return inputs[0]
	}
	return MergeFrames(part, t, inputs...)
}

// chain returns the part's stabilizer instances, constructing fresh
// ones on first reference.
func (o *Orchestrator) chain(part string) *partChain {
	if chain, ok := o.parts[part]; ok {
		return chain
	}

	chain := &partChain{prev: make(map[string]*music.MusicalFrame)}
	for _, reg := range o.regs {
		chain.stages = append(chain.stages, reg.New(part, o.cfg))
	}
	o.parts[part] = chain

	o.logger.Debug("instantiated part chain", logging.Fields{
		"part":   part,
		"stages": len(chain.stages),
	})
	return chain
}

// Reset clears all part state and cached frame history. Registered
// sources are kept; their own cursors are the caller's concern.
func (o *Orchestrator) Reset() {
	for _, chain := range o.parts {
		for _, stage := range chain.stages {
			stage.Reset()
		}
	}
	o.parts = make(map[string]*partChain)
}

// Close releases every stabilizer instance after its own teardown hook.
func (o *Orchestrator) Close() {
	for _, chain := range o.parts {
		for _, stage := range chain.stages {
			stage.Close()
		}
	}
	o.parts = make(map[string]*partChain)
	o.sources = make(map[string][]adapter.Source)
}
