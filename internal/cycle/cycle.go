// Package cycle runs the measurement loop: raise a wave from the hadron
// population, orient and measure the pentagram, and feed the outcome back
// into every hadron's persistence.
package cycle

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/haricheung/hadron/internal/hadron"
	"github.com/haricheung/hadron/internal/kcbs"
	"github.com/haricheung/hadron/internal/phase"
	"github.com/haricheung/hadron/internal/policy"
	"github.com/haricheung/hadron/internal/quark"
	"github.com/haricheung/hadron/internal/types"
	"github.com/haricheung/hadron/internal/wave"
)

// Reinforcement tuning.
const (
	SuccessThreshold = 0.3  // inversion error below which a collapse succeeds
	EmptyError       = 0.5  // inversion error reported with no hadrons
	SuccessGain      = 0.3  // × match score on success
	FailurePenalty   = 0.02 // × (1 − match score) on failure
)

// Config holds the collaborators of an Engine. Zero fields get defaults.
type Config struct {
	Policy     policy.Policy
	Rand       *rand.Rand
	MaxHadrons int // 0 = unbounded
	Logger     *slog.Logger
}

// Counters are monotonically increasing tick totals.
type Counters struct {
	Cycles    uint64 `json:"cycles"`
	Collapses uint64 `json:"collapses"`
	Successes uint64 `json:"successes"`
}

// Engine owns the hadron population and the current wave.
// It is not safe for concurrent use.
type Engine struct {
	policy     policy.Policy
	rng        *rand.Rand
	sampler    *quark.Sampler
	maxHadrons int
	log        *slog.Logger

	hadrons   []*hadron.Triangle
	wave      *wave.State
	pentagram kcbs.Pentagram
	counters  Counters
}

// New builds an Engine with an empty population and the vacuum wave.
//
// Expectations:
//   - Nil Policy defaults to CoherenceSeeking
//   - Nil Rand defaults to a fixed-seed PCG source
//   - Nil Logger defaults to slog.Default()
//   - Negative MaxHadrons is treated as unbounded
func New(cfg Config) *Engine {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(0, 0))
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.CoherenceSeeking{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxHadrons < 0 {
		cfg.MaxHadrons = 0
	}
	return &Engine{
		policy:     cfg.Policy,
		rng:        cfg.Rand,
		sampler:    quark.NewSampler(cfg.Rand),
		maxHadrons: cfg.MaxHadrons,
		log:        cfg.Logger,
		wave:       wave.Vacuum(),
		pentagram:  kcbs.New(),
	}
}

// Sampler returns the engine's noise source for constructing hadrons, so
// construction shares the engine's seeded sequence.
func (e *Engine) Sampler() *quark.Sampler { return e.sampler }

// Rand returns the engine's seeded source.
func (e *Engine) Rand() *rand.Rand { return e.rng }

// Policy returns the steering policy.
func (e *Engine) Policy() policy.Policy { return e.policy }

// Add appends h to the population.
//
// Expectations:
//   - Returns false for a nil hadron
//   - Returns false and logs when the population cap is reached
//   - Never evicts an existing hadron
func (e *Engine) Add(h *hadron.Triangle) bool {
	if h == nil {
		return false
	}
	if e.Full() {
		e.log.Warn("[CYCLE] population cap reached — hadron refused", "cap", e.maxHadrons, "id", h.ID)
		return false
	}
	e.hadrons = append(e.hadrons, h)
	return true
}

// Full reports whether the population cap is set and reached.
func (e *Engine) Full() bool {
	return e.maxHadrons > 0 && len(e.hadrons) >= e.maxHadrons
}

// Len returns the population size.
func (e *Engine) Len() int { return len(e.hadrons) }

// Hadrons returns deep copies of the population, in insertion order.
func (e *Engine) Hadrons() []*hadron.Triangle {
	out := make([]*hadron.Triangle, len(e.hadrons))
	for i, h := range e.hadrons {
		out[i] = h.Clone()
	}
	return out
}

// Each calls fn on each live hadron in insertion order until fn returns false.
// fn may mutate persistence; it must not retain the pointer.
func (e *Engine) Each(fn func(h *hadron.Triangle) bool) {
	for _, h := range e.hadrons {
		if !fn(h) {
			return
		}
	}
}

// Lookup returns the live hadron whose ID starts with prefix and the number
// of hadrons that matched. The hadron is nil unless exactly one matched.
func (e *Engine) Lookup(prefix string) (*hadron.Triangle, int) {
	if prefix == "" {
		return nil, 0
	}
	var found *hadron.Triangle
	n := 0
	for _, h := range e.hadrons {
		if strings.HasPrefix(h.ID, prefix) {
			found = h
			n++
		}
	}
	if n != 1 {
		return nil, n
	}
	return found, 1
}

// Wave returns a copy of the current wave.
func (e *Engine) Wave() *wave.State {
	return wave.New(e.wave.Blobs()...)
}

// Pentagram returns the pentagram as oriented by the last tick.
func (e *Engine) Pentagram() kcbs.Pentagram { return e.pentagram }

// Counters returns the tick totals.
func (e *Engine) Counters() Counters { return e.counters }

// Tick runs one measurement cycle.
//
// Expectations:
//   - Increments Cycles and Collapses by one; Successes by one on success
//   - Reports InversionError 0.5 and failure when the population is empty
//   - InversionError = nearest vertex distance to the collapsed phase / π
//   - Success iff InversionError < 0.3
//   - Every hadron's persistence stays within [0.1, 10]
//   - Never removes a hadron
func (e *Engine) Tick() types.CollapseResult {
	adj := e.policy.ChooseFocus(e.wave)
	e.wave = wave.Raise(e.hadrons, adj)

	base := kcbs.New()
	e.pentagram = base.Rotate(e.policy.ChooseRotation(e.wave, base))
	ctx := e.policy.ChooseContext(e.wave, e.pentagram)
	out := e.pentagram.Collapse(e.wave, ctx, e.rng)

	e.counters.Cycles++
	e.counters.Collapses++
	cycleNo := e.counters.Cycles

	invErr, nearest := e.inversionError(out.Phase)
	success := invErr < SuccessThreshold
	if success {
		e.counters.Successes++
		if nearest != nil {
			nearest.LastSeen = cycleNo
		}
	}
	e.reinforce(out.Phase, success)

	res := types.CollapseResult{
		Cycle:          cycleNo,
		Phase:          out.Phase,
		Context:        out.Context.ID,
		Outcome:        out.Outcome,
		Quark:          quark.Classify(out.Phase, phase.NewSpread(e.wave.MeanSpread())),
		InversionError: invErr,
		Success:        success,
		P0:             out.P0,
		P1:             out.P1,
	}
	e.log.Debug("[CYCLE] collapse",
		"cycle", res.Cycle, "focus", adj.Mode, "rotation", e.pentagram.Rotation(),
		"context", res.Context, "outcome", res.Outcome, "error", res.InversionError, "success", res.Success)
	return res
}

// inversionError returns the smallest vertex distance to p over the population,
// divided by π, and the hadron that owns that vertex.
func (e *Engine) inversionError(p phase.Point) (float64, *hadron.Triangle) {
	if len(e.hadrons) == 0 {
		return EmptyError, nil
	}
	best, owner := math.Inf(1), (*hadron.Triangle)(nil)
	for _, h := range e.hadrons {
		if d := h.NearestDistance(p); d < best {
			best, owner = d, h
		}
	}
	return best / math.Pi, owner
}

func (e *Engine) reinforce(p phase.Point, success bool) {
	for _, h := range e.hadrons {
		m := h.MatchScore(p)
		if success {
			h.Reinforce(m * SuccessGain)
		} else {
			h.Reinforce(-FailurePenalty * (1 - m))
		}
	}
}
