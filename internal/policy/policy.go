// Package policy provides the agent capability that steers each measurement
// cycle: how to reshape the wave, how to rotate the pentagram, and which
// context to measure.
package policy

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/haricheung/hadron/internal/kcbs"
	"github.com/haricheung/hadron/internal/wave"
)

// Policy chooses rotation, focus/dispersion and context for one cycle.
type Policy interface {
	Name() string
	ChooseFocus(w *wave.State) wave.Adjust
	ChooseRotation(w *wave.State, p kcbs.Pentagram) float64
	ChooseContext(w *wave.State, p kcbs.Pentagram) kcbs.Context
}

// Coherence-seeking tuning.
const (
	scanStep          = math.Pi / 90 // 2°
	diffuseBelow      = 0.5          // wave coherence under which we focus
	concentratedAbove = 0.8          // wave coherence over which we disperse
	focusFactor       = 1.5
	disperseFactor    = 1.2
)

// Names accepted by ByName.
const (
	NameCoherence = "coherence"
	NameRandom    = "random"
)

// ByName builds a policy from its configured name. rng seeds the random policy.
//
// Expectations:
//   - "coherence" (or "") returns a CoherenceSeeking policy
//   - "random" returns a Random policy using rng
//   - Any other name returns an error naming the valid choices
func ByName(name string, rng *rand.Rand) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameCoherence:
		return CoherenceSeeking{}, nil
	case NameRandom:
		return NewRandom(rng), nil
	}
	return nil, fmt.Errorf("unknown policy %q (want %s or %s)", name, NameCoherence, NameRandom)
}

// ── uniform-random exploration ───────────────────────────────────────────────

// Random explores uniformly: focus, disperse or leave the wave with a factor
// in [1, 2); any rotation in [0, 2π); any context.
type Random struct {
	rng *rand.Rand
}

// NewRandom wraps rng. A nil rng is replaced by a fixed-seed source so the
// policy stays reproducible.
func NewRandom(rng *rand.Rand) *Random {
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}
	return &Random{rng: rng}
}

func (r *Random) Name() string { return NameRandom }

func (r *Random) ChooseFocus(_ *wave.State) wave.Adjust {
	factor := 1 + r.rng.Float64()
	switch r.rng.IntN(3) {
	case 0:
		return wave.Adjust{Mode: wave.ModeFocus, Factor: factor}
	case 1:
		return wave.Adjust{Mode: wave.ModeDisperse, Factor: factor}
	}
	return wave.NoAdjust
}

func (r *Random) ChooseRotation(_ *wave.State, _ kcbs.Pentagram) float64 {
	return r.rng.Float64() * 2 * math.Pi
}

func (r *Random) ChooseContext(_ *wave.State, _ kcbs.Pentagram) kcbs.Context {
	return kcbs.ContextAt(r.rng.IntN(kcbs.N))
}

// ── coherence seeking ────────────────────────────────────────────────────────

// CoherenceSeeking rotates the pentagram onto the wave's mass, focuses a
// diffuse wave, disperses a concentrated one, and measures the context with
// the most amplitude. It is deterministic.
type CoherenceSeeking struct{}

func (CoherenceSeeking) Name() string { return NameCoherence }

// ChooseFocus biases toward focusing a diffuse wave and dispersing a
// concentrated one.
//
// Expectations:
//   - Returns focus ×1.5 when wave coherence < 0.5
//   - Returns disperse ×1.2 when wave coherence > 0.8
//   - Returns NoAdjust otherwise
func (CoherenceSeeking) ChooseFocus(w *wave.State) wave.Adjust {
	c := w.Coherence()
	switch {
	case c < diffuseBelow:
		return wave.Adjust{Mode: wave.ModeFocus, Factor: focusFactor}
	case c > concentratedAbove:
		return wave.Adjust{Mode: wave.ModeDisperse, Factor: disperseFactor}
	}
	return wave.NoAdjust
}

// ChooseRotation scans [0, 2π/5) in 2° steps for the rotation that maximizes
// total wave amplitude at the five vertices. The scan covers one pentagon
// period since the vertex set repeats every 2π/5. Ties keep the first angle.
func (CoherenceSeeking) ChooseRotation(w *wave.State, p kcbs.Pentagram) float64 {
	best, bestAmp := 0.0, math.Inf(-1)
	for theta := 0.0; theta < kcbs.Step; theta += scanStep {
		if amp := p.Rotate(theta).VertexAmplitude(w); amp > bestAmp {
			best, bestAmp = theta, amp
		}
	}
	return best
}

// ChooseContext picks the context whose two observables carry the highest
// combined amplitude; the lowest index wins ties.
func (CoherenceSeeking) ChooseContext(w *wave.State, p kcbs.Pentagram) kcbs.Context {
	best, bestAmp := kcbs.ContextAt(0), math.Inf(-1)
	for _, ctx := range p.Contexts() {
		amp := w.At(p.Direction(ctx.A)) + w.At(p.Direction(ctx.B))
		if amp > bestAmp {
			best, bestAmp = ctx, amp
		}
	}
	return best
}
