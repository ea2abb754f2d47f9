// Package quark classifies phase/spread pairs into discrete three-axis flavors
// and maps flavors back to representative phases and spreads.
package quark

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/haricheung/hadron/internal/phase"
)

// Archetype values for the nearest-archetype tests.
const (
	ForwardAngle  = 0.0
	ReversedAngle = math.Pi
	TightSpread   = 0.1
	WideSpread    = 1.0

	// jitter is the half-width of the uniform noise the Sampler injects.
	jitter = 0.1
)

// ErrUnparseable is returned by Parse for malformed flavor strings.
var ErrUnparseable = errors.New("quark: unparseable flavor")

// TimeFlavor labels the time axis: forward (up) or reversed (down).
type TimeFlavor int

const (
	Up TimeFlavor = iota
	Down
)

// SpaceFlavor labels the space axis: dual-forward (charm) or dual-reversed (strange).
type SpaceFlavor int

const (
	Charm SpaceFlavor = iota
	Strange
)

// Closure labels the spread axis: tight (top) or wide (bottom).
type Closure int

const (
	Top Closure = iota
	Bottom
)

func (f TimeFlavor) String() string {
	if f == Down {
		return "down"
	}
	return "up"
}

func (f SpaceFlavor) String() string {
	if f == Strange {
		return "strange"
	}
	return "charm"
}

func (c Closure) String() string {
	if c == Bottom {
		return "bottom"
	}
	return "top"
}

// State is one classified flavor triple.
type State struct {
	Time    TimeFlavor  `json:"time"`
	Space   SpaceFlavor `json:"space"`
	Closure Closure     `json:"closure"`
}

// String renders the triple as "time/space/closure", e.g. "up/charm/top".
func (s State) String() string {
	return s.Time.String() + "/" + s.Space.String() + "/" + s.Closure.String()
}

// ClassifyTime returns Up when φ_t is at least as close to 0 as to π.
func ClassifyTime(phiT float64) TimeFlavor {
	if phase.Distance(phiT, ForwardAngle) <= phase.Distance(phiT, ReversedAngle) {
		return Up
	}
	return Down
}

// ClassifySpace returns Charm when φ_s is at least as close to 0 as to π.
func ClassifySpace(phiS float64) SpaceFlavor {
	if phase.Distance(phiS, ForwardAngle) <= phase.Distance(phiS, ReversedAngle) {
		return Charm
	}
	return Strange
}

// ClassifyClosure compares the mean spread to the midpoint of the archetypes.
//
// Expectations:
//   - Returns Top when (σ_t+σ_s)/2 < 0.55
//   - Returns Bottom when (σ_t+σ_s)/2 >= 0.55
func ClassifyClosure(s phase.Spread) Closure {
	if s.Mean() < (TightSpread+WideSpread)/2 {
		return Top
	}
	return Bottom
}

// Classify maps a point and spread to a full State.
func Classify(p phase.Point, s phase.Spread) State {
	return State{
		Time:    ClassifyTime(p.T),
		Space:   ClassifySpace(p.S),
		Closure: ClassifyClosure(s),
	}
}

// TimeCharge is +1 for Up and −1 for Down.
func (s State) TimeCharge() int {
	if s.Time == Down {
		return -1
	}
	return 1
}

// SpaceCharge is +1 for Charm and −1 for Strange.
func (s State) SpaceCharge() int {
	if s.Space == Strange {
		return -1
	}
	return 1
}

// FlipTime returns s with the time flavor reversed.
func (s State) FlipTime() State {
	s.Time = 1 - s.Time
	return s
}

// FlipSpace returns s with the space flavor reversed.
func (s State) FlipSpace() State {
	s.Space = 1 - s.Space
	return s
}

// FlipClosure returns s with the closure reversed.
func (s State) FlipClosure() State {
	s.Closure = 1 - s.Closure
	return s
}

// WithClosure returns s with the closure replaced.
func (s State) WithClosure(c Closure) State {
	s.Closure = c
	return s
}

// ColorNeutral reports whether the time charges and the space charges of
// exactly three quarks each sum to 0 mod 3.
//
// Expectations:
//   - Returns true when all three share the same time and space flavor (sums ±3)
//   - Returns false when any axis mixes flavors (sums ±1)
func ColorNeutral(q [3]State) bool {
	var t, s int
	for _, x := range q {
		t += x.TimeCharge()
		s += x.SpaceCharge()
	}
	return t%3 == 0 && s%3 == 0
}

// Parse reads a "time/space/closure" string such as "down/strange/bottom".
// Short forms u, d, c, s, t, b are accepted per axis.
//
// Expectations:
//   - Returns ErrUnparseable (wrapped) when the string lacks three parts
//   - Returns ErrUnparseable (wrapped) when any part is unknown
//   - Is case-insensitive and ignores surrounding whitespace
func Parse(raw string) (State, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(raw)), "/")
	if len(parts) != 3 {
		return State{}, fmt.Errorf("%w: %q", ErrUnparseable, raw)
	}
	var st State
	switch strings.TrimSpace(parts[0]) {
	case "up", "u":
		st.Time = Up
	case "down", "d":
		st.Time = Down
	default:
		return State{}, fmt.Errorf("%w: time flavor %q", ErrUnparseable, parts[0])
	}
	switch strings.TrimSpace(parts[1]) {
	case "charm", "c":
		st.Space = Charm
	case "strange", "s":
		st.Space = Strange
	default:
		return State{}, fmt.Errorf("%w: space flavor %q", ErrUnparseable, parts[1])
	}
	switch strings.TrimSpace(parts[2]) {
	case "top", "t":
		st.Closure = Top
	case "bottom", "b":
		st.Closure = Bottom
	default:
		return State{}, fmt.Errorf("%w: closure %q", ErrUnparseable, parts[2])
	}
	return st, nil
}

// Sampler draws representative phases and spreads for a State.
// The draw is noisy so repeated flavors yield distinct geometry; the random
// source is injected so sequences replay under a fixed seed.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler wraps rng. A nil rng yields a noiseless Sampler.
func NewSampler(rng *rand.Rand) *Sampler {
	return &Sampler{rng: rng}
}

// Jitter returns uniform noise in [−0.1, 0.1].
func (s *Sampler) Jitter() float64 {
	if s == nil || s.rng == nil {
		return 0
	}
	return (s.rng.Float64()*2 - 1) * jitter
}

// Phase returns the time flavor's archetype angle plus jitter.
func (s *Sampler) Phase(st State) phase.Point {
	base := ForwardAngle
	if st.Time == Down {
		base = ReversedAngle
	}
	return phase.New(base + s.Jitter())
}

// Spread returns the closure archetype scaled by (1 + jitter).
func (s *Sampler) Spread(st State) phase.Spread {
	return phase.NewSpread(ClosureSpread(st.Closure) * (1 + s.Jitter()))
}

// ClosureSpread returns the archetype spread for c.
func ClosureSpread(c Closure) float64 {
	if c == Bottom {
		return WideSpread
	}
	return TightSpread
}
