// Package kcbs implements the five-context measurement pentagram: five
// observables on a regular pentagon, each cyclically adjacent pair forming a
// context, and sampling-based collapse of a wave onto one context.
package kcbs

import (
	"math"
	"math/rand/v2"

	"github.com/haricheung/hadron/internal/phase"
)

// N is the number of observables and of contexts.
const N = 5

// Step is the angular separation of adjacent observables.
const Step = phase.TwoPi / N

// ClassicalBound is the non-contextual ceiling of the diagnostic sum.
const ClassicalBound = 3.0

// QuantumBound is 4·cos(π/5).
var QuantumBound = 4 * math.Cos(math.Pi/5)

// Evaluator is anything whose amplitude can be read at a phase point.
// *wave.State satisfies it.
type Evaluator interface {
	At(p phase.Point) float64
}

// Observable is one pentagon vertex.
type Observable struct {
	ID        int         `json:"id"`
	Direction phase.Point `json:"direction"`
}

// Context is a pair of cyclically adjacent observables (A, A+1 mod 5).
type Context struct {
	ID int `json:"id"`
	A  int `json:"a"`
	B  int `json:"b"`
}

// ContextAt returns context k (taken mod 5).
func ContextAt(k int) Context {
	k = ((k % N) + N) % N
	return Context{ID: k, A: k, B: (k + 1) % N}
}

// Pentagram is the fixed five-node structure at some rotation.
// It is a value type; Rotate returns a new one.
type Pentagram struct {
	rotation float64
}

// New returns the pentagram at rotation 0.
func New() Pentagram {
	return Pentagram{}
}

// Rotation returns the current rotation angle.
func (p Pentagram) Rotation() float64 {
	return p.rotation
}

// Rotate returns the pentagram turned by θ from its current rotation.
func (p Pentagram) Rotate(theta float64) Pentagram {
	return Pentagram{rotation: phase.Normalize(p.rotation + theta)}
}

// Direction returns observable k's direction: rotation + k·2π/5.
func (p Pentagram) Direction(k int) phase.Point {
	return phase.New(p.rotation + float64(k)*Step)
}

// Observables returns all five observables.
func (p Pentagram) Observables() [N]Observable {
	var out [N]Observable
	for k := range out {
		out[k] = Observable{ID: k, Direction: p.Direction(k)}
	}
	return out
}

// Contexts returns the five contexts in order.
func (p Pentagram) Contexts() [N]Context {
	var out [N]Context
	for k := range out {
		out[k] = ContextAt(k)
	}
	return out
}

// Project returns the outcome probabilities for ctx: the wave amplitude at
// each of the two observable directions, normalized.
//
// Expectations:
//   - p0 + p1 == 1
//   - Returns 0.5, 0.5 when both amplitudes are exactly zero
//   - Negative amplitudes count as zero
func (p Pentagram) Project(w Evaluator, ctx Context) (p0, p1 float64) {
	a := math.Max(0, w.At(p.Direction(ctx.A)))
	b := math.Max(0, w.At(p.Direction(ctx.B)))
	if a+b == 0 {
		return 0.5, 0.5
	}
	return a / (a + b), b / (a + b)
}

// Outcome is the raw result of collapsing a wave onto a context.
type Outcome struct {
	Phase   phase.Point `json:"phase"`
	Context Context     `json:"context"`
	Outcome int         `json:"outcome"`
	P0      float64     `json:"p0"`
	P1      float64     `json:"p1"`
}

// Collapse samples a binary outcome from the projected distribution. The
// collapsed phase is the chosen observable's direction, never an interpolation.
func (p Pentagram) Collapse(w Evaluator, ctx Context, rng *rand.Rand) Outcome {
	p0, p1 := p.Project(w, ctx)
	out := Outcome{Context: ctx, P0: p0, P1: p1}
	if rng.Float64() < p0 {
		out.Outcome = 0
		out.Phase = p.Direction(ctx.A)
	} else {
		out.Outcome = 1
		out.Phase = p.Direction(ctx.B)
	}
	return out
}

// Report is the contextuality diagnostic. Informational only.
// Normalized places Sum between the bounds: 0 at the classical bound, 1 at
// the quantum bound, negative below the classical bound.
type Report struct {
	Sum            float64 `json:"sum"`
	ClassicalBound float64 `json:"classical_bound"`
	QuantumBound   float64 `json:"quantum_bound"`
	Normalized     float64 `json:"normalized"`
	Violates       bool    `json:"violates"`
}

// Contextuality sums |p0−p1| over the five contexts and normalizes the sum
// against the classical and quantum bounds.
func (p Pentagram) Contextuality(w Evaluator) Report {
	var sum float64
	for _, ctx := range p.Contexts() {
		p0, p1 := p.Project(w, ctx)
		sum += math.Abs(p0 - p1)
	}
	return Report{
		Sum:            sum,
		ClassicalBound: ClassicalBound,
		QuantumBound:   QuantumBound,
		Normalized:     Normalize(sum),
		Violates:       sum > ClassicalBound,
	}
}

// Normalize maps a contextuality sum onto the interval between the bounds.
func Normalize(sum float64) float64 {
	return (sum - ClassicalBound) / (QuantumBound - ClassicalBound)
}

// VertexAmplitude sums the wave amplitude at the five observable directions.
func (p Pentagram) VertexAmplitude(w Evaluator) float64 {
	var sum float64
	for k := 0; k < N; k++ {
		sum += w.At(p.Direction(k))
	}
	return sum
}
