// Package phase implements arithmetic on the phase circle [0, 2π).
//
// Every position carries a primary coordinate T and a secondary coordinate S
// bound by the duality rule S = normalize(−T). Points are only produced by New,
// so the rule holds wherever a Point exists.
package phase

import "math"

const (
	// TwoPi is the circumference of the phase circle.
	TwoPi = 2 * math.Pi

	// MinSpread is the smallest spread a Spread may carry.
	MinSpread = 1e-6
)

// Point is a duality-constrained position on the phase circle.
type Point struct {
	T float64 `json:"t"` // primary (time) coordinate
	S float64 `json:"s"` // secondary (space) coordinate, always normalize(−T)
}

// Spread is the width of a phase distribution. σ_t and σ_s are held equal.
type Spread struct {
	T float64 `json:"t"`
	S float64 `json:"s"`
}

// Normalize wraps φ into [0, 2π).
//
// Expectations:
//   - Returns φ unchanged when already in [0, 2π)
//   - Wraps negative values upward by multiples of 2π
//   - Returns 0 for inputs that land on 2π after floating-point wrapping
//   - Returns 0 for NaN and ±Inf
func Normalize(phi float64) float64 {
	if math.IsNaN(phi) || math.IsInf(phi, 0) {
		return 0
	}
	r := math.Mod(phi, TwoPi)
	if r < 0 {
		r += TwoPi
	}
	if r >= TwoPi {
		r = 0
	}
	return r
}

// New builds a Point from a primary coordinate, enforcing duality.
func New(phi float64) Point {
	t := Normalize(phi)
	return Point{T: t, S: Normalize(-t)}
}

// NewSpread builds a Spread with σ_t = σ_s = σ, floored at MinSpread.
func NewSpread(sigma float64) Spread {
	if math.IsNaN(sigma) || sigma < MinSpread {
		sigma = MinSpread
	}
	return Spread{T: sigma, S: sigma}
}

// Mean returns the average of σ_t and σ_s.
func (s Spread) Mean() float64 {
	return (s.T + s.S) / 2
}

// Scale returns the spread multiplied by f.
func (s Spread) Scale(f float64) Spread {
	return NewSpread(s.Mean() * f)
}

// Diff returns the shortest signed angular step from a to b, in (−π, π].
//
// Expectations:
//   - Diff(a, a) == 0
//   - |Diff(a, b)| <= π for all inputs
//   - Diff(0.1, 2π−0.1) is −0.2 (wraps the short way)
func Diff(a, b float64) float64 {
	d := Normalize(b - a)
	if d > math.Pi {
		d -= TwoPi
	}
	return d
}

// Distance returns the absolute shortest distance between a and b, in [0, π].
func Distance(a, b float64) float64 {
	return math.Abs(Diff(a, b))
}

// DistanceTo returns the distance between the primary coordinates of p and q.
func (p Point) DistanceTo(q Point) float64 {
	return Distance(p.T, q.T)
}

// Rotate returns p advanced by θ.
func (p Point) Rotate(theta float64) Point {
	return New(p.T + theta)
}

// XY embeds p into the plane at radius r.
func (p Point) XY(r float64) (x, y float64) {
	return r * math.Cos(p.T), r * math.Sin(p.T)
}

// TimeInvert maps φ to φ+π.
func TimeInvert(p Point) Point {
	return New(p.T + math.Pi)
}

// SpaceInvert maps φ to −φ.
func SpaceInvert(p Point) Point {
	return New(-p.T)
}

// FullInvert maps φ to −φ−π, the composition of TimeInvert and SpaceInvert.
func FullInvert(p Point) Point {
	return New(-p.T - math.Pi)
}

// Dual reports whether p satisfies the duality rule within tol.
// Useful for callers validating points that arrived through decoding.
func (p Point) Dual(tol float64) bool {
	return Distance(p.S, Normalize(-p.T)) <= tol
}
