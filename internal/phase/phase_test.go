package phase

import (
	"math"
	"math/rand/v2"
	"testing"
)

const tol = 1e-6

// ── Normalize ────────────────────────────────────────────────────────────────

func TestNormalize_InRangeUnchanged(t *testing.T) {
	// Returns φ unchanged when already in [0, 2π)
	for _, phi := range []float64{0, 1, math.Pi, TwoPi - 1e-9} {
		if got := Normalize(phi); math.Abs(got-phi) > 1e-12 {
			t.Errorf("Normalize(%f) = %f, want unchanged", phi, got)
		}
	}
}

func TestNormalize_WrapsNegative(t *testing.T) {
	// Wraps negative values upward by multiples of 2π
	got := Normalize(-math.Pi / 2)
	if math.Abs(got-3*math.Pi/2) > tol {
		t.Errorf("expected 3π/2, got %f", got)
	}
	got = Normalize(-5 * TwoPi - 1)
	if math.Abs(got-(TwoPi-1)) > tol {
		t.Errorf("expected 2π−1, got %f", got)
	}
}

func TestNormalize_NonFiniteReturnsZero(t *testing.T) {
	// Returns 0 for NaN and ±Inf
	for _, phi := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := Normalize(phi); got != 0 {
			t.Errorf("Normalize(%v) = %f, want 0", phi, got)
		}
	}
}

func TestNormalize_AlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 10000; i++ {
		phi := (rng.Float64() - 0.5) * 1000
		got := Normalize(phi)
		if got < 0 || got >= TwoPi {
			t.Fatalf("Normalize(%f) = %f out of [0, 2π)", phi, got)
		}
	}
}

// ── Diff / Distance ──────────────────────────────────────────────────────────

func TestDiff_ShortWayAroundZero(t *testing.T) {
	// Diff(0.1, 2π−0.1) is −0.2
	got := Diff(0.1, TwoPi-0.1)
	if math.Abs(got+0.2) > tol {
		t.Errorf("expected −0.2, got %f", got)
	}
}

func TestDistance_NeverExceedsPi(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 10000; i++ {
		a, b := rng.Float64()*20-10, rng.Float64()*20-10
		d := Distance(a, b)
		if d < 0 || d > math.Pi+1e-12 {
			t.Fatalf("Distance(%f, %f) = %f out of [0, π]", a, b, d)
		}
		if math.Abs(d-Distance(b, a)) > 1e-9 {
			t.Fatalf("Distance not symmetric for %f, %f", a, b)
		}
	}
}

// ── Duality ──────────────────────────────────────────────────────────────────

func TestNew_DualityAlwaysHolds(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	for i := 0; i < 10000; i++ {
		p := New(rng.Float64()*100 - 50)
		if !p.Dual(tol) {
			t.Fatalf("duality violated: %+v", p)
		}
		if p.S != Normalize(-p.T) {
			t.Fatalf("S != normalize(−T): %+v", p)
		}
	}
}

func TestNewSpread_FloorsAndMirrors(t *testing.T) {
	s := NewSpread(-3)
	if s.T != MinSpread || s.S != MinSpread {
		t.Errorf("expected floored spread, got %+v", s)
	}
	s = NewSpread(0.4)
	if s.T != s.S {
		t.Errorf("σ_t and σ_s must match, got %+v", s)
	}
}

// ── Inversions ───────────────────────────────────────────────────────────────

func TestInversions_SelfInverse(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	for i := 0; i < 10000; i++ {
		p := New(rng.Float64() * TwoPi)
		cases := map[string]Point{
			"time":  TimeInvert(TimeInvert(p)),
			"space": SpaceInvert(SpaceInvert(p)),
			"full":  FullInvert(FullInvert(p)),
		}
		for name, q := range cases {
			if d := p.DistanceTo(q); d > tol {
				t.Fatalf("%s inversion not self-inverse for %f: drift %g", name, p.T, d)
			}
		}
	}
}

func TestFullInvert_EqualsTimeAfterSpace(t *testing.T) {
	for _, phi := range []float64{0, 0.3, 1.7, math.Pi, 5.9} {
		p := New(phi)
		a := FullInvert(p)
		b := TimeInvert(SpaceInvert(p))
		if a.DistanceTo(b) > tol {
			t.Errorf("full(%f) = %f, time∘space = %f", phi, a.T, b.T)
		}
	}
}

func TestXY_RadiusPreserved(t *testing.T) {
	x, y := New(1.2).XY(2)
	if math.Abs(math.Hypot(x, y)-2) > tol {
		t.Errorf("expected radius 2, got %f", math.Hypot(x, y))
	}
}
