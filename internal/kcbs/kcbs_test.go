package kcbs

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/haricheung/hadron/internal/phase"
)

// flat evaluates to the same amplitude everywhere.
type flat float64

func (f flat) At(phase.Point) float64 { return float64(f) }

// spike evaluates to 1 within 0.01 rad of its center and 0 elsewhere.
type spike float64

func (s spike) At(p phase.Point) float64 {
	if phase.Distance(float64(s), p.T) < 0.01 {
		return 1
	}
	return 0
}

func TestDirections_RegularPentagon(t *testing.T) {
	p := New().Rotate(0.3)
	for k := 0; k < N; k++ {
		want := phase.New(0.3 + float64(k)*2*math.Pi/5)
		if d := p.Direction(k).DistanceTo(want); d > 1e-12 {
			t.Errorf("observable %d off by %g", k, d)
		}
	}
}

func TestContexts_CyclicAdjacent(t *testing.T) {
	ctxs := New().Contexts()
	for k, c := range ctxs {
		if c.ID != k || c.A != k || c.B != (k+1)%N {
			t.Errorf("context %d = %+v", k, c)
		}
	}
	if ctxs[4].B != 0 {
		t.Error("last context must wrap to observable 0")
	}
	if ContextAt(-1) != ctxs[4] || ContextAt(7) != ctxs[2] {
		t.Error("ContextAt must wrap indices")
	}
}

func TestRotate_Accumulates(t *testing.T) {
	p := New().Rotate(1).Rotate(2)
	if math.Abs(p.Rotation()-3) > 1e-12 {
		t.Errorf("expected rotation 3, got %f", p.Rotation())
	}
	if New().Rotation() != 0 {
		t.Error("New must start at rotation 0")
	}
}

func TestProject_ZeroAmplitudeFallsBackToHalf(t *testing.T) {
	p0, p1 := New().Project(flat(0), ContextAt(2))
	if p0 != 0.5 || p1 != 0.5 {
		t.Errorf("expected 0.5/0.5, got %f/%f", p0, p1)
	}
}

func TestProject_NormalizesToOne(t *testing.T) {
	p := New()
	w := spike(p.Direction(1).T)
	p0, p1 := p.Project(w, ContextAt(0))
	if p0 != 0 || p1 != 1 {
		t.Errorf("expected all weight on observable 1, got %f/%f", p0, p1)
	}
}

func TestCollapse_PhaseIsObservableDirection(t *testing.T) {
	p := New().Rotate(0.7)
	rng := rand.New(rand.NewPCG(1, 2))
	ctx := ContextAt(3)
	for i := 0; i < 500; i++ {
		out := p.Collapse(flat(1), ctx, rng)
		want := p.Direction(ctx.A)
		if out.Outcome == 1 {
			want = p.Direction(ctx.B)
		}
		if out.Phase != want {
			t.Fatalf("collapsed phase %f is not the chosen observable %f", out.Phase.T, want.T)
		}
	}
}

func TestCollapse_DeterministicWhenOneSided(t *testing.T) {
	p := New()
	w := spike(p.Direction(2).T)
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 200; i++ {
		out := p.Collapse(w, ContextAt(1), rng)
		if out.Outcome != 1 {
			t.Fatalf("expected outcome 1 every time, got %d", out.Outcome)
		}
	}
}

func TestCollapse_SeedReplays(t *testing.T) {
	a := rand.New(rand.NewPCG(5, 5))
	b := rand.New(rand.NewPCG(5, 5))
	p := New()
	for i := 0; i < 100; i++ {
		if p.Collapse(flat(1), ContextAt(i), a) != p.Collapse(flat(1), ContextAt(i), b) {
			t.Fatal("same seed must replay the same collapse sequence")
		}
	}
}

func TestContextuality_FlatWaveIsZero(t *testing.T) {
	r := New().Contextuality(flat(1))
	if r.Sum != 0 || r.Violates {
		t.Errorf("flat wave should give sum 0, got %+v", r)
	}
	if math.Abs(r.QuantumBound-4*math.Cos(math.Pi/5)) > 1e-12 || r.ClassicalBound != 3 {
		t.Errorf("unexpected bounds %+v", r)
	}
}

func TestContextuality_SpikeTouchesTwoContexts(t *testing.T) {
	p := New()
	r := p.Contextuality(spike(p.Direction(0).T))
	// Contexts 0 and 4 contain observable 0 and give |1−0| each.
	if math.Abs(r.Sum-2) > 1e-12 {
		t.Errorf("expected sum 2, got %f", r.Sum)
	}
	want := (2 - ClassicalBound) / (QuantumBound - ClassicalBound)
	if math.Abs(r.Normalized-want) > 1e-12 {
		t.Errorf("expected normalized %f, got %f", want, r.Normalized)
	}
	if r.Normalized >= 0 {
		t.Errorf("a sum below the classical bound should normalize below 0, got %f", r.Normalized)
	}
}

func TestNormalize_AnchorsOnBothBounds(t *testing.T) {
	if got := Normalize(ClassicalBound); math.Abs(got) > 1e-12 {
		t.Errorf("classical bound should map to 0, got %f", got)
	}
	if got := Normalize(QuantumBound); math.Abs(got-1) > 1e-12 {
		t.Errorf("quantum bound should map to 1, got %f", got)
	}
}

func TestVertexAmplitude(t *testing.T) {
	if got := New().VertexAmplitude(flat(0.5)); math.Abs(got-2.5) > 1e-12 {
		t.Errorf("expected 2.5, got %f", got)
	}
}
