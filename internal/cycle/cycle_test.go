package cycle

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/haricheung/hadron/internal/hadron"
	"github.com/haricheung/hadron/internal/kcbs"
	"github.com/haricheung/hadron/internal/phase"
	"github.com/haricheung/hadron/internal/policy"
	"github.com/haricheung/hadron/internal/quark"
	"github.com/haricheung/hadron/internal/wave"
)

// fixedPolicy never reshapes or rotates and always measures one context.
type fixedPolicy struct{ ctx int }

func (fixedPolicy) Name() string { return "fixed" }

func (fixedPolicy) ChooseFocus(*wave.State) wave.Adjust { return wave.NoAdjust }

func (fixedPolicy) ChooseRotation(*wave.State, kcbs.Pentagram) float64 { return 0 }

func (f fixedPolicy) ChooseContext(*wave.State, kcbs.Pentagram) kcbs.Context {
	return kcbs.ContextAt(f.ctx)
}

// pointHadron puts all three vertices exactly at phi with tight spreads.
func pointHadron(phi float64) *hadron.Triangle {
	q := quark.Classify(phase.New(phi), phase.NewSpread(quark.TightSpread))
	return hadron.Anchored(phi, [3]quark.State{q, q, q}, quark.NewSampler(nil), 0)
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// ── empty population ─────────────────────────────────────────────────────────

func TestTick_EmptyPopulationFailsWithNeutralError(t *testing.T) {
	e := New(Config{Rand: seeded(1)})
	res := e.Tick()
	if res.InversionError != EmptyError {
		t.Errorf("expected error %.1f with no hadrons, got %f", EmptyError, res.InversionError)
	}
	if res.Success {
		t.Error("expected failure with no hadrons")
	}
	if res.Cycle != 1 {
		t.Errorf("expected first cycle to be 1, got %d", res.Cycle)
	}
	if c := e.Counters(); c.Cycles != 1 || c.Collapses != 1 || c.Successes != 0 {
		t.Errorf("unexpected counters %+v", c)
	}
	if e.Wave().Len() != 1 {
		t.Errorf("expected the vacuum wave (one blob), got %d blobs", e.Wave().Len())
	}
	if math.Abs(res.P0+res.P1-1) > 1e-12 {
		t.Errorf("p0+p1 = %f, want 1", res.P0+res.P1)
	}
}

// ── reinforcement ────────────────────────────────────────────────────────────

func TestTick_AlignedHadronSucceedsAndGains(t *testing.T) {
	e := New(Config{Rand: seeded(2)})
	h := pointHadron(1.0)
	e.Add(h)

	res := e.Tick()
	if !res.Success {
		t.Fatalf("expected success for a lone tight hadron, got error %f", res.InversionError)
	}
	if res.InversionError >= 0.01 {
		t.Errorf("expected near-zero error, got %f", res.InversionError)
	}
	got := e.Hadrons()[0]
	if got.Persistence <= 1.25 {
		t.Errorf("expected persistence to gain ~0.3, got %f", got.Persistence)
	}
	if got.LastSeen != 1 {
		t.Errorf("expected LastSeen = 1, got %d", got.LastSeen)
	}
	if e.Counters().Successes != 1 {
		t.Errorf("expected 1 success, got %d", e.Counters().Successes)
	}
}

func TestTick_MisalignedHadronFailsAndDecays(t *testing.T) {
	// Context 0 measures directions 0 and 2π/5; a hadron at π is far from both.
	e := New(Config{Policy: fixedPolicy{ctx: 0}, Rand: seeded(3)})
	e.Add(pointHadron(math.Pi))

	res := e.Tick()
	if res.Success {
		t.Fatalf("expected failure, got error %f", res.InversionError)
	}
	if res.InversionError < SuccessThreshold {
		t.Errorf("error %f should be >= %.1f on failure", res.InversionError, SuccessThreshold)
	}
	p := e.Hadrons()[0].Persistence
	if p >= hadron.InitialPersistence || p < hadron.InitialPersistence-FailurePenalty {
		t.Errorf("expected a decay of at most %.2f, got persistence %f", FailurePenalty, p)
	}
	if e.Hadrons()[0].LastSeen != 0 {
		t.Error("LastSeen must not move on failure")
	}
}

func TestTick_PersistenceStaysBounded(t *testing.T) {
	rng := seeded(4)
	e := New(Config{Policy: policy.NewRandom(rng), Rand: rng})
	s := quark.NewSampler(rng)
	for i := 0; i < 12; i++ {
		tf := quark.TimeFlavor(rng.IntN(2))
		sf := quark.SpaceFlavor(rng.IntN(2))
		q := quark.State{Time: tf, Space: sf, Closure: quark.Closure(rng.IntN(2))}
		e.Add(hadron.New([3]quark.State{q, q.FlipClosure(), q}, s, 0))
	}
	var successes, failures int
	for i := 0; i < 10_000; i++ {
		res := e.Tick()
		if res.Success {
			successes++
		} else {
			failures++
		}
		for _, h := range e.Hadrons() {
			if h.Persistence < hadron.MinPersistence || h.Persistence > hadron.MaxPersistence {
				t.Fatalf("cycle %d: persistence %f out of bounds", res.Cycle, h.Persistence)
			}
		}
	}
	if successes == 0 || failures == 0 {
		t.Errorf("expected a mix of outcomes, got %d successes / %d failures", successes, failures)
	}
	if e.Len() != 12 {
		t.Errorf("ticks must never remove hadrons, have %d", e.Len())
	}
	if c := e.Counters(); c.Cycles != 10_000 || c.Successes != uint64(successes) {
		t.Errorf("counters out of step: %+v", c)
	}
}

func TestTick_SameSeedReplays(t *testing.T) {
	run := func() []float64 {
		rng := seeded(5)
		e := New(Config{Policy: policy.NewRandom(rng), Rand: rng})
		e.Add(pointHadron(0.5))
		e.Add(pointHadron(4.0))
		var out []float64
		for i := 0; i < 50; i++ {
			out = append(out, e.Tick().Phase.T)
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("tick %d diverged: %f vs %f", i, a[i], b[i])
		}
	}
}

// ── population ───────────────────────────────────────────────────────────────

func TestAdd_CapRefusesWithoutEvicting(t *testing.T) {
	e := New(Config{MaxHadrons: 2})
	first := pointHadron(0.1)
	if !e.Add(first) || !e.Add(pointHadron(0.2)) {
		t.Fatal("expected the first two additions to succeed")
	}
	if e.Add(pointHadron(0.3)) {
		t.Error("expected the third addition to be refused")
	}
	if e.Len() != 2 || e.Hadrons()[0].ID != first.ID {
		t.Error("existing hadrons must be kept in order")
	}
	if e.Add(nil) {
		t.Error("nil hadron must be refused")
	}
}

func TestAdd_UnboundedByDefault(t *testing.T) {
	e := New(Config{MaxHadrons: -3})
	for i := 0; i < 100; i++ {
		if !e.Add(pointHadron(float64(i) / 10)) {
			t.Fatalf("addition %d refused without a cap", i)
		}
	}
}

func TestHadrons_ReturnsCopies(t *testing.T) {
	e := New(Config{})
	e.Add(pointHadron(1))
	e.Hadrons()[0].Persistence = 9
	if e.Hadrons()[0].Persistence != hadron.InitialPersistence {
		t.Error("mutating a returned hadron must not touch the population")
	}
}

func TestLookup_ByPrefix(t *testing.T) {
	e := New(Config{})
	a, b := pointHadron(1), pointHadron(2)
	a.ID, b.ID = "abc-1", "abd-2"
	e.Add(a)
	e.Add(b)
	if h, n := e.Lookup("abc"); h != a || n != 1 {
		t.Errorf("expected unique match for abc, got %v (%d)", h, n)
	}
	if h, n := e.Lookup("ab"); h != nil || n != 2 {
		t.Errorf("expected ambiguous prefix to return nil with 2 matches, got %v (%d)", h, n)
	}
	if h, n := e.Lookup("zz"); h != nil || n != 0 {
		t.Errorf("expected no match, got %v (%d)", h, n)
	}
}
