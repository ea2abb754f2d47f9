package hadron

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/haricheung/hadron/internal/phase"
	"github.com/haricheung/hadron/internal/quark"
)

func channels(phis [3]float64, sigma float64, q quark.State) [3]Channel {
	var ch [3]Channel
	for i, phi := range phis {
		ch[i] = Channel{Phase: phase.New(phi), Spread: phase.NewSpread(sigma), Quark: q}
	}
	return ch
}

var upCharmTop = quark.State{Time: quark.Up, Space: quark.Charm, Closure: quark.Top}

// ── geometry ─────────────────────────────────────────────────────────────────

func TestArea_EquilateralOnUnitPlusSpread(t *testing.T) {
	// Radius 1+σ = 1.5; equilateral inscribed area = (3√3/4)·r².
	ch := channels([3]float64{0, 2 * math.Pi / 3, 4 * math.Pi / 3}, 0.5, upCharmTop)
	want := 3 * math.Sqrt(3) / 4 * 1.5 * 1.5
	if got := Area(ch); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestArea_DegenerateIsZero(t *testing.T) {
	ch := channels([3]float64{1, 1, 1}, 0.1, upCharmTop)
	if got := Area(ch); got > 1e-12 {
		t.Errorf("coincident vertices should have zero area, got %f", got)
	}
}

func TestArea_InvariantUnderCommonRotation(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 22))
	for i := 0; i < 2000; i++ {
		var phis [3]float64
		for k := range phis {
			phis[k] = rng.Float64() * phase.TwoPi
		}
		ch := channels(phis, rng.Float64(), upCharmTop)
		base := Area(ch)
		theta := rng.Float64() * phase.TwoPi
		for k := range ch {
			ch[k].Phase = ch[k].Phase.Rotate(theta)
		}
		if got := Area(ch); math.Abs(got-base) > 1e-9 {
			t.Fatalf("area changed under rotation %f: %f → %f", theta, base, got)
		}
	}
}

func TestCoherence_InUnitInterval(t *testing.T) {
	rng := rand.New(rand.NewPCG(23, 24))
	for i := 0; i < 2000; i++ {
		ch := channels([3]float64{rng.Float64() * 6, rng.Float64() * 6, rng.Float64() * 6}, rng.Float64()*3, upCharmTop)
		c := Coherence(ch, Area(ch))
		if c <= 0 || c > 1 {
			t.Fatalf("coherence %f out of (0, 1]", c)
		}
	}
}

func TestCoherence_TighterScoresHigher(t *testing.T) {
	tight := channels([3]float64{0, 0.05, 0.1}, 0.1, upCharmTop)
	wide := channels([3]float64{0, 2, 4}, 1.0, upCharmTop)
	if Coherence(tight, Area(tight)) <= Coherence(wide, Area(wide)) {
		t.Error("smaller, tighter triangles should score closer to 1")
	}
}

// ── stability ────────────────────────────────────────────────────────────────

func TestStable_TightNeutralTriangle(t *testing.T) {
	h := FromChannels(channels([3]float64{0.1, 0.15, 0.2}, 0.1, upCharmTop), 0)
	if !h.Stable() {
		t.Errorf("expected stable: area=%f coherence=%f", h.Area, h.Coherence)
	}
}

func TestStable_LargeAreaIsUnstable(t *testing.T) {
	// Radius 2.5 equilateral: area ≈ 8.1 > π.
	h := FromChannels(channels([3]float64{0, 2 * math.Pi / 3, 4 * math.Pi / 3}, 1.5, upCharmTop), 0)
	if h.Stable() {
		t.Errorf("expected unstable with area %f", h.Area)
	}
}

func TestStable_ChargedIsUnstable(t *testing.T) {
	ch := channels([3]float64{0.1, 0.15, 0.2}, 0.1, upCharmTop)
	ch[2].Quark = upCharmTop.FlipTime()
	if FromChannels(ch, 0).Stable() {
		t.Error("expected charged triangle to be unstable")
	}
}

func TestNew_UniformFlavorsAreStable(t *testing.T) {
	s := quark.NewSampler(rand.New(rand.NewPCG(1, 2)))
	q := quark.State{Time: quark.Down, Space: quark.Strange, Closure: quark.Top}
	for i := 0; i < 200; i++ {
		h := New([3]quark.State{q, q.FlipClosure(), q}, s, 0)
		if !h.Stable() {
			t.Fatalf("expected stable, area=%f coherence=%f", h.Area, h.Coherence)
		}
	}
}

// ── persistence ──────────────────────────────────────────────────────────────

func TestReinforce_Clamps(t *testing.T) {
	h := FromChannels(channels([3]float64{0, 0, 0}, 0.1, upCharmTop), 0)
	h.Reinforce(100)
	if h.Persistence != MaxPersistence {
		t.Errorf("expected cap %f, got %f", MaxPersistence, h.Persistence)
	}
	h.Reinforce(-100)
	if h.Persistence != MinPersistence {
		t.Errorf("expected floor %f, got %f", MinPersistence, h.Persistence)
	}
	h.Reinforce(math.NaN())
	if h.Persistence != MinPersistence {
		t.Errorf("NaN must clamp to the floor, got %f", h.Persistence)
	}
}

// ── inversions ───────────────────────────────────────────────────────────────

func TestTimeInvert_ShiftsPhaseAndFlipsTime(t *testing.T) {
	h := FromChannels(channels([3]float64{0.2, 0.3, 0.4}, 0.1, upCharmTop), 0)
	inv := h.TimeInvert(5)
	if inv.ID == h.ID {
		t.Error("inversion must produce a new identity")
	}
	if inv.CreatedAt != 5 {
		t.Errorf("expected CreatedAt 5, got %d", inv.CreatedAt)
	}
	if d := inv.R.Phase.DistanceTo(phase.New(0.2 + math.Pi)); d > 1e-9 {
		t.Errorf("R phase off by %f", d)
	}
	if inv.R.Quark.Time != quark.Down || inv.R.Quark.Space != quark.Charm {
		t.Errorf("expected only time flipped, got %s", inv.R.Quark)
	}
	if math.Abs(inv.Area-h.Area) > 1e-9 {
		t.Errorf("time inversion is a rotation; area %f → %f", h.Area, inv.Area)
	}
}

func TestSpaceInvert_NegatesPhaseAndFlipsSpace(t *testing.T) {
	h := FromChannels(channels([3]float64{0.2, 0.3, 0.4}, 0.1, upCharmTop), 0)
	inv := h.SpaceInvert(0)
	if d := inv.U.Phase.DistanceTo(phase.New(-0.3)); d > 1e-9 {
		t.Errorf("U phase off by %f", d)
	}
	if inv.U.Quark.Space != quark.Strange || inv.U.Quark.Time != quark.Up {
		t.Errorf("expected only space flipped, got %s", inv.U.Quark)
	}
}

func TestFullInvert_OptionalClosureFlip(t *testing.T) {
	h := FromChannels(channels([3]float64{0.2, 0.3, 0.4}, 0.1, upCharmTop), 0)
	keep := h.FullInvert(false, 0)
	flip := h.FullInvert(true, 0)
	if keep.C.Quark.Closure != quark.Top {
		t.Errorf("closure should be kept, got %s", keep.C.Quark)
	}
	if flip.C.Quark.Closure != quark.Bottom {
		t.Errorf("closure should be flipped, got %s", flip.C.Quark)
	}
	if keep.C.Quark.Time != quark.Down || keep.C.Quark.Space != quark.Strange {
		t.Errorf("both flavors should flip, got %s", keep.C.Quark)
	}
}

func TestInvertTwice_RestoresPhases(t *testing.T) {
	h := FromChannels(channels([3]float64{0.7, 2.1, 5.0}, 0.3, upCharmTop), 0)
	for _, kind := range []InversionKind{InvertTime, InvertSpace, InvertFull} {
		back := h.Invert(kind, 0).Invert(kind, 0)
		for i, c := range back.Channels() {
			if d := c.Phase.DistanceTo(h.Channels()[i].Phase); d > 1e-6 {
				t.Errorf("%s twice drifted vertex %d by %g", kind, i, d)
			}
			if c.Quark != h.Channels()[i].Quark {
				t.Errorf("%s twice changed flavor of vertex %d", kind, i)
			}
		}
	}
}

func TestSelfDual(t *testing.T) {
	// Full inversion fixes π/2 and 3π/2.
	fixed := FromChannels(channels([3]float64{math.Pi / 2, math.Pi/2 + 0.05, 3 * math.Pi / 2}, 0.1, upCharmTop), 0)
	if !fixed.SelfDual() {
		t.Error("expected vertices at π/2 and 3π/2 to be self-dual")
	}
	moved := FromChannels(channels([3]float64{0, 0.1, 0.2}, 0.1, upCharmTop), 0)
	if moved.SelfDual() {
		t.Error("vertices near 0 map near π and should not be self-dual")
	}
}

// ── similarity ───────────────────────────────────────────────────────────────

func TestSimilarity(t *testing.T) {
	a := FromChannels(channels([3]float64{0.2, 0.3, 0.4}, 0.1, upCharmTop), 0)
	b := FromChannels(channels([3]float64{0.2, 0.3, 0.4}, 0.1, upCharmTop), 0)
	if got := Similarity(a, b); math.Abs(got-1) > 1e-12 {
		t.Errorf("identical phases should give 1, got %f", got)
	}
	c := FromChannels(channels([3]float64{1.2, 1.3, 1.4}, 0.1, upCharmTop), 0)
	want := 1 / (1 + 3.0)
	if got := Similarity(a, c); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}
	if Similarity(a, c) != Similarity(c, a) {
		t.Error("similarity must be symmetric")
	}
}

func TestMatchScore_PeaksAtVertices(t *testing.T) {
	h := FromChannels(channels([3]float64{1, 1, 1}, 0.1, upCharmTop), 0)
	if got := h.MatchScore(phase.New(1)); math.Abs(got-1) > 1e-12 {
		t.Errorf("expected 1 at the vertex, got %f", got)
	}
	if h.MatchScore(phase.New(1+math.Pi)) >= h.MatchScore(phase.New(1.5)) {
		t.Error("match score should fall with distance")
	}
}
