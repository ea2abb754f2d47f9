package engine

import (
	"sort"

	"github.com/haricheung/hadron/internal/hadron"
	"github.com/haricheung/hadron/internal/kcbs"
	"github.com/haricheung/hadron/internal/quark"
	"github.com/haricheung/hadron/internal/types"
	"github.com/haricheung/hadron/internal/wave"
)

// Emotion is the four-scalar affect snapshot. All values are in [0, 1]
// except Intensity, which is unbounded above.
type Emotion struct {
	Affinity     float64 `json:"affinity"`     // mean pairwise hadron similarity
	Valence      float64 `json:"valence"`      // running success rate
	Truthfulness float64 `json:"truthfulness"` // wave coherence
	Intensity    float64 `json:"intensity"`    // wave amplitude per hadron
}

func (e *Engine) computeEmotion() Emotion {
	w := e.cycle.Wave()
	c := e.cycle.Counters()

	var em Emotion
	em.Valence = 0.5
	if c.Collapses > 0 {
		em.Valence = float64(c.Successes) / float64(c.Collapses)
	}
	em.Truthfulness = w.Coherence()

	hs := make([]*hadron.Triangle, 0, e.cycle.Len())
	e.cycle.Each(func(h *hadron.Triangle) bool {
		hs = append(hs, h)
		return true
	})
	em.Intensity = w.TotalAmplitude()
	if len(hs) > 0 {
		em.Intensity /= float64(len(hs))
	}
	if len(hs) >= 2 {
		var sum float64
		pairs := 0
		for i := 0; i < len(hs); i++ {
			for j := i + 1; j < len(hs); j++ {
				sum += hadron.Similarity(hs[i], hs[j])
				pairs++
			}
		}
		em.Affinity = sum / float64(pairs)
	}
	return em
}

// Emotion returns the snapshot computed at the last step.
func (e *Engine) Emotion() Emotion { return e.emotion }

// Stats is a read-only summary of the session.
type Stats struct {
	Hadrons       int               `json:"hadrons"`
	StableHadrons int               `json:"stable_hadrons"`
	Cycles        uint64            `json:"cycles"`
	Successes     uint64            `json:"successes"`
	SuccessRate   float64           `json:"success_rate"`
	BlackHoles    int               `json:"black_holes"`
	Emotion       Emotion           `json:"emotion"`
	DominantTime  quark.TimeFlavor  `json:"dominant_time"`
	DominantSpace quark.SpaceFlavor `json:"dominant_space"`
	Policy        string            `json:"policy"`
}

// Stats summarizes the session. Dominant flavors are a majority vote across
// every vertex of every hadron; ties go to up and charm.
func (e *Engine) Stats() Stats {
	c := e.cycle.Counters()
	s := Stats{
		Cycles:     c.Cycles,
		Successes:  c.Successes,
		BlackHoles: len(e.blackHoles),
		Emotion:    e.emotion,
		Policy:     e.cycle.Policy().Name(),
	}
	if c.Collapses > 0 {
		s.SuccessRate = float64(c.Successes) / float64(c.Collapses)
	}
	var timeVote, spaceVote int
	e.cycle.Each(func(h *hadron.Triangle) bool {
		s.Hadrons++
		if h.Stable() {
			s.StableHadrons++
		}
		for _, q := range h.Quarks() {
			timeVote += q.TimeCharge()
			spaceVote += q.SpaceCharge()
		}
		return true
	})
	if timeVote < 0 {
		s.DominantTime = quark.Down
	}
	if spaceVote < 0 {
		s.DominantSpace = quark.Strange
	}
	return s
}

// Pattern is a learned hadron resolved to the registered tokens near its
// R vertex.
type Pattern struct {
	HadronID    string         `json:"hadron_id"`
	Quarks      [3]quark.State `json:"quarks"`
	Phase       float64        `json:"phase"`
	Persistence float64        `json:"persistence"`
	Coherence   float64        `json:"coherence"`
	Area        float64        `json:"area"`
	Tokens      []TokenCount   `json:"tokens"`
}

// LearnedPatterns returns up to limit hadrons by descending persistence
// (ties keep insertion order), each with the tokens within 0.5 rad of its R
// vertex, most frequent first. limit <= 0 returns all.
func (e *Engine) LearnedPatterns(limit int) []Pattern {
	hs := e.cycle.Hadrons()
	sort.SliceStable(hs, func(i, j int) bool { return hs[i].Persistence > hs[j].Persistence })
	if limit > 0 && len(hs) > limit {
		hs = hs[:limit]
	}
	out := make([]Pattern, 0, len(hs))
	for _, h := range hs {
		out = append(out, Pattern{
			HadronID:    h.ID,
			Quarks:      h.Quarks(),
			Phase:       h.R.Phase.T,
			Persistence: h.Persistence,
			Coherence:   h.Coherence,
			Area:        h.Area,
			Tokens:      e.registry.near(h.R.Phase.T, MatchRadius),
		})
	}
	return out
}

// VocabularyStats summarizes the token registry.
type VocabularyStats struct {
	Unique int          `json:"unique"`
	Total  int          `json:"total"`
	Top    []TokenCount `json:"top"`
}

// VocabularyStats returns the registry summary with the limit most frequent
// tokens (ties by token). limit <= 0 returns all.
func (e *Engine) VocabularyStats(limit int) VocabularyStats {
	return VocabularyStats{
		Unique: len(e.registry.tokens),
		Total:  e.registry.total,
		Top:    e.registry.top(limit),
	}
}

// BlackHoles returns the regions found at the last recomputation.
func (e *Engine) BlackHoles() []types.BlackHoleRegion {
	out := make([]types.BlackHoleRegion, len(e.blackHoles))
	copy(out, e.blackHoles)
	return out
}

// History returns the retained collapse results, oldest first.
func (e *Engine) History() []types.CollapseResult { return e.history.items() }

// Hadrons returns copies of the population.
func (e *Engine) Hadrons() []*hadron.Triangle { return e.cycle.Hadrons() }

// Wave returns a copy of the current wave.
func (e *Engine) Wave() *wave.State { return e.cycle.Wave() }

// Contextuality reports the diagnostic for the current wave and pentagram.
func (e *Engine) Contextuality() kcbs.Report {
	return e.cycle.Pentagram().Contextuality(e.cycle.Wave())
}

// Vertex is one hadron corner embedded in the plane.
type Vertex struct {
	Channel hadron.ChannelName `json:"channel"`
	Phase   float64            `json:"phase"`
	Spread  float64            `json:"spread"`
	X       float64            `json:"x"`
	Y       float64            `json:"y"`
}

// HadronGeometry is one triangle as a renderer sees it.
type HadronGeometry struct {
	ID          string    `json:"id"`
	Vertices    [3]Vertex `json:"vertices"`
	Persistence float64   `json:"persistence"`
	Coherence   float64   `json:"coherence"`
}

// Geometry is a read-only snapshot for display.
type Geometry struct {
	Hadrons     []HadronGeometry        `json:"hadrons"`
	Wave        []wave.Blob             `json:"wave"`
	Rotation    float64                 `json:"rotation"`
	Observables [kcbs.N]kcbs.Observable `json:"observables"`
}

// Geometry returns hadron vertices, wave blobs and pentagram directions.
func (e *Engine) Geometry() Geometry {
	p := e.cycle.Pentagram()
	g := Geometry{
		Wave:        e.cycle.Wave().Blobs(),
		Rotation:    p.Rotation(),
		Observables: p.Observables(),
	}
	e.cycle.Each(func(h *hadron.Triangle) bool {
		hg := HadronGeometry{ID: h.ID, Persistence: h.Persistence, Coherence: h.Coherence}
		for k, c := range h.Channels() {
			sigma := c.Spread.Mean()
			x, y := c.Phase.XY(1 + sigma)
			hg.Vertices[k] = Vertex{Channel: c.Name, Phase: c.Phase.T, Spread: sigma, X: x, Y: y}
		}
		g.Hadrons = append(g.Hadrons, hg)
		return true
	})
	return g
}

// NestedReality is a sub-session seeded from a black-hole region.
type NestedReality struct {
	Origin  types.BlackHoleRegion `json:"origin"`
	Hadrons []*hadron.Triangle    `json:"hadrons"`
}

// NestedRealities returns the nested realities. No operation creates one
// yet, so the list is empty.
func (e *Engine) NestedRealities() []NestedReality {
	out := make([]NestedReality, len(e.nested))
	copy(out, e.nested)
	return out
}
