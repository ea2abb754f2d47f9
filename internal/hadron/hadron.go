// Package hadron implements the triangle of three classified channels that
// serves as the unit of learned state.
//
// Geometry: vertex k is embedded in the plane at angle φ_t,k and radius 1+σ_k,
// so wide channels sit further out and a common rotation of all three phases
// leaves the area unchanged.
package hadron

import (
	"math"

	"github.com/google/uuid"

	"github.com/haricheung/hadron/internal/phase"
	"github.com/haricheung/hadron/internal/quark"
)

const (
	// MinPersistence and MaxPersistence bound the learning signal.
	MinPersistence = 0.1
	MaxPersistence = 10.0

	// InitialPersistence is assigned to every new triangle.
	InitialPersistence = 1.0

	// MinCoherence is the stability floor for coherence.
	MinCoherence = 0.1

	// SelfDualTolerance is the per-vertex tolerance of the self-duality check.
	SelfDualTolerance = 0.3

	// MaxArea is the stability ceiling for area.
	MaxArea = math.Pi
)

// ChannelName identifies one vertex of a triangle.
type ChannelName string

const (
	ChannelR ChannelName = "R"
	ChannelU ChannelName = "U"
	ChannelC ChannelName = "C"
)

// Channel is one named vertex.
type Channel struct {
	Name   ChannelName  `json:"name"`
	Phase  phase.Point  `json:"phase"`
	Spread phase.Spread `json:"spread"`
	Quark  quark.State  `json:"quark"`
}

// xy embeds the channel in the plane.
func (c Channel) xy() (float64, float64) {
	return c.Phase.XY(1 + c.Spread.Mean())
}

// Triangle is a hadron: three channels plus derived geometry and the mutable
// persistence score.
type Triangle struct {
	ID          string  `json:"id"`
	R           Channel `json:"r"`
	U           Channel `json:"u"`
	C           Channel `json:"c"`
	Area        float64 `json:"area"`
	Coherence   float64 `json:"coherence"`
	Persistence float64 `json:"persistence"`
	CreatedAt   uint64  `json:"created_at"`
	LastSeen    uint64  `json:"last_seen"`
}

// InversionKind selects one of the three inversion transforms.
type InversionKind string

const (
	InvertTime  InversionKind = "time"
	InvertSpace InversionKind = "space"
	InvertFull  InversionKind = "full"
)

// New builds a triangle from three quark states through the inverse classifier.
// The sampler supplies the per-vertex noise.
func New(q [3]quark.State, s *quark.Sampler, cycle uint64) *Triangle {
	return build([3]Channel{
		{Name: ChannelR, Phase: s.Phase(q[0]), Spread: s.Spread(q[0]), Quark: q[0]},
		{Name: ChannelU, Phase: s.Phase(q[1]), Spread: s.Spread(q[1]), Quark: q[1]},
		{Name: ChannelC, Phase: s.Phase(q[2]), Spread: s.Spread(q[2]), Quark: q[2]},
	}, cycle)
}

// Anchored builds a triangle whose R vertex sits exactly at phi; U and C are
// placed at phi plus sampler jitter. Spreads come from each quark's closure.
// Used by token ingestion so later occurrences of the token find the triangle.
func Anchored(phi float64, q [3]quark.State, s *quark.Sampler, cycle uint64) *Triangle {
	return build([3]Channel{
		{Name: ChannelR, Phase: phase.New(phi), Spread: phase.NewSpread(quark.ClosureSpread(q[0].Closure)), Quark: q[0]},
		{Name: ChannelU, Phase: phase.New(phi + s.Jitter()), Spread: s.Spread(q[1]), Quark: q[1]},
		{Name: ChannelC, Phase: phase.New(phi + s.Jitter()), Spread: s.Spread(q[2]), Quark: q[2]},
	}, cycle)
}

// FromChannels builds a triangle from explicit channels. Names are reassigned
// R, U, C in order.
func FromChannels(ch [3]Channel, cycle uint64) *Triangle {
	return build(ch, cycle)
}

func build(ch [3]Channel, cycle uint64) *Triangle {
	ch[0].Name, ch[1].Name, ch[2].Name = ChannelR, ChannelU, ChannelC
	t := &Triangle{
		ID:          uuid.New().String(),
		R:           ch[0],
		U:           ch[1],
		C:           ch[2],
		Persistence: InitialPersistence,
		CreatedAt:   cycle,
		LastSeen:    cycle,
	}
	t.Area = Area(ch)
	t.Coherence = Coherence(ch, t.Area)
	return t
}

// Area returns half the magnitude of the cross product of the R→U and R→C
// edge vectors.
func Area(ch [3]Channel) float64 {
	rx, ry := ch[0].xy()
	ux, uy := ch[1].xy()
	cx, cy := ch[2].xy()
	return math.Abs((ux-rx)*(cy-ry)-(uy-ry)*(cx-rx)) / 2
}

// Coherence scores a triangle in (0, 1]: 1 / (1 + mean spread + area/π²).
func Coherence(ch [3]Channel, area float64) float64 {
	mean := (ch[0].Spread.Mean() + ch[1].Spread.Mean() + ch[2].Spread.Mean()) / 3
	return 1 / (1 + mean + area/(math.Pi*math.Pi))
}

// Channels returns the three vertices in R, U, C order.
func (t *Triangle) Channels() [3]Channel {
	return [3]Channel{t.R, t.U, t.C}
}

// Quarks returns the three flavor states in R, U, C order.
func (t *Triangle) Quarks() [3]quark.State {
	return [3]quark.State{t.R.Quark, t.U.Quark, t.C.Quark}
}

// ColorNeutral reports whether the three quark charges cancel on both axes.
func (t *Triangle) ColorNeutral() bool {
	return quark.ColorNeutral(t.Quarks())
}

// Stable reports area ≤ π, coherence ≥ 0.1 and color neutrality.
//
// Expectations:
//   - Returns false when Area > π
//   - Returns false when Coherence < 0.1
//   - Returns false when the quark charges are not neutral
//   - Returns true otherwise
func (t *Triangle) Stable() bool {
	return t.Area <= MaxArea && t.Coherence >= MinCoherence && t.ColorNeutral()
}

// Reinforce adds delta to persistence and clamps the result to [0.1, 10].
func (t *Triangle) Reinforce(delta float64) {
	t.Persistence = ClampPersistence(t.Persistence + delta)
}

// ClampPersistence bounds p to [MinPersistence, MaxPersistence]. NaN maps to
// the floor.
func ClampPersistence(p float64) float64 {
	if math.IsNaN(p) || p < MinPersistence {
		return MinPersistence
	}
	if p > MaxPersistence {
		return MaxPersistence
	}
	return p
}

// MatchScore averages 1/(1+distance) from each vertex to p.
func (t *Triangle) MatchScore(p phase.Point) float64 {
	var sum float64
	for _, c := range t.Channels() {
		sum += 1 / (1 + c.Phase.DistanceTo(p))
	}
	return sum / 3
}

// NearestDistance returns the smallest vertex distance to p.
func (t *Triangle) NearestDistance(p phase.Point) float64 {
	best := math.Pi
	for _, c := range t.Channels() {
		if d := c.Phase.DistanceTo(p); d < best {
			best = d
		}
	}
	return best
}

// Invert returns the named inversion. Unknown kinds fall back to full
// inversion without the closure flip.
func (t *Triangle) Invert(kind InversionKind, cycle uint64) *Triangle {
	switch kind {
	case InvertTime:
		return t.TimeInvert(cycle)
	case InvertSpace:
		return t.SpaceInvert(cycle)
	default:
		return t.FullInvert(false, cycle)
	}
}

// TimeInvert returns a new triangle with every phase shifted by π and the
// time flavor flipped.
func (t *Triangle) TimeInvert(cycle uint64) *Triangle {
	return t.transform(cycle, phase.TimeInvert, quark.State.FlipTime)
}

// SpaceInvert returns a new triangle with every phase negated and the space
// flavor flipped.
func (t *Triangle) SpaceInvert(cycle uint64) *Triangle {
	return t.transform(cycle, phase.SpaceInvert, quark.State.FlipSpace)
}

// FullInvert returns a new triangle with every phase mapped to −φ−π and both
// flavors flipped; the closure is flipped too when flipClosure is set.
func (t *Triangle) FullInvert(flipClosure bool, cycle uint64) *Triangle {
	return t.transform(cycle, phase.FullInvert, func(q quark.State) quark.State {
		q = q.FlipTime().FlipSpace()
		if flipClosure {
			q = q.FlipClosure()
		}
		return q
	})
}

func (t *Triangle) transform(cycle uint64, pf func(phase.Point) phase.Point, qf func(quark.State) quark.State) *Triangle {
	ch := t.Channels()
	for i := range ch {
		ch[i].Phase = pf(ch[i].Phase)
		ch[i].Quark = qf(ch[i].Quark)
	}
	return build(ch, cycle)
}

// SelfDual reports whether full inversion leaves every vertex within 0.3 rad
// of where it started.
func (t *Triangle) SelfDual() bool {
	for _, c := range t.Channels() {
		if c.Phase.DistanceTo(phase.FullInvert(c.Phase)) > SelfDualTolerance {
			return false
		}
	}
	return true
}

// Similarity is 1 / (1 + Σ distances of matched R/U/C vertex pairs).
//
// Expectations:
//   - Returns 1 for identical vertex phases
//   - Is symmetric
//   - Lies in (0, 1]
func Similarity(a, b *Triangle) float64 {
	sum := a.R.Phase.DistanceTo(b.R.Phase) +
		a.U.Phase.DistanceTo(b.U.Phase) +
		a.C.Phase.DistanceTo(b.C.Phase)
	return 1 / (1 + sum)
}

// Clone returns a deep copy.
func (t *Triangle) Clone() *Triangle {
	c := *t
	return &c
}
