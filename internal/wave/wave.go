// Package wave models a superposition of Gaussian-like blobs on the phase circle.
package wave

import (
	"math"

	"github.com/haricheung/hadron/internal/hadron"
	"github.com/haricheung/hadron/internal/phase"
)

// Blob is one Gaussian-like component.
type Blob struct {
	Center    phase.Point  `json:"center"`
	Spread    phase.Spread `json:"spread"`
	Amplitude float64      `json:"amplitude"`
}

// State is an ordered collection of blobs with a cached total amplitude.
// The zero value is an empty wave.
type State struct {
	blobs []Blob
	total float64
}

// Mode selects how a policy reshapes the wave before raising it.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeFocus    Mode = "focus"
	ModeDisperse Mode = "disperse"
)

// Adjust is a focus/dispersion choice. Factor ≤ 0 or Mode none leaves spreads as-is.
type Adjust struct {
	Mode   Mode    `json:"mode"`
	Factor float64 `json:"factor"`
}

// NoAdjust leaves spreads untouched.
var NoAdjust = Adjust{Mode: ModeNone, Factor: 1}

// apply reshapes a single spread.
func (a Adjust) apply(s phase.Spread) phase.Spread {
	if a.Factor <= 0 {
		return s
	}
	switch a.Mode {
	case ModeFocus:
		return s.Scale(1 / a.Factor)
	case ModeDisperse:
		return s.Scale(a.Factor)
	}
	return s
}

// New builds a wave from blobs. Negative amplitudes are clamped to zero.
func New(blobs ...Blob) *State {
	w := &State{blobs: make([]Blob, 0, len(blobs))}
	for _, b := range blobs {
		if b.Amplitude < 0 || math.IsNaN(b.Amplitude) {
			b.Amplitude = 0
		}
		w.blobs = append(w.blobs, b)
		w.total += b.Amplitude
	}
	return w
}

// Vacuum returns the fixed "from nothingness" state: a single wide blob at
// phase 0 with unit amplitude.
func Vacuum() *State {
	return New(Blob{Center: phase.New(0), Spread: phase.NewSpread(1.0), Amplitude: 1})
}

// Raise builds a wave with one blob per hadron vertex, amplitude equal to the
// hadron's coherence, spreads reshaped by adj. An empty population raises the
// vacuum.
func Raise(hadrons []*hadron.Triangle, adj Adjust) *State {
	if len(hadrons) == 0 {
		v := Vacuum()
		v.reshape(adj)
		return v
	}
	blobs := make([]Blob, 0, 3*len(hadrons))
	for _, h := range hadrons {
		for _, c := range h.Channels() {
			blobs = append(blobs, Blob{
				Center:    c.Phase,
				Spread:    adj.apply(c.Spread),
				Amplitude: h.Coherence,
			})
		}
	}
	return New(blobs...)
}

func (w *State) reshape(adj Adjust) {
	for i := range w.blobs {
		w.blobs[i].Spread = adj.apply(w.blobs[i].Spread)
	}
}

// Focus divides every spread by factor. Factor ≤ 0 is a no-op.
func (w *State) Focus(factor float64) {
	w.reshape(Adjust{Mode: ModeFocus, Factor: factor})
}

// Disperse multiplies every spread by factor. Factor ≤ 0 is a no-op.
func (w *State) Disperse(factor float64) {
	w.reshape(Adjust{Mode: ModeDisperse, Factor: factor})
}

// At evaluates Σ a·exp(−d²/(2σ²)) at p using the shortest circular distance.
//
// Expectations:
//   - Returns 0 for an empty wave
//   - Equals a blob's amplitude at its own center when it is the only blob
//   - Decreases monotonically with distance from a lone blob's center
func (w *State) At(p phase.Point) float64 {
	var sum float64
	for _, b := range w.blobs {
		d := b.Center.DistanceTo(p)
		sigma := b.Spread.Mean()
		sum += b.Amplitude * math.Exp(-d*d/(2*sigma*sigma))
	}
	return sum
}

// Coherence returns Σ a/(1+σ) normalized by total amplitude; 0 when empty.
func (w *State) Coherence() float64 {
	if w.total <= 0 {
		return 0
	}
	var sum float64
	for _, b := range w.blobs {
		sum += b.Amplitude / (1 + b.Spread.Mean())
	}
	return sum / w.total
}

// TotalAmplitude returns the cached amplitude sum.
func (w *State) TotalAmplitude() float64 {
	return w.total
}

// Len returns the number of blobs.
func (w *State) Len() int {
	return len(w.blobs)
}

// Blobs returns a copy of the blobs.
func (w *State) Blobs() []Blob {
	out := make([]Blob, len(w.blobs))
	copy(out, w.blobs)
	return out
}

// MeanSpread returns the amplitude-weighted mean spread; 0 when empty.
func (w *State) MeanSpread() float64 {
	if w.total <= 0 {
		return 0
	}
	var sum float64
	for _, b := range w.blobs {
		sum += b.Amplitude * b.Spread.Mean()
	}
	return sum / w.total
}
