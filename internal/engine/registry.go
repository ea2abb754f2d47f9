package engine

import (
	"math"
	"sort"

	"github.com/haricheung/hadron/internal/phase"
	"github.com/haricheung/hadron/internal/types"
)

// Token hashing and bucketing.
const (
	hashBase    = 31
	hashModulus = 1_000_003
	bucketCount = 16
)

// TokenPhase maps a token to a deterministic phase in [0, 2π). Each rune is
// weighted by its 1-based position before entering a base-31 polynomial
// hash, so anagrams land on different phases.
//
// Expectations:
//   - Same token always yields the same phase
//   - Returns a value in [0, 2π)
//   - Returns 0 for the empty string
func TokenPhase(token string) float64 {
	var h uint64
	i := 0
	for _, r := range token {
		i++
		h = h*hashBase + uint64(r)*uint64(i)
	}
	return phase.Normalize(float64(h%hashModulus) / hashModulus * phase.TwoPi)
}

// TokenCount is a registered token with its phase and occurrence count.
type TokenCount struct {
	Token string  `json:"token"`
	Phase float64 `json:"phase"`
	Count int     `json:"count"`
}

type tokenEntry struct {
	phase float64
	count int
}

// registry maps tokens to phases and counts, with 16 angular buckets for
// neighbourhood lookups.
type registry struct {
	tokens  map[string]*tokenEntry
	buckets [bucketCount]map[string]struct{}
	total   int
}

func newRegistry() *registry {
	r := &registry{tokens: make(map[string]*tokenEntry)}
	for i := range r.buckets {
		r.buckets[i] = make(map[string]struct{})
	}
	return r
}

func bucketOf(phi float64) int {
	b := int(phase.Normalize(phi) / (phase.TwoPi / bucketCount))
	if b >= bucketCount {
		b = bucketCount - 1
	}
	return b
}

// observe registers tok (if new), increments its count and returns its phase.
func (r *registry) observe(tok string) float64 {
	r.total++
	if e, ok := r.tokens[tok]; ok {
		e.count++
		return e.phase
	}
	phi := TokenPhase(tok)
	r.tokens[tok] = &tokenEntry{phase: phi, count: 1}
	r.buckets[bucketOf(phi)][tok] = struct{}{}
	return phi
}

// near returns the tokens within radius of phi, most frequent first
// (ties by token). Only the buckets the radius can reach are scanned.
func (r *registry) near(phi, radius float64) []TokenCount {
	width := phase.TwoPi / bucketCount
	reach := int(math.Ceil(radius / width))
	center := bucketOf(phi)
	seen := make(map[int]bool)
	var out []TokenCount
	for off := -reach; off <= reach; off++ {
		b := ((center+off)%bucketCount + bucketCount) % bucketCount
		if seen[b] {
			continue
		}
		seen[b] = true
		for tok := range r.buckets[b] {
			e := r.tokens[tok]
			if phase.Distance(e.phase, phi) <= radius {
				out = append(out, TokenCount{Token: tok, Phase: e.phase, Count: e.count})
			}
		}
	}
	sortByFrequency(out)
	return out
}

// top returns the limit most frequent tokens. limit <= 0 returns all.
func (r *registry) top(limit int) []TokenCount {
	out := make([]TokenCount, 0, len(r.tokens))
	for tok, e := range r.tokens {
		out = append(out, TokenCount{Token: tok, Phase: e.phase, Count: e.count})
	}
	sortByFrequency(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortByFrequency(tc []TokenCount) {
	sort.Slice(tc, func(i, j int) bool {
		if tc[i].Count != tc[j].Count {
			return tc[i].Count > tc[j].Count
		}
		return tc[i].Token < tc[j].Token
	})
}

// ring is a fixed-capacity FIFO of collapse results.
type ring struct {
	buf  []types.CollapseResult
	head int // index of the oldest entry
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]types.CollapseResult, capacity)}
}

func (r *ring) push(res types.CollapseResult) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = res
		r.size++
		return
	}
	r.buf[r.head] = res
	r.head = (r.head + 1) % len(r.buf)
}

// items returns the entries oldest first.
func (r *ring) items() []types.CollapseResult {
	out := make([]types.CollapseResult, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}
