// Package engine is the top-level owner of one learning session: the cycle
// engine, a bounded collapse history, the token registry, and periodic
// black-hole detection.
//
// An Engine is synchronous and not safe for concurrent use; callers serialize
// access or run one Engine per session. Every field is instance-owned.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/haricheung/hadron/internal/cycle"
	"github.com/haricheung/hadron/internal/hadron"
	"github.com/haricheung/hadron/internal/phase"
	"github.com/haricheung/hadron/internal/policy"
	"github.com/haricheung/hadron/internal/quark"
	"github.com/haricheung/hadron/internal/types"
)

// Defaults.
const (
	DefaultHistoryCapacity   = 1000
	DefaultBlackHoleInterval = 100

	// MatchRadius is how close a token's phase must be to a hadron's R vertex
	// for the token to reinforce that hadron instead of creating a new one.
	MatchRadius = 0.5

	// TokenReinforcement is the persistence bonus for a repeated token.
	TokenReinforcement = 0.5
)

// Hadron origins carried on HadronEvent.
const (
	OriginToken     = "token"
	OriginExplicit  = "explicit"
	OriginInversion = "inversion"
)

// Refusal reasons carried on HadronEvent.
const (
	ReasonUnstable      = "unstable"
	ReasonPopulationCap = "population_cap"
)

var (
	// ErrUnstable is returned when a hadron fails the stability predicate.
	ErrUnstable = errors.New("hadron is not stable")
	// ErrPopulationCap is returned when the population cap refuses a hadron.
	ErrPopulationCap = errors.New("population cap reached")
	// ErrNoHadron is returned when no hadron matches an ID prefix.
	ErrNoHadron = errors.New("no hadron matches")
	// ErrAmbiguous is returned when an ID prefix matches more than one hadron.
	ErrAmbiguous = errors.New("id prefix is ambiguous")
)

// Publisher receives engine events. *bus.Bus satisfies it.
type Publisher interface {
	Publish(msg types.Message)
}

type options struct {
	policy            policy.Policy
	rng               *rand.Rand
	historyCapacity   int
	maxHadrons        int
	blackHoleInterval int
	publisher         Publisher
	logger            *slog.Logger
}

// Option configures New.
type Option func(*options)

// WithPolicy sets the steering policy. Default: coherence seeking.
func WithPolicy(p policy.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithSeed seeds the engine's random source.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.rng = NewRand(seed) }
}

// WithRand injects a random source, typically one shared with a Random policy.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithHistoryCapacity bounds the collapse history. Values < 1 keep the default.
func WithHistoryCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.historyCapacity = n
		}
	}
}

// WithMaxHadrons caps the population. 0 means unbounded.
func WithMaxHadrons(n int) Option {
	return func(o *options) { o.maxHadrons = n }
}

// WithBlackHoleInterval sets how many cycles pass between black-hole
// recomputations. Values < 1 keep the default.
func WithBlackHoleInterval(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.blackHoleInterval = n
		}
	}
}

// WithPublisher sends events to p.
func WithPublisher(p Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewRand returns the PCG source used for a given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Engine is one learning session.
type Engine struct {
	cycle             *cycle.Engine
	history           *ring
	registry          *registry
	blackHoles        []types.BlackHoleRegion
	blackHoleInterval uint64
	emotion           Emotion
	nested            []NestedReality
	pub               Publisher
	log               *slog.Logger
}

// New returns an engine in the "from nothingness" state: vacuum wave, no
// hadrons, empty registry.
func New(opts ...Option) *Engine {
	o := options{
		historyCapacity:   DefaultHistoryCapacity,
		blackHoleInterval: DefaultBlackHoleInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = NewRand(0)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	e := &Engine{
		cycle: cycle.New(cycle.Config{
			Policy:     o.policy,
			Rand:       o.rng,
			MaxHadrons: o.maxHadrons,
			Logger:     o.logger,
		}),
		history:           newRing(o.historyCapacity),
		registry:          newRegistry(),
		blackHoleInterval: uint64(o.blackHoleInterval),
		pub:               o.publisher,
		log:               o.logger,
	}
	e.emotion = e.computeEmotion()
	return e
}

// Step runs one measurement cycle and records it.
//
// Expectations:
//   - Appends the result to history, evicting the oldest entry at capacity
//   - Recomputes black holes from the full history on every Nth cycle
//   - Refreshes the emotion snapshot
//   - Publishes a Collapse event (and BlackHoles on recomputation)
func (e *Engine) Step() types.CollapseResult {
	res := e.cycle.Tick()
	e.history.push(res)

	if res.Cycle%e.blackHoleInterval == 0 {
		e.refreshBlackHoles(res.Cycle)
	}
	e.emotion = e.computeEmotion()
	e.publish(types.SourceCycle, types.MsgCollapse, res)
	return res
}

// ProcessInput ingests one line of text and then runs one cycle.
// Tokens are case-folded and split on whitespace; empty input still ticks.
//
// Expectations:
//   - Each token is registered and its occurrence count incremented
//   - A token within 0.5 rad of a hadron's R vertex reinforces it by +0.5
//   - Otherwise a new anchored hadron is added when stable
//   - Returns the result of the trailing cycle
func (e *Engine) ProcessInput(text string) types.CollapseResult {
	tokens := strings.Fields(strings.ToLower(text))
	summary := types.InputEvent{Tokens: len(tokens)}
	for _, tok := range tokens {
		switch e.ingest(tok) {
		case ingestCreated:
			summary.Created++
		case ingestReinforced:
			summary.Reinforced++
		case ingestRefused:
			summary.Refused++
		}
	}
	res := e.Step()
	summary.Cycle = res.Cycle
	e.log.Debug("[ENGINE] input ingested", "tokens", summary.Tokens,
		"created", summary.Created, "reinforced", summary.Reinforced, "refused", summary.Refused)
	e.publish(types.SourceEngine, types.MsgInput, summary)
	return res
}

type ingestResult int

const (
	ingestCreated ingestResult = iota
	ingestReinforced
	ingestRefused
)

func (e *Engine) ingest(tok string) ingestResult {
	phi := e.registry.observe(tok)
	now := e.cycle.Counters().Cycles
	p := phase.New(phi)

	var matched *hadron.Triangle
	e.cycle.Each(func(h *hadron.Triangle) bool {
		if h.R.Phase.DistanceTo(p) <= MatchRadius {
			matched = h
			return false
		}
		return true
	})
	if matched != nil {
		matched.Reinforce(TokenReinforcement)
		matched.LastSeen = now
		e.publish(types.SourceEngine, types.MsgReinforced, hadronEvent(matched, OriginToken, tok, ""))
		return ingestReinforced
	}

	q := quark.Classify(p, phase.NewSpread(quark.TightSpread))
	h := hadron.Anchored(phi, [3]quark.State{q, q.WithClosure(quark.Bottom), q}, e.cycle.Sampler(), now)
	if err := e.admit(h); err != nil {
		e.refused(h, OriginToken, tok, err)
		return ingestRefused
	}
	e.publish(types.SourceEngine, types.MsgHadronCreated, hadronEvent(h, OriginToken, tok, ""))
	return ingestCreated
}

// admit adds h when it is stable and the cap allows it.
func (e *Engine) admit(h *hadron.Triangle) error {
	if !h.Stable() {
		return ErrUnstable
	}
	if !e.cycle.Add(h) {
		return ErrPopulationCap
	}
	return nil
}

func (e *Engine) refused(h *hadron.Triangle, origin, token string, err error) {
	reason := ReasonUnstable
	if errors.Is(err, ErrPopulationCap) {
		reason = ReasonPopulationCap
	}
	e.log.Info("[ENGINE] hadron refused", "origin", origin, "token", token, "reason", reason,
		"area", h.Area, "coherence", h.Coherence)
	ev := hadronEvent(h, origin, token, reason)
	ev.HadronID = ""
	e.publish(types.SourceEngine, types.MsgHadronRefused, ev)
}

// AddHadron constructs a hadron from three quark states and adds it when
// stable. It returns a copy of the new hadron.
//
// Expectations:
//   - Returns ErrUnstable for non-neutral or degenerate quark triples
//   - Returns ErrPopulationCap when the cap refuses the hadron
//   - Does not advance the cycle
func (e *Engine) AddHadron(q [3]quark.State) (*hadron.Triangle, error) {
	h := hadron.New(q, e.cycle.Sampler(), e.cycle.Counters().Cycles)
	if err := e.admit(h); err != nil {
		e.refused(h, OriginExplicit, "", err)
		return nil, fmt.Errorf("add hadron %s %s %s: %w", q[0], q[1], q[2], err)
	}
	e.publish(types.SourceEngine, types.MsgHadronCreated, hadronEvent(h, OriginExplicit, "", ""))
	return h.Clone(), nil
}

// ParseInversion maps "time", "space" or "full" to an InversionKind.
func ParseInversion(s string) (hadron.InversionKind, error) {
	switch k := hadron.InversionKind(strings.ToLower(strings.TrimSpace(s))); k {
	case hadron.InvertTime, hadron.InvertSpace, hadron.InvertFull:
		return k, nil
	}
	return "", fmt.Errorf("unknown inversion %q (want time, space or full)", s)
}

// Invert adds the inversion of the hadron whose ID starts with idPrefix.
// The original is left untouched; the inversion gets a new identity.
//
// Expectations:
//   - Returns ErrNoHadron when nothing matches idPrefix
//   - Returns ErrAmbiguous when more than one hadron matches
//   - Returns ErrUnstable / ErrPopulationCap as AddHadron does
func (e *Engine) Invert(idPrefix string, kind hadron.InversionKind) (*hadron.Triangle, error) {
	src, n := e.cycle.Lookup(idPrefix)
	switch {
	case n == 0:
		return nil, fmt.Errorf("invert %q: %w", idPrefix, ErrNoHadron)
	case n > 1:
		return nil, fmt.Errorf("invert %q (%d matches): %w", idPrefix, n, ErrAmbiguous)
	}
	inv := src.Invert(kind, e.cycle.Counters().Cycles)
	if err := e.admit(inv); err != nil {
		e.refused(inv, OriginInversion, "", err)
		return nil, fmt.Errorf("invert %s (%s): %w", src.ID, kind, err)
	}
	e.log.Info("[ENGINE] inversion added", "source", src.ID, "kind", kind, "id", inv.ID)
	e.publish(types.SourceEngine, types.MsgHadronCreated, hadronEvent(inv, OriginInversion, "", ""))
	return inv.Clone(), nil
}

func (e *Engine) publish(from types.Source, t types.MessageType, payload any) {
	if e.pub == nil {
		return
	}
	e.pub.Publish(types.Message{From: from, Type: t, Payload: payload})
}

func hadronEvent(h *hadron.Triangle, origin, token, reason string) types.HadronEvent {
	return types.HadronEvent{
		HadronID:    h.ID,
		Origin:      origin,
		Token:       token,
		Quark:       h.R.Quark,
		Persistence: h.Persistence,
		Area:        h.Area,
		Coherence:   h.Coherence,
		Reason:      reason,
	}
}
