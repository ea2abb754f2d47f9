package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/haricheung/hadron/internal/engine"
	"github.com/haricheung/hadron/internal/hadron"
	"github.com/haricheung/hadron/internal/journal"
	"github.com/haricheung/hadron/internal/kcbs"
	"github.com/haricheung/hadron/internal/types"
)

const tokenColumn = 16

// Printer renders query results for the shell.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter writes to w, with color only when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, color: colorEnabled(w)}
}

// WithColor forces color on or off.
func (p *Printer) WithColor(on bool) *Printer {
	p.color = on
	return p
}

func (p *Printer) paint(code, s string) string {
	if !p.color {
		return s
	}
	return code + s + ansiReset
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// Collapse prints one cycle result on a single line.
func (p *Printer) Collapse(res types.CollapseResult) {
	mark := p.paint(ansiRed, "✗")
	if res.Success {
		mark = p.paint(ansiGreen, "✓")
	}
	p.printf("%s cycle %-5d ctx %d→%d  φ=%.3f  %s  err=%.3f  p=(%.2f, %.2f)\n",
		mark, res.Cycle, res.Context, res.Outcome, res.Phase.T, res.Quark, res.InversionError, res.P0, res.P1)
}

// Stats prints the session summary.
func (p *Printer) Stats(s engine.Stats) {
	p.printf("%s\n", p.paint(ansiBold, "session"))
	p.printf("  policy        %s\n", s.Policy)
	p.printf("  cycles        %d (%d successes, rate %.1f%%)\n", s.Cycles, s.Successes, 100*s.SuccessRate)
	p.printf("  hadrons       %d (%d stable)\n", s.Hadrons, s.StableHadrons)
	p.printf("  black holes   %d\n", s.BlackHoles)
	p.printf("  dominant      %s/%s\n", s.DominantTime, s.DominantSpace)
	p.Emotion(s.Emotion)
}

// Emotion prints the affect snapshot as labelled bars.
func (p *Printer) Emotion(e engine.Emotion) {
	p.printf("  affinity      %s %.2f\n", bar(e.Affinity), e.Affinity)
	p.printf("  valence       %s %.2f\n", bar(e.Valence), e.Valence)
	p.printf("  truthfulness  %s %.2f\n", bar(e.Truthfulness), e.Truthfulness)
	p.printf("  intensity     %.3f\n", e.Intensity)
}

// bar renders v in [0, 1] as a ten-cell gauge.
func bar(v float64) string {
	n := int(v*10 + 0.5)
	n = max(0, min(10, n))
	return "[" + strings.Repeat("█", n) + strings.Repeat("·", 10-n) + "]"
}

// Patterns prints learned patterns, most persistent first.
func (p *Printer) Patterns(ps []engine.Pattern) {
	if len(ps) == 0 {
		p.printf("%s\n", p.paint(ansiDim, "no patterns learned yet"))
		return
	}
	for i, pt := range ps {
		words := make([]string, 0, len(pt.Tokens))
		for _, tc := range pt.Tokens {
			words = append(words, fmt.Sprintf("%s×%d", tc.Token, tc.Count))
		}
		tokens := strings.Join(words, " ")
		if tokens == "" {
			tokens = p.paint(ansiDim, "(no tokens)")
		}
		p.printf("%2d. %s  p=%5.2f  coh=%.2f  φ=%.3f  %s  %s\n",
			i+1, shortID(pt.HadronID), pt.Persistence, pt.Coherence, pt.Phase, pt.Quarks[0], tokens)
	}
}

// Vocabulary prints registry totals and the most frequent tokens in an
// aligned column.
func (p *Printer) Vocabulary(v engine.VocabularyStats) {
	p.printf("%d unique tokens, %d occurrences\n", v.Unique, v.Total)
	for _, tc := range v.Top {
		tok := runewidth.FillRight(clip(tc.Token, tokenColumn), tokenColumn)
		p.printf("  %s %4d  φ=%.3f\n", tok, tc.Count, tc.Phase)
	}
}

// BlackHoles prints the current black-hole regions.
func (p *Printer) BlackHoles(regions []types.BlackHoleRegion) {
	if len(regions) == 0 {
		p.printf("%s\n", p.paint(ansiDim, "no black holes"))
		return
	}
	for _, r := range regions {
		p.printf("  %s center=(%.3f, %.3f) r=%.3f  fail=%.0f%%  n=%d\n",
			p.paint(ansiMagenta, "●"), r.Center.T, r.Center.S, r.Radius, 100*r.FailureRate, r.Samples)
	}
}

// Tally prints lifetime journal cells in grid order.
func (p *Printer) Tally(cells []journal.Cell) {
	for _, c := range cells {
		p.printf("  cell (%d,%d)  n=%-4d fail=%.0f%%\n", c.I, c.J, c.Samples, 100*c.FailureRate())
	}
}

// Hadron prints one hadron with its three channels.
func (p *Printer) Hadron(h *hadron.Triangle) {
	p.printf("%s %s  area=%.3f  coh=%.3f  p=%.2f  stable=%t  self-dual=%t\n",
		p.paint(ansiBold, "hadron"), h.ID, h.Area, h.Coherence, h.Persistence, h.Stable(), h.SelfDual())
	for _, c := range h.Channels() {
		p.printf("  %s  φ=%.3f  σ=%.3f  %s\n", c.Name, c.Phase.T, c.Spread.Mean(), c.Quark)
	}
}

// Contextuality prints the diagnostic and the pentagram orientation.
func (p *Printer) Contextuality(r kcbs.Report, rotation float64) {
	verdict := "within classical bound"
	if r.Violates {
		verdict = p.paint(ansiYellow, "exceeds classical bound")
	}
	p.printf("Σ|p0−p1| = %.3f  (classical %.0f, quantum %.3f, normalized %.3f) %s\n",
		r.Sum, r.ClassicalBound, r.QuantumBound, r.Normalized, verdict)
	p.printf("pentagram rotation %.3f rad\n", rotation)
}

// Journal prints recent journal entries, newest first.
func (p *Printer) Journal(entries []journal.Entry) {
	if len(entries) == 0 {
		p.printf("%s\n", p.paint(ansiDim, "journal is empty"))
		return
	}
	for _, e := range entries {
		p.printf("%s ", p.paint(ansiDim, e.Timestamp.Local().Format("15:04:05")))
		p.Collapse(e.Collapse)
	}
}
