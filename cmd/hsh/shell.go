package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/haricheung/hadron/internal/engine"
	"github.com/haricheung/hadron/internal/journal"
	"github.com/haricheung/hadron/internal/quark"
	"github.com/haricheung/hadron/internal/ui"
)

// errQuit is returned by exec for /quit and /exit.
var errQuit = errors.New("quit")

const (
	defaultListLimit = 10
	maxStepBatch     = 100000

	// stepChunk stays below the bus subscriber buffer, so pausing for the
	// observers every stepChunk cycles keeps the journal from dropping events.
	stepChunk = 200
)

const helpText = `Plain text is tokenized, ingested and followed by one cycle.

  /step [n]                     run n cycles (default 1)
  /stats                        session summary and emotion
  /patterns [n]                 most persistent hadrons with their tokens
  /vocab [n]                    token registry
  /holes                        current black holes and lifetime journal cells
  /hadron q1 q2 q3              add a hadron, e.g. up/charm/top down/strange/bottom up/charm/top
  /invert <id-prefix> <kind>    add the time, space or full inversion of a hadron
  /context                      KCBS contextuality diagnostic
  /geometry                     JSON snapshot of hadron vertices, wave and pentagram
  /journal [n]                  recent journaled collapses
  /help                         this text
  /quit                         leave the shell
`

var completer = readline.NewPrefixCompleter(
	readline.PcItem("/step"),
	readline.PcItem("/stats"),
	readline.PcItem("/patterns"),
	readline.PcItem("/vocab"),
	readline.PcItem("/holes"),
	readline.PcItem("/hadron"),
	readline.PcItem("/invert"),
	readline.PcItem("/context"),
	readline.PcItem("/geometry"),
	readline.PcItem("/journal"),
	readline.PcItem("/help"),
	readline.PcItem("/quit"),
)

// shell turns one input line into engine calls and printed output.
type shell struct {
	eng    *engine.Engine
	jr     *journal.Journal
	out    *ui.Printer
	w      io.Writer
	settle func() // blocks until bus observers catch up; nil when none
}

func newShell(eng *engine.Engine, jr *journal.Journal, w io.Writer) *shell {
	return &shell{eng: eng, jr: jr, out: ui.NewPrinter(w), w: w}
}

func (s *shell) withSettle(fn func()) *shell {
	s.settle = fn
	return s
}

func (s *shell) withColor(on bool) *shell {
	s.out.WithColor(on)
	return s
}

// exec runs one line. Lines starting with "/" are commands; anything else
// is ingested as text.
//
// Expectations:
//   - Blank lines do nothing
//   - Unknown commands return an error naming the command
//   - /quit and /exit return errQuit
//   - Bad numeric arguments return an error and leave the engine untouched
func (s *shell) exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		s.out.Collapse(s.eng.ProcessInput(line))
		return nil
	}

	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		fmt.Fprint(s.w, helpText)
	case "/step":
		n, err := countArg(args, 1)
		if err != nil {
			return err
		}
		if n > maxStepBatch {
			return fmt.Errorf("/step: at most %d cycles at once", maxStepBatch)
		}
		s.step(n)
	case "/stats":
		s.out.Stats(s.eng.Stats())
	case "/patterns":
		n, err := countArg(args, defaultListLimit)
		if err != nil {
			return err
		}
		s.out.Patterns(s.eng.LearnedPatterns(n))
	case "/vocab":
		n, err := countArg(args, defaultListLimit)
		if err != nil {
			return err
		}
		s.out.Vocabulary(s.eng.VocabularyStats(n))
	case "/holes":
		return s.holes()
	case "/hadron":
		return s.hadron(args)
	case "/invert":
		return s.invert(args)
	case "/context":
		s.out.Contextuality(s.eng.Contextuality(), s.eng.Geometry().Rotation)
	case "/geometry":
		b, err := json.MarshalIndent(s.eng.Geometry(), "", "  ")
		if err != nil {
			return fmt.Errorf("geometry: %w", err)
		}
		fmt.Fprintln(s.w, string(b))
	case "/journal":
		return s.journal(args)
	default:
		return fmt.Errorf("unknown command %q (try /help)", cmd)
	}
	return nil
}

// step runs n cycles. Short runs print every collapse; long runs print only
// the last one and a success count.
func (s *shell) step(n int) {
	const verbose = 20
	var successes int
	for i := 0; i < n; i++ {
		res := s.eng.Step()
		if res.Success {
			successes++
		}
		if n <= verbose || i == n-1 {
			s.out.Collapse(res)
		}
		if s.settle != nil && (i+1)%stepChunk == 0 {
			s.settle()
		}
	}
	if n > verbose {
		fmt.Fprintf(s.w, "%d cycles, %d successes\n", n, successes)
	}
}

func (s *shell) holes() error {
	s.out.BlackHoles(s.eng.BlackHoles())
	if s.jr == nil {
		return nil
	}
	cells, err := s.jr.Tally()
	if err != nil {
		return fmt.Errorf("journal tally: %w", err)
	}
	if len(cells) > 0 {
		fmt.Fprintln(s.w, "lifetime cells (journal):")
		s.out.Tally(cells)
	}
	return nil
}

func (s *shell) hadron(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("/hadron wants three quarks, got %d", len(args))
	}
	var q [3]quark.State
	for i, raw := range args {
		st, err := quark.Parse(raw)
		if err != nil {
			return err
		}
		q[i] = st
	}
	h, err := s.eng.AddHadron(q)
	if err != nil {
		return err
	}
	s.out.Hadron(h)
	return nil
}

func (s *shell) invert(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: /invert <id-prefix> time|space|full")
	}
	kind, err := engine.ParseInversion(args[1])
	if err != nil {
		return err
	}
	h, err := s.eng.Invert(args[0], kind)
	if err != nil {
		return err
	}
	s.out.Hadron(h)
	return nil
}

func (s *shell) journal(args []string) error {
	if s.jr == nil {
		return errors.New("journal is off (set journal in the config)")
	}
	n, err := countArg(args, defaultListLimit)
	if err != nil {
		return err
	}
	entries, err := s.jr.Recent(n)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	s.out.Journal(entries)
	return nil
}

// countArg parses an optional positive count, returning def when absent.
func countArg(args []string, def int) (int, error) {
	switch len(args) {
	case 0:
		return def, nil
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("expected a positive count, got %q", args[0])
		}
		return n, nil
	}
	return 0, fmt.Errorf("expected at most one argument, got %d", len(args))
}
