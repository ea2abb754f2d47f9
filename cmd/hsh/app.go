package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/haricheung/hadron/internal/bus"
	"github.com/haricheung/hadron/internal/config"
	"github.com/haricheung/hadron/internal/engine"
	"github.com/haricheung/hadron/internal/journal"
	"github.com/haricheung/hadron/internal/metrics"
	"github.com/haricheung/hadron/internal/policy"
	"github.com/haricheung/hadron/internal/types"
	"github.com/haricheung/hadron/internal/ui"
)

// journaled lists the event types the collapse journal records.
var journaled = []types.MessageType{
	types.MsgCollapse,
	types.MsgHadronCreated,
	types.MsgHadronRefused,
	types.MsgReinforced,
	types.MsgBlackHoles,
}

// app owns one session: the engine plus every observer hanging off the bus.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	logFile *os.File
	bus     *bus.Bus
	eng     *engine.Engine
	jr      *journal.Journal // nil when journaling is off
	met     *metrics.Metrics
	backlog []<-chan types.Message
}

func newApp(cfg config.Config) (*app, error) {
	lvl, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	// Keep log output off the terminal; the REPL owns it.
	log.SetOutput(f)
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	rng := engine.NewRand(cfg.Seed)
	pol, err := policy.ByName(cfg.Policy, rng)
	if err != nil {
		f.Close()
		return nil, err
	}

	a := &app{cfg: cfg, log: logger, logFile: f, bus: bus.New(), met: metrics.New()}
	a.eng = engine.New(
		engine.WithRand(rng),
		engine.WithPolicy(pol),
		engine.WithHistoryCapacity(cfg.HistoryCapacity),
		engine.WithMaxHadrons(cfg.MaxHadrons),
		engine.WithBlackHoleInterval(cfg.BlackHoleInterval),
		engine.WithPublisher(a.bus),
		engine.WithLogger(logger),
	)

	if path, ok := cfg.JournalPath(); ok {
		jr, err := journal.Open(path, logger)
		if err != nil {
			f.Close()
			return nil, err
		}
		a.jr = jr
	}
	logger.Info("[SHELL] session started", "seed", cfg.Seed, "policy", pol.Name(),
		"max_hadrons", cfg.MaxHadrons, "metrics_addr", cfg.MetricsAddr)
	return a, nil
}

// observe starts the journal, metrics and (optionally) the feed on g.
// Subscriptions are taken before returning so no event is missed.
func (a *app) observe(ctx context.Context, g *errgroup.Group, feed io.Writer, color bool) {
	if a.jr != nil {
		in := a.bus.Subscribe(journaled...)
		a.backlog = append(a.backlog, in)
		g.Go(func() error {
			a.jr.Run(ctx, in)
			return nil
		})
	}

	tap := a.bus.Tap()
	a.backlog = append(a.backlog, tap)
	g.Go(func() error {
		a.met.Run(ctx, tap)
		return nil
	})

	if feed != nil {
		in := a.bus.Subscribe(types.MsgHadronCreated, types.MsgHadronRefused, types.MsgBlackHoles)
		a.backlog = append(a.backlog, in)
		f := ui.NewFeed(in, feed).WithColor(color)
		g.Go(func() error {
			f.Run(ctx)
			return nil
		})
	}

	if a.cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.met.Handler())
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		a.log.Info("[METRICS] serving", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// waitDrained blocks until every channel is empty or ctx is done.
//
// Expectations:
//   - Returns immediately when all channels are already empty
//   - Returns once the consumers have taken every buffered message
//   - Returns on ctx cancellation even if a consumer is stuck
func waitDrained(ctx context.Context, chans []<-chan types.Message, poll time.Duration) {
	for {
		pending := false
		for _, ch := range chans {
			if len(ch) > 0 {
				pending = true
				break
			}
		}
		if !pending {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(poll):
		}
	}
}

// shutdown closes the bus so observers drain, cancels the group context and
// waits, then releases the journal and log file.
func (a *app) shutdown(cancel context.CancelFunc, g *errgroup.Group) error {
	a.bus.Close()
	cancel()
	err := g.Wait()
	if a.jr != nil {
		if cerr := a.jr.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close journal: %w", cerr))
		}
	}
	a.log.Info("[SHELL] session ended", "cycles", a.eng.Stats().Cycles)
	a.logFile.Close()
	return err
}

func (a *app) chat(parent context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "hsh> ",
		HistoryFile:     a.cfg.HistoryPath(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	color := isatty.IsTerminal(os.Stdout.Fd())
	ctx, cancel := context.WithCancel(parent)
	g, gctx := errgroup.WithContext(ctx)
	a.observe(gctx, g, rl.Stdout(), color)

	settle := func() { waitDrained(gctx, a.backlog, time.Millisecond) }
	sh := newShell(a.eng, a.jr, rl.Stdout()).withColor(color).withSettle(settle)
	fmt.Fprintf(rl.Stdout(), "hsh: policy %s, seed %d. Type /help for commands.\n", a.cfg.Policy, a.cfg.Seed)

	for {
		if gctx.Err() != nil {
			break
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if err != nil {
			// io.EOF on Ctrl-D
			break
		}
		if err := sh.exec(line); err != nil {
			if errors.Is(err, errQuit) {
				break
			}
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
		}
	}
	return a.shutdown(cancel, g)
}

func (a *app) batch(parent context.Context, w io.Writer, inputs []string, steps int, trace bool) error {
	ctx, cancel := context.WithCancel(parent)
	g, gctx := errgroup.WithContext(ctx)
	a.observe(gctx, g, nil, false)

	sh := newShell(a.eng, a.jr, w)
	settle := func() { waitDrained(gctx, a.backlog, time.Millisecond) }
	for _, in := range inputs {
		res := a.eng.ProcessInput(in)
		if trace {
			sh.out.Collapse(res)
		}
		settle()
	}
	for i := 0; i < steps && gctx.Err() == nil; i++ {
		res := a.eng.Step()
		if trace {
			sh.out.Collapse(res)
		}
		if (i+1)%stepChunk == 0 {
			settle()
		}
	}
	sh.out.Stats(a.eng.Stats())
	sh.out.Contextuality(a.eng.Contextuality(), a.eng.Geometry().Rotation)
	return a.shutdown(cancel, g)
}
