package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haricheung/hadron/internal/config"
)

// Global flags. Zero values mean "leave the loaded config alone".
var (
	configPath string
	seedFlag   uint64
	policyFlag string

	runSteps  int
	runInputs []string
	runTrace  bool

	rootCmd = &cobra.Command{
		Use:   "hsh",
		Short: "A phase-circle hadron engine with a chat shell",
		Long: `hsh grows a population of hadron triangles from the words you type.
Every line is tokenized onto the phase circle, reinforces or creates hadrons,
and then drives one measurement cycle against the pentagram.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runChat,
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive shell (default)",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Feed inputs, run a number of cycles and print the final stats",
		Args:  cobra.NoArgs,
		RunE:  runBatch,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file (default $HSH_CONFIG)")
	pf.Uint64Var(&seedFlag, "seed", 0, "random seed (overrides config)")
	pf.StringVar(&policyFlag, "policy", "", "agent policy: coherence or random (overrides config)")

	runCmd.Flags().IntVar(&runSteps, "steps", 100, "cycles to run after the inputs")
	runCmd.Flags().StringArrayVar(&runInputs, "input", nil, "text to ingest before stepping (repeatable)")
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "print every collapse")

	rootCmd.AddCommand(chatCmd, runCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config layers and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seedFlag
	}
	if cmd.Flags().Changed("policy") {
		cfg.Policy = policyFlag
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if err := cfg.EnsureCacheDir(); err != nil {
		return cfg, fmt.Errorf("cache dir: %w", err)
	}
	return cfg, nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	return a.chat(cmd.Context())
}

func runBatch(cmd *cobra.Command, _ []string) error {
	if runSteps < 0 {
		return fmt.Errorf("--steps must be >= 0, got %d", runSteps)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	return a.batch(cmd.Context(), cmd.OutOrStdout(), runInputs, runSteps, runTrace)
}
