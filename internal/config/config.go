// Package config loads shell settings from .env, an optional YAML file and
// HSH_* environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/haricheung/hadron/internal/engine"
	"github.com/haricheung/hadron/internal/policy"
)

// Journal modes other than a filesystem path.
const (
	JournalMemory = "memory"
	JournalOff    = "off"
)

// Config is the full shell configuration.
type Config struct {
	Seed              uint64 `json:"seed" yaml:"seed"`
	Policy            string `json:"policy" yaml:"policy"`
	HistoryCapacity   int    `json:"history_capacity" yaml:"history_capacity"`
	MaxHadrons        int    `json:"max_hadrons" yaml:"max_hadrons"` // 0 = unbounded
	BlackHoleInterval int    `json:"blackhole_interval" yaml:"blackhole_interval"`
	CacheDir          string `json:"cache_dir" yaml:"cache_dir"`
	Journal           string `json:"journal" yaml:"journal"` // "" = <cache_dir>/journal, "memory", "off", or a path
	MetricsAddr       string `json:"metrics_addr" yaml:"metrics_addr"`
	LogLevel          string `json:"log_level" yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Policy:            policy.NameCoherence,
		HistoryCapacity:   engine.DefaultHistoryCapacity,
		BlackHoleInterval: engine.DefaultBlackHoleInterval,
		CacheDir:          DefaultCacheDir(),
		LogLevel:          "info",
	}
}

// Load builds a Config: defaults, then the YAML file at path (or $HSH_CONFIG
// when path is empty), then HSH_* environment overrides. A .env file in the
// working directory is loaded first if present.
//
// Expectations:
//   - Missing .env is not an error
//   - Empty path with no $HSH_CONFIG skips the file layer
//   - Unknown YAML keys are rejected
//   - Malformed numeric env values are reported by name
//   - "~" in cache_dir and journal is expanded
//   - The result has passed Validate
func Load(path string) (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()
	if path == "" {
		path = os.Getenv("HSH_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(ExpandHome(path)); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.CacheDir = ExpandHome(cfg.CacheDir)
	if cfg.Journal != JournalMemory && cfg.Journal != JournalOff {
		cfg.Journal = ExpandHome(cfg.Journal)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	envInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s=%q: %w", key, v, err))
				return
			}
			*dst = n
		}
	}
	envStr := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := os.LookupEnv("HSH_SEED"); ok && v != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: HSH_SEED=%q: %w", v, err))
		} else {
			c.Seed = n
		}
	}
	envStr("HSH_POLICY", &c.Policy)
	envInt("HSH_HISTORY_CAPACITY", &c.HistoryCapacity)
	envInt("HSH_MAX_HADRONS", &c.MaxHadrons)
	envInt("HSH_BLACKHOLE_INTERVAL", &c.BlackHoleInterval)
	envStr("HSH_CACHE_DIR", &c.CacheDir)
	envStr("HSH_JOURNAL_PATH", &c.Journal)
	envStr("HSH_METRICS_ADDR", &c.MetricsAddr)
	envStr("HSH_LOG_LEVEL", &c.LogLevel)
	return errors.Join(errs...)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Policy) {
	case policy.NameCoherence, policy.NameRandom:
	default:
		errs = append(errs, fmt.Errorf("config: policy %q (want %s or %s)", c.Policy, policy.NameCoherence, policy.NameRandom))
	}
	if c.HistoryCapacity < 1 {
		errs = append(errs, fmt.Errorf("config: history_capacity must be >= 1, got %d", c.HistoryCapacity))
	}
	if c.MaxHadrons < 0 {
		errs = append(errs, fmt.Errorf("config: max_hadrons must be >= 0, got %d", c.MaxHadrons))
	}
	if c.BlackHoleInterval < 1 {
		errs = append(errs, fmt.Errorf("config: blackhole_interval must be >= 1, got %d", c.BlackHoleInterval))
	}
	if c.CacheDir == "" {
		errs = append(errs, errors.New("config: cache_dir is empty"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// JournalPath returns the LevelDB directory, "" for an in-memory journal, and
// ok=false when journaling is off.
func (c Config) JournalPath() (path string, ok bool) {
	switch c.Journal {
	case JournalOff:
		return "", false
	case JournalMemory:
		return "", true
	case "":
		return filepath.Join(c.CacheDir, "journal"), true
	}
	return c.Journal, true
}

// LogPath returns the log file location inside the cache directory.
func (c Config) LogPath() string {
	return filepath.Join(c.CacheDir, "hsh.log")
}

// HistoryPath returns the readline history file location.
func (c Config) HistoryPath() string {
	return filepath.Join(c.CacheDir, "history")
}
