package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultCacheDir returns ~/.cache/hsh, where logs, history and the journal live.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "hsh")
	}
	return filepath.Join(home, ".cache", "hsh")
}

// EnsureCacheDir creates the cache directory if it does not exist.
// Called once at startup so the log file and journal never fail on a missing directory.
func (c Config) EnsureCacheDir() error {
	return os.MkdirAll(c.CacheDir, 0o755)
}

// ExpandHome replaces a leading "~/" or a bare "~" with the user's home directory.
// Returns path unchanged if it does not start with "~".
//
// Expectations:
//   - Expands "~/foo" to "<home>/foo"
//   - Expands bare "~" to "<home>"
//   - Returns path unchanged when it does not start with "~"
//   - Returns path unchanged for "/absolute/path"
func ExpandHome(path string) string {
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
