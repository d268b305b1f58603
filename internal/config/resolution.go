package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CliFlags holds the values of command-line flags.
type CliFlags struct {
	ConfigPath string
	Theme      string
	Format     string
	Debug      bool

	// Flags to track if they were explicitly set by the user
	ThemeSet  bool
	FormatSet bool
	DebugSet  bool
}

// Formats accepted by --format.
var validFormats = map[string]bool{"auto": true, "terminal": true, "plain": true, "json": true}

// Resolve locates the config file and applies environment and flag overrides.
//
// Resolution order:
//  1. Locate the file: --config, COMMITQ_CONFIG, then the default candidates
//  2. Load and validate it
//  3. Apply environment variables
//  4. Apply CLI flags
func Resolve(flags CliFlags) (*Config, error) {
	path := flags.ConfigPath
	if path == "" {
		path = os.Getenv("COMMITQ_CONFIG")
	}
	if path == "" {
		path = findConfigPath()
	}
	if path == "" {
		return nil, fmt.Errorf("%w (looked for %s)", ErrNotFound, strings.Join(candidatePaths(), ", "))
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyFlags(flags)

	if !validFormats[cfg.Format] {
		return nil, fmt.Errorf("%w: unknown format %q (expected auto, terminal, plain, json)", ErrInvalid, cfg.Format)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("COMMITQ_WS_URL"); v != "" {
		if err := validateWSURL(v); err != nil {
			return fmt.Errorf("COMMITQ_WS_URL: %w", err)
		}
		c.WSURL = v
	}
	if v := os.Getenv("COMMITQ_THEME"); v != "" {
		c.Theme = v
	}
	if v := os.Getenv("COMMITQ_FORMAT"); v != "" {
		c.Format = v
	}
	if v := os.Getenv("COMMITQ_DEBUG"); v != "" {
		c.Debug = parseBoolEnv(v)
	}
	// NO_COLOR only needs to be present (https://no-color.org).
	if os.Getenv("NO_COLOR") != "" {
		c.Theme = "mono"
	}
	return nil
}

func (c *Config) applyFlags(flags CliFlags) {
	if flags.ThemeSet {
		c.Theme = flags.Theme
	}
	if flags.FormatSet {
		c.Format = flags.Format
	}
	if flags.DebugSet {
		c.Debug = flags.Debug
	}
}

// parseBoolEnv treats "1", "true", "yes" and other strconv truthy values as true.
func parseBoolEnv(v string) bool {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return strings.EqualFold(v, "yes") || strings.EqualFold(v, "on")
}
