package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the runtime configuration from .gramtest/config.yaml
// (or config.toml).
type Config struct {
	LogLevel string        `yaml:"log_level" toml:"log_level"`
	Color    string        `yaml:"color" toml:"color"` // "auto", "on", "off"
	Runner   RunnerConfig  `yaml:"runner" toml:"runner"`
	Match    MatchConfig   `yaml:"match" toml:"match"`
	Report   ReportConfig  `yaml:"report" toml:"report"`
	History  HistoryConfig `yaml:"history" toml:"history"`
}

// RunnerConfig controls case execution.
type RunnerConfig struct {
	Jobs          int    `yaml:"jobs" toml:"jobs"` // 0 means one per CPU
	Timeout       string `yaml:"timeout" toml:"timeout"`
	MaxOutputSize string `yaml:"max_output_size" toml:"max_output_size"`
	FailFast      bool   `yaml:"fail_fast" toml:"fail_fast"`
}

// MatchConfig controls how expected and actual errors are compared.
type MatchConfig struct {
	Suggestions     string `yaml:"suggestions" toml:"suggestions"` // "superset", "exact", "ignore"
	SoftSuggestions bool   `yaml:"soft_suggestions" toml:"soft_suggestions"`
}

// ReportConfig controls report output.
type ReportConfig struct {
	Style      string `yaml:"style" toml:"style"`
	Window     int    `yaml:"window" toml:"window"`
	HidePasses bool   `yaml:"hide_passes" toml:"hide_passes"`
}

// HistoryConfig defines run history settings.
type HistoryConfig struct {
	Path    string `yaml:"path" toml:"path"`
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Keep    int    `yaml:"keep" toml:"keep"` // runs kept per suite, 0 keeps all
}

// PlatformConfig represents platform credentials from .gramtest/platforms.yaml.
type PlatformConfig struct {
	GitHub GitHubConfig `yaml:"github" toml:"github"`
}

// GitHubConfig holds GitHub platform settings.
type GitHubConfig struct {
	Token       string `yaml:"token" toml:"token"`
	DefaultRepo string `yaml:"default_repo" toml:"default_repo"` // owner/name
	BaseURL     string `yaml:"base_url" toml:"base_url"`         // GitHub Enterprise API URL
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "warn",
		Color:    "auto",
		Runner: RunnerConfig{
			Timeout:       "30s",
			MaxOutputSize: "1MB",
		},
		Match: MatchConfig{
			Suggestions: "superset",
		},
		Report: ReportConfig{
			Style:  "normal",
			Window: 20,
		},
		History: HistoryConfig{
			Path:    filepath.Join(".gramtest", "history.db"),
			Enabled: true,
			Keep:    100,
		},
	}
}

// TimeoutDuration parses Runner.Timeout. An empty value disables the timeout.
func (c Config) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(c.Runner.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Runner.Timeout)
	if err != nil {
		return 0, fmt.Errorf("runner.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("runner.timeout: negative duration %s", d)
	}
	return d, nil
}

// MaxOutputBytes parses Runner.MaxOutputSize. An empty value yields zero,
// which selects the checker default.
func (c Config) MaxOutputBytes() (int64, error) {
	if strings.TrimSpace(c.Runner.MaxOutputSize) == "" {
		return 0, nil
	}
	n, err := ParseSize(c.Runner.MaxOutputSize)
	if err != nil {
		return 0, fmt.Errorf("runner.max_output_size: %w", err)
	}
	return n, nil
}

// Validate checks values that cannot be checked by decoding alone.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Color) {
	case "", "auto", "on", "off", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("color: unknown value %q (expected auto, on or off)", c.Color))
	}
	if c.Runner.Jobs < 0 {
		errs = append(errs, fmt.Errorf("runner.jobs: must not be negative, got %d", c.Runner.Jobs))
	}
	if _, err := c.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.MaxOutputBytes(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Match.Suggestions) {
	case "", "superset", "exact", "ignore":
	default:
		errs = append(errs, fmt.Errorf("match.suggestions: unknown policy %q", c.Match.Suggestions))
	}
	if c.Report.Window < 0 {
		errs = append(errs, fmt.Errorf("report.window: must not be negative, got %d", c.Report.Window))
	}
	return errors.Join(errs...)
}

// LoadConfig reads and parses a runtime config file. Files ending in .toml
// are decoded as TOML, everything else as YAML.
// Returns default config if the file doesn't exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := decode(path, data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadPlatformConfig reads and parses a platform credentials file.
// Performs environment variable interpolation on string values.
func LoadPlatformConfig(path string) (PlatformConfig, error) {
	var cfg PlatformConfig

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read platform config %s: %w", path, err)
	}

	// Interpolate environment variables before parsing.
	interpolated := interpolateEnvVars(string(data))

	if err := decode(path, []byte(interpolated), &cfg); err != nil {
		return cfg, fmt.Errorf("parse platform config %s: %w", path, err)
	}

	return cfg, nil
}

func decode(path string, data []byte, v any) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(string(data), v)
		return err
	}
	return yaml.Unmarshal(data, v)
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func interpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match // Leave unresolved if not set.
	})
}
