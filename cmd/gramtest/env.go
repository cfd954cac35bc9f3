package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cgast/gramtest/internal/config"
	"github.com/cgast/gramtest/internal/logger"
	"github.com/cgast/gramtest/pkg/match"
)

const configDir = ".gramtest"

type globalFlags struct {
	configPath string
	color      string
	logLevel   string
	verbose    bool
}

// env is what every subcommand needs after flags are parsed.
type env struct {
	cfg   config.Config
	log   *slog.Logger
	color bool
}

func setup(cmd *cobra.Command, g *globalFlags) (*env, error) {
	cfg, err := config.LoadConfig(configPath(g.configPath))
	if err != nil {
		return nil, infraError(err)
	}
	if g.color != "" {
		cfg.Color = g.color
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, infraError(fmt.Errorf("config: %w", err))
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, infraError(err)
	}
	stderr := cmd.ErrOrStderr()
	color := useColor(cfg.Color, cmd.OutOrStdout())
	log := logger.New(stderr, logger.Options{Level: level, NoColor: !useColor(cfg.Color, stderr)})

	return &env{cfg: cfg, log: log, color: color}, nil
}

// configPath picks the explicit path, else .gramtest/config.yaml, else
// .gramtest/config.toml.
func configPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	yamlPath := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(yamlPath); errors.Is(err, fs.ErrNotExist) {
		tomlPath := filepath.Join(configDir, "config.toml")
		if _, err := os.Stat(tomlPath); err == nil {
			return tomlPath
		}
	}
	return yamlPath
}

func platformConfigPath(cfgPath string) string {
	if cfgPath != "" {
		return filepath.Join(filepath.Dir(cfgPath), "platforms.yaml")
	}
	return filepath.Join(configDir, "platforms.yaml")
}

// useColor resolves an auto|on|off setting for w. NO_COLOR disables auto.
func useColor(mode string, w io.Writer) bool {
	switch strings.ToLower(mode) {
	case "on", "always":
		return true
	case "off", "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isTerminal(w)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// matcherFor builds a matcher from config, with flags taking precedence
// when set.
func matcherFor(cmd *cobra.Command, cfg config.Config, policy string, soft bool) (*match.Matcher, error) {
	if !cmd.Flags().Changed("suggestions") {
		policy = cfg.Match.Suggestions
	}
	if !cmd.Flags().Changed("soft-suggestions") {
		soft = cfg.Match.SoftSuggestions
	}
	p, err := match.ParseSuggestionPolicy(policy)
	if err != nil {
		return nil, err
	}
	return match.New(match.Options{Suggestions: p, SoftSuggestions: soft}), nil
}
