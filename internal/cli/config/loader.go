package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yndnr/waypoint-go/internal/cli/output"
	"github.com/yndnr/waypoint-go/internal/infra/confloader"
)

// EnvPrefix is the environment prefix for CLI settings.
const EnvPrefix = "WAYPOINT_CLI_"

// DefaultPath returns the default CLI config file path.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "waypoint", "cli.yaml")
}

// Load reads the CLI configuration. A missing file at the default path is
// not an error; a missing file named explicitly is.
func Load(path string) (*CLIConfig, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, fmt.Errorf("cli config: %w", err)
		}
		path = ""
	}

	loader := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithEnvPrefix(EnvPrefix),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("cli config: %w", err)
	}
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Verify checks the loaded settings.
func (c *CLIConfig) Verify() error {
	if c.Server == "" {
		return errors.New("cli config: server is required")
	}
	if _, err := output.ParseFormat(c.Output); err != nil {
		return fmt.Errorf("cli config: %w", err)
	}
	if c.Timeout <= 0 {
		return errors.New("cli config: timeout must be positive")
	}
	return nil
}
