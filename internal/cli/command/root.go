package command

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	clicfg "github.com/yndnr/waypoint-go/internal/cli/config"
	"github.com/yndnr/waypoint-go/internal/cli/connection"
	"github.com/yndnr/waypoint-go/internal/cli/output"
	"github.com/yndnr/waypoint-go/internal/infra/buildinfo"
	"github.com/yndnr/waypoint-go/internal/infra/confloader"
	"github.com/yndnr/waypoint-go/internal/server/config"
	"github.com/yndnr/waypoint-go/internal/storage"
	"github.com/yndnr/waypoint-go/internal/telemetry/logger"
)

const settingsKey = "settings"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "waypoint-cli",
		Usage:   "Waypoint inspection and maintenance tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SavePointCommand(),
			SessionCommand(),
			BackupCommand(),
			ConfigCommand(),
			ServerCommand(),
		},
		Before: func(c *cli.Context) error {
			s, err := loadSettings(c)
			if err != nil {
				return err
			}
			c.App.Metadata[settingsKey] = s
			return nil
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "cli-config",
			Usage:   "CLI settings file (default ~/.config/waypoint/cli.yaml)",
			EnvVars: []string{"WAYPOINT_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Server configuration file, used to locate the data directory",
			EnvVars: []string{"WAYPOINT_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Data directory (overrides the server configuration)",
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "Storage backend: engine, badger, sqlite (overrides the server configuration)",
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Admin API address for server commands",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show more columns",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log storage activity to stderr",
		},
	}
}

// Settings is the resolved CLI configuration: file, environment, then flags.
type Settings struct {
	CLI          *clicfg.CLIConfig
	ServerConfig string
	DataDir      string
	Backend      string
	Output       output.Format
	Wide         bool
	Verbose      bool
}

func loadSettings(c *cli.Context) (*Settings, error) {
	cfg, err := clicfg.Load(c.String("cli-config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("server"); v != "" {
		cfg.Server = v
	}
	if v := c.String("output"); v != "" {
		cfg.Output = v
	}
	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return nil, err
	}

	s := &Settings{
		CLI:          cfg,
		ServerConfig: cfg.ServerConfig,
		DataDir:      c.String("data-dir"),
		Backend:      c.String("backend"),
		Output:       format,
		Wide:         c.Bool("wide"),
		Verbose:      c.Bool("verbose"),
	}
	if v := c.String("config"); v != "" {
		s.ServerConfig = v
	}
	return s, nil
}

func settings(c *cli.Context) (*Settings, error) {
	if s, ok := c.App.Metadata[settingsKey].(*Settings); ok {
		return s, nil
	}
	return loadSettings(c)
}

// serverConfig loads the server configuration the offline commands work against.
func serverConfig(c *cli.Context) (*config.ServerConfig, error) {
	s, err := settings(c)
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	loader := confloader.NewLoader(
		confloader.WithConfigFile(s.ServerConfig),
		confloader.WithOverrides(map[string]any{
			"storage.data_dir": s.DataDir,
			"storage.backend":  s.Backend,
		}),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openRepository opens the configured backend. Callers close it.
func openRepository(c *cli.Context) (storage.Backend, *config.ServerConfig, error) {
	cfg, err := serverConfig(c)
	if err != nil {
		return nil, nil, err
	}
	s, _ := settings(c)

	level := "warn"
	if s.Verbose {
		level = "debug"
	}
	l, err := logger.New(logger.Config{Level: level, Format: "text", Output: stderr(c)})
	if err != nil {
		return nil, nil, err
	}

	repo, err := storage.Open(c.Context, cfg.StorageOptions(l))
	if err != nil {
		return nil, nil, fmt.Errorf("open %s backend at %s: %w", cfg.Storage.Backend, cfg.Storage.DataDir, err)
	}
	return repo, cfg, nil
}

// apiClient returns a client for the configured admin API.
func apiClient(c *cli.Context) (*connection.Client, context.Context, context.CancelFunc, error) {
	s, err := settings(c)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(c.Context, s.CLI.Timeout)
	return connection.NewClient(s.CLI.Server, buildinfo.Get().Version), ctx, cancel, nil
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	s, err := settings(c)
	if err != nil {
		return err
	}
	return output.NewFormatter(s.Output, s.Wide).Format(stdout(c), data)
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func stderr(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
