package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/waypoint-go/internal/infra/confloader"
	"github.com/yndnr/waypoint-go/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Server configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective server configuration with secrets masked",
				Action: configShow,
			},
			{
				Name:      "validate",
				Usage:     "Validate a server configuration file",
				ArgsUsage: "[FILE]",
				Action:    configValidate,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg, err := serverConfig(c)
	if err != nil {
		return err
	}
	return render(c, config.ToMap(config.Sanitize(cfg)))
}

func configValidate(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		s, err := settings(c)
		if err != nil {
			return err
		}
		path = s.ServerConfig
	}
	if path == "" {
		return fmt.Errorf("configuration file required (argument or --config)")
	}

	cfg := config.Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
		return err
	}
	if err := config.Verify(cfg); err != nil {
		return fmt.Errorf("%s is invalid:\n%w", path, err)
	}
	fmt.Fprintf(stdout(c), "Configuration is valid: %s\n", path)
	return nil
}
