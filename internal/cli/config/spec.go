package config

import "time"

// CLIConfig is the configuration for waypoint-cli.
type CLIConfig struct {
	// Server is the admin API address used by online commands.
	Server string `koanf:"server"`

	// Output is the default output format: table, json or yaml.
	Output string `koanf:"output"`

	// Timeout bounds each admin API call.
	Timeout time.Duration `koanf:"timeout"`

	// ServerConfig is the server's YAML file, read by offline commands
	// (backup, config) to locate the data directory.
	ServerConfig string `koanf:"server_config"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:  "127.0.0.1:7180",
		Output:  "table",
		Timeout: 30 * time.Second,
	}
}
