// Package config holds waypoint-cli's local settings.
//
// Settings come from ~/.config/waypoint/cli.yaml when it exists, then from
// WAYPOINT_CLI_* environment variables, then from command-line flags.
package config
