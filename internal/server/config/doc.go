// Package config defines the waypoint-server configuration.
//
//   - spec.go: ServerConfig and its sections
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking secrets before the config is logged
//
// Configuration is loaded through internal/infra/confloader: defaults, then
// a YAML file, then WAYPOINT_ environment variables.
package config
