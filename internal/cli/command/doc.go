// Package command defines waypoint-cli's commands.
//
// Most commands work offline against a server's data directory: the
// server's YAML config names the backend and directory, and --data-dir or
// --backend override it. Stop the server first; badger and the engine
// backend lock their directories. The server group talks to a running
// server's admin API instead.
package command
