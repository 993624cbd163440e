// Package logger builds the *slog.Logger every waypoint component logs through.
//
// Loggers created by New share one level variable, so SetLevel takes effect
// everywhere at once. Records logged with a context carry its request ID and
// the active trace ID. Secrets are masked before a record is written.
package logger
