// Package tracer installs the OpenTelemetry tracer provider.
//
// Save point creation and restores open spans through the global provider;
// this package only decides where those spans go (nowhere, stdout or an
// OTLP/HTTP collector).
package tracer
