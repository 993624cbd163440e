// Package httpserver hosts the waypoint-server admin API on net/http.
//
// NewRouter mounts the handler package behind the middleware chain
// (recover, request ID, tracing, access log, metrics, rate limit) and serves
// Prometheus metrics at /metrics.
package httpserver
