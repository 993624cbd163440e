// Package metric provides continuity metrics and their Prometheus exposition.
//
//   - continuity.go: atomic counters fed by the session, save and restore services
//   - collector.go: a prometheus.Collector reading those counters at scrape time
//   - prometheus.go: the registry, HTTP request metrics and the /metrics handler
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
