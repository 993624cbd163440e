package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "waypoint"

// Collector exposes a Continuity and the live session count to Prometheus.
// Values are read at scrape time.
type Collector struct {
	continuity     *Continuity
	activeSessions func() int

	sessionsStarted *prometheus.Desc
	sessionsEnded   *prometheus.Desc
	sessionsCrashed *prometheus.Desc
	active          *prometheus.Desc
	saves           *prometheus.Desc
	saveFailures    *prometheus.Desc
	restores        *prometheus.Desc
	restoreLoad     *prometheus.Desc
	sessionLength   *prometheus.Desc
	integrity       *prometheus.Desc
}

// NewCollector creates a collector. activeSessions may be nil.
func NewCollector(c *Continuity, activeSessions func() int) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		continuity:      c,
		activeSessions:  activeSessions,
		sessionsStarted: desc("sessions_started_total", "Sessions started"),
		sessionsEnded:   desc("sessions_ended_total", "Sessions ended normally"),
		sessionsCrashed: desc("sessions_crashed_total", "Sessions marked crashed"),
		active:          desc("sessions_active", "Sessions currently active or paused"),
		saves:           desc("save_points_created_total", "Save points created", "type"),
		saveFailures:    desc("save_point_failures_total", "Save point writes that failed", "type"),
		restores:        desc("restores_total", "Restores completed", "result"),
		restoreLoad:     desc("restore_load_average_milliseconds", "Average restore load time"),
		sessionLength:   desc("session_length_average_milliseconds", "Average length of ended sessions"),
		integrity:       desc("integrity_failures_total", "Save points that failed integrity verification"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.sessionsStarted, c.sessionsEnded, c.sessionsCrashed, c.active,
		c.saves, c.saveFailures, c.restores, c.restoreLoad, c.sessionLength, c.integrity,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.continuity.Snapshot()

	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	counter(c.sessionsStarted, s.SessionsStarted)
	counter(c.sessionsEnded, s.SessionsEnded)
	counter(c.sessionsCrashed, s.SessionsCrashed)
	for _, t := range SaveTypes {
		counter(c.saves, s.Saves[t], string(t))
		counter(c.saveFailures, s.SaveFailures[t], string(t))
	}
	counter(c.restores, s.RestoresSucceeded, "success")
	counter(c.restores, s.RestoresFailed, "failure")
	counter(c.integrity, s.IntegrityFailures)

	ch <- prometheus.MustNewConstMetric(c.restoreLoad, prometheus.GaugeValue, s.AverageRestoreLoadMs)
	ch <- prometheus.MustNewConstMetric(c.sessionLength, prometheus.GaugeValue, s.AverageSessionLengthMs)
	if c.activeSessions != nil {
		ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(c.activeSessions()))
	}
}
