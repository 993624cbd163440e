package service

import (
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// Metrics receives continuity counters. internal/telemetry/metric.Continuity implements it.
type Metrics interface {
	SessionStarted()
	SessionEnded(length time.Duration)
	SessionCrashed()
	SaveCreated(t domain.SaveType)
	SaveFailed(t domain.SaveType)
	RestoreCompleted(success bool, loadTime time.Duration)
	IntegrityFailure()
}

type nopMetrics struct{}

func (nopMetrics) SessionStarted() {}
func (nopMetrics) SessionEnded(time.Duration) {}
func (nopMetrics) SessionCrashed() {}
func (nopMetrics) SaveCreated(domain.SaveType) {}
func (nopMetrics) SaveFailed(domain.SaveType) {}
func (nopMetrics) RestoreCompleted(bool, time.Duration) {}
func (nopMetrics) IntegrityFailure() {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
