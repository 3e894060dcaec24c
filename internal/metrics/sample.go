// Package metrics defines the sample vocabulary shared by every check,
// the aggregator and the statsd listener.
package metrics

import "time"

// MetricType identifies how the aggregator turns raw samples into series.
type MetricType int

const (
	// Gauge reports the last observed value.
	Gauge MetricType = iota
	// MonotonicCount reports positive deltas of an ever-increasing counter.
	MonotonicCount
	// Rate reports value delta per second between observations.
	Rate
)

func (t MetricType) String() string {
	switch t {
	case Gauge:
		return "gauge"
	case MonotonicCount:
		return "monotonic_count"
	case Rate:
		return "rate"
	default:
		return "unknown"
	}
}

// Sample is one measurement. Tags are "key:value" strings; duplicate
// keys are allowed and ordering carries no meaning.
type Sample struct {
	Name      string
	Value     float64
	Tags      []string
	Type      MetricType
	Timestamp time.Time
}

// ServiceCheckStatus is a discrete health verdict for a check's ability
// to reach and parse its target.
type ServiceCheckStatus int

const (
	ServiceCheckOK ServiceCheckStatus = iota
	ServiceCheckCritical
)

func (s ServiceCheckStatus) String() string {
	if s == ServiceCheckOK {
		return "ok"
	}
	return "critical"
}

// ServiceCheck is a health verdict sample, independent of metric output.
type ServiceCheck struct {
	Name      string
	Status    ServiceCheckStatus
	Tags      []string
	Message   string
	Timestamp time.Time
}
