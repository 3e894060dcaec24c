// Package telemetry creates the agent's self-observation metrics,
// exposed on the API server's /metrics endpoint.
package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Factory creates and registers the agent's internal instruments.
// Requesting an instrument that is already registered returns the
// existing collector, so subsystems sharing a concern (two serializers,
// for instance) share the counter too.
type Factory struct {
	reg Registers
}

func NewFactory(reg Registers) *Factory {
	return &Factory{reg: reg}
}

func (f *Factory) register(c prometheus.Collector) prometheus.Collector {
	if err := f.reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// NewCyclesTotal counts collection cycles, labelled by outcome
// (ok/error).
func (f *Factory) NewCyclesTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_collection_cycles_total",
		Help: "Collection cycles run, by outcome",
	}, []string{"outcome"})
	return f.register(c).(*prometheus.CounterVec)
}

// NewCycleDurationSeconds observes wall time of each collection cycle.
func (f *Factory) NewCycleDurationSeconds() prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_collection_cycle_duration_seconds",
		Help:    "Collection cycle duration",
		Buckets: prometheus.DefBuckets,
	})
	return f.register(h).(prometheus.Histogram)
}

// NewCheckRunsTotal counts check executions, labelled by check and
// outcome.
func (f *Factory) NewCheckRunsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_check_runs_total",
		Help: "Check executions, by check and outcome",
	}, []string{"check", "outcome"})
	return f.register(c).(*prometheus.CounterVec)
}

// NewTransactionsTotal counts forwarder transactions by outcome
// (success/error/dropped).
func (f *Factory) NewTransactionsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_forwarder_transactions_total",
		Help: "Forwarder transactions, by outcome",
	}, []string{"outcome"})
	return f.register(c).(*prometheus.CounterVec)
}

// NewFlushedSeriesTotal counts series flushed out of the aggregator.
func (f *Factory) NewFlushedSeriesTotal() prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agent_flushed_series_total",
		Help: "Series flushed from the aggregator",
	})
	return f.register(c).(prometheus.Counter)
}

// NewStatsdPacketsTotal counts statsd packets, labelled by result
// (ok/malformed/unsupported).
func (f *Factory) NewStatsdPacketsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_statsd_packets_total",
		Help: "Statsd packets received, by parse result",
	}, []string{"result"})
	return f.register(c).(*prometheus.CounterVec)
}
