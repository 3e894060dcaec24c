// Package aggregator accumulates metric samples between collection
// cycles. It is the only mutable state shared across goroutines: checks
// and the statsd listener write into it while the API server reads
// status snapshots, so every public method takes a point-in-time copy
// under the lock and never holds it across serialization.
package aggregator

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/telemetry-agent/internal/metrics"
)

// Series is one flushed time series ready for the wire.
type Series struct {
	Metric    string   `json:"metric"`
	Value     float64  `json:"value"`
	Timestamp int64    `json:"timestamp"`
	Tags      []string `json:"tags,omitempty"`
	Type      string   `json:"type"`
	Host      string   `json:"host"`
}

// ServiceCheckPayload is one flushed service check verdict.
type ServiceCheckPayload struct {
	Check     string   `json:"check"`
	Status    string   `json:"status"`
	Tags      []string `json:"tags,omitempty"`
	Message   string   `json:"message,omitempty"`
	Timestamp int64    `json:"timestamp"`
	Host      string   `json:"host"`
}

// Payload is the result of one flush.
type Payload struct {
	Series        []Series              `json:"series"`
	ServiceChecks []ServiceCheckPayload `json:"service_checks,omitempty"`
}

// StatsSnapshot is the read-only view served by the status endpoint.
type StatsSnapshot struct {
	SamplesReceived       uint64 `json:"samples_received"`
	ServiceChecksReceived uint64 `json:"service_checks_received"`
	Flushes               uint64 `json:"flushes"`
	LastFlushSeries       int    `json:"last_flush_series"`
}

type rateState struct {
	value float64
	ts    time.Time
}

// Aggregator buffers samples until the scheduler triggers a flush.
// Rate and monotonic-count context state survives flushes so deltas can
// be computed across cycles.
type Aggregator struct {
	mu            sync.Mutex
	hostname      string
	samples       []metrics.Sample
	serviceChecks []metrics.ServiceCheck
	countState    map[string]float64
	rateState     map[string]rateState
	stats         StatsSnapshot
}

func New(hostname string) *Aggregator {
	return &Aggregator{
		hostname:   hostname,
		countState: make(map[string]float64),
		rateState:  make(map[string]rateState),
	}
}

// AddSample buffers one sample. A zero timestamp means now.
func (a *Aggregator) AddSample(s metrics.Sample) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples = append(a.samples, s)
	a.stats.SamplesReceived++
}

// AddServiceCheck buffers one service check verdict.
func (a *Aggregator) AddServiceCheck(sc metrics.ServiceCheck) {
	if sc.Timestamp.IsZero() {
		sc.Timestamp = time.Now()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.serviceChecks = append(a.serviceChecks, sc)
	a.stats.ServiceChecksReceived++
}

// Flush drains the buffers and turns them into wire series. Gauges keep
// their last value per context, monotonic counts emit the sum of
// positive deltas, rates emit delta per second. The first observation
// of a count or rate context only primes its state and emits nothing.
func (a *Aggregator) Flush() Payload {
	a.mu.Lock()
	samples := a.samples
	checks := a.serviceChecks
	a.samples = nil
	a.serviceChecks = nil
	a.mu.Unlock()

	var payload Payload
	gauges := make(map[string]*Series)
	counts := make(map[string]*Series)
	var order []string

	for _, s := range samples {
		key := contextKey(s.Name, s.Tags)
		switch s.Type {
		case metrics.Gauge:
			if g, ok := gauges[key]; ok {
				g.Value = s.Value
				g.Timestamp = s.Timestamp.Unix()
				continue
			}
			g := a.newSeries(s)
			gauges[key] = g
			order = append(order, "g|"+key)

		case metrics.MonotonicCount:
			a.mu.Lock()
			prev, seen := a.countState[key]
			a.countState[key] = s.Value
			a.mu.Unlock()
			if !seen {
				continue
			}
			delta := s.Value - prev
			if delta < 0 {
				// counter reset on the monitored side, re-prime
				continue
			}
			if c, ok := counts[key]; ok {
				c.Value += delta
				c.Timestamp = s.Timestamp.Unix()
				continue
			}
			c := a.newSeries(s)
			c.Value = delta
			counts[key] = c
			order = append(order, "c|"+key)

		case metrics.Rate:
			a.mu.Lock()
			prev, seen := a.rateState[key]
			a.rateState[key] = rateState{value: s.Value, ts: s.Timestamp}
			a.mu.Unlock()
			if !seen {
				continue
			}
			dt := s.Timestamp.Sub(prev.ts).Seconds()
			if dt <= 0 {
				continue
			}
			r := a.newSeries(s)
			r.Value = (s.Value - prev.value) / dt
			if g, ok := gauges[key+"|rate"]; ok {
				*g = *r
				continue
			}
			gauges[key+"|rate"] = r
			order = append(order, "g|"+key+"|rate")
		}
	}

	for _, k := range order {
		switch k[0] {
		case 'g':
			payload.Series = append(payload.Series, *gauges[k[2:]])
		case 'c':
			payload.Series = append(payload.Series, *counts[k[2:]])
		}
	}

	for _, sc := range checks {
		payload.ServiceChecks = append(payload.ServiceChecks, ServiceCheckPayload{
			Check:     sc.Name,
			Status:    sc.Status.String(),
			Tags:      sc.Tags,
			Message:   sc.Message,
			Timestamp: sc.Timestamp.Unix(),
			Host:      a.hostname,
		})
	}

	a.mu.Lock()
	a.stats.Flushes++
	a.stats.LastFlushSeries = len(payload.Series)
	a.mu.Unlock()

	return payload
}

// Stats returns a copy of the aggregator counters.
func (a *Aggregator) Stats() StatsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func (a *Aggregator) newSeries(s metrics.Sample) *Series {
	tags := make([]string, len(s.Tags))
	copy(tags, s.Tags)
	return &Series{
		Metric:    s.Name,
		Value:     s.Value,
		Timestamp: s.Timestamp.Unix(),
		Tags:      tags,
		Type:      s.Type.String(),
		Host:      a.hostname,
	}
}

func contextKey(name string, tags []string) string {
	sorted := make([]string, len(tags))
	copy(sorted, tags)
	sort.Strings(sorted)
	return name + "|" + strings.Join(sorted, ",")
}
