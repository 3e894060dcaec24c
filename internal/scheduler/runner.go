// Package scheduler drives the periodic collection loop: metadata on a
// slow cadence, check execution, then serialize-and-push, with every
// per-cycle failure contained so the loop itself never dies.
package scheduler

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/telemetry-agent/internal/telemetry"
	"github.com/telemetry-agent/pkg/logger"
)

// CheckRunner is the collector surface the runner needs. RunChecks
// isolates per-check failures internally.
type CheckRunner interface {
	RunChecks()
}

// Pusher is the serializer surface the runner needs. Both methods may
// fail; failures are ordinary per-cycle errors.
type Pusher interface {
	SubmitMetadata(payload map[string]interface{}) error
	SerializeAndPush() error
}

// MetadataFunc builds a metadata payload.
type MetadataFunc func(hostname, agentVersion string, startEvent bool) map[string]interface{}

// cycleRecord is the ephemeral trace of one iteration. Created at loop
// top, logged and discarded at loop bottom, never persisted.
type cycleRecord struct {
	start             time.Time
	metadataSubmitted bool
	startEvent        bool
	failed            bool
}

// Runner is the collection scheduler. Its effective period is the work
// time of a cycle plus the fixed collection interval, not a fixed-length
// wall-clock period: the delay is added on top of whatever the cycle
// consumed. That is a property of the design, not an accident.
type Runner struct {
	collector    CheckRunner
	serializer   Pusher
	metadataFn   MetadataFunc
	hostname     string
	agentVersion string

	collectionInterval time.Duration
	metadataInterval   time.Duration
	metaTS             time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
}

func NewRunner(
	collector CheckRunner,
	serializer Pusher,
	metadataFn MetadataFunc,
	hostname, agentVersion string,
	collectionInterval, metadataInterval time.Duration,
	tf *telemetry.Factory,
) *Runner {
	return &Runner{
		collector:          collector,
		serializer:         serializer,
		metadataFn:         metadataFn,
		hostname:           hostname,
		agentVersion:       agentVersion,
		collectionInterval: collectionInterval,
		metadataInterval:   metadataInterval,
		stopCh:             make(chan struct{}),
		done:               make(chan struct{}),
		cycles:             tf.NewCyclesTotal(),
		cycleDuration:      tf.NewCycleDurationSeconds(),
	}
}

// Start launches the collection loop.
func (r *Runner) Start() error {
	logger.Info("starting collection runner",
		zap.Duration("collection_interval", r.collectionInterval),
		zap.Duration("metadata_interval", r.metadataInterval))
	go r.loop()
	return nil
}

// Stop requests cooperative termination. The flag is observed at loop
// top and during the inter-cycle delay; an in-flight cycle finishes.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		logger.Info("stopping collection runner")
		close(r.stopCh)
	})
}

// Join blocks until the loop has fully exited.
func (r *Runner) Join() error {
	<-r.done
	logger.Info("collection runner done")
	return nil
}

func (r *Runner) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		r.cycle()

		// interruptible inter-cycle delay
		select {
		case <-r.stopCh:
			return
		case <-time.After(r.collectionInterval):
		}
	}
}

// cycle runs one iteration. A metadata failure abandons the rest of the
// cycle; a serialization failure only degrades this cycle's output.
// Either way the loop continues at the next tick.
func (r *Runner) cycle() {
	rec := cycleRecord{start: time.Now()}
	defer func() {
		r.cycleDuration.Observe(time.Since(rec.start).Seconds())
		if rec.failed {
			r.cycles.WithLabelValues("error").Inc()
		} else {
			r.cycles.WithLabelValues("ok").Inc()
		}
		logger.Debug("collection cycle finished",
			zap.Duration("duration", time.Since(rec.start)),
			zap.Bool("metadata_submitted", rec.metadataSubmitted),
			zap.Bool("start_event", rec.startEvent),
			zap.Bool("failed", rec.failed))
	}()

	if r.metaTS.IsZero() || time.Since(r.metaTS) >= r.metadataInterval {
		rec.startEvent = r.metaTS.IsZero()
		payload := r.metadataFn(r.hostname, r.agentVersion, rec.startEvent)
		if err := r.serializer.SubmitMetadata(payload); err != nil {
			rec.failed = true
			logger.Error("unexpected error in collection run", zap.Error(err))
			return
		}
		rec.metadataSubmitted = true
		r.metaTS = time.Now()
	}

	r.collector.RunChecks()

	if err := r.serializer.SerializeAndPush(); err != nil {
		rec.failed = true
		logger.Error("unexpected error in collection run", zap.Error(err))
	}
}
