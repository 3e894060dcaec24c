package statsd

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/telemetry-agent/pkg/logger"
)

// Pusher is the serializer surface the reporter drives.
type Pusher interface {
	SerializeAndPush() error
}

// Reporter flushes the statsd aggregator on a fixed cadence. Push
// failures are logged and the cadence continues, the same best-effort
// contract as the collection runner.
type Reporter struct {
	pusher   Pusher
	interval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewReporter(pusher Pusher, interval time.Duration) *Reporter {
	return &Reporter{
		pusher:   pusher,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (r *Reporter) Start() error {
	logger.Info("starting statsd reporter", zap.Duration("flush_interval", r.interval))
	go r.loop()
	return nil
}

func (r *Reporter) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Reporter) Join() error {
	<-r.done
	return nil
}

func (r *Reporter) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.pusher.SerializeAndPush(); err != nil {
				logger.Error("statsd flush failed", zap.Error(err))
			}
		case <-r.stopCh:
			// final drain so samples received since the last tick are
			// not lost on shutdown
			if err := r.pusher.SerializeAndPush(); err != nil {
				logger.Error("statsd final flush failed", zap.Error(err))
			}
			logger.Info("statsd reporter stopped")
			return
		}
	}
}
