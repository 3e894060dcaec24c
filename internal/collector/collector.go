// Package collector loads, instantiates and runs the configured checks,
// isolating each check's failures from its siblings and from the
// scheduler.
package collector

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/telemetry-agent/internal/telemetry"
	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/logger"
)

// CheckStatus is the per-instance view served by the status endpoint.
type CheckStatus struct {
	Name        string    `json:"name"`
	TotalRuns   uint64    `json:"total_runs"`
	TotalErrors uint64    `json:"total_errors"`
	LastError   string    `json:"last_error,omitempty"`
	LastRun     time.Time `json:"last_run,omitempty"`
}

// Collector owns the configured check instances.
type Collector struct {
	cfg  *config.Config
	deps Deps

	loaded map[string]Factory
	checks []Check

	mu       sync.Mutex
	statuses []*CheckStatus

	checkRuns *prometheus.CounterVec
}

func New(cfg *config.Config, deps Deps, tf *telemetry.Factory) *Collector {
	return &Collector{
		cfg:       cfg,
		deps:      deps,
		loaded:    map[string]Factory{},
		checkRuns: tf.NewCheckRunsTotal(),
	}
}

// LoadCheckClasses resolves a factory for every configured check name.
// Unknown names are logged and skipped; a typo in one check's name must
// not take the agent down.
func (c *Collector) LoadCheckClasses() {
	for name := range c.cfg.Checks {
		f, ok := lookupFactory(name)
		if !ok {
			logger.Warn("no check registered under configured name, skipping",
				zap.String("check", name))
			continue
		}
		c.loaded[name] = f
		logger.Debug("loaded check class", zap.String("check", name))
	}
}

// InstantiateChecks constructs one check per configured instance.
// A construction error (bad options, failed validation) is fatal to
// that instance only.
func (c *Collector) InstantiateChecks() {
	for name, f := range c.loaded {
		for i, instance := range c.cfg.Checks[name] {
			check, err := f(name, instance, c.deps)
			if err != nil {
				logger.Error("failed to instantiate check instance",
					zap.String("check", name), zap.Int("instance", i), zap.Error(err))
				continue
			}
			c.checks = append(c.checks, check)
			c.statuses = append(c.statuses, &CheckStatus{Name: check.Name()})
			logger.Info("instantiated check", zap.String("check", check.Name()), zap.Int("instance", i))
		}
	}
}

// RunChecks executes every instance once. Panics and errors are
// captured per check: a failing check degrades its own output and
// nothing else.
func (c *Collector) RunChecks() {
	for i, check := range c.checks {
		err := c.runOne(check)

		c.mu.Lock()
		st := c.statuses[i]
		st.TotalRuns++
		st.LastRun = time.Now()
		if err != nil {
			st.TotalErrors++
			st.LastError = err.Error()
		} else {
			st.LastError = ""
		}
		c.mu.Unlock()

		if err != nil {
			c.checkRuns.WithLabelValues(check.Name(), "error").Inc()
			logger.Error("check run failed", zap.String("check", check.Name()), zap.Error(err))
		} else {
			c.checkRuns.WithLabelValues(check.Name(), "ok").Inc()
		}
	}
}

func (c *Collector) runOne(check Check) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check panicked: %v", r)
		}
	}()
	return check.Run()
}

// Status returns a snapshot of every instance's run bookkeeping.
func (c *Collector) Status() []CheckStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CheckStatus, len(c.statuses))
	for i, st := range c.statuses {
		out[i] = *st
	}
	return out
}
