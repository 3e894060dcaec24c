package collector

import (
	"errors"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemetry-agent/internal/telemetry"
	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init(config.ZapLogConfig{
		Level: "error", Format: "console", Path: os.TempDir(), MaxSize: 1,
	})
	os.Exit(m.Run())
}

type scriptedCheck struct {
	name string
	run  func() error
}

func (s *scriptedCheck) Name() string { return s.name }
func (s *scriptedCheck) Run() error   { return s.run() }

func newCollector(cfg *config.Config) *Collector {
	tf := telemetry.NewFactory(telemetry.NewPromRegistry(prometheus.NewRegistry()))
	return New(cfg, Deps{Hostname: "host1"}, tf)
}

func TestLoadSkipsUnknownCheckNames(t *testing.T) {
	RegisterCheck("known_check", func(name string, _ config.Instance, _ Deps) (Check, error) {
		return &scriptedCheck{name: name, run: func() error { return nil }}, nil
	})

	cfg := config.NewDefaultConfig()
	cfg.Checks = map[string][]config.Instance{
		"known_check":   {{}},
		"unknown_check": {{}},
	}

	c := newCollector(cfg)
	c.LoadCheckClasses()
	c.InstantiateChecks()

	require.Len(t, c.Status(), 1)
	assert.Equal(t, "known_check", c.Status()[0].Name)
}

func TestInstantiateIsolatesConstructionFailures(t *testing.T) {
	RegisterCheck("fussy_check", func(name string, instance config.Instance, _ Deps) (Check, error) {
		if _, ok := instance["required_option"]; !ok {
			return nil, errors.New("required_option missing")
		}
		return &scriptedCheck{name: name, run: func() error { return nil }}, nil
	})

	cfg := config.NewDefaultConfig()
	cfg.Checks = map[string][]config.Instance{
		"fussy_check": {
			{},
			{"required_option": true},
		},
	}

	c := newCollector(cfg)
	c.LoadCheckClasses()
	c.InstantiateChecks()

	// only the valid instance survives
	assert.Len(t, c.Status(), 1)
}

func TestRunChecksIsolatesErrorsAndPanics(t *testing.T) {
	calls := map[string]int{}
	RegisterCheck("panicky_check", func(name string, _ config.Instance, _ Deps) (Check, error) {
		return &scriptedCheck{name: name, run: func() error {
			calls[name]++
			panic("boom")
		}}, nil
	})
	RegisterCheck("healthy_check", func(name string, _ config.Instance, _ Deps) (Check, error) {
		return &scriptedCheck{name: name, run: func() error {
			calls[name]++
			return nil
		}}, nil
	})

	cfg := config.NewDefaultConfig()
	cfg.Checks = map[string][]config.Instance{
		"panicky_check": {{}},
		"healthy_check": {{}},
	}

	c := newCollector(cfg)
	c.LoadCheckClasses()
	c.InstantiateChecks()
	c.RunChecks()
	c.RunChecks()

	assert.Equal(t, 2, calls["panicky_check"])
	assert.Equal(t, 2, calls["healthy_check"])

	for _, st := range c.Status() {
		assert.Equal(t, uint64(2), st.TotalRuns)
		if st.Name == "panicky_check" {
			assert.Equal(t, uint64(2), st.TotalErrors)
			assert.Contains(t, st.LastError, "panicked")
		} else {
			assert.Zero(t, st.TotalErrors)
		}
	}
}
