package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registers isolates the prometheus registry behind an interface so
// subsystems never depend on the concrete implementation and tests can
// substitute their own.
type Registers interface {
	prometheus.Registerer
	Register(collector prometheus.Collector) error
}

type promRegistry struct {
	registry *prometheus.Registry
}

// NewPromRegistry wraps an official prometheus registry.
func NewPromRegistry(registry *prometheus.Registry) Registers {
	return &promRegistry{registry: registry}
}

func (p *promRegistry) MustRegister(collectors ...prometheus.Collector) {
	for _, c := range collectors {
		if err := p.registry.Register(c); err != nil {
			panic(err)
		}
	}
}

func (p *promRegistry) Unregister(collector prometheus.Collector) bool {
	return p.registry.Unregister(collector)
}

func (p *promRegistry) Register(collector prometheus.Collector) error {
	return p.registry.Register(collector)
}
