package collector

import (
	"sync"

	"github.com/telemetry-agent/internal/aggregator"
	"github.com/telemetry-agent/pkg/config"
)

// Check is one unit of monitoring work. Run executes a single
// collection cycle: fetch, parse, translate, emit into the aggregator.
// Run returns an error for observability only; the collector never
// propagates it past the batch boundary.
type Check interface {
	Name() string
	Run() error
}

// Deps is what the host hands every check at construction time.
type Deps struct {
	Aggregator *aggregator.Aggregator
	Hostname   string
}

// Factory builds a configured check instance. Configuration validation
// errors are construction-time errors, fatal to that instance only.
type Factory func(name string, instance config.Instance, deps Deps) (Check, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]Factory{}
)

// RegisterCheck adds a check kind to the registry. Last registration
// wins; checks register from init functions in their own packages.
func RegisterCheck(name string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[name] = f
}

func lookupFactory(name string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}
