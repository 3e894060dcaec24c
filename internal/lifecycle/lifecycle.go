// Package lifecycle defines the start/stop/join contract every
// long-lived agent component honors, and the registry that turns OS
// signals into an ordered stop of all registered components.
package lifecycle

import (
	"os"
	"os/signal"
	"sync"

	"go.uber.org/zap"

	"github.com/telemetry-agent/pkg/logger"
)

// Component is a named long-lived unit. Stop must be idempotent and
// non-blocking: it only requests termination. Join blocks until the
// component's work loop has fully exited.
type Component interface {
	Start() error
	Stop()
	Join() error
}

// Registry owns the signal-handling control loop. On signal delivery it
// calls Stop on every registered component in registration order; the
// components' own goroutines observe the request at their next
// cancellation point.
type Registry struct {
	mu         sync.Mutex
	order      []string
	components map[string]Component

	sigCh    chan os.Signal
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		components: make(map[string]Component),
		sigCh:      make(chan os.Signal, 1),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Register associates a name with a component. Registering a duplicate
// name replaces the component but keeps its original stop position.
func (r *Registry) Register(name string, c Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.components[name]; !exists {
		r.order = append(r.order, name)
	}
	r.components[name] = c
	logger.Debug("registered lifecycle component", zap.String("component", name))
}

// HandleSignal subscribes the control loop to the given signals.
func (r *Registry) HandleSignal(sigs ...os.Signal) {
	signal.Notify(r.sigCh, sigs...)
}

// Start launches the control loop. Signal delivery is decoupled from
// the components' own goroutines: the loop only flips their stop flags.
func (r *Registry) Start() error {
	go func() {
		defer close(r.done)
		for {
			select {
			case sig := <-r.sigCh:
				logger.Info("received signal, stopping components", zap.String("signal", sig.String()))
				r.stopAll()
			case <-r.stopCh:
				return
			}
		}
	}()
	return nil
}

// Stop tears down the control loop itself. Registered components are
// not stopped: the orchestrator drains them first and stops the
// registry last.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		signal.Stop(r.sigCh)
		close(r.stopCh)
	})
}

// Join blocks until the control loop has exited.
func (r *Registry) Join() error {
	<-r.done
	return nil
}

func (r *Registry) stopAll() {
	r.mu.Lock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	components := make(map[string]Component, len(r.components))
	for k, v := range r.components {
		components[k] = v
	}
	r.mu.Unlock()

	for _, name := range names {
		logger.Info("stopping component", zap.String("component", name))
		components[name].Stop()
	}
}
