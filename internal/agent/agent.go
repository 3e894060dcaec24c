// Package agent wires every subsystem together and runs the process
// until a stop signal arrives: forwarder first, then the collection
// runner, the api server and the optional statsd pair, with ordered
// teardown on the way out.
package agent

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/telemetry-agent/internal/aggregator"
	"github.com/telemetry-agent/internal/api"
	"github.com/telemetry-agent/internal/collector"
	"github.com/telemetry-agent/internal/forwarder"
	"github.com/telemetry-agent/internal/lifecycle"
	"github.com/telemetry-agent/internal/metadata"
	"github.com/telemetry-agent/internal/scheduler"
	"github.com/telemetry-agent/internal/serializer"
	"github.com/telemetry-agent/internal/statsd"
	"github.com/telemetry-agent/internal/telemetry"
	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/hostname"
	"github.com/telemetry-agent/pkg/logger"
	"github.com/telemetry-agent/pkg/util"
	"github.com/telemetry-agent/pkg/version"

	// check registration
	_ "github.com/telemetry-agent/internal/checks/ibmwas"
)

// Run builds the full component graph from the loaded configuration and
// blocks until every component has drained. It returns an error only
// for conditions that make startup impossible; runtime collection
// failures are absorbed by the components themselves.
func Run(cfg *config.Config) error {
	util.PrintBanner("telemetry agent", "green")
	logger.Info("starting agent", zap.String("version", version.AgentVersion))

	host, err := hostname.Resolve(cfg.Agent.Hostname)
	if err != nil {
		return fmt.Errorf("resolve hostname: %w", err)
	}
	logger.Info("hostname resolved", zap.String("hostname", host))

	// the forwarder cannot operate without a destination; everything
	// downstream of it would silently drop, so refuse to start
	if cfg.Forwarder.Endpoint == "" {
		return errors.New("forwarder endpoint is required")
	}
	if cfg.Forwarder.APIKey == "" {
		return errors.New("forwarder api_key is required")
	}

	promReg := prometheus.NewRegistry()
	tf := telemetry.NewFactory(telemetry.NewPromRegistry(promReg))

	fwd, err := forwarder.New(cfg.Forwarder, tf)
	if err != nil {
		return fmt.Errorf("build forwarder: %w", err)
	}

	agg := aggregator.New(host)
	ser := serializer.New(agg, fwd, tf)

	col := collector.New(cfg, collector.Deps{Aggregator: agg, Hostname: host}, tf)
	col.LoadCheckClasses()
	col.InstantiateChecks()

	metadataFn := func(hostname, agentVersion string, startEvent bool) map[string]interface{} {
		payload := metadata.Payload(hostname, agentVersion, startEvent)
		if len(cfg.Agent.Tags) > 0 {
			payload["host_tags"] = cfg.Agent.Tags
		}
		return payload
	}

	runner := scheduler.NewRunner(
		col, ser, metadataFn,
		host, version.AgentVersion,
		cfg.Agent.MinCollectionInterval, cfg.Agent.HostMetadataInterval,
		tf,
	)

	// the statsd listener gets its own aggregator and serializer so the
	// high-volume stream never contends with check samples; both paths
	// share the single forwarder
	var (
		dsdServer   *statsd.Server
		dsdReporter *statsd.Reporter
	)
	if cfg.Statsd.Enabled {
		dsdAgg := aggregator.New(host)
		dsdServer = statsd.NewServer(cfg.Statsd, dsdAgg, tf)
		dsdReporter = statsd.NewReporter(serializer.New(dsdAgg, fwd, tf), cfg.Statsd.FlushInterval)
	}

	apiServer := api.NewServer(cfg.API, promReg, func() map[string]interface{} {
		doc := map[string]interface{}{
			"version":   version.AgentVersion,
			"hostname":  host,
			"agent":     agg.Stats(),
			"forwarder": fwd.Stats(),
			"checks":    col.Status(),
		}
		if dsdServer != nil {
			doc["statsd"] = dsdServer.Aggregator().Stats()
		}
		return doc
	})

	registry := lifecycle.NewRegistry()
	registry.Register("runner", runner)
	registry.Register("forwarder", fwd)
	registry.Register("api", apiServer)
	if cfg.Statsd.Enabled {
		registry.Register("statsd-reporter", dsdReporter)
		registry.Register("statsd-server", dsdServer)
	}
	registry.HandleSignal(syscall.SIGTERM, syscall.SIGINT)
	_ = registry.Start()

	started := make([]lifecycle.Component, 0, 5)
	startComponent := func(name string, c lifecycle.Component) error {
		if err := c.Start(); err != nil {
			logger.Error("component failed to start", zap.String("component", name), zap.Error(err))
			for _, s := range started {
				s.Stop()
			}
			for _, s := range started {
				_ = s.Join()
			}
			registry.Stop()
			_ = registry.Join()
			return fmt.Errorf("start %s: %w", name, err)
		}
		started = append(started, c)
		return nil
	}

	if err := startComponent("forwarder", fwd); err != nil {
		return err
	}
	if err := startComponent("runner", runner); err != nil {
		return err
	}
	if err := startComponent("api", apiServer); err != nil {
		return err
	}
	if cfg.Statsd.Enabled {
		if err := startComponent("statsd-server", dsdServer); err != nil {
			return err
		}
		if err := startComponent("statsd-reporter", dsdReporter); err != nil {
			return err
		}
	}

	logger.Info("agent started, waiting for stop signal")

	// drain order mirrors the data flow: producers first, the forwarder
	// after them so queued transactions still go out, control loop last
	if cfg.Statsd.Enabled {
		if err := dsdServer.Join(); err != nil {
			logger.Error("statsd server exited abnormally", zap.Error(err))
			dsdReporter.Stop()
		}
		_ = dsdReporter.Join()
	}
	_ = runner.Join()
	_ = fwd.Join()
	_ = apiServer.Join()
	registry.Stop()
	_ = registry.Join()

	logger.Info("agent stopped")
	return nil
}
