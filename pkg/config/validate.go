package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Validate checks collection cadence bounds and agent tag shape.
func (a *AgentConfig) Validate() error {
	if a.MinCollectionInterval < time.Second || a.MinCollectionInterval > time.Hour {
		return fmt.Errorf("agent.min_collection_interval must be between 1s and 1h, got %s", a.MinCollectionInterval)
	}
	if a.HostMetadataInterval < a.MinCollectionInterval {
		return fmt.Errorf("agent.host_metadata_interval (%s) must not be shorter than agent.min_collection_interval (%s)",
			a.HostMetadataInterval, a.MinCollectionInterval)
	}
	for _, tag := range a.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("agent.tags cannot contain empty string")
		}
	}
	return nil
}

// Validate checks the forwarder targets. Endpoint and api_key being
// empty is allowed here: it is fatal only when the agent actually runs,
// which the orchestrator enforces, so the status command stays usable.
func (f *ForwarderConfig) Validate() error {
	if f.Endpoint != "" {
		u, err := url.Parse(f.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("forwarder.endpoint is not a valid URL: %q", f.Endpoint)
		}
	}
	if f.Proxy != "" {
		if _, err := url.Parse(f.Proxy); err != nil {
			return fmt.Errorf("forwarder.proxy is not a valid URL: %q: %w", f.Proxy, err)
		}
	}
	return nil
}

// Validate checks the API bind address resolves.
func (a *APIConfig) Validate() error {
	addr := net.JoinHostPort(a.BindHost, fmt.Sprintf("%d", a.Port))
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return fmt.Errorf("api bind address invalid (expected host:port), got %s: %w", addr, err)
	}
	return nil
}

// Validate checks the statsd bind address; skipped when disabled.
func (s *StatsdConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	addr := net.JoinHostPort(s.BindHost, fmt.Sprintf("%d", s.Port))
	if _, err := net.ResolveUDPAddr("udp", addr); err != nil {
		return fmt.Errorf("statsd bind address invalid (expected host:port), got %s: %w", addr, err)
	}
	if s.FlushInterval < time.Second {
		return fmt.Errorf("statsd.flush_interval must be at least 1s, got %s", s.FlushInterval)
	}
	return nil
}

// Validate checks the log destination is a creatable, writable directory.
func (l *ZapLogConfig) Validate() error {
	abs, err := filepath.Abs(l.Path)
	if err != nil {
		return fmt.Errorf("log.path failed to resolve %q: %w", l.Path, err)
	}
	if err := ensureDir(abs); err != nil {
		return fmt.Errorf("log.path directory not usable %q: %w", l.Path, err)
	}
	return nil
}

func ensureDir(path string) error {
	stat, err := os.Stat(path)
	if os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}
	if err != nil {
		return err
	}
	if !stat.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
