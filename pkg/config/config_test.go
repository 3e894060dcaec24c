package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Log.Path = t.TempDir()
	assert.NoError(t, cfg.Validate())
}

func TestAgentConfigValidation(t *testing.T) {
	a := AgentConfig{MinCollectionInterval: 500 * time.Millisecond, HostMetadataInterval: time.Hour}
	assert.Error(t, a.Validate(), "interval below 1s rejected")

	a = AgentConfig{MinCollectionInterval: 2 * time.Hour, HostMetadataInterval: 4 * time.Hour}
	assert.Error(t, a.Validate(), "interval above 1h rejected")

	a = AgentConfig{MinCollectionInterval: time.Minute, HostMetadataInterval: time.Second}
	assert.Error(t, a.Validate(), "metadata cadence shorter than collection rejected")

	a = AgentConfig{MinCollectionInterval: 15 * time.Second, HostMetadataInterval: 4 * time.Hour, Tags: []string{"env:prod"}}
	assert.NoError(t, a.Validate())

	a.Tags = append(a.Tags, "  ")
	assert.Error(t, a.Validate(), "blank tag rejected")
}

func TestForwarderConfigValidation(t *testing.T) {
	f := ForwarderConfig{}
	assert.NoError(t, f.Validate(), "empty endpoint allowed until run time")

	f.Endpoint = "://bad"
	assert.Error(t, f.Validate())

	f.Endpoint = "https://intake.example.com"
	f.Proxy = "http://proxy.internal:3128"
	assert.NoError(t, f.Validate())
}

func TestStatsdConfigValidationSkippedWhenDisabled(t *testing.T) {
	s := StatsdConfig{Enabled: false}
	assert.NoError(t, s.Validate())

	s = StatsdConfig{Enabled: true, BindHost: "localhost", Port: 8125, FlushInterval: 10 * time.Millisecond}
	assert.Error(t, s.Validate(), "sub-second flush rejected when enabled")
}

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test", Run: func(cmd *cobra.Command, args []string) {}}
	defaults := NewDefaultConfig()
	cmd.Flags().String("config", "", "")
	cmd.Flags().Duration("agent.min_collection_interval", defaults.Agent.MinCollectionInterval, "")
	cmd.Flags().String("forwarder.endpoint", defaults.Forwarder.Endpoint, "")
	cmd.Flags().String("log.path", defaults.Log.Path, "")
	return cmd
}

func TestLoadConfigWithCliDefaults(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("log.path", t.TempDir()))

	cfg, err := LoadConfigWithCli(cmd)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Agent.MinCollectionInterval)
	assert.Equal(t, 4*time.Hour, cfg.Agent.HostMetadataInterval)
	assert.Equal(t, "localhost", cfg.API.BindHost)
	assert.Equal(t, 5001, cfg.API.Port)
	assert.False(t, cfg.Statsd.Enabled)
}

func TestLoadConfigWithCliFileAndFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "agent.yaml")
	yaml := "agent:\n  min_collection_interval: 30s\nforwarder:\n  endpoint: https://intake.example.com\nlog:\n  path: " + dir + "\n"
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0644))

	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("config", file))

	cfg, err := LoadConfigWithCli(cmd)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Agent.MinCollectionInterval, "file overrides default")
	assert.Equal(t, "https://intake.example.com", cfg.Forwarder.Endpoint)

	// an explicitly set flag wins over the file
	cmd = newTestCommand()
	require.NoError(t, cmd.Flags().Set("config", file))
	require.NoError(t, cmd.Flags().Set("agent.min_collection_interval", "45s"))

	cfg, err = LoadConfigWithCli(cmd)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Agent.MinCollectionInterval)
}

func TestLoadConfigWithCliRejectsInvalid(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("log.path", t.TempDir()))
	require.NoError(t, cmd.Flags().Set("agent.min_collection_interval", "100ms"))

	_, err := LoadConfigWithCli(cmd)
	assert.Error(t, err)
}

func TestLoadConfigWithCliMissingFile(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("config", "/nonexistent/agent.yaml"))

	_, err := LoadConfigWithCli(cmd)
	assert.Error(t, err)
}
