package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init(config.ZapLogConfig{
		Level: "error", Format: "console", Path: os.TempDir(), MaxSize: 1,
	})
	os.Exit(m.Run())
}

func startTestServer(t *testing.T, status StatusProvider) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	srv := NewServer(config.APIConfig{
		BindHost: "127.0.0.1", Port: 0,
		ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second,
	}, reg, status)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		srv.Stop()
		_ = srv.Join()
	})
	return srv
}

func TestStatusEndpoint(t *testing.T) {
	srv := startTestServer(t, func() map[string]interface{} {
		return map[string]interface{}{
			"agent":     map[string]interface{}{"samples_received": 7},
			"forwarder": map[string]interface{}{"success": 3},
		}
	})

	resp, err := http.Get(fmt.Sprintf("http://%s/status", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var doc map[string]map[string]float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, 7.0, doc["agent"]["samples_received"])
	assert.Equal(t, 3.0, doc["forwarder"]["success"])
}

func TestHealthEndpoint(t *testing.T) {
	srv := startTestServer(t, func() map[string]interface{} { return nil })

	resp, err := http.Get(fmt.Sprintf("http://%s/health", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := startTestServer(t, func() map[string]interface{} { return nil })

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "test_counter_total 1"))
}

func TestStopIsIdempotentAndJoinReturns(t *testing.T) {
	srv := startTestServer(t, func() map[string]interface{} { return nil })

	srv.Stop()
	srv.Stop()
	assert.NoError(t, srv.Join())
}
