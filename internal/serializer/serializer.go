// Package serializer bridges the aggregator and the forwarder: it turns
// flushed payloads and metadata into wire bodies and enqueues them.
package serializer

import (
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/telemetry-agent/internal/aggregator"
	"github.com/telemetry-agent/internal/forwarder"
	"github.com/telemetry-agent/internal/telemetry"
)

const (
	seriesPath   = "/api/v1/series"
	checkRunPath = "/api/v1/check_run"
	metadataPath = "/intake/metadata"
)

// Serializer owns no goroutine; both methods run on the caller's
// (scheduler's) goroutine and report failures as ordinary errors.
type Serializer struct {
	agg           *aggregator.Aggregator
	fwd           *forwarder.Forwarder
	flushedSeries prometheus.Counter
}

func New(agg *aggregator.Aggregator, fwd *forwarder.Forwarder, tf *telemetry.Factory) *Serializer {
	return &Serializer{
		agg:           agg,
		fwd:           fwd,
		flushedSeries: tf.NewFlushedSeriesTotal(),
	}
}

// SubmitMetadata marshals and enqueues a metadata payload.
func (s *Serializer) SubmitMetadata(payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return s.fwd.Submit(metadataPath, body)
}

// SerializeAndPush flushes the aggregator and enqueues the resulting
// series and service checks. Empty flushes submit nothing.
func (s *Serializer) SerializeAndPush() error {
	payload := s.agg.Flush()

	if len(payload.Series) > 0 {
		body, err := json.Marshal(struct {
			Series []aggregator.Series `json:"series"`
		}{payload.Series})
		if err != nil {
			return fmt.Errorf("marshal series: %w", err)
		}
		if err := s.fwd.Submit(seriesPath, body); err != nil {
			return err
		}
		s.flushedSeries.Add(float64(len(payload.Series)))
	}

	if len(payload.ServiceChecks) > 0 {
		body, err := json.Marshal(payload.ServiceChecks)
		if err != nil {
			return fmt.Errorf("marshal service checks: %w", err)
		}
		if err := s.fwd.Submit(checkRunPath, body); err != nil {
			return err
		}
	}
	return nil
}
