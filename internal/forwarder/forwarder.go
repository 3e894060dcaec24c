// Package forwarder transmits serialized payloads to the remote
// collection endpoint. It is a lifecycle component: transactions are
// queued by callers and drained by a single worker goroutine, so a slow
// or unreachable endpoint never blocks the collection path.
package forwarder

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/telemetry-agent/internal/telemetry"
	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/logger"
)

const apiKeyHeader = "X-Api-Key"

type transaction struct {
	path string
	body []byte
}

// StatsSnapshot is the read-only view served by the status endpoint.
type StatsSnapshot struct {
	Submitted uint64 `json:"submitted"`
	Success   uint64 `json:"success"`
	Errors    uint64 `json:"errors"`
	Dropped   uint64 `json:"dropped"`
	Retried   uint64 `json:"retried"`
}

// Forwarder queues and transmits transactions.
type Forwarder struct {
	baseURL string
	apiKey  string
	retries int
	client  *http.Client

	queue    chan transaction
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu    sync.Mutex
	stats StatsSnapshot

	transactions *prometheus.CounterVec
}

// New builds a forwarder from config. The site option rewrites the
// endpoint's domain, keeping its first host label, so one binary can be
// pointed at regional intakes.
func New(cfg config.ForwarderConfig, tf *telemetry.Factory) (*Forwarder, error) {
	base, err := siteURL(cfg.Endpoint, cfg.Site)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Forwarder{
		baseURL: base,
		apiKey:  cfg.APIKey,
		retries: cfg.Retries,
		client: &http.Client{
			Timeout:   cfg.FlushTimeout,
			Transport: transport,
		},
		queue:        make(chan transaction, cfg.QueueSize),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
		transactions: tf.NewTransactionsTotal(),
	}, nil
}

// Submit enqueues one transaction. When the queue is full the
// transaction is dropped with a log line rather than blocking the
// collection path.
func (f *Forwarder) Submit(path string, body []byte) error {
	select {
	case f.queue <- transaction{path: path, body: body}:
		f.mu.Lock()
		f.stats.Submitted++
		f.mu.Unlock()
		return nil
	default:
		f.mu.Lock()
		f.stats.Dropped++
		f.mu.Unlock()
		f.transactions.WithLabelValues("dropped").Inc()
		logger.Warn("forwarder queue full, dropping transaction",
			zap.String("path", path), zap.Int("bytes", len(body)))
		return fmt.Errorf("forwarder queue full")
	}
}

// Start launches the worker goroutine.
func (f *Forwarder) Start() error {
	logger.Info("starting the forwarder", zap.String("endpoint", f.baseURL))
	go f.run()
	return nil
}

// Stop requests termination. Queued transactions not yet in flight are
// abandoned.
func (f *Forwarder) Stop() {
	f.stopOnce.Do(func() { close(f.stopCh) })
}

// Join blocks until the worker has exited.
func (f *Forwarder) Join() error {
	<-f.done
	return nil
}

// Stats returns a copy of the transaction counters.
func (f *Forwarder) Stats() StatsSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *Forwarder) run() {
	defer close(f.done)
	for {
		select {
		case tx := <-f.queue:
			f.process(tx)
		case <-f.stopCh:
			logger.Info("forwarder stopped")
			return
		}
	}
}

func (f *Forwarder) process(tx transaction) {
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			f.mu.Lock()
			f.stats.Retried++
			f.mu.Unlock()
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-f.stopCh:
				return
			}
		}
		if lastErr = f.post(tx); lastErr == nil {
			f.mu.Lock()
			f.stats.Success++
			f.mu.Unlock()
			f.transactions.WithLabelValues("success").Inc()
			return
		}
	}
	f.mu.Lock()
	f.stats.Errors++
	f.mu.Unlock()
	f.transactions.WithLabelValues("error").Inc()
	logger.Error("transaction failed after retries",
		zap.String("path", tx.path), zap.Int("retries", f.retries), zap.Error(lastErr))
}

func (f *Forwarder) post(tx transaction) error {
	req, err := http.NewRequest(http.MethodPost, f.baseURL+tx.path, bytes.NewReader(tx.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func siteURL(endpoint, site string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint url: %w", err)
	}
	if site != "" {
		labels := strings.SplitN(u.Host, ".", 2)
		u.Host = labels[0] + "." + site
	}
	return strings.TrimRight(u.String(), "/"), nil
}
