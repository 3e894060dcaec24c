// Package statsd implements the secondary high-volume metrics protocol:
// a UDP listener speaking the dogstatsd wire format, feeding its own
// aggregator, plus a reporter that periodically pushes the accumulated
// state through the serializer.
package statsd

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/telemetry-agent/internal/aggregator"
	"github.com/telemetry-agent/internal/telemetry"
	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/logger"
)

// Server listens for statsd packets and writes parsed samples into its
// aggregator. It is a lifecycle component; Join surfaces the listener's
// terminal error so the orchestrator can react to an unexpected death.
type Server struct {
	addr       string
	bufferSize int
	agg        *aggregator.Aggregator

	conn     *net.UDPConn
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu      sync.Mutex
	loopErr error

	packets *prometheus.CounterVec
}

func NewServer(cfg config.StatsdConfig, agg *aggregator.Aggregator, tf *telemetry.Factory) *Server {
	return &Server{
		addr:       net.JoinHostPort(cfg.BindHost, fmt.Sprintf("%d", cfg.Port)),
		bufferSize: cfg.PacketBuffer,
		agg:        agg,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		packets:    tf.NewStatsdPacketsTotal(),
	}
}

// Aggregator exposes the server's private aggregator for status wiring.
func (s *Server) Aggregator() *aggregator.Aggregator {
	return s.agg
}

// Start binds the UDP socket and launches the read loop. A bind failure
// is returned immediately: the orchestrator treats it as fatal.
func (s *Server) Start() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return fmt.Errorf("resolve statsd address %s: %w", s.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen statsd udp %s: %w", s.addr, err)
	}
	s.conn = conn
	logger.Info("statsd server listening", zap.String("addr", s.addr))
	go s.readLoop()
	return nil
}

// Stop requests termination by closing the socket; the read loop
// unblocks on the next read.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

// Join blocks until the read loop has exited and returns its terminal
// error, nil when the exit was a requested stop.
func (s *Server) Join() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopErr
}

func (s *Server) readLoop() {
	defer close(s.done)
	buf := make([]byte, s.bufferSize)
	for {
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.stopCh:
				logger.Info("statsd server stopped")
				return
			default:
			}
			s.mu.Lock()
			s.loopErr = fmt.Errorf("statsd read: %w", err)
			s.mu.Unlock()
			logger.Error("statsd server died", zap.Error(err))
			return
		}
		s.handlePacket(buf[:n])
	}
}

// handlePacket parses every newline-separated datagram line. Malformed
// lines are counted and dropped; they never affect their neighbors.
func (s *Server) handlePacket(packet []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(packet))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		sample, err := parseLine(line)
		if err != nil {
			if err == errUnsupportedType {
				s.packets.WithLabelValues("unsupported").Inc()
				logger.Debug("unsupported statsd metric type", zap.String("line", line))
			} else {
				s.packets.WithLabelValues("malformed").Inc()
				logger.Debug("malformed statsd line", zap.String("line", line), zap.Error(err))
			}
			continue
		}
		s.agg.AddSample(sample)
		s.packets.WithLabelValues("ok").Inc()
	}
}
