package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FranksOps/reelcheck/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelcheck_checks_total",
			Help: "Total number of URLs checked, by outcome and detection method",
		},
		[]string{"status", "method", "has_video"},
	)

	CheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reelcheck_check_duration_seconds",
			Help:    "Wall time of one fetch and classify step in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
	)

	RelayAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelcheck_relay_attempts_total",
			Help: "Relay attempts by endpoint and outcome (ok, timeout, http_error, network)",
		},
		[]string{"relay", "outcome"},
	)

	FetchedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelcheck_fetched_bytes_total",
			Help: "Total page bytes received through each relay",
		},
		[]string{"relay"},
	)
)

// RecordCheck updates the check counters for one finished record.
func RecordCheck(rec *storage.CheckRecord, took time.Duration) {
	if rec == nil {
		return
	}

	hasVideo := "false"
	if rec.HasVideo() {
		hasVideo = "true"
	}
	method := string(rec.Detection.Method)
	if rec.Detection.Method.IsStructured() {
		// keep label cardinality bounded; the content type is free text
		method = "structured-data"
	}

	ChecksTotal.WithLabelValues(string(rec.Status), method, hasVideo).Inc()
	CheckDuration.Observe(took.Seconds())
}

// RecordRelayAttempt counts one attempt through a relay.
func RecordRelayAttempt(relay, outcome string, bytes int) {
	RelayAttempts.WithLabelValues(relay, outcome).Inc()
	if bytes > 0 {
		FetchedBytes.WithLabelValues(relay).Add(float64(bytes))
	}
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", srv.Addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
