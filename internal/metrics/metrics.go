// Package metrics defines the prometheus instrumentation for the relay
// and a small HTTP server that exposes it next to a health endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Metrics struct {
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	AudioMessages prometheus.Counter
	AudioBytes    prometheus.Counter

	Commits         prometheus.Counter
	ResponsesOpened prometheus.Counter
	FlushesSkipped  prometheus.Counter

	TranscriptsInterim prometheus.Counter
	TranscriptsFinal   prometheus.Counter
	ProviderErrors     prometheus.Counter
}

// New registers all relay metrics on reg. Tests pass their own registry
// so repeated construction never collides.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voxrelay_sessions_active",
			Help: "Current number of connected client sessions",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxrelay_sessions_total",
			Help: "Total number of client sessions opened",
		}),
		AudioMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxrelay_audio_messages_total",
			Help: "Total number of encoded audio messages received from clients",
		}),
		AudioBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxrelay_audio_bytes_total",
			Help: "Total encoded audio bytes received from clients",
		}),
		Commits: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxrelay_commits_total",
			Help: "Total buffer commits issued upstream",
		}),
		ResponsesOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxrelay_responses_opened_total",
			Help: "Total transcription responses requested upstream",
		}),
		FlushesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxrelay_flushes_skipped_total",
			Help: "Flushes skipped because too little audio was buffered",
		}),
		TranscriptsInterim: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxrelay_transcripts_interim_total",
			Help: "Interim transcript fragments forwarded to clients",
		}),
		TranscriptsFinal: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxrelay_transcripts_final_total",
			Help: "Final transcript fragments forwarded to clients",
		}),
		ProviderErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxrelay_provider_errors_total",
			Help: "Explicit error events received from the provider",
		}),
	}
}

// Server exposes /metrics and /health on its own port, away from the
// websocket listener.
type Server struct {
	server *http.Server
	log    *zap.SugaredLogger
}

func NewServer(port int, log *zap.SugaredLogger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Run blocks serving until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	s.log.Infow("metrics server listening", "addr", s.server.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
