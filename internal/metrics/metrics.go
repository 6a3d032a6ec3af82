package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebSocket Metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections_active",
		Help: "The current number of active WebSocket connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})
	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_received_total",
		Help: "The total number of intents received from clients.",
	})
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "The total number of events delivered to clients.",
	})

	// Auth Metrics
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_auth_failures_total",
		Help: "The total number of failed socket handshakes.",
	}, []string{"reason"})
)

// Serve starts the HTTP listener for Prometheus scrapes.
func Serve(logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("Starting metrics server", slog.String("addr", addr))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("Metrics server failed", slog.Any("error", err))
		}
	}()
}
