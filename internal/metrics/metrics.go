// Package metrics serves prometheus collectors over HTTP.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	addr   string
	srv    *http.Server
	logger *zap.Logger
}

// New builds a server exposing gatherer on /metrics. A nil gatherer means
// the default prometheus registry.
func New(logger *zap.Logger, addr string, gatherer prometheus.Gatherer) (*Server, func(ctx context.Context) error) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	srv := &http.Server{
		Addr:         addr,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		Handler:      Handler(logger, gatherer),
	}

	server := &Server{
		addr:   addr,
		srv:    srv,
		logger: logger,
	}

	closer := func(ctx context.Context) error {
		logger.Info("Shutting down metrics server...")
		return srv.Shutdown(ctx)
	}

	return server, closer
}

func Handler(logger *zap.Logger, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(logger),
	}))
	return mux
}

func (m *Server) Start() {
	go func() {
		m.logger.Info("Metrics server started", zap.String("addr", m.addr))
		if err := m.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server error", zap.Error(err))
		}
	}()
}
