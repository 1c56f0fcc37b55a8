package app

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/stream-session/configs"
	"github.com/RyanBlaney/stream-session/internal/session"
)

// App wires configuration into a running session manager and optional
// metrics exposition
type App struct {
	Config   *configs.Config
	Manager  *session.Manager
	Registry *prometheus.Registry

	logger        logging.Logger
	metricsServer *http.Server
}

// New builds the application from loaded configuration
func New(config *configs.Config) (*App, error) {
	if err := configs.ValidateConfig(config); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	manager := session.NewManager(config.ToSessionConfig(), registry)

	return &App{
		Config:   config,
		Manager:  manager,
		Registry: registry,
		logger:   logging.WithFields(logging.Fields{"component": "app"}),
	}, nil
}

// StartMetrics exposes the registry over HTTP when metrics are enabled.
// It returns immediately; the server runs until Shutdown.
func (a *App) StartMetrics() {
	if !a.Config.Metrics.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	a.metricsServer = &http.Server{
		Addr:    a.Config.Metrics.Listen,
		Handler: mux,
	}

	go func() {
		a.logger.Info("metrics listener started", logging.Fields{
			"listen": a.Config.Metrics.Listen,
		})
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error(err, "metrics listener failed")
		}
	}()
}

// Shutdown stops all sessions and the metrics listener
func (a *App) Shutdown() {
	a.Manager.Shutdown()

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error(err, "metrics listener shutdown failed")
		}
	}
}
