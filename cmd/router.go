package main

import (
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/wol-monitor/internal/handler"
	"github.com/angeloszaimis/wol-monitor/internal/metrics"
)

func setupRouter(statusHandler *handler.StatusHandler, metricsCollector *metrics.Collector, log *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/hosts/{id}/status", statusHandler.GetStatus)
	mux.HandleFunc("GET /api/hosts/status", statusHandler.GetStatuses)
	mux.HandleFunc("GET /api/hosts/status/ws", statusHandler.StreamStatuses)
	mux.HandleFunc("POST /api/hosts/{id}/wake", statusHandler.Wake)
	mux.HandleFunc("DELETE /api/cache", statusHandler.ClearCache)
	mux.HandleFunc("GET /metrics", metricsCollector.Handler())
	mux.HandleFunc("GET /health", handler.Health)

	return handler.Logging(log, mux)
}
