package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/wol-monitor/internal/cache"
	"github.com/angeloszaimis/wol-monitor/internal/hoststatus"
	"github.com/angeloszaimis/wol-monitor/internal/registry"
	"github.com/angeloszaimis/wol-monitor/internal/status"
	"github.com/angeloszaimis/wol-monitor/internal/wol"
)

const DefaultStreamInterval = 5 * time.Second

// Waker sends a wake request to a MAC address.
type Waker interface {
	Send(ctx context.Context, mac string) error
}

type StatusHandler struct {
	logger         *slog.Logger
	statuses       *hoststatus.Service
	registry       registry.Registry
	cache          cache.StatusCache
	waker          Waker
	limiter        *wol.Limiter
	streamInterval time.Duration
}

type Option func(*StatusHandler)

func WithStreamInterval(d time.Duration) Option {
	return func(h *StatusHandler) {
		if d > 0 {
			h.streamInterval = d
		}
	}
}

// WithLimiter caps wake requests per host.
func WithLimiter(l *wol.Limiter) Option {
	return func(h *StatusHandler) {
		h.limiter = l
	}
}

func NewStatusHandler(logger *slog.Logger, statuses *hoststatus.Service, reg registry.Registry, c cache.StatusCache, waker Waker, opts ...Option) *StatusHandler {
	h := &StatusHandler{
		logger:         logger,
		statuses:       statuses,
		registry:       reg,
		cache:          c,
		waker:          waker,
		streamInterval: DefaultStreamInterval,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type errorResponse struct {
	Error string `json:"error"`
}

type wakeResponse struct {
	Host   string `json:"host"`
	MAC    string `json:"mac"`
	Status string `json:"status"`
}

// GetStatus serves GET /api/hosts/{id}/status.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "host id is required"})
		return
	}
	writeJSON(w, http.StatusOK, h.statuses.GetStatus(r.Context(), id))
}

// GetStatuses serves GET /api/hosts/status?ids=a,b. Without ids every
// registered host is reported.
func (h *StatusHandler) GetStatuses(w http.ResponseWriter, r *http.Request) {
	views, err := h.snapshot(r.Context(), r.URL.Query().Get("ids"))
	if err != nil {
		h.logger.Warn("failed to list hosts", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "host registry unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// ClearCache serves DELETE /api/cache.
func (h *StatusHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(r.Context()); err != nil {
		h.logger.Warn("failed to clear status cache", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "status cache unavailable"})
		return
	}
	h.logger.Info("status cache cleared", slog.String("backend", h.cache.Backend()))
	w.WriteHeader(http.StatusNoContent)
}

// Wake serves POST /api/hosts/{id}/wake.
func (h *StatusHandler) Wake(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))

	host, found, err := registry.Lookup(r.Context(), h.registry, id)
	if err != nil {
		h.logger.Warn("failed to look up host", slog.String("host", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "host registry unavailable"})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown host"})
		return
	}
	if strings.TrimSpace(host.MAC) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "host has no MAC address"})
		return
	}
	// Malformed MACs are rejected before they count against the limiter.
	if _, err := wol.ParseMAC(host.MAC); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if h.limiter != nil && !h.limiter.Allow(host.ID) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many wake attempts, try again later"})
		return
	}

	if err := h.waker.Send(r.Context(), host.MAC); err != nil {
		if errors.Is(err, wol.ErrInvalidMAC) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		h.logger.Error("failed to send magic packet",
			slog.String("host", host.ID),
			slog.String("mac", host.MAC),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "failed to send magic packet"})
		return
	}

	h.logger.Info("magic packet sent", slog.String("host", host.ID), slog.String("mac", host.MAC))
	writeJSON(w, http.StatusAccepted, wakeResponse{Host: host.ID, MAC: host.MAC, Status: "sent"})
}

// Health serves GET /health.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *StatusHandler) snapshot(ctx context.Context, rawIDs string) (map[string]status.View, error) {
	ids := parseIDs(rawIDs)
	if len(ids) == 0 {
		hosts, err := h.registry.Hosts(ctx)
		if err != nil {
			return nil, err
		}
		ids = registry.IDs(hosts)
	}
	return h.statuses.GetStatuses(ctx, ids), nil
}

func parseIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
