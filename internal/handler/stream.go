package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angeloszaimis/wol-monitor/internal/status"
)

const streamWriteTimeout = 5 * time.Second

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

type streamMessage struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Hosts       map[string]status.View `json:"hosts"`
}

// StreamStatuses serves GET /api/hosts/status/ws. The first snapshot is
// pushed on connect, then one per stream interval until the client goes
// away.
func (h *StatusHandler) StreamStatuses(w http.ResponseWriter, r *http.Request) {
	rawIDs := r.URL.Query().Get("ids")
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	push := func() error {
		views, err := h.snapshot(ctx, rawIDs)
		if err != nil {
			h.logger.Warn("failed to list hosts for stream", slog.String("error", err.Error()))
			return nil
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(streamMessage{GeneratedAt: time.Now().UTC(), Hosts: views})
	}

	if err := push(); err != nil {
		return
	}

	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ticker.C:
			if err := push(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
