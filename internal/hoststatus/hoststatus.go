// Package hoststatus answers status queries from the web layer. It only
// reads the cache and never probes: a host without a live entry is
// reported as unknown.
package hoststatus

import (
	"context"
	"log/slog"

	"github.com/angeloszaimis/wol-monitor/internal/cache"
	"github.com/angeloszaimis/wol-monitor/internal/status"
)

type Service struct {
	cache  cache.StatusCache
	logger *slog.Logger
}

func New(c cache.StatusCache, logger *slog.Logger) *Service {
	return &Service{cache: c, logger: logger}
}

func (s *Service) GetStatus(ctx context.Context, hostID string) status.View {
	entry, ok, err := s.cache.Get(ctx, hostID)
	if err != nil {
		s.logger.WarnContext(ctx, "status lookup failed",
			slog.String("host", hostID),
			slog.String("error", err.Error()))
		return status.UnknownView()
	}
	if !ok {
		return status.UnknownView()
	}
	return status.ViewOf(entry)
}

// GetStatuses returns one view per distinct id using a single cache read.
func (s *Service) GetStatuses(ctx context.Context, hostIDs []string) map[string]status.View {
	views := make(map[string]status.View, len(hostIDs))
	unique := make([]string, 0, len(hostIDs))
	for _, id := range hostIDs {
		if _, dup := views[id]; dup {
			continue
		}
		views[id] = status.UnknownView()
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return views
	}

	found, err := s.cache.GetMany(ctx, unique)
	if err != nil {
		s.logger.WarnContext(ctx, "bulk status lookup failed",
			slog.Int("hosts", len(unique)),
			slog.String("error", err.Error()))
		return views
	}

	for id, entry := range found {
		if _, requested := views[id]; requested {
			views[id] = status.ViewOf(entry)
		}
	}
	return views
}
