package cache

import (
	"context"
	"strings"
	"time"

	"github.com/angeloszaimis/wol-monitor/internal/status"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"

	DefaultOnlineTTL  = 15 * time.Second
	DefaultOfflineTTL = 3 * time.Second
	DefaultPrefix     = "ping_cache"
)

// StatusCache holds one status entry per host id.
type StatusCache interface {
	Update(ctx context.Context, hostID string, online bool, responseTime *float64, errMsg *string) error
	Get(ctx context.Context, hostID string) (status.Entry, bool, error)
	// GetMany returns only the ids that have a live entry.
	GetMany(ctx context.Context, hostIDs []string) (map[string]status.Entry, error)
	Clear(ctx context.Context) error
	// Backend names the store currently serving requests.
	Backend() string
}

// TTLPolicy picks an entry lifetime from its online flag.
type TTLPolicy struct {
	Online  time.Duration
	Offline time.Duration
}

func DefaultTTL() TTLPolicy {
	return TTLPolicy{Online: DefaultOnlineTTL, Offline: DefaultOfflineTTL}
}

func (p TTLPolicy) For(online bool) time.Duration {
	if online {
		return p.Online
	}
	return p.Offline
}

// Fresh reports whether e is still within its lifetime at now.
func (p TTLPolicy) Fresh(e status.Entry, now time.Time) bool {
	return e.Age(now) < p.For(e.IsOnline)
}

func normalizeID(hostID string) string {
	return strings.TrimSpace(hostID)
}
