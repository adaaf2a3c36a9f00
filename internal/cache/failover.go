package cache

import (
	"context"
	"log/slog"

	"github.com/angeloszaimis/wol-monitor/internal/circuitbreaker"
	"github.com/angeloszaimis/wol-monitor/internal/metrics"
	"github.com/angeloszaimis/wol-monitor/internal/status"
)

// FailoverCache serves every operation from Redis while the breaker allows
// it and from the local map otherwise. Redis errors are logged, counted
// against the breaker and never returned.
type FailoverCache struct {
	remote  *RemoteCache
	local   *LocalCache
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
	events  chan<- metrics.MetricEvent
}

type FailoverOption func(*FailoverCache)

// WithEvents reports each fallback on ch.
func WithEvents(ch chan<- metrics.MetricEvent) FailoverOption {
	return func(c *FailoverCache) {
		c.events = ch
	}
}

func NewFailoverCache(remote *RemoteCache, local *LocalCache, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger, opts ...FailoverOption) *FailoverCache {
	c := &FailoverCache{
		remote:  remote,
		local:   local,
		breaker: breaker,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *FailoverCache) Update(ctx context.Context, hostID string, online bool, responseTime *float64, errMsg *string) error {
	if c.breaker.Allow() {
		err := c.remote.Update(ctx, hostID, online, responseTime, errMsg)
		if err == nil {
			c.breaker.RecordSuccess()
			return nil
		}
		c.remoteFailed(ctx, "update", err)
	}
	return c.local.Update(ctx, hostID, online, responseTime, errMsg)
}

func (c *FailoverCache) Get(ctx context.Context, hostID string) (status.Entry, bool, error) {
	if c.breaker.Allow() {
		entry, ok, err := c.remote.Get(ctx, hostID)
		if err == nil {
			c.breaker.RecordSuccess()
			return entry, ok, nil
		}
		c.remoteFailed(ctx, "get", err)
	}
	return c.local.Get(ctx, hostID)
}

func (c *FailoverCache) GetMany(ctx context.Context, hostIDs []string) (map[string]status.Entry, error) {
	if c.breaker.Allow() {
		found, err := c.remote.GetMany(ctx, hostIDs)
		if err == nil {
			c.breaker.RecordSuccess()
			return found, nil
		}
		c.remoteFailed(ctx, "get_many", err)
	}
	return c.local.GetMany(ctx, hostIDs)
}

// Clear empties both stores so no stale local entry survives a later
// fallback.
func (c *FailoverCache) Clear(ctx context.Context) error {
	if c.breaker.Allow() {
		if err := c.remote.Clear(ctx); err != nil {
			c.remoteFailed(ctx, "clear", err)
		} else {
			c.breaker.RecordSuccess()
		}
	}
	return c.local.Clear(ctx)
}

func (c *FailoverCache) Backend() string {
	if c.breaker.State() == circuitbreaker.StateOpen {
		return BackendMemory
	}
	return BackendRedis
}

func (c *FailoverCache) Local() *LocalCache {
	return c.local
}

func (c *FailoverCache) remoteFailed(ctx context.Context, op string, err error) {
	if ctx.Err() != nil {
		return
	}
	c.breaker.RecordFailure()
	c.logger.WarnContext(ctx, "redis operation failed, using in-process cache",
		slog.String("operation", op),
		slog.String("error", err.Error()),
		slog.String("breaker", c.breaker.State().String()),
	)
	metrics.Emit(c.events, metrics.MetricEvent{
		Type:      metrics.EventCacheFallback,
		Operation: op,
	})
}
