package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/wol-monitor/internal/circuitbreaker"
)

const defaultPingTimeout = 2 * time.Second

type Options struct {
	Prefix           string
	TTL              TTLPolicy
	FailureThreshold int
	ResetTimeout     time.Duration
	PingTimeout      time.Duration
}

// NewClient builds a client from a redis://, rediss:// or unix:// URL.
// No connection is made until the first command.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse cache url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// New returns a FailoverCache over client, or a LocalCache alone when
// client is nil or does not answer PING.
func New(ctx context.Context, client *redis.Client, opts Options, logger *slog.Logger, fopts ...FailoverOption) StatusCache {
	local := NewLocalCache(opts.TTL)
	if client == nil {
		logger.Warn("no redis client configured, using in-process cache")
		return local
	}

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	remote := NewRemoteCache(client, opts.Prefix, opts.TTL)
	if err := remote.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, using in-process cache",
			slog.String("addr", client.Options().Addr),
			slog.String("error", err.Error()),
		)
		return local
	}

	breaker := circuitbreaker.New(opts.FailureThreshold, opts.ResetTimeout,
		circuitbreaker.OnStateChange(func(from, to circuitbreaker.State) {
			logger.Info("redis circuit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		}),
	)

	logger.Info("status cache connected",
		slog.String("backend", BackendRedis),
		slog.String("addr", client.Options().Addr),
		slog.String("prefix", remote.prefix),
	)
	return NewFailoverCache(remote, local, breaker, logger, fopts...)
}

// Janitor prunes expired in-process entries every interval until ctx is
// done. It returns immediately for caches without a local store.
func Janitor(ctx context.Context, c StatusCache, interval time.Duration, logger *slog.Logger) {
	var local *LocalCache
	switch v := c.(type) {
	case *LocalCache:
		local = v
	case *FailoverCache:
		local = v.Local()
	default:
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := local.Prune(); n > 0 {
				logger.Debug("pruned expired cache entries", slog.Int("count", n))
			}
		}
	}
}
