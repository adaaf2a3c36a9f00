package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/wol-monitor/internal/status"
)

const scanBatch = 100

// RemoteCache stores entries as JSON strings under "<prefix>:<host id>"
// with a Redis TTL. Expiry is left entirely to Redis.
type RemoteCache struct {
	client redis.Cmdable
	prefix string
	ttl    TTLPolicy
	now    func() time.Time
}

func NewRemoteCache(client redis.Cmdable, prefix string, ttl TTLPolicy) *RemoteCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RemoteCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *RemoteCache) Key(hostID string) string {
	return c.prefix + ":" + normalizeID(hostID)
}

func (c *RemoteCache) Update(ctx context.Context, hostID string, online bool, responseTime *float64, errMsg *string) error {
	raw, err := json.Marshal(status.NewEntry(online, responseTime, errMsg, c.now()))
	if err != nil {
		return fmt.Errorf("encode status entry: %w", err)
	}
	if err := c.client.Set(ctx, c.Key(hostID), raw, c.ttl.For(online)).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", hostID, err)
	}
	return nil
}

func (c *RemoteCache) Get(ctx context.Context, hostID string) (status.Entry, bool, error) {
	raw, err := c.client.Get(ctx, c.Key(hostID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return status.Entry{}, false, nil
	}
	if err != nil {
		return status.Entry{}, false, fmt.Errorf("redis get %s: %w", hostID, err)
	}

	var entry status.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return status.Entry{}, false, fmt.Errorf("decode status entry %s: %w", hostID, err)
	}
	return entry, true, nil
}

// GetMany fetches every key with a single MGET.
func (c *RemoteCache) GetMany(ctx context.Context, hostIDs []string) (map[string]status.Entry, error) {
	found := make(map[string]status.Entry, len(hostIDs))
	if len(hostIDs) == 0 {
		return found, nil
	}

	keys := make([]string, len(hostIDs))
	for i, id := range hostIDs {
		keys[i] = c.Key(id)
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var entry status.Entry
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			continue
		}
		found[hostIDs[i]] = entry
	}
	return found, nil
}

// Clear deletes every key under the prefix. SCAN is used instead of KEYS
// so a large keyspace does not block the server.
func (c *RemoteCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+":*", scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

func (c *RemoteCache) Backend() string { return BackendRedis }

func (c *RemoteCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
