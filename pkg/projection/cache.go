package projection

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

// RedisCache keeps computed projections in Redis for ttl. Table versions
// restart with the process, so every key is namespaced by a per-instance
// epoch and never matches an entry written against other tables.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	epoch  string
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		epoch:  uuid.NewString()[:8],
	}
}

func (c *RedisCache) key(key string) string {
	return "planner:" + c.epoch + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, key string) (models.Projection, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Projection{}, false, nil
	}
	if err != nil {
		return models.Projection{}, false, err
	}
	var projection models.Projection
	if err := json.Unmarshal(data, &projection); err != nil {
		return models.Projection{}, false, err
	}
	return projection, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, projection models.Projection) error {
	data, err := json.Marshal(projection)
	if err != nil {
		return err
	}
	logger.Log.WithFields(map[string]interface{}{
		"key":  key,
		"size": len(data),
	}).Debug("Caching projection")
	return c.client.Set(ctx, c.key(key), data, c.ttl).Err()
}
