package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// redisCache is the Redis-backed Cache implementation. Keys are namespaced
// as "<namespace>:<key>" so the same client instance serves every resolver
// in pkg/store.
type redisCache struct {
	client *redis.Client
	log    *logrus.Entry
}

// NewRedisCache dials Redis per opts and returns a Cache. The connection is
// lazy: go-redis only opens a socket on first command, so a down Redis
// surfaces as a Get/Put error rather than a failure here.
func NewRedisCache(opts *redis.Options, log *logrus.Entry) Cache {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &redisCache{
		client: redis.NewClient(opts),
		log:    log.WithField("component", "cache.redis"),
	}
}

func namespacedKey(namespace, key string) string {
	return namespace + ":" + key
}

func (c *redisCache) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, namespacedKey(namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *redisCache) Put(ctx context.Context, namespace, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, namespacedKey(namespace, key), value, ttl).Err()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
