package cache

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sirupsen/logrus"
)

// BreakerCache decorates a Cache with a circuit breaker so a Redis outage
// degrades resolution to SQL-only (every Get reported as a miss) instead of
// propagating errors up through pkg/store (spec.md §3 invariant 4).
type BreakerCache struct {
	inner   Cache
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Entry
}

// NewBreakerCache wraps inner in a breaker that opens after a single
// consecutive failure and stays open for 60s before allowing a probe
// request through (half-open).
func NewBreakerCache(inner Cache, log *logrus.Entry) *BreakerCache {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "cache.breaker")

	settings := gobreaker.Settings{
		Name:        "cache",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"from": from.String(),
				"to":   to.String(),
			}).Warn("cache circuit breaker state change")
		},
	}

	return &BreakerCache{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}
}

type getResult struct {
	value string
	found bool
}

func (c *BreakerCache) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		v, found, err := c.inner.Get(ctx, namespace, key)
		if err != nil {
			return nil, err
		}
		return getResult{value: v, found: found}, nil
	})
	if err != nil {
		// Open breaker or backend failure: degrade to a miss, never an error.
		return "", false, nil
	}
	r := result.(getResult)
	return r.value, r.found, nil
}

func (c *BreakerCache) Put(ctx context.Context, namespace, key, value string, ttl time.Duration) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.inner.Put(ctx, namespace, key, value, ttl)
	})
	if err != nil {
		// A Put that can't reach Redis just means the next resolve falls
		// through to SQL and repopulates the cache; nothing to propagate.
		return nil
	}
	return nil
}

func (c *BreakerCache) Close() error {
	return c.inner.Close()
}
