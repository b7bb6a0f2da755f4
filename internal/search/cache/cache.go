// Package cache memoises complete query results in Redis, keyed by index
// name, snapshot generation and a hash of the query. Keys embed the
// generation, so a published mutation makes prior entries unreachable and
// they simply age out via TTL; no invalidation traffic is needed.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lanternsearch/lantern/internal/search"
	"github.com/lanternsearch/lantern/pkg/metrics"
	"github.com/lanternsearch/lantern/pkg/redis"
	"github.com/lanternsearch/lantern/pkg/resilience"
)

// QueryCache wraps query execution with a read-through Redis cache. The
// singleflight group collapses concurrent identical queries into one
// execution per process. Every Redis round trip is bounded by opTimeout,
// so a slow cache degrades to direct execution instead of stalling the
// query.
type QueryCache struct {
	client    *redis.Client
	ttl       time.Duration
	opTimeout time.Duration
	log       *slog.Logger
	metrics   *metrics.Metrics
	group     singleflight.Group
}

func New(client *redis.Client, ttl, opTimeout time.Duration, log *slog.Logger, m *metrics.Metrics) *QueryCache {
	return &QueryCache{client: client, ttl: ttl, opTimeout: opTimeout, log: log, metrics: m}
}

// Execute returns the cached result for the query when present, otherwise
// runs fn and caches its result. Degraded results are never cached: a
// retry after the cutoff deserves a fresh attempt at the full ranking.
func (c *QueryCache) Execute(ctx context.Context, indexName string, generation uint64, q *search.Query, fn func() (*search.Result, error)) (*search.Result, error) {
	key, err := Key(indexName, generation, q)
	if err != nil {
		return fn()
	}

	if c.client != nil {
		var raw string
		err := resilience.WithTimeout(ctx, c.opTimeout, "query cache get", func(ctx context.Context) error {
			var gerr error
			raw, gerr = c.client.Get(ctx, key)
			return gerr
		})
		if err == nil {
			var res search.Result
			if err := json.Unmarshal([]byte(raw), &res); err == nil {
				c.metrics.CacheHitsTotal.Inc()
				return &res, nil
			}
		} else if !redis.IsNilError(err) {
			c.log.Warn("query cache read failed", slog.String("error", err.Error()))
		}
		c.metrics.CacheMissesTotal.Inc()
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		res, err := fn()
		if err != nil {
			return nil, err
		}
		if c.client != nil && !res.Degraded {
			if raw, merr := json.Marshal(res); merr == nil {
				serr := resilience.WithTimeout(ctx, c.opTimeout, "query cache set", func(ctx context.Context) error {
					return c.client.Set(ctx, key, raw, c.ttl)
				})
				if serr != nil {
					c.log.Warn("query cache write failed", slog.String("error", serr.Error()))
				}
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*search.Result), nil
}

// Key derives the cache key for one query against one snapshot generation.
func Key(indexName string, generation uint64, q *search.Query) (string, error) {
	raw, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("lantern:query:%s:%d:%s", indexName, generation, hex.EncodeToString(sum[:16])), nil
}
