// Package cache memoizes search result pages. Keys embed the index
// generation, so any index change makes older entries unreachable and they
// age out through their TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/roosearch/internal/metrics"
	"github.com/JakeFAU/roosearch/internal/search"
	"github.com/JakeFAU/roosearch/internal/tokenizer"
)

const keyPrefix = "roosearch:search:"

// ErrMiss is returned by a Backend for an absent key.
var ErrMiss = errors.New("cache miss")

// Backend is the key-value store behind a QueryCache.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// QueryCache caches search.Results pages.
type QueryCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	logger  *zap.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New builds a QueryCache. A nil logger is replaced with a no-op logger.
func New(backend Backend, ttl time.Duration, logger *zap.Logger) *QueryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryCache{backend: backend, ttl: ttl, logger: logger}
}

// Query identifies one cached page.
type Query struct {
	Generation uint64
	Text       string
	Page       int
	PageSize   int
}

// GetOrCompute returns the cached page for q, or runs compute once per key
// across concurrent callers and stores its result. Backend failures degrade
// to computing without the cache. The bool reports a cache hit. Each call
// counts as exactly one hit or one miss.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q Query,
	compute func() (search.Results, error),
) (search.Results, bool, error) {
	key := buildKey(q)
	if res, ok := c.get(ctx, key); ok {
		c.record(true)
		return res, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		// Another flight may have filled the key since the first lookup.
		if res, ok := c.get(ctx, key); ok {
			return lookup{res: res, hit: true}, nil
		}
		res, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, res)
		return lookup{res: res}, nil
	})
	if err != nil {
		c.record(false)
		return search.Results{}, false, err
	}
	l := val.(lookup)
	c.record(l.hit)
	return l.res, l.hit, nil
}

type lookup struct {
	res search.Results
	hit bool
}

// Stats returns hit and miss counts since construction.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	metrics.ObserveCacheLookup(hit)
}

func (c *QueryCache) get(ctx context.Context, key string) (search.Results, bool) {
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return search.Results{}, false
	}
	var res search.Results
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Warn("cache entry unreadable", zap.String("key", key), zap.Error(err))
		return search.Results{}, false
	}
	return res, true
}

func (c *QueryCache) set(ctx context.Context, key string, res search.Results) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// buildKey hashes the generation, paging and the sorted distinct query
// terms. Term order and stop words do not change a result page.
func buildKey(q Query) string {
	terms := tokenizer.QueryTerms(q.Text)
	sort.Strings(terms)
	raw := fmt.Sprintf("%d|%s|%d|%d", q.Generation, strings.Join(terms, ","), q.Page, q.PageSize)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}
