package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	ometrics "github.com/deepscout/orchestrator/internal/metrics"
)

// CachedInvoker is a read-through Redis cache for retrieval results. The
// local index is immutable between reindex runs, so identical queries can
// be served from cache. Web search is never cached; freshness is the
// point of that backend. Cache failures degrade to the wrapped invoker.
type CachedInvoker struct {
	next   Invoker
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedInvoker wraps next with a Redis cache.
func NewCachedInvoker(next Invoker, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedInvoker {
	if ttl == 0 {
		ttl = 1 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedInvoker{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func retrieveKey(query string, topK int) string {
	return fmt.Sprintf("retrieve:%d:%s", topK, query)
}

func (c *CachedInvoker) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	key := retrieveKey(query, topK)
	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var docs []Document
		if err := json.Unmarshal(data, &docs); err == nil {
			ometrics.CacheHits.Inc()
			return docs, nil
		}
		// Corrupt entry; fall through and overwrite.
		c.logger.Warn("dropping corrupt retrieval cache entry", zap.String("key", key))
	}
	ometrics.CacheMisses.Inc()

	docs, err := c.next.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(docs); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("retrieval cache write failed", zap.Error(err))
		}
	}
	return docs, nil
}

func (c *CachedInvoker) WebSearch(ctx context.Context, query string) ([]Document, error) {
	return c.next.WebSearch(ctx, query)
}

func (c *CachedInvoker) Note(ctx context.Context, text string) error {
	return c.next.Note(ctx, text)
}
