package review

import (
	"context"

	"github.com/harooos/tdrcluster/internal/cluster"
	"github.com/harooos/tdrcluster/internal/store"
)

// decisionCache is the subset of store.DecisionCache CachedReviewer needs,
// kept as an interface so it can be exercised without a live Redis client.
type decisionCache interface {
	Get(ctx context.Context, key string) []*cluster.Decision
	Set(ctx context.Context, key string, decisions []*cluster.Decision)
}

var _ decisionCache = (*store.DecisionCache)(nil)

// CachedReviewer wraps a Reviewer with a batch-signature cache, the same
// check-cache/call/populate-cache shape as
// services/analyzer-svc/cache.go's getCachedAnalyzeResponse /
// cacheAnalyzeResponse pair, so a crashed run resuming mid-batch does not
// re-spend an LLM call on a batch already reviewed.
type CachedReviewer struct {
	inner *Reviewer
	cache decisionCache
}

func NewCachedReviewer(inner *Reviewer, cache decisionCache) *CachedReviewer {
	return &CachedReviewer{inner: inner, cache: cache}
}

func (c *CachedReviewer) Review(ctx context.Context, categories *cluster.CategoryMap, batch []*cluster.Cluster) ([]*cluster.Decision, error) {
	if len(batch) == 0 {
		return c.inner.Review(ctx, categories, batch)
	}

	key := store.Key(batch)
	if cached := c.cache.Get(ctx, key); cached != nil {
		return cached, nil
	}

	decisions, err := c.inner.Review(ctx, categories, batch)
	if err != nil {
		return nil, err
	}

	c.cache.Set(ctx, key, decisions)
	return decisions, nil
}
