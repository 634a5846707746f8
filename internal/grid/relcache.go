// ABOUTME: Read-through cache for per-table relation metadata.
// ABOUTME: Misses load through the source; schema mutations invalidate.

package grid

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/constructive-io/gridbase/internal/schema"
)

// RelationSource loads relation metadata for a table on cache miss.
type RelationSource func(ctx context.Context, tableID string) (map[string]schema.RelationInfo, error)

type RelationCache struct {
	cache  *gocache.Cache
	source RelationSource
}

func NewRelationCache(source RelationSource, ttl time.Duration) *RelationCache {
	return &RelationCache{
		cache:  gocache.New(ttl, 2*ttl),
		source: source,
	}
}

// EnsureRelationInfo returns the relation map for a table, loading through
// the source on a miss.
func (c *RelationCache) EnsureRelationInfo(ctx context.Context, tableID string) (map[string]schema.RelationInfo, error) {
	if v, ok := c.cache.Get(tableID); ok {
		return v.(map[string]schema.RelationInfo), nil
	}
	relations, err := c.source(ctx, tableID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(tableID, relations, gocache.DefaultExpiration)
	return relations, nil
}

func (c *RelationCache) Invalidate(tableID string) {
	c.cache.Delete(tableID)
}

// Reset drops every cached table after schema-wide changes.
func (c *RelationCache) Reset() {
	c.cache.Flush()
}
