package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/UnknownOlympus/hermes/internal/geo"
	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/storage"
)

const cacheKeyPrefix = "geocache"

// CachedProvider keeps provider answers in a KV store. Answers are bucketed by the geohash cell of
// the bias coordinate, so a courier moving across town gets fresh nearby results.
type CachedProvider struct {
	next    geocoding.Provider
	kv      storage.KV
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewCachedProvider wraps next with a cache backed by kv.
func NewCachedProvider(next geocoding.Provider, kv storage.KV, metrics *metrics.Metrics, log *slog.Logger) *CachedProvider {
	return &CachedProvider{next: next, kv: kv, metrics: metrics, log: log}
}

// Search returns the cached answer for query or asks the wrapped provider. Only answers that
// yield at least one candidate are cached, so empty, unparseable and failed answers are asked
// again next time. A broken cache never fails a search.
func (c *CachedProvider) Search(ctx context.Context, query geocoding.Query) (string, error) {
	key := CacheKey(query)

	cached, err := c.kv.Get(ctx, key)
	switch {
	case err == nil:
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		c.log.DebugContext(ctx, "Resolution cache hit", "key", key)
		return string(cached), nil
	case errors.Is(err, storage.ErrNotFound):
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		c.metrics.CacheLookups.WithLabelValues("error").Inc()
		c.log.WarnContext(ctx, "Resolution cache lookup failed", "key", key, "error", err)
	}

	raw, err := c.next.Search(ctx, query)
	if err != nil {
		return "", err
	}

	if candidates, parseErr := ParseCandidates(raw); parseErr != nil || len(candidates) == 0 {
		c.log.DebugContext(ctx, "Resolution answer not cached", "key", key)
		return raw, nil
	}

	if err = c.kv.Set(ctx, key, []byte(raw)); err != nil {
		c.log.WarnContext(ctx, "Failed to store resolution in cache", "key", key, "error", err)
	}

	return raw, nil
}

// CacheKey builds "geocache/<cell>/<normalised text>", with "-" as the cell when no coordinate
// biases the query.
func CacheKey(query geocoding.Query) string {
	cell := "-"
	if query.Near != nil {
		cell = geo.Cell(*query.Near, geo.DefaultCellPrecision)
	}

	text := query.Text
	if query.Near == nil && strings.TrimSpace(query.NearAddress) != "" {
		text += " @ " + query.NearAddress
	}

	return cacheKeyPrefix + "/" + cell + "/" + normalise(text)
}

func normalise(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
