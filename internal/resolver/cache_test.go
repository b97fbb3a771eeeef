package resolver_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/resolver"
	"github.com/UnknownOlympus/hermes/internal/storage"
	"github.com/UnknownOlympus/hermes/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	t.Parallel()

	t.Run("without coordinate", func(t *testing.T) {
		t.Parallel()
		key := resolver.CacheKey(geocoding.Query{Text: "  Rua   A,  10 "})
		assert.Equal(t, "geocache/-/rua a, 10", key)
	})

	t.Run("context address is part of the key", func(t *testing.T) {
		t.Parallel()
		key := resolver.CacheKey(geocoding.Query{Text: "Rua A", NearAddress: "Campinas"})
		assert.Equal(t, "geocache/-/rua a @ campinas", key)
	})

	t.Run("coordinate buckets by geohash cell", func(t *testing.T) {
		t.Parallel()
		near := &models.Coordinates{Latitude: 57.64911, Longitude: 10.40744}
		key := resolver.CacheKey(geocoding.Query{Text: "Rua A", Near: near, NearAddress: "ignored"})
		assert.Equal(t, "geocache/u4pru/rua a", key)
	})
}

func TestCachedProvider_Search(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := t.Context()
	query := geocoding.Query{Text: "Rua A"}
	answer := "1. Rua A, LAT: -23.5000000, LNG: -46.6000000\n"

	t.Run("miss then hit", func(t *testing.T) {
		next := mocks.NewProvider(t)
		appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
		cached := resolver.NewCachedProvider(next, storage.NewMemoryKV(), appMetrics, logger)
		next.On("Search", ctx, query).Return(answer, nil).Once()

		first, err := cached.Search(ctx, query)
		require.NoError(t, err)
		second, err := cached.Search(ctx, query)
		require.NoError(t, err)

		assert.Equal(t, answer, first)
		assert.Equal(t, answer, second)
		assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.CacheLookups.WithLabelValues("miss")), 0)
		assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.CacheLookups.WithLabelValues("hit")), 0)
	})

	t.Run("empty answers and errors are not cached", func(t *testing.T) {
		next := mocks.NewProvider(t)
		kv := storage.NewMemoryKV()
		cached := resolver.NewCachedProvider(next, kv, metrics.NewMetrics(prometheus.NewRegistry()), logger)
		next.On("Search", ctx, query).Return("", nil).Once()
		next.On("Search", ctx, query).Return("", assert.AnError).Once()

		raw, err := cached.Search(ctx, query)
		require.NoError(t, err)
		assert.Empty(t, raw)

		_, err = cached.Search(ctx, query)
		require.ErrorIs(t, err, assert.AnError)

		_, err = kv.Get(ctx, resolver.CacheKey(query))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("unparseable answers are not cached", func(t *testing.T) {
		next := mocks.NewProvider(t)
		kv := storage.NewMemoryKV()
		cached := resolver.NewCachedProvider(next, kv, metrics.NewMetrics(prometheus.NewRegistry()), logger)
		next.On("Search", ctx, query).Return("1. , LAT: -23.5, LNG: -46.6\n", nil).Once()
		next.On("Search", ctx, query).Return("1. Rua A, LAT: 123.0, LNG: -46.6\n", nil).Once()

		for range 2 {
			_, err := cached.Search(ctx, query)
			require.NoError(t, err)

			_, err = kv.Get(ctx, resolver.CacheKey(query))
			require.ErrorIs(t, err, storage.ErrNotFound)
		}
	})

	t.Run("failed resolution can be retried", func(t *testing.T) {
		next := mocks.NewProvider(t)
		appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
		cached := resolver.NewCachedProvider(next, storage.NewMemoryKV(), appMetrics, logger)
		res := resolver.New(logger, cached, "nominatim", appMetrics, "")
		next.On("Search", ctx, query).Return("1. , LAT: -23.5, LNG: -46.6\n", nil).Once()
		next.On("Search", ctx, query).Return(answer, nil).Once()

		_, err := res.Resolve(ctx, "Rua A", resolver.Bias{})
		require.ErrorIs(t, err, models.ErrResolutionFailure)

		candidates, err := res.Resolve(ctx, "Rua A", resolver.Bias{})
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "Rua A", candidates[0].Address)
	})

	t.Run("broken cache falls through to provider", func(t *testing.T) {
		next := mocks.NewProvider(t)
		kv := mocks.NewKV(t)
		appMetrics := metrics.NewMetrics(prometheus.NewRegistry())
		cached := resolver.NewCachedProvider(next, kv, appMetrics, logger)

		kv.On("Get", ctx, "geocache/-/rua a").Return(nil, assert.AnError).Once()
		kv.On("Set", ctx, "geocache/-/rua a", mock.Anything).Return(assert.AnError).Once()
		next.On("Search", ctx, query).Return(answer, nil).Once()

		raw, err := cached.Search(ctx, query)

		require.NoError(t, err)
		assert.Equal(t, answer, raw)
		assert.InDelta(t, 1, testutil.ToFloat64(appMetrics.CacheLookups.WithLabelValues("error")), 0)
	})
}
