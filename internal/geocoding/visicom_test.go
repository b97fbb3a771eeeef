package geocoding_test

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestVisicomProvider_Search(t *testing.T) {
	ctx := t.Context()
	logger := slog.Default()
	apiKey := "test-api-key"
	defaultRL := rate.NewLimiter(rate.Inf, 0)

	t.Run("single feature", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "GET", req.Method)
				assert.Contains(t, req.URL.String(), geocoding.VisicomBaseURL)
				assert.Equal(t, "Khreshchatyk 1, Kyiv", req.URL.Query().Get("text"))
				assert.Equal(t, apiKey, req.URL.Query().Get("key"))
				assert.Equal(t, "5", req.URL.Query().Get("limit"))
				assert.Empty(t, req.URL.Query().Get("near"))
				assert.Equal(t, "application/json", req.Header.Get("Accept"))

				return jsonResponse(http.StatusOK,
					`{"geo_centroid":{"coordinates":[30.5234,50.4501]},`+
						`"properties":{"street_type":"вул.","street":"Хрещатик","name":"1","settlement":"Київ"}}`), nil
			},
		}

		provider := geocoding.NewVisicomProviderWithClient(mockClient, apiKey, defaultRL, logger)
		raw, err := provider.Search(ctx, geocoding.Query{Text: "Khreshchatyk 1, Kyiv"})

		require.NoError(t, err)
		assert.Equal(t, "1. вул. Хрещатик, 1, Київ, LAT: 50.4501000, LNG: 30.5234000\n", raw)
	})

	t.Run("feature collection with context coordinate", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "30.500000,50.400000", req.URL.Query().Get("near"))

				return jsonResponse(http.StatusOK, `{"type":"FeatureCollection","features":[`+
					`{"geo_centroid":{"coordinates":[30.52,50.45]},"properties":{"name":"A"}},`+
					`{"geo_centroid":{"coordinates":[30.61,50.41]},"properties":{}}]}`), nil
			},
		}

		provider := geocoding.NewVisicomProviderWithClient(mockClient, apiKey, defaultRL, logger)
		raw, err := provider.Search(ctx, geocoding.Query{
			Text: "Shevchenka",
			Near: &models.Coordinates{Latitude: 50.4, Longitude: 30.5},
		})

		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(raw), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "1. A, LAT: 50.4500000, LNG: 30.5200000", lines[0])
		assert.Equal(t, "2. Shevchenka, LAT: 50.4100000, LNG: 30.6100000", lines[1])
	})

	t.Run("empty response is no match", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{}`), nil
			},
		}

		provider := geocoding.NewVisicomProviderWithClient(mockClient, apiKey, defaultRL, logger)
		raw, err := provider.Search(ctx, geocoding.Query{Text: "some address"})

		require.NoError(t, err)
		assert.Empty(t, raw)
	})

	t.Run("invalid coordinates", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{"geo_centroid":{"coordinates":[30.5]}}`), nil
			},
		}

		provider := geocoding.NewVisicomProviderWithClient(mockClient, apiKey, defaultRL, logger)
		_, err := provider.Search(ctx, geocoding.Query{Text: "bad coords"})

		require.ErrorIs(t, err, geocoding.ErrVisicomInvalidCoords)
	})

	t.Run("unauthorized", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusUnauthorized, `unauthorized`), nil
			},
		}

		provider := geocoding.NewVisicomProviderWithClient(mockClient, apiKey, defaultRL, logger)
		_, err := provider.Search(ctx, geocoding.Query{Text: "some address"})

		require.ErrorIs(t, err, geocoding.ErrVisicomUnauthorized)
	})

	t.Run("server error", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusBadGateway, `bad gateway`), nil
			},
		}

		provider := geocoding.NewVisicomProviderWithClient(mockClient, apiKey, defaultRL, logger)
		_, err := provider.Search(ctx, geocoding.Query{Text: "some address"})

		require.ErrorContains(t, err, "visicom API returned status 502")
	})

	t.Run("rate limit exceeded", func(t *testing.T) {
		rateCtx, cancel := context.WithCancel(context.Background())
		cancel()
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				t.Fatal("HTTP client should not be called when rate limit blocks")
				return &http.Response{}, nil
			},
		}

		limiter := rate.NewLimiter(rate.Every(time.Second), 1)

		provider := geocoding.NewVisicomProviderWithClient(mockClient, apiKey, limiter, logger)
		_, err := provider.Search(rateCtx, geocoding.Query{Text: "some address"})

		assert.ErrorContains(t, err, "rate limit exceeded")
	})

	t.Run("empty address", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				t.Fatal("HTTP client should not be called for an empty address")
				return &http.Response{}, nil
			},
		}

		provider := geocoding.NewVisicomProviderWithClient(mockClient, apiKey, defaultRL, logger)
		_, err := provider.Search(ctx, geocoding.Query{Text: "  "})

		assert.ErrorIs(t, err, geocoding.ErrVisicomEmptyAddress)
	})
}
