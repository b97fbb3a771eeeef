package geocoding_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHTTPClient is a mock implementation of HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestNominatimProvider_Search(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("successful search", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "GET", req.Method)
				assert.Contains(t, req.URL.String(), "nominatim.openstreetmap.org")
				assert.Equal(t, "Rua Augusta, 1500, São Paulo", req.URL.Query().Get("q"))
				assert.Equal(t, "json", req.URL.Query().Get("format"))
				assert.Equal(t, "5", req.URL.Query().Get("limit"))
				assert.Empty(t, req.URL.Query().Get("viewbox"))
				assert.Equal(
					t,
					"Hermes-Route-Service/1.0 (https://github.com/UnknownOlympus/hermes)",
					req.Header.Get("User-Agent"),
				)

				return jsonResponse(http.StatusOK,
					`[{"lat":"-23.5569","lon":"-46.6623","display_name":"Rua Augusta, 1500, Consolação"},`+
						`{"lat":"-23.5601","lon":"-46.6590","display_name":"Rua Augusta, Jardins"}]`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, logger)
		raw, err := provider.Search(ctx, geocoding.Query{Text: "Rua Augusta, 1500, São Paulo"})

		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(raw), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "1. Rua Augusta, 1500, Consolação, LAT: -23.5569000, LNG: -46.6623000", lines[0])
		assert.Equal(t, "2. Rua Augusta, Jardins, LAT: -23.5601000, LNG: -46.6590000", lines[1])
	})

	t.Run("context coordinate sets viewbox", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "-46.800000,-23.300000,-46.400000,-23.700000", req.URL.Query().Get("viewbox"))
				return jsonResponse(http.StatusOK, `[{"lat":"-23.5","lon":"-46.6","display_name":"Rua B"}]`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, logger)
		_, err := provider.Search(ctx, geocoding.Query{
			Text: "Rua B",
			Near: &models.Coordinates{Latitude: -23.5, Longitude: -46.6},
		})

		require.NoError(t, err)
	})

	t.Run("empty response from API is no match", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `[]`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, logger)
		raw, err := provider.Search(ctx, geocoding.Query{Text: "invalid address"})

		require.NoError(t, err)
		assert.Empty(t, raw)
	})

	t.Run("HTTP error status", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusTooManyRequests, `{"error":"Rate limit exceeded"}`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, logger)
		raw, err := provider.Search(ctx, geocoding.Query{Text: "some address"})

		require.Error(t, err)
		assert.Empty(t, raw)
		assert.Contains(t, err.Error(), "nominatim API returned status 429")
	})

	t.Run("invalid JSON response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `invalid json`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, logger)
		_, err := provider.Search(ctx, geocoding.Query{Text: "some address"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode nominatim response")
	})

	t.Run("invalid latitude in response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `[{"lat":"invalid","lon":"-122.0842499"}]`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, logger)
		_, err := provider.Search(ctx, geocoding.Query{Text: "some address"})

		require.ErrorIs(t, err, geocoding.ErrNominatimInvalidCoords)
		assert.Contains(t, err.Error(), "invalid latitude")
	})

	t.Run("invalid longitude in response", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `[{"lat":"37.4224764","lon":"invalid"}]`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, logger)
		_, err := provider.Search(ctx, geocoding.Query{Text: "some address"})

		require.ErrorIs(t, err, geocoding.ErrNominatimInvalidCoords)
		assert.Contains(t, err.Error(), "invalid longitude")
	})

	t.Run("HTTP client returns error", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return nil, assert.AnError
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, logger)
		_, err := provider.Search(ctx, geocoding.Query{Text: "some address"})

		require.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "failed to execute geocoding request")
	})

	t.Run("context cancellation", func(t *testing.T) {
		newCtx, cancel := context.WithCancel(context.Background())
		cancel()

		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				return nil, req.Context().Err()
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, logger)
		_, err := provider.Search(newCtx, geocoding.Query{Text: "some address"})

		require.Error(t, err)
	})
}

func TestNominatimProvider_AddressFallback(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("fallback to neighbourhood when full address fails", func(t *testing.T) {
		requestCount := 0
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				requestCount++
				query := req.URL.Query().Get("q")

				switch query {
				case "Vila Madalena, Rua Harmonia, 123", "Vila Madalena, Rua Harmonia":
					return jsonResponse(http.StatusOK, `[]`), nil
				case "Vila Madalena":
					return jsonResponse(http.StatusOK,
						`[{"lat":"-23.5534","lon":"-46.6911","display_name":"Vila Madalena, São Paulo"}]`), nil
				}

				t.Fatalf("Unexpected query: %s", query)
				return nil, assert.AnError
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, logger)
		raw, err := provider.Search(ctx, geocoding.Query{Text: "Vila Madalena, Rua Harmonia, 123"})

		require.NoError(t, err)
		assert.Equal(t, "1. Vila Madalena, São Paulo, LAT: -23.5534000, LNG: -46.6911000\n", raw)
		assert.Equal(t, 3, requestCount, "should try 3 fallback levels")
	})

	t.Run("success on first try with full address", func(t *testing.T) {
		requestCount := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				requestCount++
				return jsonResponse(http.StatusOK, `[{"lat":"-22.9068","lon":"-43.1729"}]`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, logger)
		raw, err := provider.Search(ctx, geocoding.Query{Text: "Avenida Atlântica, 1702"})

		require.NoError(t, err)
		assert.Equal(t, 1, requestCount, "should succeed on first try")
		assert.Contains(t, raw, "Avenida Atlântica, 1702, LAT:", "missing display name falls back to the query")
	})

	t.Run("all fallbacks fail", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `[]`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, logger)
		raw, err := provider.Search(ctx, geocoding.Query{Text: "Rua Inexistente, 999, Lugar Nenhum"})

		require.NoError(t, err)
		assert.Empty(t, raw)
	})

	t.Run("api error stops the fallback chain", func(t *testing.T) {
		requestCount := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				requestCount++
				return jsonResponse(http.StatusInternalServerError, `oops`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, logger)
		_, err := provider.Search(ctx, geocoding.Query{Text: "A, B, C"})

		require.Error(t, err)
		assert.Equal(t, 1, requestCount)
	})

	t.Run("single-part address no fallback", func(t *testing.T) {
		requestCount := 0
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				requestCount++
				return jsonResponse(http.StatusOK, `[]`), nil
			},
		}

		provider := geocoding.NewNominatimProviderWithClient(mockClient, logger)
		_, err := provider.Search(ctx, geocoding.Query{Text: "Campinas"})

		require.NoError(t, err)
		assert.Equal(t, 1, requestCount, "single-part address should only try once")
	})
}

func TestNewNominatimProvider(t *testing.T) {
	logger := slog.Default()

	provider := geocoding.NewNominatimProvider(logger)

	require.NotNil(t, provider)
}
