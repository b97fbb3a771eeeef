package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/hermes/internal/models"
	"golang.org/x/time/rate"
)

const (
	// NominatimBaseURL is the public Nominatim search endpoint.
	NominatimBaseURL = "https://nominatim.openstreetmap.org/search"
	// nominatimUserAgent MUST include valid contact info per Nominatim usage policy:
	// https://operations.osmfoundation.org/policies/nominatim/
	nominatimUserAgent = "Hermes-Route-Service/1.0 (https://github.com/UnknownOlympus/hermes)"
	nominatimBiasDelta = 0.2
)

// NominatimProvider implements the Provider interface using OpenStreetMap's Nominatim API.
// This is a free geocoding service with usage limits (1 request/second for fair use).
type NominatimProvider struct {
	client    HTTPClient    // HTTP client for making requests
	baseURL   string        // Base URL for the Nominatim API
	log       *slog.Logger  // Logger for logging operations
	limiter   *rate.Limiter // Keeps the provider within the fair-use policy
	userAgent string        // userAgent is required by Nominatim usage policy
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// nominatimResponse represents one element of the JSON response from Nominatim API.
type nominatimResponse struct {
	Lat         string `json:"lat"`          // Latitude as string
	Lon         string `json:"lon"`          // Longitude as string
	DisplayName string `json:"display_name"` // Full formatted address
}

// Common errors for Nominatim provider.
var (
	ErrNominatimEmptyResponse = errors.New("nominatim API returned empty response")
	ErrNominatimInvalidCoords = errors.New("nominatim API returned invalid coordinates")
)

// NewNominatimProvider creates a new Nominatim geocoding provider.
// Uses the public Nominatim API endpoint and one request per second.
func NewNominatimProvider(log *slog.Logger) *NominatimProvider {
	const timeout = 10
	return &NominatimProvider{
		client: &http.Client{
			Timeout: timeout * time.Second,
		},
		baseURL:   NominatimBaseURL,
		log:       log,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		userAgent: nominatimUserAgent,
	}
}

// NewNominatimProviderWithClient creates a Nominatim provider with a custom HTTP client
// and no rate limiting. Useful for testing with mocked HTTP clients.
func NewNominatimProviderWithClient(client HTTPClient, log *slog.Logger) *NominatimProvider {
	return &NominatimProvider{
		client:    client,
		baseURL:   NominatimBaseURL,
		log:       log,
		limiter:   rate.NewLimiter(rate.Inf, 0),
		userAgent: nominatimUserAgent,
	}
}

// Search finds places matching the query using the Nominatim API.
//
// Uses a progressive fallback strategy for rural addresses:
// 1. Try full address with house number
// 2. Try address without house number (e.g., "Rua das Flores, Centro")
// 3. Try neighbourhood or town name only
//
// The first variation that returns results wins. An exhausted fallback list is a valid
// "no match" answer, not an error.
func (np *NominatimProvider) Search(ctx context.Context, query Query) (string, error) {
	np.log.DebugContext(ctx, "Searching using Nominatim", "query", query.Text)

	addressVariations := np.generateAddressFallbacks(query.searchText())

	for idx, addrVariation := range addressVariations {
		records, err := np.searchSingleAddress(ctx, addrVariation, query)
		if err == nil {
			if idx > 0 {
				np.log.InfoContext(ctx, "Resolved using fallback address",
					"original", query.Text,
					"fallback", addrVariation,
					"fallback_level", idx)
			}
			return FormatRecords(records), nil
		}

		// If it's not an empty response error, return immediately (API error, invalid coords, etc.)
		if !errors.Is(err, ErrNominatimEmptyResponse) {
			return "", err
		}

		np.log.DebugContext(ctx, "Address variation returned no results, trying fallback",
			"variation", addrVariation,
			"fallback_level", idx)
	}

	np.log.InfoContext(ctx, "All address fallbacks exhausted",
		"query", query.Text,
		"variations_tried", len(addressVariations))

	return "", nil
}

// generateAddressFallbacks creates a list of progressively simpler address variations.
func (np *NominatimProvider) generateAddressFallbacks(address string) []string {
	if address == "" {
		return []string{""}
	}

	seen := make(map[string]bool)
	variations := []string{}

	addVariation := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			variations = append(variations, v)
		}
	}

	addVariation(address)

	parts := strings.Split(address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) > 1 {
		// Remove last component (usually house number or complement)
		addVariation(strings.Join(parts[:len(parts)-1], ", "))

		const lenComponents = 2
		if len(parts) > lenComponents {
			addVariation(strings.Join(parts[:len(parts)-2], ", "))
		}

		addVariation(parts[0])
	}

	return variations
}

// searchSingleAddress performs a single search request without fallback logic.
func (np *NominatimProvider) searchSingleAddress(ctx context.Context, address string, query Query) ([]Record, error) {
	if err := np.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	reqURL, err := url.Parse(np.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	params := reqURL.Query()
	params.Set("q", address)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(MaxResults))
	params.Set("addressdetails", "1")
	if southWest, northEast, ok := query.biasBox(nominatimBiasDelta); ok {
		// viewbox is <left>,<top>,<right>,<bottom>; without bounded=1 it only ranks results.
		params.Set("viewbox", fmt.Sprintf("%f,%f,%f,%f",
			southWest.Longitude, northEast.Latitude, northEast.Longitude, southWest.Latitude))
	}
	reqURL.RawQuery = params.Encode()

	np.log.DebugContext(ctx, "Nominatim request URL", "url", reqURL.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", np.userAgent)
	req.Header.Set("Accept-Language", "pt-BR,pt,en")

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("nominatim API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	np.log.DebugContext(ctx, "Nominatim raw response", "body", string(body))

	var results []nominatimResponse
	if err = json.Unmarshal(body, &results); err != nil {
		np.log.ErrorContext(ctx, "Failed to parse Nominatim response", "error", err, "body", string(body))
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrNominatimEmptyResponse
	}

	records := make([]Record, 0, len(results))
	for _, result := range results {
		var lat, lon float64
		if _, err = fmt.Sscanf(result.Lat, "%f", &lat); err != nil {
			return nil, fmt.Errorf("%w: invalid latitude: %s", ErrNominatimInvalidCoords, result.Lat)
		}
		if _, err = fmt.Sscanf(result.Lon, "%f", &lon); err != nil {
			return nil, fmt.Errorf("%w: invalid longitude: %s", ErrNominatimInvalidCoords, result.Lon)
		}

		label := result.DisplayName
		if label == "" {
			label = address
		}
		records = append(records, Record{
			Label:       label,
			Coordinates: models.Coordinates{Latitude: lat, Longitude: lon},
		})
	}

	return records, nil
}
