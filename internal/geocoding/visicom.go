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

// VisicomBaseURL -- Visicom API base URL.
const VisicomBaseURL = "https://api.visicom.ua/data-api/5.0/uk/geocode.json"

// VisicomProvider implements place search using Visicom API.
type VisicomProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the Visicom API
	apiKey  string        // API key with geocoding access
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Rate limiter
}

// Common errors for Visicom provider.
var (
	ErrVisicomEmptyAddress  = errors.New("visicom provider got empty address")
	ErrVisicomInvalidCoords = errors.New("visicom API returned invalid coordinates")
	ErrVisicomUnauthorized  = errors.New("visicom API unauthorized (invalid API key)")
)

// visicomFeature is a single GeoJSON feature (simplified for the search use-case).
type visicomFeature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat]
	} `json:"geo_centroid"`
	Properties struct {
		Name       string `json:"name"`
		StreetType string `json:"street_type"`
		Street     string `json:"street"`
		Settlement string `json:"settlement"`
	} `json:"properties"`
}

// visicomResponse is either a FeatureCollection or, for a single hit, a bare Feature.
type visicomResponse struct {
	Features []visicomFeature `json:"features"`
	visicomFeature
}

// NewVisicomProvider creates a new Visicom geocoding provider.
func NewVisicomProvider(apiKey string, rateLimit int, log *slog.Logger) *VisicomProvider {
	const timeout = 10

	return &VisicomProvider{
		client: &http.Client{
			Timeout: timeout * time.Second,
		},
		baseURL: VisicomBaseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
	}
}

// NewVisicomProviderWithClient allows injecting custom HTTP client.
func NewVisicomProviderWithClient(
	client HTTPClient,
	apiKey string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *VisicomProvider {
	return &VisicomProvider{
		client:  client,
		baseURL: VisicomBaseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: limiter,
	}
}

// Search finds places matching the query using Visicom API.
func (vp *VisicomProvider) Search(ctx context.Context, query Query) (string, error) {
	if err := vp.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit exceeded: %w", err)
	}

	text := query.searchText()
	vp.log.DebugContext(ctx, "Searching using Visicom", "query", text)

	if text == "" {
		return "", ErrVisicomEmptyAddress
	}

	reqURL, err := url.Parse(vp.baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %w", err)
	}

	params := reqURL.Query()
	params.Set("text", text)
	params.Set("limit", strconv.Itoa(MaxResults))
	params.Set("key", vp.apiKey)
	if query.Near != nil {
		params.Set("near", fmt.Sprintf("%f,%f", query.Near.Longitude, query.Near.Latitude))
	}
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := vp.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", ErrVisicomUnauthorized
	default:
		body, _ := io.ReadAll(resp.Body)
		vp.log.ErrorContext(ctx, "Visicom API error", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("visicom API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	vp.log.DebugContext(ctx, "Visicom raw response", "body", string(body))

	var result visicomResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode visicom response: %w", err)
	}

	features := result.Features
	if len(features) == 0 && len(result.Geometry.Coordinates) > 0 {
		features = []visicomFeature{result.visicomFeature}
	}

	records := make([]Record, 0, len(features))
	for _, feature := range features {
		if len(records) == MaxResults {
			break
		}
		record, errFeature := feature.record(text)
		if errFeature != nil {
			return "", errFeature
		}
		records = append(records, record)
	}

	vp.log.InfoContext(ctx, "Visicom search finished", "query", text, "results", len(records))

	return FormatRecords(records), nil
}

func (f visicomFeature) record(fallbackLabel string) (Record, error) {
	const coordsListLength = 2

	coords := f.Geometry.Coordinates
	if len(coords) != coordsListLength {
		return Record{}, ErrVisicomInvalidCoords
	}

	parts := make([]string, 0, 3)
	for _, part := range []string{
		strings.TrimSpace(f.Properties.StreetType + " " + f.Properties.Street),
		f.Properties.Name,
		f.Properties.Settlement,
	} {
		if part != "" {
			parts = append(parts, part)
		}
	}

	label := strings.Join(parts, ", ")
	if label == "" {
		label = fallbackLabel
	}

	return Record{
		Label:       label,
		Coordinates: models.Coordinates{Latitude: coords[1], Longitude: coords[0]},
	}, nil
}
