package geocoding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/hermes/internal/models"
	"googlemaps.github.io/maps"
)

// googleBiasDelta is the half-width, in degrees, of the viewport used to prefer nearby results.
const googleBiasDelta = 0.2

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It is used to interact with the
// Google Maps geocoding services.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// NewGoogleProvider initializes a new GoogleProvider with the given client and logger.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Search geocodes the query with the Google Maps Geocoding API and renders every result
// (up to MaxResults) as a line record. When a context coordinate is given, results inside a
// viewport around it are preferred.
func (gp *GoogleProvider) Search(ctx context.Context, query Query) (string, error) {
	gp.log.DebugContext(ctx, "Searching using Google Maps", "query", query.Text)

	req := gp.newRequest(query)
	geocodeResponse, err := gp.client.Geocode(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to geocode address: %w", err)
	}

	records := make([]Record, 0, min(len(geocodeResponse), MaxResults))
	for _, result := range geocodeResponse {
		if len(records) == MaxResults {
			break
		}
		records = append(records, Record{
			Label: result.FormattedAddress,
			Coordinates: models.Coordinates{
				Latitude:  result.Geometry.Location.Lat,
				Longitude: result.Geometry.Location.Lng,
			},
		})
	}

	gp.log.DebugContext(ctx, "Google Maps search finished", "query", query.Text, "results", len(records))

	return FormatRecords(records), nil
}

func (gp *GoogleProvider) newRequest(query Query) *maps.GeocodingRequest {
	req := &maps.GeocodingRequest{Address: query.searchText()}

	if southWest, northEast, ok := query.biasBox(googleBiasDelta); ok {
		req.Bounds = &maps.LatLngBounds{
			NorthEast: maps.LatLng{Lat: northEast.Latitude, Lng: northEast.Longitude},
			SouthWest: maps.LatLng{Lat: southWest.Latitude, Lng: southWest.Longitude},
		}
	}

	return req
}
