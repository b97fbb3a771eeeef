// Package resolver turns typed or OCR'd text into address candidates and decides how they are
// committed.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/UnknownOlympus/hermes/internal/geocoding"
	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
)

// Bias steers a search towards a location. Near wins over Address when both are set.
type Bias struct {
	Near    *models.Coordinates
	Address string
}

// Resolver resolves free text to address candidates through a place-search provider.
type Resolver struct {
	log          *slog.Logger       // Logger for resolution activity
	provider     geocoding.Provider // Provider answering in the line-record format
	providerName string             // Name of the provider for metrics labeling
	metrics      *metrics.Metrics   // Metrics for tracking resolutions
	suffix       string             // Suffix appended to queries (city, country) for sharper results
}

// New creates a Resolver. The suffix may be empty.
func New(
	log *slog.Logger,
	provider geocoding.Provider,
	providerName string,
	metrics *metrics.Metrics,
	suffix string,
) *Resolver {
	return &Resolver{
		log:          log,
		provider:     provider,
		providerName: providerName,
		metrics:      metrics,
		suffix:       strings.TrimSpace(suffix),
	}
}

// Resolve returns the candidates for query. An empty slice means the provider matched nothing;
// any provider error or an entirely unparseable answer is wrapped in ErrResolutionFailure.
// A blank query returns an empty slice without calling the provider.
func (r *Resolver) Resolve(ctx context.Context, query string, bias Bias) ([]models.AddressCandidate, error) {
	text := r.withSuffix(query)
	if text == "" {
		return []models.AddressCandidate{}, nil
	}

	search := geocoding.Query{Text: text, NearAddress: strings.TrimSpace(bias.Address)}
	if bias.Near != nil {
		if bias.Near.Valid() {
			near := *bias.Near
			search.Near = &near
		} else {
			r.log.WarnContext(ctx, "Ignoring invalid bias coordinate", "lat", bias.Near.Latitude, "lng", bias.Near.Longitude)
		}
	}

	r.log.DebugContext(ctx, "Resolving address", "query", text, "biased", search.Near != nil)

	startTime := time.Now()
	raw, err := r.provider.Search(ctx, search)
	r.metrics.RequestSeconds.WithLabelValues(r.providerName).Observe(time.Since(startTime).Seconds())

	if err != nil {
		r.log.ErrorContext(ctx, "Failed to resolve address", "query", text, "error", err)
		r.metrics.APIErrors.WithLabelValues(r.providerName).Inc()
		r.metrics.Resolutions.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, fmt.Errorf("%w: %w", models.ErrResolutionFailure, err)
	}

	candidates, err := ParseCandidates(raw)
	if err != nil {
		r.log.ErrorContext(ctx, "Provider answer could not be parsed", "query", text, "raw", raw)
		r.metrics.Resolutions.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}

	if len(candidates) == 0 {
		r.metrics.Resolutions.WithLabelValues(metrics.OutcomeNoMatch).Inc()
	} else {
		r.metrics.Resolutions.WithLabelValues(metrics.OutcomeSuccess).Inc()
	}

	r.log.InfoContext(ctx, "Address resolved", "query", text, "candidates", len(candidates))

	return candidates, nil
}

func (r *Resolver) withSuffix(query string) string {
	text := strings.TrimSpace(query)
	if text == "" || r.suffix == "" {
		return text
	}
	if strings.Contains(strings.ToLower(text), strings.ToLower(r.suffix)) {
		return text
	}

	return text + ", " + r.suffix
}
