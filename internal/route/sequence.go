// Package route orders stops by distance from the origin and builds the courier's view.
package route

import (
	"cmp"
	"slices"

	"github.com/UnknownOlympus/hermes/internal/geo"
	"github.com/UnknownOlympus/hermes/internal/models"
)

// Resequence sorts all stops, completed ones included, by ascending distance from origin and
// renumbers them 1..n. Equal distances keep their prior relative order, which is the current order
// value and then the position in stops. The input is not modified.
func Resequence(stops []models.Stop, origin models.Coordinates) []models.Stop {
	type ranked struct {
		stop     models.Stop
		distance float64
	}

	prior := byOrder(stops)
	ranking := make([]ranked, len(prior))
	for idx, stop := range prior {
		ranking[idx] = ranked{stop: stop, distance: geo.DistanceKm(origin, stop.Coordinates)}
	}

	slices.SortStableFunc(ranking, func(a, b ranked) int {
		return cmp.Compare(a.distance, b.distance)
	})

	result := make([]models.Stop, len(ranking))
	for idx, entry := range ranking {
		result[idx] = entry.stop
		result[idx].Order = idx + 1
	}

	return result
}

// DisplayOrder lists pending stops before completed ones, each group by order ascending.
// Persisted order values are left alone.
func DisplayOrder(stops []models.Stop) []models.Stop {
	result := byOrder(stops)

	slices.SortStableFunc(result, func(a, b models.Stop) int {
		return cmp.Compare(statusRank(a.Status), statusRank(b.Status))
	})

	return result
}

func byOrder(stops []models.Stop) []models.Stop {
	result := slices.Clone(stops)
	slices.SortStableFunc(result, func(a, b models.Stop) int {
		return cmp.Compare(a.Order, b.Order)
	})

	return result
}

func statusRank(status models.Status) int {
	if status == models.StatusCompleted {
		return 1
	}

	return 0
}
