package geocoding

import (
	"context"

	"github.com/UnknownOlympus/hermes/internal/models"
)

// Query describes a place search. Near and NearAddress bias results towards a location;
// either may be empty.
type Query struct {
	Text        string              // Text is the free-form address fragment.
	Near        *models.Coordinates // Near is a context coordinate, usually the courier's position.
	NearAddress string              // NearAddress is a context address, used when no coordinate is known.
}

// Provider is an interface that defines a method for searching places.
// The Search method returns the raw line-record response: one record per line, each of the form
// "<address>, LAT: <lat>, LNG: <lng>". An empty string with a nil error means no match.
type Provider interface {
	Search(ctx context.Context, query Query) (string, error)
}
