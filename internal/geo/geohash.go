package geo

import (
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/mmcloughlin/geohash"
)

// DefaultCellPrecision gives cells of roughly 5x5 km, wide enough for a courier's neighbourhood.
const DefaultCellPrecision = 5

// Cell converts a location to a geohash string of the given precision.
func Cell(c models.Coordinates, precision uint) string {
	return geohash.EncodeWithPrecision(c.Latitude, c.Longitude, precision)
}

// CellCenter decodes a geohash back to the center of its cell.
func CellCenter(hash string) models.Coordinates {
	lat, lng := geohash.Decode(hash)

	return models.Coordinates{Latitude: lat, Longitude: lng}
}
