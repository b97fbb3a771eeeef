// Package navigation builds deep links that open a stop in an external navigation app.
package navigation

import (
	"strconv"

	"github.com/UnknownOlympus/hermes/internal/models"
)

const (
	wazeURL       = "https://www.waze.com/ul"
	googleMapsURL = "https://www.google.com/maps/dir/"
)

// Links holds the deep links for one destination.
type Links struct {
	Waze       string `json:"waze"`
	GoogleMaps string `json:"google_maps"`
}

// For returns the deep links for a destination.
func For(destination models.Coordinates) Links {
	return Links{
		Waze:       Waze(destination),
		GoogleMaps: GoogleMaps(destination),
	}
}

// Waze returns a link that starts navigation to destination in Waze.
func Waze(destination models.Coordinates) string {
	return wazeURL + "?ll=" + latLng(destination) + "&navigate=yes"
}

// GoogleMaps returns a Google Maps directions link to destination.
func GoogleMaps(destination models.Coordinates) string {
	return googleMapsURL + "?api=1&destination=" + latLng(destination)
}

func latLng(c models.Coordinates) string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}
