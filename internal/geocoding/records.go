package geocoding

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/hermes/internal/models"
)

// coordinateMarker matches the field markers of the record format inside a label.
var coordinateMarker = regexp.MustCompile(`(?i)\b(LAT|LNG)\s*:`)

// MaxResults caps how many records a provider returns for one query.
const MaxResults = 5

// Record is a single place found by a provider.
type Record struct {
	Label       string
	Coordinates models.Coordinates
}

// FormatRecords renders records in the enumerated line-record format.
func FormatRecords(records []Record) string {
	var builder strings.Builder
	for idx, record := range records {
		fmt.Fprintf(&builder, "%d. %s, LAT: %s, LNG: %s\n",
			idx+1,
			cleanLabel(record.Label),
			strconv.FormatFloat(record.Coordinates.Latitude, 'f', 7, 64),
			strconv.FormatFloat(record.Coordinates.Longitude, 'f', 7, 64),
		)
	}

	return builder.String()
}

// cleanLabel keeps a label on one line and strips anything that would read as a coordinate field.
func cleanLabel(label string) string {
	label = strings.Join(strings.Fields(label), " ")
	return coordinateMarker.ReplaceAllString(label, "$1")
}

// searchText joins the query text with the context address, if any.
func (q Query) searchText() string {
	text := strings.TrimSpace(q.Text)
	if near := strings.TrimSpace(q.NearAddress); near != "" && q.Near == nil {
		text += ", " + near
	}

	return text
}

// biasBox returns a square of half-width delta degrees around the context coordinate.
func (q Query) biasBox(delta float64) (models.Coordinates, models.Coordinates, bool) {
	if q.Near == nil {
		return models.Coordinates{}, models.Coordinates{}, false
	}

	southWest := models.Coordinates{
		Latitude:  max(q.Near.Latitude-delta, -90),
		Longitude: max(q.Near.Longitude-delta, -180),
	}
	northEast := models.Coordinates{
		Latitude:  min(q.Near.Latitude+delta, 90),
		Longitude: min(q.Near.Longitude+delta, 180),
	}

	return southWest, northEast, true
}
