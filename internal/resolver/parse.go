package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/hermes/internal/models"
)

var (
	// recordPattern matches "<address>[,] LAT: <lat>[,] LNG: <lng>".
	recordPattern = regexp.MustCompile(
		`(?i)^(.+?)[\s,]*LAT:\s*([-+]?\d+(?:\.\d+)?)[\s,]*LNG:\s*([-+]?\d+(?:\.\d+)?)`,
	)
	// enumerationPattern matches the "N. " prefix of numbered records.
	enumerationPattern = regexp.MustCompile(`^\d+\.(?:\s+|$)`)
)

// ParseCandidates turns a line-record response into candidates. Lines that do not parse, or that
// carry coordinates outside the valid range, are dropped. A response with at least one non-blank
// line where none parse is reported as ErrResolutionFailure; an empty response is no match.
func ParseCandidates(raw string) ([]models.AddressCandidate, error) {
	candidates := make([]models.AddressCandidate, 0)
	malformed := 0

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		candidate, ok := parseLine(line)
		if !ok {
			malformed++
			continue
		}
		candidates = append(candidates, candidate)
	}

	if len(candidates) == 0 && malformed > 0 {
		return nil, fmt.Errorf("%w: %d unparseable records", models.ErrResolutionFailure, malformed)
	}

	return candidates, nil
}

func parseLine(line string) (models.AddressCandidate, bool) {
	match := recordPattern.FindStringSubmatch(line)
	if match == nil {
		return models.AddressCandidate{}, false
	}

	address := strings.TrimSpace(strings.TrimRight(match[1], ", "))
	address = strings.TrimSpace(enumerationPattern.ReplaceAllString(address, ""))
	if address == "" {
		return models.AddressCandidate{}, false
	}

	lat, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return models.AddressCandidate{}, false
	}
	lng, err := strconv.ParseFloat(match[3], 64)
	if err != nil {
		return models.AddressCandidate{}, false
	}

	coords := models.Coordinates{Latitude: lat, Longitude: lng}
	if !coords.Valid() {
		return models.AddressCandidate{}, false
	}

	return models.AddressCandidate{Address: address, Coordinates: coords}, true
}
