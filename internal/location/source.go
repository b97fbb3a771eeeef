package location

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/hermes/internal/models"
)

// StaticSource reports one fixed position, e.g. a depot terminal without GPS.
type StaticSource struct {
	Coordinates models.Coordinates
}

// Subscribe emits the fixed position once and keeps the stream open until ctx is done.
func (s StaticSource) Subscribe(ctx context.Context) (<-chan models.Coordinates, error) {
	if !s.Coordinates.Valid() {
		return nil, models.ErrInvalidCoordinates
	}

	positions := make(chan models.Coordinates, 1)
	positions <- s.Coordinates

	go func() {
		<-ctx.Done()
		close(positions)
	}()

	return positions, nil
}

// FileSource replays "lat,lng" lines from a file, such as a GPS daemon's output or a recorded
// track. Each subscription reopens the file.
type FileSource struct {
	path     string
	interval time.Duration
	log      *slog.Logger
}

// NewFileSource creates a FileSource emitting one line per interval.
func NewFileSource(path string, interval time.Duration, log *slog.Logger) *FileSource {
	return &FileSource{path: path, interval: interval, log: log}
}

// Subscribe opens the file and streams its positions. The channel closes at end of file.
func (src *FileSource) Subscribe(ctx context.Context) (<-chan models.Coordinates, error) {
	file, err := os.Open(src.path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %w", models.ErrCaptureUnavailable, err)
		}
		return nil, fmt.Errorf("failed to open position file: %w", err)
	}

	positions := make(chan models.Coordinates)

	go func() {
		defer close(positions)
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for lineNo := 1; scanner.Scan(); lineNo++ {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			coords, errParse := ParsePosition(line)
			if errParse != nil {
				src.log.WarnContext(ctx, "Skipping position line", "line", lineNo, "error", errParse)
				continue
			}

			select {
			case <-ctx.Done():
				return
			case positions <- coords:
			}

			if src.interval > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(src.interval):
				}
			}
		}

		if errScan := scanner.Err(); errScan != nil {
			src.log.ErrorContext(ctx, "Failed to read position file", "error", errScan)
		}
	}()

	return positions, nil
}

// ParsePosition parses "lat,lng".
func ParsePosition(line string) (models.Coordinates, error) {
	latText, lngText, found := strings.Cut(line, ",")
	if !found {
		return models.Coordinates{}, fmt.Errorf("%w: expected \"lat,lng\", got %q", models.ErrInvalidCoordinates, line)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: invalid latitude: %w", models.ErrInvalidCoordinates, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngText), 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: invalid longitude: %w", models.ErrInvalidCoordinates, err)
	}

	coords := models.Coordinates{Latitude: lat, Longitude: lng}
	if !coords.Valid() {
		return models.Coordinates{}, fmt.Errorf("%w: %q out of range", models.ErrInvalidCoordinates, line)
	}

	return coords, nil
}
