// Package location tracks the courier's live position. The position is never persisted.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/UnknownOlympus/hermes/internal/models"
)

// Source is a positioning capability. Subscribe starts a lazy stream of positions; the channel is
// closed when the stream ends and Subscribe may be called again to restart it. A source that is
// denied access returns models.ErrCaptureUnavailable.
type Source interface {
	Subscribe(ctx context.Context) (<-chan models.Coordinates, error)
}

// Tracker keeps the latest known position. Reads and writes never block each other.
type Tracker struct {
	current      atomic.Pointer[models.Coordinates]
	source       Source        // Source feeding Run; nil when positions are pushed through Update
	restartDelay time.Duration // Pause before resubscribing to an ended stream
	log          *slog.Logger
}

// NewTracker creates a Tracker. The source may be nil.
func NewTracker(source Source, restartDelay time.Duration, log *slog.Logger) *Tracker {
	return &Tracker{source: source, restartDelay: restartDelay, log: log}
}

// Update replaces the current position.
func (t *Tracker) Update(coords models.Coordinates) error {
	if !coords.Valid() {
		return fmt.Errorf("%w: lat %f, lng %f", models.ErrInvalidCoordinates, coords.Latitude, coords.Longitude)
	}

	t.current.Store(&coords)

	return nil
}

// Current returns the latest position, if any has arrived this session.
func (t *Tracker) Current() (models.Coordinates, bool) {
	coords := t.current.Load()
	if coords == nil {
		return models.Coordinates{}, false
	}

	return *coords, true
}

// Run consumes the source until ctx is cancelled, resubscribing whenever the stream ends or
// fails. It returns early only when the source reports models.ErrCaptureUnavailable.
func (t *Tracker) Run(ctx context.Context) error {
	if t.source == nil {
		<-ctx.Done()
		return nil
	}

	t.log.InfoContext(ctx, "Location tracker started...")

	for {
		positions, err := t.source.Subscribe(ctx)
		switch {
		case errors.Is(err, models.ErrCaptureUnavailable):
			t.log.ErrorContext(ctx, "Positioning unavailable, live location disabled", "error", err)
			return err
		case err != nil:
			t.log.ErrorContext(ctx, "Failed to subscribe to positioning", "error", err)
		default:
			t.consume(ctx, positions)
		}

		timer := time.NewTimer(t.restartDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.log.InfoContext(ctx, "Location tracker stopped.")
			return nil
		case <-timer.C:
			t.log.DebugContext(ctx, "Restarting positioning stream")
		}
	}
}

func (t *Tracker) consume(ctx context.Context, positions <-chan models.Coordinates) {
	for {
		select {
		case <-ctx.Done():
			return
		case coords, ok := <-positions:
			if !ok {
				return
			}
			if err := t.Update(coords); err != nil {
				t.log.WarnContext(ctx, "Dropping position", "error", err)
			}
		}
	}
}
