package route

import (
	"context"
	"log/slog"

	"github.com/UnknownOlympus/hermes/internal/geo"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/stops"
)

// OriginSource tells where the origin of a route came from.
type OriginSource string

const (
	OriginExplicit OriginSource = "explicit"
	OriginLive     OriginSource = "live"
	OriginNone     OriginSource = "none"
)

// StopStore is the part of the stop collection the sequencer reads and writes. Reorder runs
// plan and writes its result as one step.
type StopStore interface {
	Snapshot() stops.Snapshot
	Reorder(ctx context.Context, plan func(stops.Snapshot) ([]models.Stop, error)) (stops.Snapshot, error)
}

// LiveLocation reports the latest device position.
type LiveLocation interface {
	Current() (models.Coordinates, bool)
}

// ViewItem is a stop as shown to the courier.
type ViewItem struct {
	models.Stop
	DistanceKm *float64 `json:"distance_km,omitempty"` // DistanceKm is set when an origin is known.
}

// View is the display-ordered route.
type View struct {
	Stops        []ViewItem          `json:"stops"`
	Origin       *models.Origin      `json:"origin,omitempty"`
	LiveLocation *models.Coordinates `json:"live_location,omitempty"`
	OriginSource OriginSource        `json:"origin_source"`
	Pending      int                 `json:"pending"`
	Completed    int                 `json:"completed"`
}

// Sequencer resequences the stored route from the authoritative origin.
type Sequencer struct {
	store StopStore
	live  LiveLocation
	log   *slog.Logger
}

// NewSequencer creates a Sequencer.
func NewSequencer(store StopStore, live LiveLocation, log *slog.Logger) *Sequencer {
	return &Sequencer{store: store, live: live, log: log}
}

// Resequence rewrites every stop's order by distance from the explicit origin, or from the live
// location when no origin is set. It returns ErrNoOriginAvailable while neither is known.
func (s *Sequencer) Resequence(ctx context.Context) (stops.Snapshot, error) {
	var source OriginSource

	snap, err := s.store.Reorder(ctx, func(current stops.Snapshot) ([]models.Stop, error) {
		var origin models.Coordinates
		origin, source = s.origin(current)
		if source == OriginNone {
			return nil, models.ErrNoOriginAvailable
		}

		return Resequence(current.Stops, origin), nil
	})
	if err != nil {
		s.log.InfoContext(ctx, "Resequence postponed, waiting for position")
		return snap, err
	}

	s.log.InfoContext(ctx, "Route resequenced", "stops", len(snap.Stops), "origin_source", source)

	return snap, nil
}

// View builds the display-ordered route with each stop's distance from the current origin.
func (s *Sequencer) View() View {
	snap := s.store.Snapshot()
	origin, source := s.origin(snap)

	view := View{
		Stops:        make([]ViewItem, 0, len(snap.Stops)),
		Origin:       snap.Origin,
		OriginSource: source,
	}
	if live, ok := s.live.Current(); ok {
		view.LiveLocation = &live
	}

	for _, stop := range DisplayOrder(snap.Stops) {
		item := ViewItem{Stop: stop}
		if source != OriginNone {
			distance := geo.DistanceKm(origin, stop.Coordinates)
			item.DistanceKm = &distance
		}
		if stop.Status == models.StatusCompleted {
			view.Completed++
		} else {
			view.Pending++
		}
		view.Stops = append(view.Stops, item)
	}

	return view
}

func (s *Sequencer) origin(snap stops.Snapshot) (models.Coordinates, OriginSource) {
	if snap.Origin != nil {
		return snap.Origin.Coordinates, OriginExplicit
	}
	if live, ok := s.live.Current(); ok {
		return live, OriginLive
	}

	return models.Coordinates{}, OriginNone
}
