// Package stops holds the authoritative stop collection and the explicit origin.
package stops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/storage"
	"github.com/google/uuid"
)

const (
	keyStops  = "stops"
	keyOrigin = "origin"
)

// Snapshot is an immutable view of the collection after a mutation.
type Snapshot struct {
	Stops  []models.Stop  `json:"stops"`
	Origin *models.Origin `json:"origin,omitempty"`
}

// Store keeps stops and the explicit origin in memory and writes them through to a KV store on
// every mutation. Mutations are serialised; readers always receive copies.
type Store struct {
	mu          sync.Mutex
	kv          storage.KV
	namespace   string
	log         *slog.Logger
	metrics     *metrics.Metrics
	stops       []models.Stop
	origin      *models.Origin
	subscribers map[int]chan Snapshot
	nextSubID   int
	newID       func() string
}

// NewStore creates an empty store persisting under "<namespace>/stops" and "<namespace>/origin".
func NewStore(kv storage.KV, namespace string, metrics *metrics.Metrics, log *slog.Logger) *Store {
	return &Store{
		kv:          kv,
		namespace:   namespace,
		log:         log,
		metrics:     metrics,
		stops:       []models.Stop{},
		subscribers: make(map[int]chan Snapshot),
		newID:       uuid.NewString,
	}
}

// Load reads the persisted collection. Missing keys leave the store empty; undecodable data is an
// error so a corrupt file is never silently overwritten.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := []models.Stop{}
	raw, err := s.kv.Get(ctx, s.key(keyStops))
	switch {
	case err == nil:
		if err = json.Unmarshal(raw, &loaded); err != nil {
			return fmt.Errorf("failed to decode persisted stops: %w", err)
		}
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("failed to read persisted stops: %w", err)
	}

	var origin *models.Origin
	raw, err = s.kv.Get(ctx, s.key(keyOrigin))
	switch {
	case err == nil:
		origin = &models.Origin{}
		if err = json.Unmarshal(raw, origin); err != nil {
			return fmt.Errorf("failed to decode persisted origin: %w", err)
		}
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("failed to read persisted origin: %w", err)
	}

	if loaded == nil {
		loaded = []models.Stop{}
	}
	s.stops = loaded
	s.origin = origin
	s.updateGauges()

	s.log.InfoContext(ctx, "Route loaded", "stops", len(s.stops), "origin", s.origin != nil)

	return nil
}

// AddStop appends a pending stop with an order above every existing one.
func (s *Store) AddStop(ctx context.Context, candidate models.AddressCandidate) models.Stop {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextOrder := 1
	for _, stop := range s.stops {
		nextOrder = max(nextOrder, stop.Order+1)
	}

	stop := models.Stop{
		ID:          s.newID(),
		Address:     candidate.Address,
		Coordinates: candidate.Coordinates,
		Status:      models.StatusPending,
		Order:       nextOrder,
	}

	next := append(slices.Clone(s.stops), stop)
	s.commitStops(ctx, next)

	s.log.InfoContext(ctx, "Stop added", "id", stop.ID, "order", stop.Order)

	return stop
}

// RemoveStop deletes the stop with id. Unknown ids are ignored.
func (s *Store) RemoveStop(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		s.log.DebugContext(ctx, "Remove of unknown stop ignored", "id", id)
		return
	}

	s.commitStops(ctx, slices.Delete(slices.Clone(s.stops), idx, idx+1))
	s.log.InfoContext(ctx, "Stop removed", "id", id)
}

// ToggleStatus flips the stop between pending and completed. Its order is unchanged.
func (s *Store) ToggleStatus(ctx context.Context, id string) (models.Stop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Stop{}, fmt.Errorf("%w: %s", models.ErrStopNotFound, id)
	}

	next := slices.Clone(s.stops)
	next[idx].Status = next[idx].Status.Toggle()
	s.commitStops(ctx, next)

	return next[idx], nil
}

// EditStop overwrites the address and coordinates of a stop in place.
func (s *Store) EditStop(ctx context.Context, id string, candidate models.AddressCandidate) (models.Stop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Stop{}, fmt.Errorf("%w: %s", models.ErrStopNotFound, id)
	}

	next := slices.Clone(s.stops)
	next[idx].Address = candidate.Address
	next[idx].Coordinates = candidate.Coordinates
	s.commitStops(ctx, next)

	return next[idx], nil
}

// SetOrigin sets the explicit origin. Nil clears it, handing authority back to the live location.
func (s *Store) SetOrigin(ctx context.Context, origin *models.Origin) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if origin == nil {
		s.origin = nil
		s.remove(ctx, keyOrigin)
	} else {
		value := *origin
		s.origin = &value
		s.persist(ctx, keyOrigin, value)
	}

	s.publish()
}

// ClearAll removes every stop and the explicit origin.
func (s *Store) ClearAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.origin = nil
	s.remove(ctx, keyOrigin)
	s.commitStops(ctx, []models.Stop{})

	s.log.InfoContext(ctx, "Route cleared")
}

// Reorder rewrites stop orders in one step: plan sees the current collection under the store
// lock and returns stops carrying their new order. Stops absent from the plan keep their order.
// A plan error leaves the collection untouched and is returned with the current snapshot.
func (s *Store) Reorder(ctx context.Context, plan func(Snapshot) ([]models.Stop, error)) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered, err := plan(s.snapshot())
	if err != nil {
		return s.snapshot(), err
	}

	orders := make(map[string]int, len(ordered))
	for _, stop := range ordered {
		orders[stop.ID] = stop.Order
	}

	next := slices.Clone(s.stops)
	for idx := range next {
		if order, ok := orders[next[idx].ID]; ok {
			next[idx].Order = order
		}
	}
	s.commitStops(ctx, next)

	return s.snapshot(), nil
}

// Snapshot returns a copy of the current collection.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot()
}

// Stops returns a copy of the current stops in insertion order.
func (s *Store) Stops() []models.Stop {
	return s.Snapshot().Stops
}

// Origin returns the explicit origin, or nil when none is set.
func (s *Store) Origin() *models.Origin {
	return s.Snapshot().Origin
}

// Stop returns the stop with id.
func (s *Store) Stop(id string) (models.Stop, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Stop{}, false
	}

	return s.stops[idx], true
}

// Subscribe streams snapshots after each mutation. Slow readers only see the latest snapshot.
// The returned function unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	updates := make(chan Snapshot, 1)
	s.subscribers[id] = updates

	var once sync.Once
	return updates, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
			close(updates)
		})
	}
}

func (s *Store) commitStops(ctx context.Context, next []models.Stop) {
	s.stops = next
	s.persist(ctx, keyStops, next)
	s.updateGauges()
	s.publish()
}

func (s *Store) persist(ctx context.Context, name string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to encode route data", "key", name, "error", err)
		s.metrics.PersistErrors.Inc()
		return
	}

	if err = s.kv.Set(context.WithoutCancel(ctx), s.key(name), data); err != nil {
		s.log.ErrorContext(ctx, "Failed to persist route data", "key", name, "error", err)
		s.metrics.PersistErrors.Inc()
	}
}

func (s *Store) remove(ctx context.Context, name string) {
	if err := s.kv.Remove(context.WithoutCancel(ctx), s.key(name)); err != nil {
		s.log.ErrorContext(ctx, "Failed to remove route data", "key", name, "error", err)
		s.metrics.PersistErrors.Inc()
	}
}

func (s *Store) publish() {
	snap := s.snapshot()
	for _, updates := range s.subscribers {
		select {
		case <-updates:
		default:
		}
		updates <- snap
	}
}

func (s *Store) snapshot() Snapshot {
	snap := Snapshot{Stops: slices.Clone(s.stops)}
	if snap.Stops == nil {
		snap.Stops = []models.Stop{}
	}
	if s.origin != nil {
		origin := *s.origin
		snap.Origin = &origin
	}

	return snap
}

func (s *Store) updateGauges() {
	counts := map[models.Status]int{models.StatusPending: 0, models.StatusCompleted: 0}
	for _, stop := range s.stops {
		counts[stop.Status]++
	}
	for status, count := range counts {
		s.metrics.Stops.WithLabelValues(string(status)).Set(float64(count))
	}
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.stops, func(stop models.Stop) bool { return stop.ID == id })
}

func (s *Store) key(name string) string {
	if s.namespace == "" {
		return name
	}

	return s.namespace + "/" + name
}
