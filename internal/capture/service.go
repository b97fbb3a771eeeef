// Package capture runs the resolution pipeline: image or text in, candidates resolved and
// disambiguated, the choice committed to a stop, an edit or the origin.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/UnknownOlympus/hermes/internal/metrics"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/ocr"
	"github.com/UnknownOlympus/hermes/internal/resolver"
)

// Pipeline errors.
var (
	ErrResolutionInFlight  = errors.New("a resolution for this target is already in progress")
	ErrResolutionDiscarded = errors.New("resolution was dismissed before it finished")
	ErrNoPendingChoice     = errors.New("no candidates are waiting for a choice")
	ErrInvalidChoice       = errors.New("choice index out of range")
)

// AddressResolver resolves free text to candidates.
type AddressResolver interface {
	Resolve(ctx context.Context, query string, bias resolver.Bias) ([]models.AddressCandidate, error)
}

// StopStore is the part of the stop collection the pipeline commits to.
type StopStore interface {
	AddStop(ctx context.Context, candidate models.AddressCandidate) models.Stop
	EditStop(ctx context.Context, id string, candidate models.AddressCandidate) (models.Stop, error)
	SetOrigin(ctx context.Context, origin *models.Origin)
	Origin() *models.Origin
	Stop(id string) (models.Stop, bool)
}

// LiveLocation reports the latest device position.
type LiveLocation interface {
	Current() (models.Coordinates, bool)
}

// Result is the outcome of one resolution. Stop or Origin is set when a candidate was committed.
type Result struct {
	Target   string            `json:"target"`
	Query    string            `json:"query"`
	Decision resolver.Decision `json:"decision"`
	Stop     *models.Stop      `json:"stop,omitempty"`
	Origin   *models.Origin    `json:"origin,omitempty"`
}

type attempt struct {
	id     uint64
	cancel context.CancelFunc
}

type pendingChoice struct {
	query      string
	candidates []models.AddressCandidate
}

// Service guards each target with a single in-flight resolution and keeps the candidate lists
// waiting for the courier's choice.
type Service struct {
	log        *slog.Logger
	resolver   AddressResolver
	extractor  ocr.Extractor // nil when no camera/OCR is configured
	store      StopStore
	live       LiveLocation
	metrics    *metrics.Metrics
	numWorkers int

	mu       sync.Mutex
	nextID   uint64
	inFlight map[Key]attempt
	pending  map[Key]pendingChoice
}

// NewService creates the pipeline. extractor may be nil.
func NewService(
	log *slog.Logger,
	resolver AddressResolver,
	extractor ocr.Extractor,
	store StopStore,
	live LiveLocation,
	metrics *metrics.Metrics,
	numWorkers int,
) *Service {
	return &Service{
		log:        log,
		resolver:   resolver,
		extractor:  extractor,
		store:      store,
		live:       live,
		metrics:    metrics,
		numWorkers: max(numWorkers, 1),
		inFlight:   make(map[Key]attempt),
		pending:    make(map[Key]pendingChoice),
	}
}

// Submit resolves typed text for key. A single candidate is committed at once; several are kept
// for Choose; none means manual entry. A failed resolution changes nothing.
func (s *Service) Submit(ctx context.Context, key Key, query string) (Result, error) {
	if err := s.checkKey(key); err != nil {
		return Result{Target: key.String(), Query: query}, err
	}

	attemptCtx, id, err := s.begin(ctx, key)
	if err != nil {
		return Result{Target: key.String(), Query: query}, err
	}
	defer s.end(key, id)

	return s.resolve(ctx, attemptCtx, key, id, query)
}

// SubmitImage reads the address from image and resolves it like Submit. An image without
// readable text falls back to manual entry.
func (s *Service) SubmitImage(ctx context.Context, key Key, image []byte) (Result, error) {
	if s.extractor == nil {
		return Result{Target: key.String()}, models.ErrCaptureUnavailable
	}
	if err := s.checkKey(key); err != nil {
		return Result{Target: key.String()}, err
	}

	attemptCtx, id, err := s.begin(ctx, key)
	if err != nil {
		return Result{Target: key.String()}, err
	}
	defer s.end(key, id)

	text, err := s.extractor.Extract(attemptCtx, image)
	if err != nil {
		if s.stale(key, id) {
			return Result{Target: key.String()}, ErrResolutionDiscarded
		}
		s.log.ErrorContext(ctx, "Failed to read address from image", "target", key.String(), "error", err)
		return Result{Target: key.String()}, err
	}

	if text == "" {
		s.log.InfoContext(ctx, "No address found in image", "target", key.String())
		return s.apply(ctx, key, id, "", nil)
	}

	return s.resolve(ctx, attemptCtx, key, id, text)
}

// Choose commits the candidate at index from the list waiting on key.
func (s *Service) Choose(ctx context.Context, key Key, index int) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	choice, ok := s.pending[key]
	if !ok {
		return Result{Target: key.String()}, ErrNoPendingChoice
	}
	if index < 0 || index >= len(choice.candidates) {
		return Result{Target: key.String(), Query: choice.query}, fmt.Errorf(
			"%w: %d of %d", ErrInvalidChoice, index, len(choice.candidates),
		)
	}

	candidate := choice.candidates[index]
	result := Result{
		Target:   key.String(),
		Query:    choice.query,
		Decision: resolver.Disambiguate([]models.AddressCandidate{candidate}, choice.query),
	}
	if err := s.commit(ctx, key, candidate, &result); err != nil {
		return result, err
	}
	delete(s.pending, key)

	return result, nil
}

// Pending returns the candidates waiting on key, if any.
func (s *Service) Pending(key Key) (resolver.Decision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	choice, ok := s.pending[key]
	if !ok {
		return resolver.Decision{}, false
	}

	return resolver.Disambiguate(choice.candidates, choice.query), true
}

// Dismiss abandons key: an in-flight resolution is cancelled and its result discarded, and any
// waiting candidate list is dropped.
func (s *Service) Dismiss(ctx context.Context, key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.inFlight[key]; ok {
		current.cancel()
		delete(s.inFlight, key)
		s.metrics.InFlight.Dec()
		s.log.InfoContext(ctx, "In-flight resolution dismissed", "target", key.String())
	}
	delete(s.pending, key)
}

func (s *Service) resolve(ctx, attemptCtx context.Context, key Key, id uint64, query string) (Result, error) {
	candidates, err := s.resolver.Resolve(attemptCtx, query, s.bias(key))
	if err != nil {
		if s.stale(key, id) {
			return Result{Target: key.String(), Query: query}, ErrResolutionDiscarded
		}
		return Result{Target: key.String(), Query: query}, err
	}

	return s.apply(ctx, key, id, query, candidates)
}

func (s *Service) apply(
	ctx context.Context,
	key Key,
	id uint64,
	query string,
	candidates []models.AddressCandidate,
) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := Result{Target: key.String(), Query: query, Decision: resolver.Disambiguate(candidates, query)}

	if current, ok := s.inFlight[key]; !ok || current.id != id {
		s.log.InfoContext(ctx, "Discarding stale resolution", "target", key.String())
		return result, ErrResolutionDiscarded
	}

	switch result.Decision.Kind {
	case resolver.AutoCommit:
		if err := s.commit(ctx, key, *result.Decision.Candidate, &result); err != nil {
			return result, err
		}
	case resolver.PromptUser:
		s.pending[key] = pendingChoice{query: query, candidates: slices.Clone(candidates)}
	case resolver.FallbackManualEntry:
	}

	return result, nil
}

// commit must be called with s.mu held.
func (s *Service) commit(ctx context.Context, key Key, candidate models.AddressCandidate, result *Result) error {
	switch key.Target {
	case TargetStop:
		stop := s.store.AddStop(ctx, candidate)
		result.Stop = &stop
	case TargetEdit:
		stop, err := s.store.EditStop(ctx, key.StopID, candidate)
		if err != nil {
			return err
		}
		result.Stop = &stop
	case TargetOrigin:
		origin := models.Origin{Address: candidate.Address, Coordinates: candidate.Coordinates}
		s.store.SetOrigin(ctx, &origin)
		result.Origin = &origin
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTarget, key.Target)
	}

	s.log.InfoContext(ctx, "Candidate committed", "target", key.String(), "address", candidate.Address)

	return nil
}

func (s *Service) begin(ctx context.Context, key Key) (context.Context, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[key]; busy {
		return nil, 0, ErrResolutionInFlight
	}

	s.nextID++
	attemptCtx, cancel := context.WithCancel(ctx)
	s.inFlight[key] = attempt{id: s.nextID, cancel: cancel}
	delete(s.pending, key)
	s.metrics.InFlight.Inc()

	return attemptCtx, s.nextID, nil
}

func (s *Service) end(key Key, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.inFlight[key]; ok && current.id == id {
		current.cancel()
		delete(s.inFlight, key)
		s.metrics.InFlight.Dec()
	}
}

func (s *Service) stale(key Key, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.inFlight[key]
	return !ok || current.id != id
}

func (s *Service) checkKey(key Key) error {
	switch key.Target {
	case TargetStop, TargetOrigin:
		return nil
	case TargetEdit:
		if _, ok := s.store.Stop(key.StopID); !ok {
			return fmt.Errorf("%w: %s", models.ErrStopNotFound, key.StopID)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTarget, key.Target)
	}
}

// bias prefers the live position; stop searches fall back to the explicit origin.
func (s *Service) bias(key Key) resolver.Bias {
	var bias resolver.Bias

	if live, ok := s.live.Current(); ok {
		bias.Near = &live
	}

	if key.Target != TargetOrigin {
		if origin := s.store.Origin(); origin != nil {
			bias.Address = origin.Address
			if bias.Near == nil {
				near := origin.Coordinates
				bias.Near = &near
			}
		}
	}

	return bias
}
