// Package api exposes the route engine over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/UnknownOlympus/hermes/internal/capture"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/resolver"
	"github.com/UnknownOlympus/hermes/internal/route"
	"github.com/UnknownOlympus/hermes/internal/stops"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// maxBodySize bounds uploads; phone photos of labels fit comfortably.
const maxBodySize = "12M"

// Error is the body of every non-2xx response. Prefill carries the query back so the client can
// reopen manual entry with it.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Prefill string `json:"prefill,omitempty"`
}

// RouteStore is the stop collection as the API uses it.
type RouteStore interface {
	Stop(id string) (models.Stop, bool)
	RemoveStop(ctx context.Context, id string)
	ToggleStatus(ctx context.Context, id string) (models.Stop, error)
	ClearAll(ctx context.Context)
	SetOrigin(ctx context.Context, origin *models.Origin)
}

// Sequencer orders the route and builds the courier's view.
type Sequencer interface {
	Resequence(ctx context.Context) (stops.Snapshot, error)
	View() route.View
}

// Pipeline runs captures and typed resolutions against a target.
type Pipeline interface {
	Submit(ctx context.Context, key capture.Key, query string) (capture.Result, error)
	SubmitImage(ctx context.Context, key capture.Key, image []byte) (capture.Result, error)
	Choose(ctx context.Context, key capture.Key, index int) (capture.Result, error)
	Pending(key capture.Key) (resolver.Decision, bool)
	Dismiss(ctx context.Context, key capture.Key)
	Import(ctx context.Context, queries []string) []capture.ImportItem
}

// AddressResolver resolves text without committing anything.
type AddressResolver interface {
	Resolve(ctx context.Context, query string, bias resolver.Bias) ([]models.AddressCandidate, error)
}

// LiveLocation holds the courier's latest position.
type LiveLocation interface {
	Update(coords models.Coordinates) error
	Current() (models.Coordinates, bool)
}

// Server implements the route API handlers.
type Server struct {
	log       *slog.Logger
	store     RouteStore
	sequencer Sequencer
	pipeline  Pipeline
	resolver  AddressResolver
	live      LiveLocation
}

// NewServer creates a new HTTP server for the route engine.
func NewServer(
	log *slog.Logger,
	store RouteStore,
	sequencer Sequencer,
	pipeline Pipeline,
	resolver AddressResolver,
	live LiveLocation,
) *Server {
	return &Server{
		log:       log,
		store:     store,
		sequencer: sequencer,
		pipeline:  pipeline,
		resolver:  resolver,
		live:      live,
	}
}

// NewRouter builds an echo instance with the API routes under /api/v1.
func NewRouter(server *Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				server.log.ErrorContext(c.Request().Context(), "Request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			server.log.DebugContext(c.Request().Context(), "Request handled", attrs...)
			return nil
		},
	}))

	server.Register(e.Group("/api/v1"))

	return e
}

// Register mounts the handlers on g.
func (s *Server) Register(g *echo.Group) {
	g.GET("/stops", s.GetStops)
	g.DELETE("/stops", s.ClearStops)
	g.POST("/stops/resolve", s.ResolveStop)
	g.POST("/stops/capture", s.CaptureStop)
	g.POST("/stops/import", s.ImportStops)
	g.POST("/stops/resequence", s.Resequence)
	g.PUT("/stops/:id/resolve", s.EditStop)
	g.POST("/stops/:id/toggle", s.ToggleStop)
	g.DELETE("/stops/:id", s.RemoveStop)
	g.GET("/stops/:id/navigation", s.GetNavigation)

	g.PUT("/origin/resolve", s.ResolveOrigin)
	g.POST("/origin/capture", s.CaptureOrigin)
	g.DELETE("/origin", s.ClearOrigin)

	g.GET("/resolutions/:target", s.GetPending)
	g.POST("/resolutions/:target/choose", s.Choose)
	g.DELETE("/resolutions/:target", s.Dismiss)

	g.GET("/resolve", s.Resolve)

	g.PUT("/location", s.PutLocation)
	g.GET("/location", s.GetLocation)
}

// fail maps domain errors to status codes.
func (s *Server) fail(ctx echo.Context, err error, prefill string) error {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrResolutionFailure):
		status = http.StatusBadGateway
	case errors.Is(err, models.ErrCaptureUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, models.ErrStopNotFound),
		errors.Is(err, models.ErrNoMatchFound),
		errors.Is(err, capture.ErrNoPendingChoice):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidCoordinates),
		errors.Is(err, capture.ErrInvalidTarget),
		errors.Is(err, capture.ErrInvalidChoice):
		status = http.StatusBadRequest
	case errors.Is(err, capture.ErrResolutionInFlight):
		status = http.StatusConflict
	case errors.Is(err, capture.ErrResolutionDiscarded):
		status = http.StatusGone
	}

	if status == http.StatusInternalServerError {
		s.log.ErrorContext(ctx.Request().Context(), "Unexpected error", "error", err)
	}

	return ctx.JSON(status, Error{Code: status, Message: err.Error(), Prefill: prefill})
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, Error{Code: http.StatusBadRequest, Message: message})
}
