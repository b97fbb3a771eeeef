package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/UnknownOlympus/hermes/internal/capture"
	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/navigation"
	"github.com/UnknownOlympus/hermes/internal/resolver"
	"github.com/labstack/echo/v4"
)

type queryRequest struct {
	Query string `json:"query"`
}

type chooseRequest struct {
	Index *int `json:"index"`
}

type importRequest struct {
	Addresses []string `json:"addresses"`
	Text      string   `json:"text"` // Text holds one address per line.
}

type importResponse struct {
	Items []capture.ImportItem `json:"items"`
	Added int                  `json:"added"`
}

type resolveResponse struct {
	Query      string                    `json:"query"`
	Candidates []models.AddressCandidate `json:"candidates"`
	Decision   resolver.Decision         `json:"decision"`
}

type navigationResponse struct {
	StopID string `json:"stop_id"`
	navigation.Links
}

type statusResponse struct {
	Status string `json:"status"`
}

// GetStops handles GET /api/v1/stops - the display-ordered route.
func (s *Server) GetStops(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.sequencer.View())
}

// ClearStops handles DELETE /api/v1/stops - removes every stop and the explicit origin.
func (s *Server) ClearStops(ctx echo.Context) error {
	s.store.ClearAll(ctx.Request().Context())
	return ctx.NoContent(http.StatusNoContent)
}

// ResolveStop handles POST /api/v1/stops/resolve - resolves typed text into a new stop.
func (s *Server) ResolveStop(ctx echo.Context) error {
	return s.submit(ctx, capture.StopKey())
}

// CaptureStop handles POST /api/v1/stops/capture - reads a new stop from a photo.
func (s *Server) CaptureStop(ctx echo.Context) error {
	return s.submitImage(ctx, capture.StopKey())
}

// EditStop handles PUT /api/v1/stops/:id/resolve - re-resolves an existing stop in place.
func (s *Server) EditStop(ctx echo.Context) error {
	return s.submit(ctx, capture.EditKey(ctx.Param("id")))
}

// ImportStops handles POST /api/v1/stops/import - resolves a batch of typed addresses.
func (s *Server) ImportStops(ctx echo.Context) error {
	var req importRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	queries := append([]string{}, req.Addresses...)
	queries = append(queries, strings.Split(req.Text, "\n")...)

	items := s.pipeline.Import(ctx.Request().Context(), queries)
	response := importResponse{Items: items}
	for _, item := range items {
		if item.Stop != nil {
			response.Added++
		}
	}

	return ctx.JSON(http.StatusOK, response)
}

// Resequence handles POST /api/v1/stops/resequence. Without any origin the request is accepted
// and the client is told to wait for a position.
func (s *Server) Resequence(ctx echo.Context) error {
	snap, err := s.sequencer.Resequence(ctx.Request().Context())
	if errors.Is(err, models.ErrNoOriginAvailable) {
		return ctx.JSON(http.StatusAccepted, statusResponse{Status: "waiting_for_position"})
	}
	if err != nil {
		return s.fail(ctx, err, "")
	}

	s.log.DebugContext(ctx.Request().Context(), "Route resequenced via API", "stops", len(snap.Stops))

	return ctx.JSON(http.StatusOK, s.sequencer.View())
}

// ToggleStop handles POST /api/v1/stops/:id/toggle.
func (s *Server) ToggleStop(ctx echo.Context) error {
	stop, err := s.store.ToggleStatus(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return s.fail(ctx, err, "")
	}

	return ctx.JSON(http.StatusOK, stop)
}

// RemoveStop handles DELETE /api/v1/stops/:id. Unknown ids succeed.
func (s *Server) RemoveStop(ctx echo.Context) error {
	s.store.RemoveStop(ctx.Request().Context(), ctx.Param("id"))
	return ctx.NoContent(http.StatusNoContent)
}

// GetNavigation handles GET /api/v1/stops/:id/navigation - deep links for external map apps.
func (s *Server) GetNavigation(ctx echo.Context) error {
	stop, ok := s.store.Stop(ctx.Param("id"))
	if !ok {
		return s.fail(ctx, models.ErrStopNotFound, "")
	}

	return ctx.JSON(http.StatusOK, navigationResponse{StopID: stop.ID, Links: navigation.For(stop.Coordinates)})
}

// ResolveOrigin handles PUT /api/v1/origin/resolve - sets the explicit origin from typed text.
func (s *Server) ResolveOrigin(ctx echo.Context) error {
	return s.submit(ctx, capture.OriginKey())
}

// CaptureOrigin handles POST /api/v1/origin/capture - sets the explicit origin from a photo.
func (s *Server) CaptureOrigin(ctx echo.Context) error {
	return s.submitImage(ctx, capture.OriginKey())
}

// ClearOrigin handles DELETE /api/v1/origin - the live location becomes authoritative again.
func (s *Server) ClearOrigin(ctx echo.Context) error {
	s.store.SetOrigin(ctx.Request().Context(), nil)
	return ctx.NoContent(http.StatusNoContent)
}

// GetPending handles GET /api/v1/resolutions/:target - candidates waiting for a choice.
func (s *Server) GetPending(ctx echo.Context) error {
	key, err := capture.ParseKey(ctx.Param("target"), ctx.QueryParam("stop_id"))
	if err != nil {
		return s.fail(ctx, err, "")
	}

	decision, ok := s.pipeline.Pending(key)
	if !ok {
		return s.fail(ctx, capture.ErrNoPendingChoice, "")
	}

	return ctx.JSON(http.StatusOK, decision)
}

// Choose handles POST /api/v1/resolutions/:target/choose - commits one candidate.
func (s *Server) Choose(ctx echo.Context) error {
	key, err := capture.ParseKey(ctx.Param("target"), ctx.QueryParam("stop_id"))
	if err != nil {
		return s.fail(ctx, err, "")
	}

	var req chooseRequest
	if err = ctx.Bind(&req); err != nil || req.Index == nil {
		return badRequest(ctx, "Request body must contain an index")
	}

	result, err := s.pipeline.Choose(ctx.Request().Context(), key, *req.Index)
	if err != nil {
		return s.fail(ctx, err, result.Query)
	}

	return ctx.JSON(committedStatus(result), result)
}

// Dismiss handles DELETE /api/v1/resolutions/:target - abandons an in-flight or waiting resolution.
func (s *Server) Dismiss(ctx echo.Context) error {
	key, err := capture.ParseKey(ctx.Param("target"), ctx.QueryParam("stop_id"))
	if err != nil {
		return s.fail(ctx, err, "")
	}

	s.pipeline.Dismiss(ctx.Request().Context(), key)

	return ctx.NoContent(http.StatusNoContent)
}

// Resolve handles GET /api/v1/resolve?q=&lat=&lng=&near= - candidates without committing. A valid
// answer without candidates is a 404 carrying the query for manual correction.
func (s *Server) Resolve(ctx echo.Context) error {
	query := ctx.QueryParam("q")
	bias := resolver.Bias{Address: ctx.QueryParam("near")}

	latText, lngText := ctx.QueryParam("lat"), ctx.QueryParam("lng")
	if latText != "" || lngText != "" {
		coords, err := parseCoordinates(latText, lngText)
		if err != nil {
			return s.fail(ctx, err, query)
		}
		bias.Near = &coords
	}

	candidates, err := s.resolver.Resolve(ctx.Request().Context(), query, bias)
	if err != nil {
		return s.fail(ctx, err, query)
	}
	if len(candidates) == 0 {
		return s.fail(ctx, models.ErrNoMatchFound, query)
	}

	return ctx.JSON(http.StatusOK, resolveResponse{
		Query:      query,
		Candidates: candidates,
		Decision:   resolver.Disambiguate(candidates, query),
	})
}

// PutLocation handles PUT /api/v1/location - pushes the device position.
func (s *Server) PutLocation(ctx echo.Context) error {
	var coords models.Coordinates
	if err := ctx.Bind(&coords); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	if err := s.live.Update(coords); err != nil {
		return s.fail(ctx, err, "")
	}

	return ctx.NoContent(http.StatusNoContent)
}

// GetLocation handles GET /api/v1/location.
func (s *Server) GetLocation(ctx echo.Context) error {
	coords, ok := s.live.Current()
	if !ok {
		return ctx.JSON(http.StatusNotFound, Error{Code: http.StatusNotFound, Message: "no live location yet"})
	}

	return ctx.JSON(http.StatusOK, coords)
}

func (s *Server) submit(ctx echo.Context, key capture.Key) error {
	var req queryRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	result, err := s.pipeline.Submit(ctx.Request().Context(), key, req.Query)
	if err != nil {
		return s.fail(ctx, err, req.Query)
	}

	return ctx.JSON(committedStatus(result), result)
}

func (s *Server) submitImage(ctx echo.Context, key capture.Key) error {
	header, err := ctx.FormFile("image")
	if err != nil {
		return badRequest(ctx, "Multipart field \"image\" is required")
	}

	file, err := header.Open()
	if err != nil {
		return badRequest(ctx, "Failed to open uploaded image")
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		return badRequest(ctx, "Failed to read uploaded image")
	}

	result, err := s.pipeline.SubmitImage(ctx.Request().Context(), key, image)
	if err != nil {
		return s.fail(ctx, err, result.Query)
	}

	return ctx.JSON(committedStatus(result), result)
}

func committedStatus(result capture.Result) int {
	if result.Stop != nil && result.Target == string(capture.TargetStop) {
		return http.StatusCreated
	}

	return http.StatusOK
}

func parseCoordinates(latText, lngText string) (models.Coordinates, error) {
	lat, errLat := strconv.ParseFloat(latText, 64)
	lng, errLng := strconv.ParseFloat(lngText, 64)
	coords := models.Coordinates{Latitude: lat, Longitude: lng}

	if errLat != nil || errLng != nil || !coords.Valid() {
		return models.Coordinates{}, models.ErrInvalidCoordinates
	}

	return coords, nil
}
