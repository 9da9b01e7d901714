package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rkm/stac-area-search/internal/catalog"
	"github.com/rkm/stac-area-search/internal/search"
	"github.com/rkm/stac-area-search/internal/session"
	"github.com/rkm/stac-area-search/internal/viewstate"
	"github.com/rkm/stac-area-search/pkg/geojson"
)

// Handlers contains all HTTP handlers for the area-search service.
type Handlers struct {
	session *session.Session
	store   *viewstate.Store
	logger  *slog.Logger
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(s *session.Session, store *viewstate.Store, logger *slog.Logger) *Handlers {
	return &Handlers{
		session: s,
		store:   store,
		logger:  logger,
	}
}

// searchBody is the POST /search request body.
type searchBody struct {
	Collection string            `json:"collection"`
	Area       *geojson.Geometry `json:"area"`
	From       string            `json:"from"` // YYYY-MM-DD
	To         string            `json:"to"`   // YYYY-MM-DD
}

// Search submits a search and returns the resulting view state snapshot.
// POST /search
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	if body.Area == nil {
		WriteBadRequest(w, "area is required")
		return
	}
	if body.Area.Type != "Polygon" {
		WriteError(w, http.StatusBadRequest, ErrCodeUnsupportedGeometry,
			"area must be a Polygon, got "+body.Area.Type)
		return
	}

	rings, err := body.Area.Polygon()
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeUnsupportedGeometry, err.Error())
		return
	}

	dr, err := parseDateRange(body.From, body.To)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	err = h.session.Submit(r.Context(), body.Collection, search.Area(rings), dr)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, h.store.Snapshot())
	case errors.Is(err, session.ErrSearchInFlight):
		WriteConflict(w, "a search is already in flight")
	case errors.Is(err, search.ErrValidation):
		WriteBadRequest(w, err.Error())
	case errors.Is(err, catalog.ErrMalformedResponse):
		WriteUpstreamError(w, "catalog returned an unusable response")
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		WriteUpstreamError(w, "catalog unavailable")
	default:
		h.logger.Error("search failed", slog.String("error", err.Error()))
		WriteInternalError(w, "search failed")
	}
}

// State returns the current view state snapshot.
// GET /state
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.store.Snapshot())
}

// selectResponse carries the selection state after a toggle, plus the
// overlay placement data a map client needs when the overlay is visible.
type selectResponse struct {
	Selection viewstate.Selection `json:"selection"`
	Overlay   *overlayInfo        `json:"overlay,omitempty"`
}

type overlayInfo struct {
	Corners  [][]float64 `json:"corners"`
	Href     string      `json:"href,omitempty"`
	Acquired string      `json:"acquired,omitempty"`
}

// SelectItem toggles selection of a result item.
// POST /results/{itemId}/select
func (h *Handlers) SelectItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	if err := h.store.SelectItem(itemID); err != nil {
		if errors.Is(err, viewstate.ErrUnknownItem) {
			WriteNotFound(w, "item not in current results: "+itemID)
			return
		}
		WriteInternalError(w, err.Error())
		return
	}

	snap := h.store.Snapshot()
	resp := selectResponse{Selection: snap.Selection}
	if snap.Selection.OverlayVisible && snap.Results != nil {
		if item := snap.Results.Find(snap.Selection.ItemID); item != nil {
			resp.Overlay = overlayForItem(item)
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

// overlayForItem assembles corner coordinates and display metadata for an
// item whose overlay is being shown.
func overlayForItem(item *catalog.Item) *overlayInfo {
	info := &overlayInfo{Corners: item.OverlayCorners()}

	for _, key := range []string{"visual", "thumbnail", "overview"} {
		if asset, ok := item.Assets[key]; ok && asset.Href != "" {
			info.Href = asset.Href
			break
		}
	}

	if dt, ok := item.Properties.String("datetime"); ok {
		if readable, err := catalog.ReadableDate(dt); err == nil {
			info.Acquired = readable
		}
	}

	return info
}

// ClearResults empties the current result set.
// DELETE /results
func (h *Handlers) ClearResults(w http.ResponseWriter, r *http.Request) {
	h.store.ClearResults()
	w.WriteHeader(http.StatusNoContent)
}

// focusBody is the POST /focus request body.
type focusBody struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// SetFocus re-centers the map view.
// POST /focus
func (h *Handlers) SetFocus(w http.ResponseWriter, r *http.Request) {
	var body focusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	if body.Longitude < -180 || body.Longitude > 180 {
		WriteBadRequest(w, "longitude must be between -180 and 180")
		return
	}
	if body.Latitude < -90 || body.Latitude > 90 {
		WriteBadRequest(w, "latitude must be between -90 and 90")
		return
	}

	h.store.SetFocus(body.Longitude, body.Latitude)
	w.WriteHeader(http.StatusNoContent)
}

// Health returns service health.
// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "ok",
	}

	WriteJSON(w, http.StatusOK, response)
}

// parseDateRange parses the from/to calendar dates of a search body.
func parseDateRange(from, to string) (search.DateRange, error) {
	if from == "" || to == "" {
		return search.DateRange{}, errors.New("both from and to dates are required (YYYY-MM-DD)")
	}

	fromDate, err := time.Parse("2006-01-02", from)
	if err != nil {
		return search.DateRange{}, errors.New("invalid from date, expected YYYY-MM-DD")
	}

	toDate, err := time.Parse("2006-01-02", to)
	if err != nil {
		return search.DateRange{}, errors.New("invalid to date, expected YYYY-MM-DD")
	}

	return search.DateRange{From: fromDate, To: toDate}, nil
}
