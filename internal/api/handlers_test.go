package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rkm/stac-area-search/internal/catalog"
	"github.com/rkm/stac-area-search/internal/search"
	"github.com/rkm/stac-area-search/internal/session"
	"github.com/rkm/stac-area-search/internal/viewstate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// catalogStub serves a fixed STAC search response.
func catalogStub(t *testing.T, status int, payload any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if payload != nil {
			json.NewEncoder(w).Encode(payload)
		}
	}))
}

func stacResponse(ids ...string) map[string]any {
	features := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		features = append(features, map[string]any{
			"type":       "Feature",
			"id":         id,
			"bbox":       []float64{0, 0, 10, 10},
			"geometry":   map[string]any{"type": "Polygon", "coordinates": [][][]float64{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}},
			"properties": map[string]any{"datetime": "2023-01-15T10:30:00Z"},
			"assets":     map[string]any{},
			"links":      []any{},
		})
	}
	return map[string]any{
		"type":           "FeatureCollection",
		"features":       features,
		"numberMatched":  len(ids),
		"numberReturned": len(ids),
	}
}

func newTestRouter(t *testing.T, upstream *httptest.Server) (http.Handler, *viewstate.Store) {
	t.Helper()

	builder := search.NewBuilder([]string{"sentinel-2-l1c"}, 10)
	client := catalog.NewClient(upstream.URL, 5*time.Second).WithLogger(testLogger())
	store := viewstate.NewStore()
	sess := session.New(builder, client, store, testLogger())

	h := NewHandlers(sess, store, testLogger())
	return NewRouter(h, testLogger(), nil), store
}

func searchPayload(collection string) []byte {
	body := map[string]any{
		"collection": collection,
		"area": map[string]any{
			"type": "Polygon",
			"coordinates": [][][]float64{
				{{-122.5, 37.8}, {-122.4, 37.8}, {-122.4, 37.9}, {-122.5, 37.9}, {-122.5, 37.8}},
			},
		},
		"from": "2023-01-02",
		"to":   "2023-01-22",
	}
	data, _ := json.Marshal(body)
	return data
}

func TestSearchEndpoint_Success(t *testing.T) {
	upstream := catalogStub(t, http.StatusOK, stacResponse("item-1", "item-2"))
	defer upstream.Close()

	router, _ := newTestRouter(t, upstream)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(searchPayload("sentinel-2-l1c")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var snap struct {
		Results struct {
			Items []struct {
				ID string `json:"id"`
			} `json:"items"`
		} `json:"results"`
		Focus struct {
			Longitude float64 `json:"longitude"`
			Latitude  float64 `json:"latitude"`
		} `json:"focus"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("response is not a snapshot: %v", err)
	}

	if len(snap.Results.Items) != 2 {
		t.Errorf("items = %d, want 2", len(snap.Results.Items))
	}
	if snap.Focus.Longitude != 5 || snap.Focus.Latitude != 5 {
		t.Errorf("focus = %+v, want first item center (5, 5)", snap.Focus)
	}
}

func TestSearchEndpoint_UnknownCollection(t *testing.T) {
	upstream := catalogStub(t, http.StatusOK, stacResponse())
	defer upstream.Close()

	router, _ := newTestRouter(t, upstream)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(searchPayload("not-a-collection")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearchEndpoint_NonPolygonArea(t *testing.T) {
	upstream := catalogStub(t, http.StatusOK, stacResponse())
	defer upstream.Close()

	router, _ := newTestRouter(t, upstream)

	body := map[string]any{
		"collection": "sentinel-2-l1c",
		"area":       map[string]any{"type": "Point", "coordinates": []float64{0, 0}},
		"from":       "2023-01-02",
		"to":         "2023-01-22",
	}
	data, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var apiErr APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("error body: %v", err)
	}
	if apiErr.Code != ErrCodeUnsupportedGeometry {
		t.Errorf("code = %s, want %s", apiErr.Code, ErrCodeUnsupportedGeometry)
	}
}

func TestSearchEndpoint_BadDates(t *testing.T) {
	upstream := catalogStub(t, http.StatusOK, stacResponse())
	defer upstream.Close()

	router, _ := newTestRouter(t, upstream)

	body := map[string]any{
		"collection": "sentinel-2-l1c",
		"area": map[string]any{
			"type": "Polygon",
			"coordinates": [][][]float64{
				{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}},
			},
		},
		"from": "02/01/2023",
		"to":   "2023-01-22",
	}
	data, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearchEndpoint_UpstreamFailure(t *testing.T) {
	upstream := catalogStub(t, http.StatusInternalServerError, nil)
	defer upstream.Close()

	router, store := newTestRouter(t, upstream)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(searchPayload("sentinel-2-l1c")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}

	if snap := store.Snapshot(); snap.Results != nil {
		t.Errorf("Results = %+v, want untouched nil on failure", snap.Results)
	}
}

func TestSelectEndpoint_ToggleAndUnknown(t *testing.T) {
	upstream := catalogStub(t, http.StatusOK, stacResponse("item-1"))
	defer upstream.Close()

	router, _ := newTestRouter(t, upstream)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(searchPayload("sentinel-2-l1c")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("seed search status = %d", rec.Code)
	}

	// First select: overlay visible, placement data included.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/results/item-1/select", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("select status = %d, want 200", rec.Code)
	}

	type selectReply struct {
		Selection viewstate.Selection `json:"selection"`
		Overlay   *struct {
			Corners  [][]float64 `json:"corners"`
			Acquired string      `json:"acquired"`
		} `json:"overlay"`
	}
	var resp selectReply
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("selection body: %v", err)
	}
	if resp.Selection.ItemID != "item-1" || !resp.Selection.OverlayVisible {
		t.Errorf("selection = %+v, want item-1 visible", resp.Selection)
	}
	if resp.Overlay == nil {
		t.Fatal("Overlay = nil, want placement data for visible overlay")
	}
	wantCorners := [][]float64{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	if len(resp.Overlay.Corners) != 4 {
		t.Fatalf("corners = %v, want 4", resp.Overlay.Corners)
	}
	for i, c := range wantCorners {
		got := resp.Overlay.Corners[i]
		if got[0] != c[0] || got[1] != c[1] {
			t.Errorf("corner[%d] = %v, want %v", i, got, c)
		}
	}
	if resp.Overlay.Acquired == "" {
		t.Error("Acquired is empty, want readable datetime")
	}

	// Re-select: overlay toggled off, no placement data.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/results/item-1/select", nil))
	resp = selectReply{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("selection body: %v", err)
	}
	if resp.Selection.OverlayVisible {
		t.Errorf("selection = %+v, want overlay hidden after toggle", resp.Selection)
	}
	if resp.Overlay != nil {
		t.Errorf("Overlay = %+v, want nil when hidden", resp.Overlay)
	}

	// Unknown item: 404, state unchanged.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/results/ghost/select", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown select status = %d, want 404", rec.Code)
	}
}

func TestClearResultsEndpoint(t *testing.T) {
	upstream := catalogStub(t, http.StatusOK, stacResponse("item-1"))
	defer upstream.Close()

	router, store := newTestRouter(t, upstream)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(searchPayload("sentinel-2-l1c")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("seed search status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/results", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("clear status = %d, want 204", rec.Code)
	}

	snap := store.Snapshot()
	if snap.Results != nil {
		t.Errorf("Results = %+v, want nil after clear", snap.Results)
	}
	// Focus survives the clear.
	if snap.Focus.Longitude != 5 || snap.Focus.Latitude != 5 {
		t.Errorf("Focus = %+v, want kept", snap.Focus)
	}
}

func TestFocusEndpoint(t *testing.T) {
	upstream := catalogStub(t, http.StatusOK, stacResponse())
	defer upstream.Close()

	router, store := newTestRouter(t, upstream)

	data, _ := json.Marshal(map[string]float64{"longitude": 13.4, "latitude": 52.5})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/focus", bytes.NewReader(data)))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("focus status = %d, want 204", rec.Code)
	}

	if f := store.Snapshot().Focus; f.Longitude != 13.4 || f.Latitude != 52.5 {
		t.Errorf("Focus = %+v, want (13.4, 52.5)", f)
	}

	data, _ = json.Marshal(map[string]float64{"longitude": 999, "latitude": 0})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/focus", bytes.NewReader(data)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range focus status = %d, want 400", rec.Code)
	}
}

func TestStateEndpoint(t *testing.T) {
	upstream := catalogStub(t, http.StatusOK, stacResponse())
	defer upstream.Close()

	router, _ := newTestRouter(t, upstream)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("state status = %d, want 200", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	upstream := catalogStub(t, http.StatusOK, stacResponse())
	defer upstream.Close()

	router, _ := newTestRouter(t, upstream)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestNotFound(t *testing.T) {
	upstream := catalogStub(t, http.StatusOK, stacResponse())
	defer upstream.Close()

	router, _ := newTestRouter(t, upstream)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
