// Package viewstate holds the derived map view state: the current result
// set, the selected item and its overlay visibility, and the map focal
// point. The store is the single mutable owner of this state; rendering
// consumes read-only snapshots.
package viewstate

import (
	"errors"
	"sync"

	"github.com/rkm/stac-area-search/internal/catalog"
)

var (
	// ErrUnknownItem is returned when a selection references an id that is
	// not in the current result set. State is left unchanged.
	ErrUnknownItem = errors.New("unknown item")

	// ErrStaleResult is returned when a result set carries a search token
	// older than the latest issued one. The result is discarded.
	ErrStaleResult = errors.New("stale search result")
)

// MapFocus is the map center the viewport controller should pan to.
type MapFocus struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Selection is the current item selection. OverlayVisible is meaningful
// only when ItemID is set.
type Selection struct {
	ItemID         string `json:"selectedItemId,omitempty"`
	OverlayVisible bool   `json:"overlayVisible"`
}

// Snapshot is a fully consistent read of the store.
type Snapshot struct {
	Results   *catalog.ResultSet `json:"results,omitempty"`
	Selection Selection          `json:"selection"`
	Focus     MapFocus           `json:"focus"`
}

// FocusFunc derives the map focus from a new result set. The second
// return value reports whether a focus could be derived.
type FocusFunc func(*catalog.ResultSet) (MapFocus, bool)

// FirstItemFocus centers on the first item's bounding box. Centering on
// the aggregate extent instead would be a one-line swap here.
func FirstItemFocus(rs *catalog.ResultSet) (MapFocus, bool) {
	if rs == nil || len(rs.Items) == 0 {
		return MapFocus{}, false
	}
	lon, lat := rs.Items[0].Center()
	return MapFocus{Longitude: lon, Latitude: lat}, true
}

// Store owns the view state. All transitions take the lock, so every read
// observes a fully consistent snapshot.
type Store struct {
	mu        sync.Mutex
	results   *catalog.ResultSet
	selection Selection
	focus     MapFocus

	issued  uint64 // latest search token handed out
	focusFn FocusFunc
}

// NewStore creates an empty store using FirstItemFocus.
func NewStore() *Store {
	return &Store{focusFn: FirstItemFocus}
}

// WithFocusFunc replaces the focus derivation.
func (s *Store) WithFocusFunc(fn FocusFunc) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.focusFn = fn
	}
	return s
}

// BeginSearch issues a new search-sequence token. Only the result set
// carrying the latest token is ever applied; anything older is stale.
func (s *Store) BeginSearch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// ReplaceResults installs a new result set tagged with the given token.
// Selection is always cleared; focus is recomputed from the new set when
// possible. Returns ErrStaleResult (leaving state untouched) if a newer
// search has been issued since token was obtained.
func (s *Store) ReplaceResults(token uint64, rs *catalog.ResultSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.issued {
		return ErrStaleResult
	}

	s.results = rs
	s.selection = Selection{}
	if focus, ok := s.focusFn(rs); ok {
		s.focus = focus
	}
	return nil
}

// ClearResults empties the result set and selection. Focus is left where
// it was so the map does not jump on reset.
func (s *Store) ClearResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = nil
	s.selection = Selection{}
}

// SelectItem applies the selection toggle rule: re-selecting the current
// item flips overlay visibility; selecting a different item replaces the
// selection with the overlay visible. Unknown ids fail with ErrUnknownItem
// and change nothing.
func (s *Store) SelectItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.results == nil || s.results.Find(id) == nil {
		return ErrUnknownItem
	}

	if s.selection.ItemID == id {
		s.selection.OverlayVisible = !s.selection.OverlayVisible
		return nil
	}

	s.selection = Selection{ItemID: id, OverlayVisible: true}
	return nil
}

// SetFocus overwrites the map focus unconditionally.
func (s *Store) SetFocus(lon, lat float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus = MapFocus{Longitude: lon, Latitude: lat}
}

// Snapshot returns a consistent copy of the current state. The result set
// pointer is shared but treated as immutable by all consumers.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Results:   s.results,
		Selection: s.selection,
		Focus:     s.focus,
	}
}
