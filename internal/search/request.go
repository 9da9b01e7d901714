// Package search builds catalog search requests from user input: a drawn
// polygon, a collection choice, and a date range.
package search

import (
	"fmt"
	"time"

	"github.com/rkm/stac-area-search/pkg/geojson"
)

// DefaultLimit is the result limit used when none is configured.
const DefaultLimit = 10

// Area is a captured search polygon: one or more closed linear rings of
// [lon, lat] pairs in WGS84. Immutable once captured; a redraw replaces it
// wholesale.
type Area [][][]float64

// Validate checks the polygon invariants: at least one ring, each ring
// closed with at least 4 points, coordinates in WGS84 ranges.
func (a Area) Validate() error {
	return geojson.ValidatePolygonRings(a)
}

// DateRange is a pair of calendar dates bounding a search. Both ends are
// required; From must not be after To.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Datetime serializes the range to the catalog's interval form:
// <from>T00:00:00Z/<to>T23:59:59Z.
func (dr DateRange) Datetime() string {
	return fmt.Sprintf("%sT00:00:00Z/%sT23:59:59Z",
		dr.From.UTC().Format("2006-01-02"),
		dr.To.UTC().Format("2006-01-02"),
	)
}

// Request is a fully assembled catalog search request. Constructed fresh
// per search and never mutated; it marshals directly to the POST body of
// the catalog's /search endpoint.
type Request struct {
	Collections []string          `json:"collections"`
	Intersects  *geojson.Geometry `json:"intersects"`
	Datetime    string            `json:"datetime"`
	Limit       int               `json:"limit"`
}

// Builder validates raw user input and assembles search requests.
// It is stateless across calls; the known-collection set and default limit
// come from configuration.
type Builder struct {
	collections map[string]struct{}
	limit       int
}

// NewBuilder creates a Builder for the given known collection IDs.
// A non-positive defaultLimit falls back to DefaultLimit.
func NewBuilder(collections []string, defaultLimit int) *Builder {
	known := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		known[c] = struct{}{}
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return &Builder{
		collections: known,
		limit:       defaultLimit,
	}
}

// Knows reports whether a collection ID is configured.
func (b *Builder) Knows(collection string) bool {
	_, ok := b.collections[collection]
	return ok
}

// Build assembles a Request from a collection ID, a captured area, and a
// date range. All failures wrap ErrValidation.
func (b *Builder) Build(collection string, area Area, dr DateRange) (*Request, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection is required", ErrValidation)
	}
	if !b.Knows(collection) {
		return nil, fmt.Errorf("%w: %w: %q", ErrValidation, ErrUnknownCollection, collection)
	}

	if len(area) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrValidation, ErrNoArea)
	}
	if err := area.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if dr.From.IsZero() || dr.To.IsZero() {
		return nil, fmt.Errorf("%w: both dates are required", ErrValidation)
	}
	if dr.From.After(dr.To) {
		return nil, fmt.Errorf("%w: from date %s is after to date %s",
			ErrValidation, dr.From.Format("2006-01-02"), dr.To.Format("2006-01-02"))
	}

	intersects, err := geojson.NewPolygon(area)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return &Request{
		Collections: []string{collection},
		Intersects:  intersects,
		Datetime:    dr.Datetime(),
		Limit:       b.limit,
	}, nil
}
