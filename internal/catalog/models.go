// Package catalog talks to the remote STAC search endpoint and normalizes
// its responses into the records the view state consumes.
package catalog

import (
	"errors"

	"github.com/planetlabs/go-stac"

	"github.com/rkm/stac-area-search/pkg/geojson"
)

var (
	// ErrCatalogUnavailable is returned on transport failures, timeouts,
	// and non-2xx responses from the catalog endpoint.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrMalformedResponse is returned when the catalog payload is not a
	// usable feature collection.
	ErrMalformedResponse = errors.New("malformed catalog response")
)

// featureCollection is the raw decode shape of the catalog's search
// response. Features reuse the STAC item type; anything beyond structural
// shape is not validated here.
type featureCollection struct {
	Type           string       `json:"type"`
	Features       []*stac.Item `json:"features"`
	NumberMatched  int          `json:"numberMatched"`
	NumberReturned int          `json:"numberReturned"`
	Context        *Context     `json:"context"`
}

// Context is the catalog's response context block, passed through as-is.
type Context struct {
	Limit    int `json:"limit,omitempty"`
	Matched  int `json:"matched,omitempty"`
	Returned int `json:"returned,omitempty"`
}

// AssetLink is a named reference to a resource associated with an item,
// indexed by relation name on the item.
type AssetLink struct {
	Href      string `json:"href"`
	MediaType string `json:"type,omitempty"`
	Title     string `json:"title,omitempty"`
}

// Properties is the open metadata map carried by a catalog item. Values
// are whatever the server returned; the typed accessors below are the
// defensive lookup path for display code.
type Properties map[string]any

// String returns the value for key as a string.
func (p Properties) String(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

// Number returns the value for key as a float64. JSON numbers decode to
// float64, so integer-valued properties are covered too.
func (p Properties) Number(key string) (float64, bool) {
	v, ok := p[key].(float64)
	return v, ok
}

// Bool returns the value for key as a bool.
func (p Properties) Bool(key string) (bool, bool) {
	v, ok := p[key].(bool)
	return v, ok
}

// Item is a normalized catalog search result.
type Item struct {
	ID         string               `json:"id"`
	BBox       []float64            `json:"bbox"`
	Geometry   *geojson.Geometry    `json:"geometry,omitempty"`
	Properties Properties           `json:"properties"`
	Assets     map[string]AssetLink `json:"assets"`
	Links      map[string]AssetLink `json:"links"`
}

// Center returns the midpoint of the item's bounding box.
func (it *Item) Center() (lon, lat float64) {
	return geojson.BBoxCenter(it.BBox)
}

// OverlayCorners returns the item's bbox corners in the order required to
// pin a raster overlay: bottom-left, bottom-right, top-right, top-left.
func (it *Item) OverlayCorners() [][]float64 {
	return geojson.RasterCorners(it.BBox)
}

// ResultSet is the normalized outcome of one search. Item order is the
// server-returned order and is meaningful for display. Matched and
// Returned are the server-reported counts, passed through unchanged even
// when malformed features were dropped.
type ResultSet struct {
	Items    []*Item  `json:"items"`
	Matched  int      `json:"matched"`
	Returned int      `json:"returned"`
	Dropped  int      `json:"dropped,omitempty"`
	Context  *Context `json:"context,omitempty"`
}

// Find returns the item with the given ID, or nil.
func (rs *ResultSet) Find(id string) *Item {
	for _, it := range rs.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}
