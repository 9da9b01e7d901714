// Package geojson provides GeoJSON geometry types and the coordinate math
// used to place catalog items on a map.
package geojson

import (
	"encoding/json"
	"fmt"
	"math"
)

// Geometry represents a GeoJSON geometry object.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Point returns the coordinates as a Point [lon, lat].
// Returns error if geometry is not a Point.
func (g *Geometry) Point() ([]float64, error) {
	if g.Type != "Point" {
		return nil, fmt.Errorf("geometry is not a Point, got %s", g.Type)
	}
	var coords []float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Point coordinates: %w", err)
	}
	if len(coords) < 2 {
		return nil, fmt.Errorf("invalid Point coordinates: expected at least 2 values, got %d", len(coords))
	}
	return coords, nil
}

// Polygon returns the coordinates as a Polygon [][][lon, lat].
// Returns error if geometry is not a Polygon.
func (g *Geometry) Polygon() ([][][]float64, error) {
	if g.Type != "Polygon" {
		return nil, fmt.Errorf("geometry is not a Polygon, got %s", g.Type)
	}
	var coords [][][]float64
	if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Polygon coordinates: %w", err)
	}
	return coords, nil
}

// NewPolygon creates a Polygon geometry from ring coordinates.
func NewPolygon(rings [][][]float64) (*Geometry, error) {
	if len(rings) == 0 {
		return nil, fmt.Errorf("polygon must have at least one ring")
	}

	coordsJSON, err := json.Marshal(rings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon coordinates: %w", err)
	}

	return &Geometry{
		Type:        "Polygon",
		Coordinates: coordsJSON,
	}, nil
}

// BBox computes the bounding box of the geometry.
// Returns [west, south, east, north].
func (g *Geometry) BBox() ([]float64, error) {
	return ComputeBBox(g)
}

// ComputeBBox computes the bounding box of a geometry.
// Returns [west, south, east, north].
func ComputeBBox(g *Geometry) ([]float64, error) {
	if g == nil {
		return nil, fmt.Errorf("geometry is nil")
	}

	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)

	switch g.Type {
	case "Point":
		coords, err := g.Point()
		if err != nil {
			return nil, err
		}
		return []float64{coords[0], coords[1], coords[0], coords[1]}, nil

	case "Polygon":
		coords, err := g.Polygon()
		if err != nil {
			return nil, err
		}
		for _, ring := range coords {
			for _, point := range ring {
				if len(point) < 2 {
					continue
				}
				minLon = math.Min(minLon, point[0])
				maxLon = math.Max(maxLon, point[0])
				minLat = math.Min(minLat, point[1])
				maxLat = math.Max(maxLat, point[1])
			}
		}

	default:
		return nil, fmt.Errorf("unsupported geometry type: %s", g.Type)
	}

	if math.IsInf(minLon, 0) || math.IsInf(minLat, 0) {
		return nil, fmt.Errorf("failed to compute bounding box: no valid coordinates found")
	}

	return []float64{minLon, minLat, maxLon, maxLat}, nil
}

// BBoxCenter returns the midpoint of a bounding box per axis.
// bbox must be [minLon, minLat, maxLon, maxLat] with finite values and
// min <= max per axis; the caller is responsible for validating it.
func BBoxCenter(bbox []float64) (lon, lat float64) {
	return (bbox[0] + bbox[2]) / 2, (bbox[1] + bbox[3]) / 2
}

// RasterCorners returns the four corners of a bounding box in the order
// bottom-left, bottom-right, top-right, top-left. This is the winding
// required to project a raster image onto a slippy map: consumers pin the
// image to the corners in sequence, so the order must not change.
func RasterCorners(bbox []float64) [][]float64 {
	minLon, minLat, maxLon, maxLat := bbox[0], bbox[1], bbox[2], bbox[3]
	return [][]float64{
		{minLon, minLat},
		{maxLon, minLat},
		{maxLon, maxLat},
		{minLon, maxLat},
	}
}

// ValidateBBox validates a 2D bounding box [west, south, east, north].
func ValidateBBox(bbox []float64) error {
	if len(bbox) != 4 {
		return fmt.Errorf("bbox must have 4 coordinates, got %d", len(bbox))
	}

	west, south, east, north := bbox[0], bbox[1], bbox[2], bbox[3]

	if west < -180 || west > 180 {
		return fmt.Errorf("west longitude must be between -180 and 180, got %f", west)
	}
	if east < -180 || east > 180 {
		return fmt.Errorf("east longitude must be between -180 and 180, got %f", east)
	}
	if south < -90 || south > 90 {
		return fmt.Errorf("south latitude must be between -90 and 90, got %f", south)
	}
	if north < -90 || north > 90 {
		return fmt.Errorf("north latitude must be between -90 and 90, got %f", north)
	}
	if west > east {
		return fmt.Errorf("west longitude (%f) must be less than or equal to east longitude (%f)", west, east)
	}
	if south > north {
		return fmt.Errorf("south latitude (%f) must be less than or equal to north latitude (%f)", south, north)
	}

	return nil
}

// ValidatePolygonRings validates polygon ring coordinates: at least one
// ring, each ring closed with at least 4 points, all coordinates in valid
// WGS84 ranges.
func ValidatePolygonRings(rings [][][]float64) error {
	if len(rings) == 0 {
		return fmt.Errorf("polygon must have at least one ring")
	}

	for i, ring := range rings {
		if len(ring) < 4 {
			return fmt.Errorf("ring %d must have at least 4 points, got %d", i, len(ring))
		}

		for j, point := range ring {
			if len(point) < 2 {
				return fmt.Errorf("ring %d point %d must have at least 2 coordinates, got %d", i, j, len(point))
			}
			lon, lat := point[0], point[1]
			if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
				return fmt.Errorf("ring %d point %d has non-finite coordinates", i, j)
			}
			if lon < -180 || lon > 180 {
				return fmt.Errorf("ring %d point %d longitude must be between -180 and 180, got %f", i, j, lon)
			}
			if lat < -90 || lat > 90 {
				return fmt.Errorf("ring %d point %d latitude must be between -90 and 90, got %f", i, j, lat)
			}
		}

		first := ring[0]
		last := ring[len(ring)-1]
		if first[0] != last[0] || first[1] != last[1] {
			return fmt.Errorf("ring %d is not closed: first and last points differ", i)
		}
	}

	return nil
}
