package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/planetlabs/go-stac"

	"github.com/rkm/stac-area-search/pkg/geojson"
)

// normalizeFeatureCollection converts a raw catalog response into a
// ResultSet. Features missing an id or a usable 4-number bbox are dropped
// and counted rather than failing the whole batch.
func normalizeFeatureCollection(fc *featureCollection, logger *slog.Logger) (*ResultSet, error) {
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%w: type is %q, want FeatureCollection", ErrMalformedResponse, fc.Type)
	}
	if fc.Features == nil {
		return nil, fmt.Errorf("%w: features missing", ErrMalformedResponse)
	}

	items := make([]*Item, 0, len(fc.Features))
	dropped := 0

	for i, feature := range fc.Features {
		item, err := normalizeFeature(feature)
		if err != nil {
			dropped++
			logger.Warn("dropping malformed feature",
				"index", i,
				"error", err,
			)
			continue
		}
		items = append(items, item)
	}

	return &ResultSet{
		Items:    items,
		Matched:  fc.NumberMatched,
		Returned: fc.NumberReturned,
		Dropped:  dropped,
		Context:  fc.Context,
	}, nil
}

// normalizeFeature converts one raw STAC item into a normalized Item.
func normalizeFeature(feature *stac.Item) (*Item, error) {
	if feature == nil {
		return nil, fmt.Errorf("feature is nil")
	}
	if feature.Id == "" {
		return nil, fmt.Errorf("feature has no id")
	}
	if err := geojson.ValidateBBox(feature.Bbox); err != nil {
		return nil, fmt.Errorf("feature %s has unusable bbox: %w", feature.Id, err)
	}

	item := &Item{
		ID:         feature.Id,
		BBox:       feature.Bbox,
		Properties: Properties(feature.Properties),
		Assets:     make(map[string]AssetLink, len(feature.Assets)),
		Links:      make(map[string]AssetLink, len(feature.Links)),
	}
	if item.Properties == nil {
		item.Properties = Properties{}
	}

	if feature.Geometry != nil {
		geom, err := convertGeometry(feature.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", feature.Id, err)
		}
		item.Geometry = geom
	}

	for name, asset := range feature.Assets {
		if asset == nil || asset.Href == "" {
			continue
		}
		item.Assets[name] = AssetLink{
			Href:      S3ToHTTP(asset.Href),
			MediaType: asset.Type,
			Title:     asset.Title,
		}
	}

	for _, link := range feature.Links {
		if link == nil || link.Rel == "" || link.Href == "" {
			continue
		}
		item.Links[link.Rel] = AssetLink{
			Href:      link.Href,
			MediaType: link.Type,
			Title:     link.Title,
		}
	}

	return item, nil
}

// convertGeometry re-marshals the item's loosely typed geometry into the
// geojson type used by the rest of the system.
func convertGeometry(raw any) (*geojson.Geometry, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geometry: %w", err)
	}

	var geom geojson.Geometry
	if err := json.Unmarshal(data, &geom); err != nil {
		return nil, fmt.Errorf("failed to decode geometry: %w", err)
	}
	if geom.Type == "" {
		return nil, fmt.Errorf("geometry has no type")
	}

	return &geom, nil
}

// S3ToHTTP rewrites an s3://bucket/key URL to the bucket's HTTPS form.
// Non-s3 URLs pass through unchanged.
func S3ToHTTP(href string) string {
	const prefix = "s3://"
	if !strings.HasPrefix(href, prefix) {
		return href
	}

	rest := strings.TrimPrefix(href, prefix)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" {
		return href
	}

	return "https://" + bucket + ".s3.amazonaws.com/" + key
}
