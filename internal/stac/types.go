// Package stac defines the GeoJSON-shaped wire types exchanged between
// the gateway, its callers, and the datasource backends.
//
// Feature content is opaque to the gateway: features are carried as raw
// JSON and never inspected, only regrouped by collection id.
package stac

import "encoding/json"

// Geometry is a GeoJSON geometry object. Coordinates are kept raw since
// the gateway validates only the presence of a geometry, never its shape.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// FeatureCollection is a GeoJSON feature collection with opaque features.
type FeatureCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// NewFeatureCollection returns an empty feature collection.
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{Type: "FeatureCollection", Features: []json.RawMessage{}}
}

// SearchRequest is the inbound search request. All fields are optional
// at the decoding layer; required-field rules live in the query builder.
type SearchRequest struct {
	// Time is a temporal extent as "start/end".
	Time string `json:"time,omitempty"`
	// Intersects is a GeoJSON geometry; takes precedence over Bbox.
	Intersects *Geometry `json:"intersects,omitempty"`
	// Bbox is [west, south, east, north].
	Bbox []float64 `json:"bbox,omitempty"`
	// Properties holds per-field filter predicates, passed through to
	// backends unchanged.
	Properties map[string]map[string]any `json:"properties,omitempty"`
	// Datasources names the backends to query, in order.
	Datasources []string `json:"datasources,omitempty"`
	// Limit caps the result count per backend.
	Limit *int `json:"limit,omitempty"`
}
