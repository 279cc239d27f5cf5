// Package query normalizes inbound search requests into the canonical,
// backend-agnostic query sent to every datasource.
package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/geoplex/stacfan/internal/errors"
	"github.com/geoplex/stacfan/internal/stac"
)

// DefaultLimit is the per-backend result cap applied when the request
// does not set one.
const DefaultLimit = 10

// Canonical is the normalized query dispatched to each backend. Its JSON
// form is the backend invocation payload.
type Canonical struct {
	// Temporal is the (start, end) pair, or nil when the request had no
	// time field.
	Temporal *[2]string `json:"temporal"`
	// Spatial is the query geometry. Always set: spatial input is
	// mandatory.
	Spatial *stac.Geometry `json:"spatial"`
	// Properties are filter predicates passed through unchanged.
	Properties map[string]map[string]any `json:"properties"`
	// Limit caps the result count per backend.
	Limit int `json:"limit"`
}

// Build normalizes a search request into a canonical query.
//
// Rules:
//   - intersects takes precedence over bbox; bbox is consulted only when
//     intersects is absent. One of the two is required.
//   - time "start/end" splits on the first "/"; a value with no
//     separator becomes (value, "").
//   - datasources must name at least one backend.
//   - limit defaults to DefaultLimit.
//
// Date formats are not validated here; backends interpret them.
func Build(req *stac.SearchRequest) (*Canonical, error) {
	if len(req.Datasources) == 0 {
		return nil, errors.New(errors.ErrCodeNoDatasources,
			"at least one datasource is required", nil)
	}

	spatial, err := buildSpatial(req)
	if err != nil {
		return nil, err
	}

	q := &Canonical{
		Spatial:    spatial,
		Properties: req.Properties,
		Limit:      DefaultLimit,
	}

	if req.Time != "" {
		start, end, _ := strings.Cut(req.Time, "/")
		q.Temporal = &[2]string{start, end}
	}

	if req.Limit != nil {
		q.Limit = *req.Limit
	}

	return q, nil
}

// buildSpatial resolves the query geometry from intersects or bbox.
func buildSpatial(req *stac.SearchRequest) (*stac.Geometry, error) {
	if req.Intersects != nil {
		return req.Intersects, nil
	}

	if req.Bbox == nil {
		return nil, errors.New(errors.ErrCodeMissingSpatial,
			"spatial parameter is required: provide intersects or bbox", nil)
	}
	if len(req.Bbox) != 4 {
		return nil, errors.New(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("bbox must have 4 elements, got %d", len(req.Bbox)), nil)
	}

	return bboxPolygon(req.Bbox), nil
}

// bboxPolygon synthesizes a closed rectangle from [west, south, east,
// north]. The ring runs NW, NE, SE, SW and closes back on NW.
func bboxPolygon(bbox []float64) *stac.Geometry {
	ring := [][][2]float64{{
		{bbox[0], bbox[3]},
		{bbox[2], bbox[3]},
		{bbox[2], bbox[1]},
		{bbox[0], bbox[1]},
		{bbox[0], bbox[3]},
	}}

	coords, _ := json.Marshal(ring)
	return &stac.Geometry{Type: "Polygon", Coordinates: coords}
}
