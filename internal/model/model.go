// Package model defines the core domain types shared across the build
// pipeline, the stores, and the API layer.
package model

import (
	"time"

	"github.com/twpayne/go-geom"
)

// LibraryStatus tracks a city's segment-library build lifecycle.
type LibraryStatus string

const (
	StatusNotBuilt LibraryStatus = "NOT_BUILT"
	StatusBuilding LibraryStatus = "BUILDING"
	StatusReady    LibraryStatus = "READY"
	StatusError    LibraryStatus = "ERROR"
)

// Valid reports whether s is one of the four known statuses.
func (s LibraryStatus) Valid() bool {
	switch s {
	case StatusNotBuilt, StatusBuilding, StatusReady, StatusError:
		return true
	}
	return false
}

// Terminal reports whether s is a stable end state of a build attempt.
func (s LibraryStatus) Terminal() bool {
	return s == StatusReady || s == StatusError
}

// City is a screening candidate with its analysis area.
type City struct {
	ID             string        `json:"city_id"`
	CityName       string        `json:"city_name"`
	StateAbbr      string        `json:"state_abbr"`
	DisplayName    string        `json:"display_name"`
	RankTop        int           `json:"rank_top"`
	Population     int           `json:"population"`
	PopulationYear int           `json:"population_year"`
	SourceName     string        `json:"source_name,omitempty"`
	SourceURL      string        `json:"source_url,omitempty"`
	BoundaryWKT    string        `json:"city_boundary,omitempty"`
	AnalysisWKT    string        `json:"analysis_area,omitempty"`
	Status         LibraryStatus `json:"segment_library_status"`
	IngestedAt     time.Time     `json:"ingested_at,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at,omitempty"`
}

// RoadFeature is a tagged centerline returned by the feature fetcher.
// It lives only for the duration of one build attempt.
type RoadFeature struct {
	ID     int64
	Tags   map[string]string
	Coords []geom.Coord
}

// RouteLabel derives a display label from OSM tags: route ref first,
// then name, else empty.
func (f RoadFeature) RouteLabel() string {
	if ref := f.Tags["ref"]; ref != "" {
		return ref
	}
	return f.Tags["name"]
}

// Segment is one ~fixed-length chunk of a road centerline, the unit of
// feasibility analysis.
type Segment struct {
	ID         string           `json:"segment_id"`
	CityID     string           `json:"city_id"`
	RouteLabel string           `json:"route_label,omitempty"`
	Geometry   *geom.LineString `json:"-"`
	LengthFt   float64          `json:"length_ft"`
	SourceName string           `json:"source_name,omitempty"`
	CreatedAt  time.Time        `json:"created_at,omitempty"`
}

// Input value placeholders written at seeding time.
const (
	InputValueUnknown = "UNKNOWN"
	InputSourceSystem = "SYSTEM"
	InputSourceUser   = "USER"
)

// SegmentInput is one named, categorized scoring fact about a segment.
// Seeded as a placeholder, later filled in by users.
type SegmentInput struct {
	SegmentID  string    `json:"segment_id,omitempty"`
	Category   string    `json:"category"`
	Key        string    `json:"input_key"`
	Value      string    `json:"input_value"`
	Confidence string    `json:"confidence"`
	Source     string    `json:"source"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}
