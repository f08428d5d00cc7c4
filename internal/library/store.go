// Package library implements the segment-library build pipeline: the
// persistence gateway, the per-city build state machine, and the
// scoring-input seeding that every new segment receives.
package library

import (
	"context"
	"errors"

	"github.com/sells-group/capscreen/internal/model"
)

// ErrCityNotFound is returned when a city id does not resolve. No
// status mutation accompanies it.
var ErrCityNotFound = errors.New("library: city not found")

// ErrSegmentNotFound is returned when a segment id does not resolve.
var ErrSegmentNotFound = errors.New("library: segment not found")

// Store is the persistence gateway for cities, segments, and
// scoring-input placeholders.
type Store interface {
	// GetCity retrieves a city with its analysis-area geometry and
	// build status. Returns ErrCityNotFound when the id does not resolve.
	GetCity(ctx context.Context, cityID string) (*model.City, error)

	// ListCities returns cities ordered by rank. A non-empty query
	// filters by name match and caps results at limit.
	ListCities(ctx context.Context, query string, limit int) ([]model.City, error)

	// UpsertCity inserts or updates a city by id, preserving
	// segment_library_status on conflict.
	UpsertCity(ctx context.Context, c *model.City) error

	// ClaimBuild atomically transitions a city from NOT_BUILT to
	// BUILDING. Returns true iff this caller performed the transition;
	// a concurrent claimant or any other current status returns false.
	ClaimBuild(ctx context.Context, cityID string) (bool, error)

	// SetStatus writes the city's build status unconditionally.
	SetStatus(ctx context.Context, cityID string, status model.LibraryStatus) error

	// InsertSegment persists one segment.
	InsertSegment(ctx context.Context, seg *model.Segment) error

	// SeedInputs creates placeholder rows for a segment. Existing
	// (segment, input_key) pairs are left untouched, so re-seeding never
	// duplicates rows or clobbers user edits.
	SeedInputs(ctx context.Context, segmentID string, inputs []model.SegmentInput) error

	// ListSegments returns a city's segments (id, route label, length).
	ListSegments(ctx context.Context, cityID string) ([]model.Segment, error)

	// GetSegment retrieves one segment by id. Returns
	// ErrSegmentNotFound when the id does not resolve.
	GetSegment(ctx context.Context, segmentID string) (*model.Segment, error)

	// GetInputs returns all scoring inputs for a segment.
	GetInputs(ctx context.Context, segmentID string) ([]model.SegmentInput, error)

	// UpdateInput overwrites one scoring input's value and confidence
	// and marks it user-sourced.
	UpdateInput(ctx context.Context, segmentID, key, value, confidence string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
