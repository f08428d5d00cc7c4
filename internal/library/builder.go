package library

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/capscreen/internal/geometry"
	"github.com/sells-group/capscreen/internal/model"
)

// FeatureFetcher is the read-only road-network query the builder
// depends on. *overpass.Client satisfies it.
type FeatureFetcher interface {
	QueryRoads(ctx context.Context, tagFilter, areaWKT string) ([]model.RoadFeature, error)
}

// BuilderOptions tunes one builder instance.
type BuilderOptions struct {
	TagFilter       string
	SegmentLengthFt float64
	FeetPerDegree   float64
	SourceName      string
}

// Builder drives a city's segment library through
// NOT_BUILT -> BUILDING -> {READY | ERROR}.
type Builder struct {
	store   Store
	fetcher FeatureFetcher
	opts    BuilderOptions
}

// NewBuilder creates a Builder. Zero-valued options get the defaults
// the original screening methodology was calibrated for.
func NewBuilder(store Store, fetcher FeatureFetcher, opts BuilderOptions) *Builder {
	if opts.TagFilter == "" {
		opts.TagFilter = "motorway|motorway_link"
	}
	if opts.SegmentLengthFt == 0 {
		opts.SegmentLengthFt = 2000
	}
	if opts.FeetPerDegree == 0 {
		opts.FeetPerDegree = 364000
	}
	if opts.SourceName == "" {
		opts.SourceName = "OpenStreetMap"
	}
	return &Builder{store: store, fetcher: fetcher, opts: opts}
}

// EnsureBuilt makes sure city's segment library exists and returns the
// resulting status. It is synchronous and idempotent:
//
//   - BUILDING, READY, or ERROR short-circuit with no writes.
//   - NOT_BUILT claims the build atomically, fetches road features,
//     segments them, persists segments with seeded scoring inputs, and
//     lands on READY.
//   - A fetch failure lands on ERROR (recoverable later; returned with
//     a nil error).
//   - A persistence failure mid-build propagates and leaves the city
//     BUILDING; there is no in-scope recovery path, so the condition is
//     logged loudly here for the out-of-band reset that must follow.
//
// Callers that must not block (the segments API route) run it in a
// goroutine; callers that want the outcome just await the return.
func (b *Builder) EnsureBuilt(ctx context.Context, cityID string) (model.LibraryStatus, error) {
	log := zap.L().With(zap.String("component", "library.builder"), zap.String("city_id", cityID))

	city, err := b.store.GetCity(ctx, cityID)
	if err != nil {
		return "", err
	}
	if city.Status != model.StatusNotBuilt {
		return city.Status, nil
	}

	claimed, err := b.store.ClaimBuild(ctx, cityID)
	if err != nil {
		return "", err
	}
	if !claimed {
		// Lost the claim to a concurrent caller; report whatever state
		// that build reached.
		refreshed, err := b.store.GetCity(ctx, cityID)
		if err != nil {
			return "", err
		}
		return refreshed.Status, nil
	}

	log.Info("segment build started",
		zap.String("city", city.DisplayName),
		zap.Float64("target_ft", b.opts.SegmentLengthFt),
	)

	// Bad analysis geometry surfaces here too; from the state machine's
	// point of view it is just a failed fetch.
	features, err := b.fetcher.QueryRoads(ctx, b.opts.TagFilter, city.AnalysisWKT)
	if err != nil {
		log.Warn("road fetch failed, marking city ERROR", zap.Error(err))
		if setErr := b.store.SetStatus(ctx, cityID, model.StatusError); setErr != nil {
			return "", setErr
		}
		return model.StatusError, nil
	}

	seg := geometry.Segmenter{
		TargetFt: b.opts.SegmentLengthFt,
		Distance: geometry.CrudeDegreeDistance(b.opts.FeetPerDegree),
	}

	var persisted int
	for _, feature := range features {
		// Clipping the feature to the analysis area is intentionally
		// skipped; segments near the boundary may extend past it.
		for _, chunk := range seg.Split(feature.Coords) {
			segment := &model.Segment{
				ID:         uuid.New().String(),
				CityID:     cityID,
				RouteLabel: feature.RouteLabel(),
				Geometry:   chunk.LineString(),
				LengthFt:   chunk.LengthFt,
				SourceName: b.opts.SourceName,
			}
			if err := b.store.InsertSegment(ctx, segment); err != nil {
				log.Error("segment insert failed, city left BUILDING", zap.Error(err))
				return "", eris.Wrapf(err, "library: persist segment for city %s", cityID)
			}
			if err := b.store.SeedInputs(ctx, segment.ID, PlaceholderInputs(segment.ID)); err != nil {
				log.Error("input seeding failed, city left BUILDING", zap.Error(err))
				return "", eris.Wrapf(err, "library: seed inputs for segment %s", segment.ID)
			}
			persisted++
		}
	}

	if err := b.store.SetStatus(ctx, cityID, model.StatusReady); err != nil {
		return "", err
	}

	log.Info("segment build complete",
		zap.Int("features", len(features)),
		zap.Int("segments", persisted),
	)
	return model.StatusReady, nil
}
