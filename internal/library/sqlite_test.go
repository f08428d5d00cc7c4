package library

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/capscreen/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "capscreen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testCity(id string) *model.City {
	return &model.City{
		ID:             id,
		CityName:       "Chicago",
		StateAbbr:      "IL",
		DisplayName:    "Chicago, IL",
		RankTop:        3,
		Population:     2746388,
		PopulationYear: 2020,
		SourceName:     "US Census",
		AnalysisWKT:    "POLYGON ((-87.9 41.6, -87.5 41.6, -87.5 42.0, -87.9 42.0, -87.9 41.6))",
	}
}

func TestSQLiteUpsertAndGetCity(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertCity(ctx, testCity("city-1")))

	got, err := store.GetCity(ctx, "city-1")
	require.NoError(t, err)
	assert.Equal(t, "Chicago, IL", got.DisplayName)
	assert.Equal(t, model.StatusNotBuilt, got.Status)
	assert.Contains(t, got.AnalysisWKT, "POLYGON")
	assert.False(t, got.IngestedAt.IsZero())
}

func TestSQLiteGetCityNotFound(t *testing.T) {
	store := newTestSQLite(t)

	_, err := store.GetCity(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrCityNotFound)
}

func TestSQLiteUpsertPreservesStatus(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	city := testCity("city-1")
	require.NoError(t, store.UpsertCity(ctx, city))
	require.NoError(t, store.SetStatus(ctx, "city-1", model.StatusReady))

	// Re-seeding the same city must not reset a built library.
	city.Population = 2700000
	require.NoError(t, store.UpsertCity(ctx, city))

	got, err := store.GetCity(ctx, "city-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, got.Status)
	assert.Equal(t, 2700000, got.Population)
}

func TestSQLiteClaimBuildSingleWinner(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertCity(ctx, testCity("city-1")))

	won, err := store.ClaimBuild(ctx, "city-1")
	require.NoError(t, err)
	assert.True(t, won)

	// Second claim loses: the city is already BUILDING.
	won, err = store.ClaimBuild(ctx, "city-1")
	require.NoError(t, err)
	assert.False(t, won)

	got, err := store.GetCity(ctx, "city-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusBuilding, got.Status)
}

func TestSQLiteSetStatusRejectsInvalid(t *testing.T) {
	store := newTestSQLite(t)
	err := store.SetStatus(context.Background(), "city-1", model.LibraryStatus("BOGUS"))
	assert.Error(t, err)
}

func TestSQLiteSegmentsAndInputs(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertCity(ctx, testCity("city-1")))

	line := geom.NewLineStringFlat(geom.XY, []float64{-87.65, 41.88, -87.64, 41.89})
	line.SetSRID(4326)
	seg := &model.Segment{
		ID:         "seg-1",
		CityID:     "city-1",
		RouteLabel: "I-90",
		Geometry:   line,
		LengthFt:   2000,
		SourceName: "OpenStreetMap",
	}
	require.NoError(t, store.InsertSegment(ctx, seg))
	require.NoError(t, store.SeedInputs(ctx, "seg-1", PlaceholderInputs("seg-1")))

	segs, err := store.ListSegments(ctx, "city-1")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "I-90", segs[0].RouteLabel)
	assert.Equal(t, "city-1", segs[0].CityID)
	assert.Equal(t, 2000.0, segs[0].LengthFt)

	got, err := store.GetSegment(ctx, "seg-1")
	require.NoError(t, err)
	assert.Equal(t, "city-1", got.CityID)
	assert.Equal(t, 2000.0, got.LengthFt)

	_, err = store.GetSegment(ctx, "missing")
	assert.ErrorIs(t, err, ErrSegmentNotFound)

	inputs, err := store.GetInputs(ctx, "seg-1")
	require.NoError(t, err)
	require.Len(t, inputs, len(MasterInputs))
	for _, in := range inputs {
		assert.Equal(t, model.InputValueUnknown, in.Value)
		assert.Equal(t, model.InputSourceSystem, in.Source)
	}
}

func TestSQLiteSeedInputsIdempotent(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertCity(ctx, testCity("city-1")))

	line := geom.NewLineStringFlat(geom.XY, []float64{-87.65, 41.88, -87.64, 41.89})
	line.SetSRID(4326)
	require.NoError(t, store.InsertSegment(ctx, &model.Segment{
		ID: "seg-1", CityID: "city-1", Geometry: line, LengthFt: 2000, SourceName: "OpenStreetMap",
	}))

	require.NoError(t, store.SeedInputs(ctx, "seg-1", PlaceholderInputs("seg-1")))
	require.NoError(t, store.UpdateInput(ctx, "seg-1", "verticalProfile", "belowGradeTrench", "HIGH"))

	// Re-seeding must not clobber the user's edit or duplicate rows.
	require.NoError(t, store.SeedInputs(ctx, "seg-1", PlaceholderInputs("seg-1")))

	inputs, err := store.GetInputs(ctx, "seg-1")
	require.NoError(t, err)
	require.Len(t, inputs, len(MasterInputs))
	for _, in := range inputs {
		if in.Key == "verticalProfile" {
			assert.Equal(t, "belowGradeTrench", in.Value)
			assert.Equal(t, "HIGH", in.Confidence)
			assert.Equal(t, model.InputSourceUser, in.Source)
		}
	}
}

func TestSQLiteListCitiesSearch(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertCity(ctx, testCity("city-1")))
	other := testCity("city-2")
	other.CityName = "Houston"
	other.StateAbbr = "TX"
	other.DisplayName = "Houston, TX"
	other.RankTop = 4
	require.NoError(t, store.UpsertCity(ctx, other))

	all, err := store.ListCities(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "Chicago, IL", all[0].DisplayName)

	hits, err := store.ListCities(ctx, "hous", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "city-2", hits[0].ID)
}
