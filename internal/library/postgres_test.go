package library

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/capscreen/internal/model"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresStore(mock)
}

func TestPostgresGetCity_Success(t *testing.T) {
	mock, store := newMockStore(t)
	now := time.Now()
	wkt := "POLYGON((-87.8 41.7, -87.8 42.0, -87.5 42.0, -87.5 41.7, -87.8 41.7))"
	src := "U.S. Census Bureau, 2020 Population Estimates"

	mock.ExpectQuery("SELECT .+ FROM cities WHERE city_id").
		WithArgs("city-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"city_id", "city_name", "state_abbr", "display_name", "rank_top",
			"population", "population_year", "source_name", "source_url",
			"st_astext", "segment_library_status", "ingested_at", "updated_at",
		}).AddRow(
			"city-1", "Chicago", "IL", "Chicago, IL", 3,
			2746388, 2020, &src, (*string)(nil),
			&wkt, model.StatusNotBuilt, now, now,
		))

	c, err := store.GetCity(context.Background(), "city-1")
	require.NoError(t, err)
	assert.Equal(t, "Chicago, IL", c.DisplayName)
	assert.Equal(t, model.StatusNotBuilt, c.Status)
	assert.Equal(t, wkt, c.AnalysisWKT)
	assert.Equal(t, src, c.SourceName)
	assert.Empty(t, c.SourceURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetCity_NotFound(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT .+ FROM cities WHERE city_id").
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"city_id"}))

	_, err := store.GetCity(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCityNotFound))
}

func TestPostgresClaimBuild(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE cities").
		WithArgs("city-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	won, err := store.ClaimBuild(context.Background(), "city-1")
	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClaimBuild_AlreadyClaimed(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE cities").
		WithArgs("city-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	won, err := store.ClaimBuild(context.Background(), "city-1")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestPostgresSetStatus(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE cities SET segment_library_status").
		WithArgs("READY", "city-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.SetStatus(context.Background(), "city-1", model.StatusReady)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetStatus_Invalid(t *testing.T) {
	_, store := newMockStore(t)

	err := store.SetStatus(context.Background(), "city-1", model.LibraryStatus("DONE"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestPostgresInsertSegment(t *testing.T) {
	mock, store := newMockStore(t)

	seg := &model.Segment{
		ID:         "seg-1",
		CityID:     "city-1",
		RouteLabel: "I-90",
		Geometry:   geom.NewLineStringFlat(geom.XY, []float64{-87.65, 41.88, -87.64, 41.89}).SetSRID(4326),
		LengthFt:   2012.5,
		SourceName: "OpenStreetMap",
	}

	label := "I-90"
	mock.ExpectExec("INSERT INTO segments").
		WithArgs("seg-1", "city-1", &label,
			`{"type":"LineString","coordinates":[[-87.65,41.88],[-87.64,41.89]]}`,
			2012.5, "OpenStreetMap").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.InsertSegment(context.Background(), seg)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSegment(t *testing.T) {
	mock, store := newMockStore(t)

	label := "I-90"
	mock.ExpectQuery("SELECT segment_id, city_id, route_label, length_ft, source_name").
		WithArgs("seg-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"segment_id", "city_id", "route_label", "length_ft", "source_name",
		}).AddRow("seg-1", "city-1", &label, 2012.5, "OpenStreetMap"))

	seg, err := store.GetSegment(context.Background(), "seg-1")
	require.NoError(t, err)
	assert.Equal(t, "city-1", seg.CityID)
	assert.Equal(t, "I-90", seg.RouteLabel)
	assert.Equal(t, 2012.5, seg.LengthFt)
}

func TestPostgresGetSegment_NotFound(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT segment_id, city_id, route_label, length_ft, source_name").
		WithArgs("seg-404").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetSegment(context.Background(), "seg-404")
	assert.ErrorIs(t, err, ErrSegmentNotFound)
}

func TestPostgresSeedInputs_Idempotent(t *testing.T) {
	mock, store := newMockStore(t)

	cols := []string{"input_id", "segment_id", "category", "input_key", "input_value", "confidence", "source"}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_segment_inputs"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_segment_inputs"}, cols).
		WillReturnResult(int64(len(MasterInputs)))
	// Conflicting rows are skipped, so a re-seed affects zero rows.
	mock.ExpectExec(`INSERT INTO "segment_inputs".*DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	err := store.SeedInputs(context.Background(), "seg-1", PlaceholderInputs("seg-1"))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSeedInputs_Error(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_segment_inputs"`).
		WillReturnError(fmt.Errorf("connection refused"))
	mock.ExpectRollback()

	err := store.SeedInputs(context.Background(), "seg-1", PlaceholderInputs("seg-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed inputs")
}

func TestPostgresListSegments(t *testing.T) {
	mock, store := newMockStore(t)

	label := "I-90"
	mock.ExpectQuery("SELECT segment_id, route_label, length_ft").
		WithArgs("city-1").
		WillReturnRows(pgxmock.NewRows([]string{"segment_id", "route_label", "length_ft"}).
			AddRow("seg-1", &label, 2000.0).
			AddRow("seg-2", (*string)(nil), 2100.0))

	segs, err := store.ListSegments(context.Background(), "city-1")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "I-90", segs[0].RouteLabel)
	assert.Empty(t, segs[1].RouteLabel)
	assert.Equal(t, "city-1", segs[1].CityID)
}

func TestPostgresListCities_Search(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT city_id, display_name, rank_top, population, segment_library_status").
		WithArgs("%bos%", 10).
		WillReturnRows(pgxmock.NewRows([]string{
			"city_id", "display_name", "rank_top", "population", "segment_library_status",
		}).AddRow("city-23", "Boston, MA", 23, 675647, model.StatusReady))

	cities, err := store.ListCities(context.Background(), "bos", 10)
	require.NoError(t, err)
	require.Len(t, cities, 1)
	assert.Equal(t, "Boston, MA", cities[0].DisplayName)
}

func TestPostgresUpdateInput(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE segment_inputs").
		WithArgs("120", "HIGH", "seg-1", "clearWidthFt").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.UpdateInput(context.Background(), "seg-1", "clearWidthFt", "120", "HIGH")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetInputs(t *testing.T) {
	mock, store := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT category, input_key, input_value, confidence, source, updated_at").
		WithArgs("seg-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"category", "input_key", "input_value", "confidence", "source", "updated_at",
		}).
			AddRow("cost", "clearWidthFt", "180", "HIGH", "USER", now).
			AddRow("structural", "verticalProfile", "UNKNOWN", "UNKNOWN", "SYSTEM", now))

	inputs, err := store.GetInputs(context.Background(), "seg-1")
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "clearWidthFt", inputs[0].Key)
	assert.Equal(t, model.InputSourceUser, inputs[0].Source)
	assert.Equal(t, "seg-1", inputs[1].SegmentID)
}
