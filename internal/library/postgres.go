package library

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/capscreen/internal/db"
	"github.com/sells-group/capscreen/internal/model"
)

// PostgresStore implements Store on Postgres with PostGIS geometry.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgresStore wraps an existing pool (used by tests with pgxmock).
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// NewPostgres connects a pooled Postgres store.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	if maxConns > 0 {
		pgxCfg.MaxConns = maxConns
	}
	if minConns > 0 {
		pgxCfg.MinConns = minConns
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool exposes the underlying pool for subsystems that need direct
// query access (e.g., the city seeder's bulk upsert).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS cities (
	city_id                TEXT PRIMARY KEY,
	city_name              TEXT NOT NULL,
	state_abbr             TEXT NOT NULL,
	display_name           TEXT NOT NULL,
	rank_top               INT NOT NULL DEFAULT 0,
	population             INT NOT NULL DEFAULT 0,
	population_year        INT NOT NULL DEFAULT 0,
	source_name            TEXT,
	source_url             TEXT,
	city_boundary_geom     geometry(Geometry, 4326),
	analysis_area_geom     geometry(Geometry, 4326),
	segment_library_status TEXT NOT NULL DEFAULT 'NOT_BUILT'
		CHECK (segment_library_status IN ('NOT_BUILT', 'BUILDING', 'READY', 'ERROR')),
	ingested_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS segments (
	segment_id  TEXT PRIMARY KEY,
	city_id     TEXT NOT NULL REFERENCES cities(city_id),
	route_label TEXT,
	geometry    geometry(LineString, 4326) NOT NULL,
	length_ft   DOUBLE PRECISION NOT NULL,
	source_name TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS segment_inputs (
	input_id    TEXT PRIMARY KEY,
	segment_id  TEXT NOT NULL REFERENCES segments(segment_id),
	category    TEXT NOT NULL,
	input_key   TEXT NOT NULL,
	input_value TEXT NOT NULL DEFAULT 'UNKNOWN',
	confidence  TEXT NOT NULL DEFAULT 'UNKNOWN',
	source      TEXT NOT NULL DEFAULT 'SYSTEM',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (segment_id, input_key)
);

CREATE INDEX IF NOT EXISTS idx_segments_city_id ON segments(city_id);
CREATE INDEX IF NOT EXISTS idx_segment_inputs_segment_id ON segment_inputs(segment_id);
CREATE INDEX IF NOT EXISTS idx_cities_status ON cities(segment_library_status);
`

// Migrate creates the schema and enables PostGIS.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Ping verifies connectivity and PostGIS availability.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return eris.Wrap(err, "postgres: ping")
	}
	var version string
	if err := s.pool.QueryRow(ctx, `SELECT postgis_full_version()`).Scan(&version); err != nil {
		return eris.Wrap(err, "postgres: postgis check")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// GetCity implements Store.
func (s *PostgresStore) GetCity(ctx context.Context, cityID string) (*model.City, error) {
	var c model.City
	var analysisWKT, sourceName, sourceURL *string
	err := s.pool.QueryRow(ctx, `
		SELECT city_id, city_name, state_abbr, display_name, rank_top,
		       population, population_year, source_name, source_url,
		       ST_AsText(analysis_area_geom), segment_library_status,
		       ingested_at, updated_at
		FROM cities WHERE city_id = $1`,
		cityID,
	).Scan(
		&c.ID, &c.CityName, &c.StateAbbr, &c.DisplayName, &c.RankTop,
		&c.Population, &c.PopulationYear, &sourceName, &sourceURL,
		&analysisWKT, &c.Status, &c.IngestedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCityNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get city %s", cityID)
	}
	if sourceName != nil {
		c.SourceName = *sourceName
	}
	if sourceURL != nil {
		c.SourceURL = *sourceURL
	}
	if analysisWKT != nil {
		c.AnalysisWKT = *analysisWKT
	}
	return &c, nil
}

// ListCities implements Store.
func (s *PostgresStore) ListCities(ctx context.Context, query string, limit int) ([]model.City, error) {
	sql := `
		SELECT city_id, display_name, rank_top, population, segment_library_status
		FROM cities`
	args := []any{}
	if query != "" {
		sql += ` WHERE city_name ILIKE $1 OR display_name ILIKE $1`
		args = append(args, "%"+query+"%")
	}
	sql += ` ORDER BY rank_top ASC`
	if limit > 0 {
		args = append(args, limit)
		sql += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cities")
	}
	defer rows.Close()

	var cities []model.City
	for rows.Next() {
		var c model.City
		if err := rows.Scan(&c.ID, &c.DisplayName, &c.RankTop, &c.Population, &c.Status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan city row")
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

// UpsertCity implements Store. Status is intentionally absent from the
// update set so re-seeding never resets build progress.
func (s *PostgresStore) UpsertCity(ctx context.Context, c *model.City) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cities (
			city_id, city_name, state_abbr, display_name, rank_top,
			population, population_year, source_name, source_url,
			city_boundary_geom, analysis_area_geom, segment_library_status,
			ingested_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9,
			ST_GeomFromText($10, 4326), ST_GeomFromText($11, 4326),
			'NOT_BUILT', now(), now()
		)
		ON CONFLICT (city_id) DO UPDATE SET
			city_name = EXCLUDED.city_name,
			state_abbr = EXCLUDED.state_abbr,
			display_name = EXCLUDED.display_name,
			rank_top = EXCLUDED.rank_top,
			population = EXCLUDED.population,
			population_year = EXCLUDED.population_year,
			source_name = EXCLUDED.source_name,
			source_url = EXCLUDED.source_url,
			city_boundary_geom = EXCLUDED.city_boundary_geom,
			analysis_area_geom = EXCLUDED.analysis_area_geom,
			updated_at = now()`,
		c.ID, c.CityName, c.StateAbbr, c.DisplayName, c.RankTop,
		c.Population, c.PopulationYear, c.SourceName, c.SourceURL,
		c.BoundaryWKT, c.AnalysisWKT,
	)
	return eris.Wrapf(err, "postgres: upsert city %s", c.ID)
}

// ClaimBuild implements Store with a conditional update: only a caller
// that flips NOT_BUILT to BUILDING wins. Concurrent claimants observe
// zero affected rows instead of racing a read-then-write pair.
func (s *PostgresStore) ClaimBuild(ctx context.Context, cityID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE cities
		SET segment_library_status = 'BUILDING', updated_at = now()
		WHERE city_id = $1 AND segment_library_status = 'NOT_BUILT'`,
		cityID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: claim build for %s", cityID)
	}
	return tag.RowsAffected() == 1, nil
}

// SetStatus implements Store.
func (s *PostgresStore) SetStatus(ctx context.Context, cityID string, status model.LibraryStatus) error {
	if !status.Valid() {
		return eris.Errorf("postgres: invalid status %q", status)
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE cities SET segment_library_status = $1, updated_at = now()
		WHERE city_id = $2`,
		string(status), cityID,
	)
	return eris.Wrapf(err, "postgres: set status for %s", cityID)
}

// InsertSegment implements Store.
func (s *PostgresStore) InsertSegment(ctx context.Context, seg *model.Segment) error {
	gj, err := geojson.Marshal(seg.Geometry)
	if err != nil {
		return eris.Wrapf(err, "postgres: encode segment %s geometry", seg.ID)
	}

	var label *string
	if seg.RouteLabel != "" {
		label = &seg.RouteLabel
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO segments (segment_id, city_id, route_label, geometry, length_ft, source_name)
		VALUES ($1, $2, $3, ST_SetSRID(ST_GeomFromGeoJSON($4), 4326), $5, $6)`,
		seg.ID, seg.CityID, label, string(gj), seg.LengthFt, seg.SourceName,
	)
	return eris.Wrapf(err, "postgres: insert segment %s", seg.ID)
}

// SeedInputs implements Store. ON CONFLICT DO NOTHING keeps seeding
// idempotent and protects user edits from being overwritten.
func (s *PostgresStore) SeedInputs(ctx context.Context, segmentID string, inputs []model.SegmentInput) error {
	rows := make([][]any, 0, len(inputs))
	for _, in := range inputs {
		rows = append(rows, []any{
			uuid.New().String(), segmentID, in.Category, in.Key, in.Value, in.Confidence, in.Source,
		})
	}

	// DO NOTHING on conflict: re-seeding never clobbers user edits.
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "segment_inputs",
		Columns:      []string{"input_id", "segment_id", "category", "input_key", "input_value", "confidence", "source"},
		ConflictKeys: []string{"segment_id", "input_key"},
		UpdateCols:   []string{},
	}, rows)
	return eris.Wrapf(err, "postgres: seed inputs for segment %s", segmentID)
}

// GetSegment implements Store.
func (s *PostgresStore) GetSegment(ctx context.Context, segmentID string) (*model.Segment, error) {
	var seg model.Segment
	var label *string
	err := s.pool.QueryRow(ctx, `
		SELECT segment_id, city_id, route_label, length_ft, source_name
		FROM segments WHERE segment_id = $1`,
		segmentID,
	).Scan(&seg.ID, &seg.CityID, &label, &seg.LengthFt, &seg.SourceName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSegmentNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get segment %s", segmentID)
	}
	if label != nil {
		seg.RouteLabel = *label
	}
	return &seg, nil
}

// ListSegments implements Store.
func (s *PostgresStore) ListSegments(ctx context.Context, cityID string) ([]model.Segment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT segment_id, route_label, length_ft
		FROM segments WHERE city_id = $1 ORDER BY created_at, segment_id`,
		cityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list segments for %s", cityID)
	}
	defer rows.Close()

	var segs []model.Segment
	for rows.Next() {
		var seg model.Segment
		var label *string
		if err := rows.Scan(&seg.ID, &label, &seg.LengthFt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan segment row")
		}
		if label != nil {
			seg.RouteLabel = *label
		}
		seg.CityID = cityID
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

// GetInputs implements Store.
func (s *PostgresStore) GetInputs(ctx context.Context, segmentID string) ([]model.SegmentInput, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, input_key, input_value, confidence, source, updated_at
		FROM segment_inputs WHERE segment_id = $1 ORDER BY category, input_key`,
		segmentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get inputs for %s", segmentID)
	}
	defer rows.Close()

	var inputs []model.SegmentInput
	for rows.Next() {
		in := model.SegmentInput{SegmentID: segmentID}
		if err := rows.Scan(&in.Category, &in.Key, &in.Value, &in.Confidence, &in.Source, &in.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan input row")
		}
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

// UpdateInput implements Store. User edits flip the row's source.
func (s *PostgresStore) UpdateInput(ctx context.Context, segmentID, key, value, confidence string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE segment_inputs
		SET input_value = $1, confidence = $2, source = 'USER', updated_at = now()
		WHERE segment_id = $3 AND input_key = $4`,
		value, confidence, segmentID, key,
	)
	return eris.Wrapf(err, "postgres: update input %s for segment %s", key, segmentID)
}
