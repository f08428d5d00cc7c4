package library

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	_ "modernc.org/sqlite"

	"github.com/sells-group/capscreen/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Geometry is
// held as plain text (WKT for analysis areas, GeoJSON for segments), so
// local screening runs need no PostGIS.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cities (
	city_id                TEXT PRIMARY KEY,
	city_name              TEXT NOT NULL,
	state_abbr             TEXT NOT NULL,
	display_name           TEXT NOT NULL,
	rank_top               INTEGER NOT NULL DEFAULT 0,
	population             INTEGER NOT NULL DEFAULT 0,
	population_year        INTEGER NOT NULL DEFAULT 0,
	source_name            TEXT,
	source_url             TEXT,
	city_boundary_wkt      TEXT,
	analysis_area_wkt      TEXT,
	segment_library_status TEXT NOT NULL DEFAULT 'NOT_BUILT'
		CHECK (segment_library_status IN ('NOT_BUILT', 'BUILDING', 'READY', 'ERROR')),
	ingested_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS segments (
	segment_id  TEXT PRIMARY KEY,
	city_id     TEXT NOT NULL REFERENCES cities(city_id),
	route_label TEXT,
	geometry    TEXT NOT NULL,
	length_ft   REAL NOT NULL,
	source_name TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS segment_inputs (
	input_id    TEXT PRIMARY KEY,
	segment_id  TEXT NOT NULL REFERENCES segments(segment_id),
	category    TEXT NOT NULL,
	input_key   TEXT NOT NULL,
	input_value TEXT NOT NULL DEFAULT 'UNKNOWN',
	confidence  TEXT NOT NULL DEFAULT 'UNKNOWN',
	source      TEXT NOT NULL DEFAULT 'SYSTEM',
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (segment_id, input_key)
);

CREATE INDEX IF NOT EXISTS idx_segments_city_id ON segments(city_id);
CREATE INDEX IF NOT EXISTS idx_segment_inputs_segment_id ON segment_inputs(segment_id);
CREATE INDEX IF NOT EXISTS idx_cities_status ON cities(segment_library_status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetCity implements Store.
func (s *SQLiteStore) GetCity(ctx context.Context, cityID string) (*model.City, error) {
	var c model.City
	var analysisWKT, sourceName, sourceURL sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT city_id, city_name, state_abbr, display_name, rank_top,
		       population, population_year, source_name, source_url,
		       analysis_area_wkt, segment_library_status, ingested_at, updated_at
		FROM cities WHERE city_id = ?`,
		cityID,
	).Scan(
		&c.ID, &c.CityName, &c.StateAbbr, &c.DisplayName, &c.RankTop,
		&c.Population, &c.PopulationYear, &sourceName, &sourceURL,
		&analysisWKT, &c.Status, &c.IngestedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCityNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get city %s", cityID)
	}
	c.SourceName = sourceName.String
	c.SourceURL = sourceURL.String
	c.AnalysisWKT = analysisWKT.String
	return &c, nil
}

// ListCities implements Store.
func (s *SQLiteStore) ListCities(ctx context.Context, query string, limit int) ([]model.City, error) {
	sqlStr := `
		SELECT city_id, display_name, rank_top, population, segment_library_status
		FROM cities`
	args := []any{}
	if query != "" {
		sqlStr += ` WHERE city_name LIKE ? OR display_name LIKE ?`
		pat := "%" + query + "%"
		args = append(args, pat, pat)
	}
	sqlStr += ` ORDER BY rank_top ASC`
	if limit > 0 {
		sqlStr += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cities")
	}
	defer rows.Close()

	var cities []model.City
	for rows.Next() {
		var c model.City
		if err := rows.Scan(&c.ID, &c.DisplayName, &c.RankTop, &c.Population, &c.Status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan city row")
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

// UpsertCity implements Store. Status survives re-seeding.
func (s *SQLiteStore) UpsertCity(ctx context.Context, c *model.City) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cities (
			city_id, city_name, state_abbr, display_name, rank_top,
			population, population_year, source_name, source_url,
			city_boundary_wkt, analysis_area_wkt, segment_library_status,
			ingested_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'NOT_BUILT', ?, ?)
		ON CONFLICT (city_id) DO UPDATE SET
			city_name = excluded.city_name,
			state_abbr = excluded.state_abbr,
			display_name = excluded.display_name,
			rank_top = excluded.rank_top,
			population = excluded.population,
			population_year = excluded.population_year,
			source_name = excluded.source_name,
			source_url = excluded.source_url,
			city_boundary_wkt = excluded.city_boundary_wkt,
			analysis_area_wkt = excluded.analysis_area_wkt,
			updated_at = excluded.updated_at`,
		c.ID, c.CityName, c.StateAbbr, c.DisplayName, c.RankTop,
		c.Population, c.PopulationYear, c.SourceName, c.SourceURL,
		c.BoundaryWKT, c.AnalysisWKT, now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert city %s", c.ID)
}

// ClaimBuild implements Store.
func (s *SQLiteStore) ClaimBuild(ctx context.Context, cityID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cities
		SET segment_library_status = 'BUILDING', updated_at = datetime('now')
		WHERE city_id = ? AND segment_library_status = 'NOT_BUILT'`,
		cityID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: claim build for %s", cityID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: claim build rows affected")
	}
	return n == 1, nil
}

// SetStatus implements Store.
func (s *SQLiteStore) SetStatus(ctx context.Context, cityID string, status model.LibraryStatus) error {
	if !status.Valid() {
		return eris.Errorf("sqlite: invalid status %q", status)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE cities SET segment_library_status = ?, updated_at = datetime('now')
		WHERE city_id = ?`,
		string(status), cityID,
	)
	return eris.Wrapf(err, "sqlite: set status for %s", cityID)
}

// InsertSegment implements Store.
func (s *SQLiteStore) InsertSegment(ctx context.Context, seg *model.Segment) error {
	gj, err := geojson.Marshal(seg.Geometry)
	if err != nil {
		return eris.Wrapf(err, "sqlite: encode segment %s geometry", seg.ID)
	}

	var label any
	if seg.RouteLabel != "" {
		label = seg.RouteLabel
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO segments (segment_id, city_id, route_label, geometry, length_ft, source_name)
		VALUES (?, ?, ?, ?, ?, ?)`,
		seg.ID, seg.CityID, label, string(gj), seg.LengthFt, seg.SourceName,
	)
	return eris.Wrapf(err, "sqlite: insert segment %s", seg.ID)
}

// SeedInputs implements Store. INSERT OR IGNORE keeps seeding idempotent.
func (s *SQLiteStore) SeedInputs(ctx context.Context, segmentID string, inputs []model.SegmentInput) error {
	for _, in := range inputs {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO segment_inputs
				(input_id, segment_id, category, input_key, input_value, confidence, source)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), segmentID, in.Category, in.Key, in.Value, in.Confidence, in.Source,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed input %s for segment %s", in.Key, segmentID)
		}
	}
	return nil
}

// GetSegment implements Store.
func (s *SQLiteStore) GetSegment(ctx context.Context, segmentID string) (*model.Segment, error) {
	var seg model.Segment
	var label sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT segment_id, city_id, route_label, length_ft, source_name
		FROM segments WHERE segment_id = ?`,
		segmentID,
	).Scan(&seg.ID, &seg.CityID, &label, &seg.LengthFt, &seg.SourceName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSegmentNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get segment %s", segmentID)
	}
	seg.RouteLabel = label.String
	return &seg, nil
}

// ListSegments implements Store.
func (s *SQLiteStore) ListSegments(ctx context.Context, cityID string) ([]model.Segment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT segment_id, route_label, length_ft
		FROM segments WHERE city_id = ? ORDER BY created_at, segment_id`,
		cityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list segments for %s", cityID)
	}
	defer rows.Close()

	var segs []model.Segment
	for rows.Next() {
		var seg model.Segment
		var label sql.NullString
		if err := rows.Scan(&seg.ID, &label, &seg.LengthFt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan segment row")
		}
		seg.RouteLabel = label.String
		seg.CityID = cityID
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

// GetInputs implements Store.
func (s *SQLiteStore) GetInputs(ctx context.Context, segmentID string) ([]model.SegmentInput, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, input_key, input_value, confidence, source, updated_at
		FROM segment_inputs WHERE segment_id = ? ORDER BY category, input_key`,
		segmentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get inputs for %s", segmentID)
	}
	defer rows.Close()

	var inputs []model.SegmentInput
	for rows.Next() {
		in := model.SegmentInput{SegmentID: segmentID}
		if err := rows.Scan(&in.Category, &in.Key, &in.Value, &in.Confidence, &in.Source, &in.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan input row")
		}
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

// UpdateInput implements Store.
func (s *SQLiteStore) UpdateInput(ctx context.Context, segmentID, key, value, confidence string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE segment_inputs
		SET input_value = ?, confidence = ?, source = 'USER', updated_at = datetime('now')
		WHERE segment_id = ? AND input_key = ?`,
		value, confidence, segmentID, key,
	)
	return eris.Wrapf(err, "sqlite: update input %s for segment %s", key, segmentID)
}
