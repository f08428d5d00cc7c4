// Package seed loads the canonical top-100 US city list into the
// store. Seeding is idempotent: city IDs are stable v5 UUIDs derived
// from the display name, and re-running never resets a built segment
// library.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/capscreen/internal/boundary"
	"github.com/sells-group/capscreen/internal/library"
	"github.com/sells-group/capscreen/internal/model"
)

const (
	sourceName     = "U.S. Census Bureau, 2020 Population Estimates"
	sourceURL      = "https://www.census.gov/data/tables/2020/demo/popest/2020-cities-total.html"
	populationYear = 2020

	// Synthetic geometry half-widths in degrees, used until a real
	// boundary shapefile is imported.
	boundaryHalfDeg = 0.1
	analysisHalfDeg = 0.2
)

// Top 100 US cities by population, rank encoded by position.
//
//go:embed cities.txt
var citiesRaw string

// City is one entry from the embedded census list.
type City struct {
	Rank        int
	Name        string
	State       string
	DisplayName string
}

// Cities parses the embedded top-100 list.
func Cities() ([]City, error) {
	lines := strings.Split(strings.TrimSpace(citiesRaw), "\n")
	cities := make([]City, 0, len(lines))
	for i, line := range lines {
		display := strings.TrimSpace(line)
		name, state, ok := strings.Cut(display, ",")
		if !ok {
			return nil, eris.Errorf("seed: malformed city entry %q on line %d", line, i+1)
		}
		cities = append(cities, City{
			Rank:        i + 1,
			Name:        strings.TrimSpace(name),
			State:       strings.TrimSpace(state),
			DisplayName: display,
		})
	}
	return cities, nil
}

// CityID derives the stable city UUID from its display name. The same
// name always yields the same ID, so re-seeding updates in place.
func CityID(displayName string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(displayName)).String()
}

// gridCoords spreads the ranked cities across a lat/lon grid so every
// synthetic analysis area is distinct. Row-major, ten per row, from
// the southwest corner of the continental US.
func gridCoords(idx int) (lat, lon float64) {
	row := idx / 10
	col := idx % 10
	return 25 + float64(row)*2.5, -120 + float64(col)*2.5
}

// squareWKT returns a square POLYGON centered on (lat, lon).
func squareWKT(lat, lon, halfDeg float64) string {
	minX, minY := lon-halfDeg, lat-halfDeg
	maxX, maxY := lon+halfDeg, lat+halfDeg
	return fmt.Sprintf("POLYGON ((%g %g, %g %g, %g %g, %g %g, %g %g))",
		minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY)
}

// Run upserts the top-100 city list. When boundaries contains a record
// matching a city's name and state, its real polygon replaces the
// synthetic square and the analysis area is derived from its bounds.
func Run(ctx context.Context, store library.Store, boundaries []boundary.Record) error {
	log := zap.L().With(zap.String("component", "seed"))

	byCity := make(map[string]boundary.Record, len(boundaries))
	for _, rec := range boundaries {
		byCity[strings.ToLower(rec.Name+","+rec.State)] = rec
	}

	cities, err := Cities()
	if err != nil {
		return err
	}

	var real int
	for i, c := range cities {
		lat, lon := gridCoords(i)
		city := &model.City{
			ID:             CityID(c.DisplayName),
			CityName:       c.Name,
			StateAbbr:      c.State,
			DisplayName:    c.DisplayName,
			RankTop:        c.Rank,
			PopulationYear: populationYear,
			SourceName:     sourceName,
			SourceURL:      sourceURL,
			BoundaryWKT:    squareWKT(lat, lon, boundaryHalfDeg),
			AnalysisWKT:    squareWKT(lat, lon, analysisHalfDeg),
		}

		if rec, ok := byCity[strings.ToLower(c.Name+","+c.State)]; ok {
			area, areaErr := boundary.AnalysisArea(rec.WKT, boundaryHalfDeg)
			if areaErr != nil {
				log.Warn("seed: unusable boundary, keeping synthetic area",
					zap.String("city", c.DisplayName), zap.Error(areaErr))
			} else {
				city.BoundaryWKT = rec.WKT
				city.AnalysisWKT = area
				real++
			}
		}

		if err := store.UpsertCity(ctx, city); err != nil {
			return eris.Wrapf(err, "seed: upsert %s", c.DisplayName)
		}
	}

	log.Info("seeded city list",
		zap.Int("cities", len(cities)),
		zap.Int("real_boundaries", real),
	)
	return nil
}
