// Package boundary loads city limit polygons from shapefiles and
// derives the rectangular analysis areas the road fetcher queries
// against.
package boundary

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"
)

// Record is one city boundary read from a shapefile.
type Record struct {
	Name  string
	State string
	WKT   string
}

// Load reads polygon records from a shapefile, pulling the city name
// and state from the named DBF fields. Records with missing names or
// unusable geometry are skipped.
func Load(shpPath, nameField, stateField string) ([]Record, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	nameIdx, ok := fieldIdx[strings.ToLower(nameField)]
	if !ok {
		return nil, eris.Errorf("boundary: shapefile has no %q field", nameField)
	}
	stateIdx, hasState := fieldIdx[strings.ToLower(stateField)]

	var records []Record
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		name := attribute(reader, nameIdx)
		if name == "" {
			skipped++
			continue
		}

		poly, _ := shape.(*shp.Polygon)
		g := polygonToMultiPolygon(poly)
		if g == nil {
			skipped++
			continue
		}

		text, err := wkt.Marshal(g)
		if err != nil {
			skipped++
			continue
		}

		rec := Record{Name: name, WKT: text}
		if hasState {
			rec.State = attribute(reader, stateIdx)
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		zap.L().Debug("boundary: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return records, nil
}

func attribute(reader *shp.Reader, idx int) string {
	val := strings.TrimRight(reader.Attribute(idx), "\x00")
	return strings.TrimSpace(val)
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}

		if err := mp.Push(poly); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// AnalysisArea expands a boundary's bounding box by bufferDeg degrees
// on every side and returns the result as a POLYGON. Road queries run
// against this rectangle rather than the exact city limit, so freeway
// sections just outside the limit are still screened.
func AnalysisArea(boundaryWKT string, bufferDeg float64) (string, error) {
	g, err := wkt.Unmarshal(boundaryWKT)
	if err != nil {
		return "", eris.Wrap(err, "boundary: parse boundary WKT")
	}

	b := g.Bounds()
	minX, minY := b.Min(0)-bufferDeg, b.Min(1)-bufferDeg
	maxX, maxY := b.Max(0)+bufferDeg, b.Max(1)+bufferDeg

	poly := geom.NewPolygonFlat(geom.XY, []float64{
		minX, minY,
		maxX, minY,
		maxX, maxY,
		minX, maxY,
		minX, minY,
	}, []int{10}).SetSRID(4326)

	text, err := wkt.Marshal(poly)
	if err != nil {
		return "", eris.Wrap(err, "boundary: encode analysis area")
	}
	return text, nil
}
