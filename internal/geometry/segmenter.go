// Package geometry implements the polyline segmenter that chunks road
// centerlines into fixed-length analysis segments.
package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

// DistanceFunc returns the distance in feet between two consecutive
// coordinates. Injected as a strategy so the crude planar approximation
// can later be swapped for a geodesic calculation without touching the
// segmentation walk.
type DistanceFunc func(a, b geom.Coord) float64

// CrudeDegreeDistance returns a DistanceFunc that converts a planar
// coordinate delta straight to feet using a fixed scale factor. It is a
// deliberate approximation with no great-circle correction; at mid-US
// latitudes a factor of ~364,000 ft/degree is close enough for
// screening-level segment lengths.
func CrudeDegreeDistance(feetPerDegree float64) DistanceFunc {
	return func(a, b geom.Coord) float64 {
		dx := b[0] - a[0]
		dy := b[1] - a[1]
		return math.Sqrt(dx*dx+dy*dy) * feetPerDegree
	}
}

// Chunk is one emitted sub-polyline with its accumulated length.
type Chunk struct {
	Coords   []geom.Coord
	LengthFt float64
}

// Segmenter walks a polyline and emits contiguous chunks of
// approximately TargetFt each.
type Segmenter struct {
	TargetFt float64
	Distance DistanceFunc
}

// Split chunks coords into sub-polylines. Each chunk accumulates
// consecutive-point distances until it reaches or just passes TargetFt,
// so lengths are approximate, never short of the target except when the
// line ends first. Adjacent chunks share exactly one boundary point.
//
// A trailing remainder shorter than the target is dropped rather than
// emitted as a short final chunk. Inputs with fewer than 2 points yield
// no chunks.
func (s Segmenter) Split(coords []geom.Coord) []Chunk {
	var chunks []Chunk

	start := 0
	for start < len(coords)-1 {
		end := start + 1
		length := s.Distance(coords[start], coords[end])
		for length < s.TargetFt && end < len(coords)-1 {
			end++
			length += s.Distance(coords[end-1], coords[end])
		}

		if length < s.TargetFt {
			// Remainder shorter than the target: drop it.
			break
		}

		// Coords are slices themselves, so copy each pair rather than
		// aliasing the caller's backing arrays.
		chunk := make([]geom.Coord, end-start+1)
		for i, pt := range coords[start : end+1] {
			chunk[i] = geom.Coord{pt[0], pt[1]}
		}
		chunks = append(chunks, Chunk{Coords: chunk, LengthFt: length})

		start = end
	}

	return chunks
}

// LineString converts a chunk to a go-geom LineString in lon/lat order
// with SRID 4326.
func (c Chunk) LineString() *geom.LineString {
	flat := make([]float64, 0, len(c.Coords)*2)
	for _, pt := range c.Coords {
		flat = append(flat, pt[0], pt[1])
	}
	return geom.NewLineStringFlat(geom.XY, flat).SetSRID(4326)
}
