// Package overpass queries the OpenStreetMap Overpass API for road
// centerlines inside a city's analysis area.
package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/capscreen/internal/model"
)

// ErrFetchFailed is the single failure mode of a feature query: network
// error, non-success status, or an undecodable body. No partial results
// are returned and no retry is attempted; retry policy belongs to the
// caller.
var ErrFetchFailed = errors.New("overpass: fetch failed")

// Options configures the Overpass client.
type Options struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	RatePerSec float64
}

// Client is a read-only Overpass API client with a courtesy rate limit.
type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a new Overpass client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://overpass-api.de/api/interpreter"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "capscreen/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 1
	}
	return &Client{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		client:    &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
	}
}

// response mirrors the subset of the Overpass JSON payload we consume.
type response struct {
	Elements []element `json:"elements"`
}

type element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags"`
	Geometry []latLon          `json:"geometry"`
}

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// QueryRoads fetches every way matching tagFilter (a highway regex such
// as "motorway|motorway_link") whose geometry intersects the polygon
// given as WKT. The whole fetch either succeeds as a complete feature
// list or fails with ErrFetchFailed.
func (c *Client) QueryRoads(ctx context.Context, tagFilter, areaWKT string) ([]model.RoadFeature, error) {
	poly, err := wktToPolyFilter(areaWKT)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`[out:json][timeout:60];
(
  way["highway"~"%s"](poly:"%s");
);
out geom tags;`, tagFilter, poly)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "overpass: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(query))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: create request")
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(ErrFetchFailed, "request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrapf(ErrFetchFailed, "upstream returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(ErrFetchFailed, "read body: %v", err)
	}

	var payload response
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, eris.Wrapf(ErrFetchFailed, "decode body: %v", err)
	}

	var features []model.RoadFeature
	for _, el := range payload.Elements {
		if el.Type != "way" || len(el.Geometry) == 0 {
			continue
		}
		coords := make([]geom.Coord, len(el.Geometry))
		for i, pt := range el.Geometry {
			coords[i] = geom.Coord{pt.Lon, pt.Lat}
		}
		features = append(features, model.RoadFeature{
			ID:     el.ID,
			Tags:   el.Tags,
			Coords: coords,
		})
	}

	zap.L().Debug("overpass: query complete",
		zap.Int("ways", len(features)),
		zap.String("tag_filter", tagFilter),
	)
	return features, nil
}

// wktToPolyFilter converts a POLYGON WKT outer ring to the Overpass
// poly filter format, which wants "lat lon lat lon ..." pairs.
func wktToPolyFilter(areaWKT string) (string, error) {
	s := strings.TrimSpace(areaWKT)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "POLYGON") {
		return "", eris.Errorf("overpass: analysis area must be a POLYGON, got %q", head(s))
	}

	open := strings.Index(s, "((")
	if open < 0 {
		return "", eris.New("overpass: malformed polygon WKT")
	}
	rest := s[open+2:]
	end := strings.Index(rest, ")")
	if end < 0 {
		return "", eris.New("overpass: malformed polygon WKT")
	}

	// Outer ring only; interior rings are irrelevant to a bounding filter.
	var pairs []string
	for _, vertex := range strings.Split(rest[:end], ",") {
		fields := strings.Fields(strings.TrimSpace(vertex))
		if len(fields) < 2 {
			return "", eris.Errorf("overpass: malformed polygon vertex %q", vertex)
		}
		// WKT is "lon lat"; Overpass poly wants "lat lon".
		pairs = append(pairs, fields[1], fields[0])
	}
	if len(pairs) < 8 {
		return "", eris.New("overpass: polygon ring has fewer than 4 vertices")
	}

	return strings.Join(pairs, " "), nil
}

func head(s string) string {
	if len(s) > 24 {
		return s[:24] + "..."
	}
	return s
}
