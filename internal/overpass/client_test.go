package overpass

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

const testAreaWKT = "POLYGON((-87.8 41.7, -87.8 42.0, -87.5 42.0, -87.5 41.7, -87.8 41.7))"

const wayPayload = `{
  "elements": [
    {
      "type": "way",
      "id": 42,
      "tags": {"highway": "motorway", "ref": "I-90"},
      "geometry": [
        {"lat": 41.88, "lon": -87.65},
        {"lat": 41.89, "lon": -87.64}
      ]
    },
    {
      "type": "node",
      "id": 7,
      "tags": {}
    }
  ]
}`

func TestQueryRoads_Success(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotQuery = string(body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(wayPayload))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, RatePerSec: 1000})
	features, err := c.QueryRoads(context.Background(), "motorway|motorway_link", testAreaWKT)
	require.NoError(t, err)

	// Nodes are filtered out; only the way survives.
	require.Len(t, features, 1)
	assert.Equal(t, int64(42), features[0].ID)
	assert.Equal(t, "I-90", features[0].RouteLabel())
	assert.Equal(t, []geom.Coord{{-87.65, 41.88}, {-87.64, 41.89}}, features[0].Coords)

	// Query carries the tag filter and a lat-lon poly clause.
	assert.Contains(t, gotQuery, `way["highway"~"motorway|motorway_link"]`)
	assert.Contains(t, gotQuery, `(poly:"41.7 -87.8`)
	assert.Contains(t, gotQuery, "out geom tags;")
}

func TestQueryRoads_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too busy", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, RatePerSec: 1000})
	_, err := c.QueryRoads(context.Background(), "motorway", testAreaWKT)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchFailed))
	assert.Contains(t, err.Error(), "429")
}

func TestQueryRoads_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, RatePerSec: 1000})
	_, err := c.QueryRoads(context.Background(), "motorway", testAreaWKT)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchFailed))
}

func TestQueryRoads_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient(Options{BaseURL: srv.URL, RatePerSec: 1000, Timeout: time.Second})
	_, err := c.QueryRoads(context.Background(), "motorway", testAreaWKT)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchFailed))
}

func TestQueryRoads_BadArea(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://localhost:0", RatePerSec: 1000})

	_, err := c.QueryRoads(context.Background(), "motorway", "LINESTRING(0 0, 1 1)")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFetchFailed) // caller bug, not a fetch outcome

	_, err = c.QueryRoads(context.Background(), "motorway", "POLYGON((0 0, 1 1))")
	require.Error(t, err)
}

func TestWKTToPolyFilter(t *testing.T) {
	poly, err := wktToPolyFilter(testAreaWKT)
	require.NoError(t, err)
	assert.Equal(t, "41.7 -87.8 42.0 -87.8 42.0 -87.5 41.7 -87.5 41.7 -87.8", poly)

	_, err = wktToPolyFilter("POLYGON(broken")
	assert.Error(t, err)

	_, err = wktToPolyFilter("POLYGON((1, 2))")
	assert.Error(t, err)
}

func TestQueryRoads_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"elements": []}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, RatePerSec: 1000})
	features, err := c.QueryRoads(context.Background(), "motorway", testAreaWKT)
	require.NoError(t, err)
	assert.Empty(t, features)
}
