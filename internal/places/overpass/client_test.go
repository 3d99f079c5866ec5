package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paulmach/osm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/saferoute/internal/places"
)

const overpassXML = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="Overpass API 0.7.62">
  <node id="25508583" lat="51.5081" lon="-0.0759">
    <tag k="name" v="Tower of London"/>
    <tag k="tourism" v="attraction"/>
    <tag k="website" v="https://www.hrp.org.uk/tower-of-london/"/>
    <tag k="wheelchair" v="limited"/>
    <tag k="fee" v="yes"/>
    <tag k="addr:street" v="Tower Hill"/>
    <tag k="addr:city" v="London"/>
  </node>
  <node id="1234" lat="51.5101" lon="-0.0801">
    <tag k="name" v="All Hallows"/>
    <tag k="tourism" v="viewpoint"/>
  </node>
</osm>`

func TestClient_Nearby(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/interpreter", r.URL.Path)
		require.NoError(t, r.ParseForm())
		query := r.PostForm.Get("data")
		assert.Contains(t, query, `node["tourism"]["name"](around:800,51.508100,-0.075900)`)
		assert.True(t, strings.HasPrefix(query, "[out:xml]"))

		_, _ = w.Write([]byte(overpassXML))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: server.Client(), Logger: zerolog.Nop()})

	found, err := client.Nearby(context.Background(), 51.5081, -0.0759, 800, places.CategoryTourism)
	require.NoError(t, err)
	require.Len(t, found, 2)

	tower := found[0]
	assert.Equal(t, int64(25508583), tower.ID)
	assert.Equal(t, "Tower of London", tower.Name)
	assert.Equal(t, "attraction", tower.Kind)
	assert.InDelta(t, 51.5081, tower.Lat, 1e-9)
	assert.InDelta(t, -0.0759, tower.Lng, 1e-9)
	require.NotNil(t, tower.Website)
	assert.Equal(t, "https://www.hrp.org.uk/tower-of-london/", *tower.Website)
	assert.Nil(t, tower.Wheelchair, "limited is neither yes nor no")
	require.NotNil(t, tower.Fee)
	assert.True(t, *tower.Fee)
	require.NotNil(t, tower.Address)
	assert.Equal(t, "Tower Hill", tower.Address.Street)

	viewpoint := found[1]
	assert.Nil(t, viewpoint.Website)
	assert.Nil(t, viewpoint.Address)
}

func TestClient_Nearby_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: places.ErrRateLimitExceeded},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, wantErr: places.ErrProviderUnavailable},
		{name: "bad query", status: http.StatusBadRequest, wantErr: places.ErrInvalidQuery},
		{name: "bad xml", status: http.StatusOK, body: `<osm><node`, wantErr: places.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: server.Client(), Logger: zerolog.Nop()})
			_, err := client.Nearby(context.Background(), 51.5, -0.1, 500, places.CategoryAmenity)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestToPlace_ContactFallbacks(t *testing.T) {
	node := &osm.Node{
		ID:  42,
		Lat: 51.5,
		Lon: -0.1,
		Tags: osm.Tags{
			{Key: "name", Value: "Cafe"},
			{Key: "amenity", Value: "cafe"},
			{Key: "contact:phone", Value: "+44 20 0000 0000"},
			{Key: "wheelchair", Value: "no"},
		},
	}

	place := ToPlace(node, places.CategoryAmenity)
	assert.Equal(t, "cafe", place.Kind)
	require.NotNil(t, place.Phone)
	assert.Equal(t, "+44 20 0000 0000", *place.Phone)
	require.NotNil(t, place.Wheelchair)
	assert.False(t, *place.Wheelchair)
}

func TestQuery(t *testing.T) {
	q := Query(51.5, -0.1, 1000, places.CategoryHistoric, 0)
	assert.Equal(t, `[out:xml][timeout:0];node["historic"]["name"](around:1000,51.500000,-0.100000);out 50;`, q)
}
