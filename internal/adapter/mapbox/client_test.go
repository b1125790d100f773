package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testClient(baseURL string) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		fallback:   domain.CentroidResolver{MaxDistanceKm: 25},
		metrics:    testMetrics(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func serve(t *testing.T, resp response) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestClient_ReverseGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "72.829500,19.059600", "mapbox expects lon,lat")
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))

		resp := response{
			Features: []feature{
				{
					Center:    []float64{72.8295, 19.0596},
					PlaceName: "Pali Hill, Bandra West, Mumbai, Maharashtra, India",
					Text:      "Pali Hill",
					Context:   []placeContext{{ID: "locality.1", Text: "Bandra West"}, {ID: "place.2", Text: "Mumbai"}},
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	names, err := c.ReverseGeocode(context.Background(), 19.0596, 72.8295)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pali Hill", "Bandra West", "Mumbai", "Pali Hill, Bandra West, Mumbai, Maharashtra, India"}, names)

	zone, err := c.ResolveZone(context.Background(), 19.0596, 72.8295)
	require.NoError(t, err)
	assert.Equal(t, "Bandra", zone)
}

func TestClient_ResolveZone_ExactName(t *testing.T) {
	srv := serve(t, response{Features: []feature{{Text: "colaba", PlaceName: "Colaba, Mumbai"}}})
	defer srv.Close()

	zone, err := testClient(srv.URL).ResolveZone(context.Background(), 18.9067, 72.8147)
	require.NoError(t, err)
	assert.Equal(t, "Colaba", zone)
}

func TestClient_ResolveZone_NoMatchFallsBackToCentroid(t *testing.T) {
	srv := serve(t, response{Features: []feature{}})
	defer srv.Close()

	zone, err := testClient(srv.URL).ResolveZone(context.Background(), 19.1100, 72.8690)
	require.NoError(t, err)
	assert.Equal(t, "Andheri", zone)
}

func TestClient_ResolveZone_OutsideCity(t *testing.T) {
	srv := serve(t, response{Features: []feature{{Text: "Pune"}}})
	defer srv.Close()

	_, err := testClient(srv.URL).ResolveZone(context.Background(), 18.5204, 73.8567)
	assert.ErrorIs(t, err, domain.ErrNoZone)
}

func TestClient_ReverseGeocode_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.token = "bad-token"

	_, err := c.ReverseGeocode(context.Background(), 19.0596, 72.8295)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	zone, err := c.ResolveZone(context.Background(), 19.0596, 72.8295)
	require.NoError(t, err, "API failures degrade to the centroid resolver")
	assert.Equal(t, "Bandra", zone)
}

func TestClient_ReverseGeocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}

	_, err := c.ReverseGeocode(context.Background(), 19.0596, 72.8295)
	require.Error(t, err)
}

func TestMatchZone(t *testing.T) {
	tests := []struct {
		name   string
		names  []string
		want   string
		wantOK bool
	}{
		{"exact", []string{"Dadar"}, "Dadar", true},
		{"case insensitive", []string{"BORIVALI"}, "Borivali", true},
		{"substring", []string{"Andheri East"}, "Andheri", true},
		{"exact wins over substring", []string{"Near Bandra", "Colaba"}, "Colaba", true},
		{"no match", []string{"Thane", "Navi Mumbai"}, "", false},
		{"empty", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := matchZone(tt.names)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
