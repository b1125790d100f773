package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/observability"
)

// Client implements domain.ZoneResolver using the Mapbox reverse-geocoding
// API. Places that do not name a known zone fall back to the nearest centroid.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	fallback   domain.ZoneResolver
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox zone resolver.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  "https://api.mapbox.com/geocoding/v5/mapbox.places",
		fallback: domain.CentroidResolver{MaxDistanceKm: 25},
		metrics:  metrics,
		logger:   logger,
	}
}

// ResolveZone reverse-geocodes the coordinate and matches the returned
// neighbourhood names against the zone catalog.
func (c *Client) ResolveZone(ctx context.Context, lat, lon float64) (string, error) {
	names, err := c.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		c.metrics.ZoneLookups.WithLabelValues("mapbox", "error").Inc()
		c.logger.Warn("mapbox lookup failed, using centroid", "error", err)
		return c.resolveFallback(ctx, lat, lon)
	}
	if zone, ok := matchZone(names); ok {
		c.metrics.ZoneLookups.WithLabelValues("mapbox", "success").Inc()
		return zone, nil
	}
	c.metrics.ZoneLookups.WithLabelValues("mapbox", "empty").Inc()
	return c.resolveFallback(ctx, lat, lon)
}

func (c *Client) resolveFallback(ctx context.Context, lat, lon float64) (string, error) {
	zone, err := c.fallback.ResolveZone(ctx, lat, lon)
	if err != nil {
		c.metrics.ZoneLookups.WithLabelValues("centroid", "empty").Inc()
		return "", err
	}
	c.metrics.ZoneLookups.WithLabelValues("centroid", "success").Inc()
	return zone, nil
}

// ReverseGeocode returns the place names Mapbox associates with the
// coordinate, most specific first.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) ([]string, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"neighborhood,locality,place"},
	}

	start := time.Now()
	defer func() { c.metrics.MapboxAPIDuration.Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var names []string
	for _, f := range mapboxResp.Features {
		names = append(names, f.Text)
		for _, ctxEntry := range f.Context {
			names = append(names, ctxEntry.Text)
		}
		names = append(names, f.PlaceName)
	}
	return names, nil
}

// matchZone returns the first catalog zone named by any of the place names.
func matchZone(names []string) (string, bool) {
	for _, name := range names {
		if zone, ok := domain.CanonicalZone(name); ok {
			return zone, true
		}
	}
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, zone := range domain.ZoneNames() {
			if strings.Contains(lower, strings.ToLower(zone)) {
				return zone, true
			}
		}
	}
	return "", false
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64      `json:"center"` // [lon, lat]
	PlaceName string         `json:"place_name"`
	Text      string         `json:"text"`
	Context   []placeContext `json:"context"`
}

type placeContext struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
