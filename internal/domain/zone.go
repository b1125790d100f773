package domain

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
)

// ErrNoZone is returned when coordinates cannot be matched to any zone.
var ErrNoZone = errors.New("no zone for coordinates")

// Zone is one alerting unit of the city.
type Zone struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

var zones = []Zone{
	{Name: "Bandra", Lat: 19.0596, Lon: 72.8295},
	{Name: "Colaba", Lat: 18.9067, Lon: 72.8147},
	{Name: "Andheri", Lat: 19.1136, Lon: 72.8697},
	{Name: "Dadar", Lat: 19.0176, Lon: 72.8561},
	{Name: "Borivali", Lat: 19.2304, Lon: 72.8564},
}

// Zones returns a copy of the zone catalog.
func Zones() []Zone {
	out := make([]Zone, len(zones))
	copy(out, zones)
	return out
}

// ZoneNames returns the catalog's zone names in catalog order.
func ZoneNames() []string {
	names := make([]string, len(zones))
	for i, z := range zones {
		names[i] = z.Name
	}
	return names
}

// CanonicalZone matches name case-insensitively against the catalog.
func CanonicalZone(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, z := range zones {
		if strings.EqualFold(z.Name, name) {
			return z.Name, true
		}
	}
	return "", false
}

// ZoneResolver localises a coordinate pair to a zone name.
type ZoneResolver interface {
	ResolveZone(ctx context.Context, lat, lon float64) (string, error)
}

// CentroidResolver assigns the zone whose centroid is nearest. A zero
// MaxDistanceKm accepts any distance.
type CentroidResolver struct {
	MaxDistanceKm float64
}

func (c CentroidResolver) ResolveZone(_ context.Context, lat, lon float64) (string, error) {
	best, bestDist := "", math.Inf(1)
	for _, z := range zones {
		if d := HaversineKm(lat, lon, z.Lat, z.Lon); d < bestDist {
			best, bestDist = z.Name, d
		}
	}
	if best == "" || (c.MaxDistanceKm > 0 && bestDist > c.MaxDistanceKm) {
		return "", ErrNoZone
	}
	return best, nil
}

const earthRadiusKm = 6371.0

// HaversineKm is the great-circle distance between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// LocalizeReading fills in the zone of a reading that arrived with
// coordinates only. Resolver failures degrade gracefully: the reading is
// returned unchanged and Validate rejects it later.
func LocalizeReading(ctx context.Context, r Reading, resolver ZoneResolver, logger *slog.Logger) Reading {
	if r.Zone != "" || resolver == nil || !r.HasCoordinates() {
		return r
	}
	zone, err := resolver.ResolveZone(ctx, r.Lat, r.Lon)
	if err != nil {
		logger.Warn("zone resolution failed",
			"lat", r.Lat,
			"lon", r.Lon,
			"error", err,
		)
		return r
	}
	r.Zone = zone
	return r
}
