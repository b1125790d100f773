package domain

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// SourceType identifies the kind of sensor stream a Reading belongs to.
type SourceType string

const (
	SourceWater    SourceType = "water"
	SourcePharmacy SourceType = "pharmacy"
	SourceHospital SourceType = "hospital"
	SourceAir      SourceType = "air"
)

// SourceTypes lists every recognised stream in a stable order.
var SourceTypes = []SourceType{SourceWater, SourcePharmacy, SourceHospital, SourceAir}

// ParseSourceType accepts the canonical names and the long-form names emitted
// by the field collectors ("water_quality", "pharmacy_sales", ...).
func ParseSourceType(s string) (SourceType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "water", "water_quality":
		return SourceWater, true
	case "pharmacy", "pharmacy_sales":
		return SourcePharmacy, true
	case "hospital", "hospital_visits", "hospital_admissions":
		return SourceHospital, true
	case "air", "air_quality":
		return SourceAir, true
	default:
		return "", false
	}
}

// Pharmacy sale categories. Unknown or missing categories count as "other".
const (
	CategoryAntidiarrheal = "antidiarrheal"
	CategoryAntipyretic   = "antipyretic"
	CategoryRespiratory   = "respiratory"
	CategoryOther         = "other"
)

// SaleCategories is the fixed category order used by pharmacy feature vectors.
var SaleCategories = []string{CategoryAntidiarrheal, CategoryAntipyretic, CategoryRespiratory, CategoryOther}

// valueRanges bounds the primary value per source:
//   - water: pH 0-14
//   - air: AQI 0-1000
//   - hospital: admissions per report
//   - pharmacy: units sold per report
var valueRanges = map[SourceType][2]float64{
	SourceWater:    {0, 14},
	SourceAir:      {0, 1000},
	SourceHospital: {0, 100000},
	SourcePharmacy: {0, 100000},
}

// Reading is one ingested observation. It is treated as immutable once parsed.
type Reading struct {
	SourceType SourceType `json:"source_type"`
	Zone       string     `json:"zone"`
	Timestamp  time.Time  `json:"timestamp"`
	Values     []float64  `json:"values"`
	Category   string     `json:"category,omitempty"`
	Lat        float64    `json:"lat,omitempty"`
	Lon        float64    `json:"lon,omitempty"`
	ReceivedAt time.Time  `json:"received_at"`
}

// Primary returns the first value, which every source type defines.
func (r Reading) Primary() float64 {
	if len(r.Values) == 0 {
		return 0
	}
	return r.Values[0]
}

// HasCoordinates reports whether the reading carries a usable position.
func (r Reading) HasCoordinates() bool {
	return r.Lat != 0 || r.Lon != 0
}

// RawEvent represents an unprocessed message from the readings topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// wireReading is the JSON accepted on the readings topic. Collectors send
// either a scalar "value" or a "values" array, and older ones use zone_id,
// data_type and latitude/longitude.
type wireReading struct {
	SourceType string    `json:"source_type"`
	DataType   string    `json:"data_type"`
	Zone       string    `json:"zone"`
	ZoneID     string    `json:"zone_id"`
	Timestamp  string    `json:"timestamp"`
	Value      *float64  `json:"value"`
	Values     []float64 `json:"values"`
	Category   string    `json:"category"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
}

// timestampLayouts are tried in order; naive timestamps are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseRawEvent decodes a RawEvent's value into a Reading. It does not
// validate; call Validate once the zone has been localised.
func ParseRawEvent(raw RawEvent) (Reading, error) {
	var w wireReading
	if err := json.Unmarshal(raw.Value, &w); err != nil {
		return Reading{}, inputErrorf("payload", "malformed JSON: %v", err)
	}

	source := w.SourceType
	if source == "" {
		source = w.DataType
	}
	st, _ := ParseSourceType(source)
	if st == "" {
		st = SourceType(source)
	}

	zone := w.Zone
	if zone == "" {
		zone = w.ZoneID
	}
	if canonical, ok := CanonicalZone(zone); ok {
		zone = canonical
	}

	values := w.Values
	if len(values) == 0 && w.Value != nil {
		values = []float64{*w.Value}
	}

	lat, lon := w.Lat, w.Lon
	if lat == 0 && lon == 0 {
		lat, lon = w.Latitude, w.Longitude
	}

	ts, err := parseTimestamp(w.Timestamp, raw.Timestamp)
	if err != nil {
		return Reading{}, err
	}

	return Reading{
		SourceType: st,
		Zone:       zone,
		Timestamp:  ts,
		Values:     values,
		Category:   strings.ToLower(strings.TrimSpace(w.Category)),
		Lat:        lat,
		Lon:        lon,
		ReceivedAt: clock.Now().UTC(),
	}, nil
}

// parseTimestamp reads the payload timestamp, falling back to the message time.
func parseTimestamp(s string, fallback time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if fallback.IsZero() {
			return clock.Now().UTC(), nil
		}
		return fallback.UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, inputErrorf("timestamp", "unrecognised format %q", s)
}

// Validate checks a Reading against the ingestion contract and returns an
// *InputError describing the first problem found.
func Validate(r Reading) error {
	bounds, ok := valueRanges[r.SourceType]
	if !ok {
		return inputErrorf("source_type", "unknown source type %q", r.SourceType)
	}
	if r.Zone == "" {
		return inputErrorf("zone", "missing zone")
	}
	if _, ok := CanonicalZone(r.Zone); !ok {
		return inputErrorf("zone", "unknown zone %q", r.Zone)
	}
	if r.Timestamp.IsZero() {
		return inputErrorf("timestamp", "missing timestamp")
	}
	if len(r.Values) == 0 {
		return inputErrorf("values", "no values")
	}
	for _, v := range r.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return inputErrorf("values", "non-finite value")
		}
	}
	if p := r.Primary(); p < bounds[0] || p > bounds[1] {
		return inputErrorf("values", "%s value %g outside [%g, %g]", r.SourceType, p, bounds[0], bounds[1])
	}
	return nil
}

// SaleCategory maps a pharmacy category onto the fixed category set.
func SaleCategory(category string) string {
	for _, c := range SaleCategories {
		if c == category {
			return c
		}
	}
	return CategoryOther
}
