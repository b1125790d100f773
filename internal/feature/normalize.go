// Package feature turns raw readings into fixed-dimension feature vectors.
package feature

import (
	"fmt"
	"slices"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
)

// Sensor vectors are [mean, variance, rate_of_change_per_minute, count] over
// the primary value.
const sensorDim = 4

// Pharmacy vectors are [units, share per sale category...].
var pharmacyDim = 1 + len(domain.SaleCategories)

// Dimension is the static vector length for a source type.
func Dimension(source domain.SourceType) int {
	if source == domain.SourcePharmacy {
		return pharmacyDim
	}
	return sensorDim
}

// Normalize builds the feature vector for one (source, zone, window) triple.
// Readings outside the window are ignored and an empty window yields a zero
// vector. A reading of a different source type is an input error.
func Normalize(source domain.SourceType, zone string, readings []domain.Reading, window domain.Window) (domain.FeatureVector, error) {
	fv := domain.FeatureVector{
		Source: source,
		Zone:   zone,
		Window: window,
		Values: make([]float64, Dimension(source)),
	}

	in := make([]domain.Reading, 0, len(readings))
	for _, r := range readings {
		if r.SourceType != source {
			return domain.FeatureVector{}, &domain.InputError{
				Field:  "source_type",
				Reason: fmt.Sprintf("got %q in a %q stream", r.SourceType, source),
			}
		}
		if window.Contains(r.Timestamp) && len(r.Values) > 0 {
			in = append(in, r)
		}
	}
	if len(in) == 0 {
		return fv, nil
	}

	if source == domain.SourcePharmacy {
		fillPharmacy(fv.Values, in)
	} else {
		fillSensor(fv.Values, in)
	}
	return fv, nil
}

func fillSensor(out []float64, in []domain.Reading) {
	slices.SortStableFunc(in, func(a, b domain.Reading) int { return a.Timestamp.Compare(b.Timestamp) })

	n := float64(len(in))
	var sum float64
	for _, r := range in {
		sum += r.Primary()
	}
	mean := sum / n

	var sq float64
	for _, r := range in {
		d := r.Primary() - mean
		sq += d * d
	}

	var rate float64
	first, last := in[0], in[len(in)-1]
	if minutes := last.Timestamp.Sub(first.Timestamp).Minutes(); minutes > 0 {
		rate = (last.Primary() - first.Primary()) / minutes
	}

	out[0] = mean
	out[1] = sq / n
	out[2] = rate
	out[3] = n
}

func fillPharmacy(out []float64, in []domain.Reading) {
	byCategory := make(map[string]float64, len(domain.SaleCategories))
	var total float64
	for _, r := range in {
		units := r.Primary()
		total += units
		byCategory[domain.SaleCategory(r.Category)] += units
	}

	out[0] = total
	if total == 0 {
		return
	}
	for i, c := range domain.SaleCategories {
		out[i+1] = byCategory[c] / total
	}
}

// GroupByStream partitions readings by (source, zone), preserving input order
// within each stream.
func GroupByStream(readings []domain.Reading) map[domain.StreamKey][]domain.Reading {
	out := make(map[domain.StreamKey][]domain.Reading)
	for _, r := range readings {
		k := domain.StreamKey{Source: r.SourceType, Zone: r.Zone}
		out[k] = append(out[k], r)
	}
	return out
}
