// Package model holds the anomaly scorers of the ensemble and the Bank that
// runs them per stream.
//
// Scorers come in two families. Density scorers (iforest, lof, ecod) compare
// a vector against the distribution of the stream's recent windows and flag
// it when its dissimilarity exceeds an adaptive threshold taken as a high
// percentile of the history's own scores. Forecast scorers (holt,
// autoregressive) predict the stream's primary level from prior windows and
// flag deviations beyond a fixed number of standard errors.
//
// Every scorer abstains, returning an error wrapping [domain.ErrAbstained],
// until it has seen its minimum history.
package model

import (
	"fmt"
	"math"
	"slices"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
)

// Model names accepted in MODEL_WEIGHTS.
const (
	IsolationForestName = "iforest"
	LOFName             = "lof"
	ECODName            = "ecod"
	HoltName            = "holt"
	AutoregressiveName  = "autoregressive"
)

// Score is a scorer's raw output before weighting.
type Score struct {
	Value     float64 // normalised to [0, 1]
	Anomalous bool
}

// Scorer is the capability every ensemble member implements. Update re-fits
// on the stream's history and Score must not mutate the scorer, so the Bank
// may run Score concurrently with other scorers.
type Scorer interface {
	Name() string
	Update(history []domain.FeatureVector) error
	Score(v domain.FeatureVector) (Score, error)
}

// Options tune every scorer built by a Factory.
type Options struct {
	// MinHistory is the number of windows density scorers need.
	MinHistory int
	// MinForecastHistory is the number of windows forecast scorers need.
	MinForecastHistory int
	// Contamination is the expected anomaly share; density thresholds sit at
	// the (1-Contamination) percentile of historical scores.
	Contamination float64
	// Seed makes the isolation forest reproducible.
	Seed int64
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		MinHistory:         10,
		MinForecastHistory: 5,
		Contamination:      0.03,
		Seed:               42,
	}
}

// Factory builds a fresh scorer for one stream.
type Factory func(Options) Scorer

// Registry maps model names to their factories.
var Registry = map[string]Factory{
	IsolationForestName: func(o Options) Scorer { return NewIsolationForest(o) },
	LOFName:             func(o Options) Scorer { return NewLOF(o) },
	ECODName:            func(o Options) Scorer { return NewECOD(o) },
	HoltName:            func(o Options) Scorer { return NewHolt(o) },
	AutoregressiveName:  func(o Options) Scorer { return NewAutoregressive(o) },
}

// DefaultWeights is the trust assigned to each model; the weights sum to 1.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		IsolationForestName: 0.25,
		LOFName:             0.20,
		ECODName:            0.20,
		HoltName:            0.20,
		AutoregressiveName:  0.15,
	}
}

// ModelOrder is the canonical ordering used in verdict slices and reports.
var ModelOrder = []string{IsolationForestName, LOFName, ECODName, HoltName, AutoregressiveName}

func abstain(need, have int) error {
	return fmt.Errorf("%w: need %d windows, have %d", domain.ErrAbstained, need, have)
}

func matrix(history []domain.FeatureVector) [][]float64 {
	out := make([][]float64, len(history))
	for i, v := range history {
		out[i] = v.Values
	}
	return out
}

func checkDim(v domain.FeatureVector, dim int) error {
	if len(v.Values) != dim {
		return fmt.Errorf("%w: vector has %d features, model fitted on %d", domain.ErrAbstained, len(v.Values), dim)
	}
	for _, x := range v.Values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: non-finite feature", domain.ErrAbstained)
		}
	}
	return nil
}

// percentile returns the p-th percentile (0-100) by nearest-rank on a sorted copy.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)
	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
