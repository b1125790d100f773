package model

import (
	"math"
	"slices"
	"sort"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
)

// ECOD scores a vector by how far into the empirical tails of each feature it
// falls, summing the negative log tail probabilities across features.
type ECOD struct {
	opts Options

	columns   [][]float64 // sorted per feature
	skewLeft  []bool      // true when the feature's left tail is the long one
	threshold float64
	fitted    int
}

func NewECOD(o Options) *ECOD { return &ECOD{opts: o} }

func (e *ECOD) Name() string { return ECODName }

func (e *ECOD) Update(history []domain.FeatureVector) error {
	e.fitted = len(history)
	if len(history) < e.opts.MinHistory || len(history) < 2 {
		e.columns = nil
		return nil
	}

	data := matrix(history)
	dim := len(data[0])
	e.columns = make([][]float64, dim)
	e.skewLeft = make([]bool, dim)
	for j := 0; j < dim; j++ {
		col := make([]float64, len(data))
		for i, row := range data {
			col[i] = row[j]
		}
		e.skewLeft[j] = skewness(col) < 0
		slices.Sort(col)
		e.columns[j] = col
	}

	raw := make([]float64, len(data))
	for i, row := range data {
		raw[i] = e.raw(row)
	}
	e.threshold = percentile(raw, 100*(1-e.opts.Contamination))
	return nil
}

func (e *ECOD) Score(v domain.FeatureVector) (Score, error) {
	if e.columns == nil {
		return Score{}, abstain(e.opts.MinHistory, e.fitted)
	}
	if err := checkDim(v, len(e.columns)); err != nil {
		return Score{}, err
	}
	r := e.raw(v.Values)
	n := float64(len(e.columns[0]))
	maxRaw := float64(len(e.columns)) * math.Log(n+1)
	return Score{Value: clamp01(r / maxRaw), Anomalous: r > e.threshold}, nil
}

// raw is max(left, right, skew-corrected) summed tail surprise.
func (e *ECOD) raw(x []float64) float64 {
	var left, right, auto float64
	for j, col := range e.columns {
		l, r := tails(col, x[j])
		left += l
		right += r
		if e.skewLeft[j] {
			auto += l
		} else {
			auto += r
		}
	}
	return max(left, right, auto)
}

// tails returns -ln P(X <= x) and -ln P(X >= x) from the empirical CDF of the
// sorted column, smoothed with add-one counts.
func tails(col []float64, x float64) (left, right float64) {
	n := float64(len(col))
	le := float64(sort.Search(len(col), func(i int) bool { return col[i] > x }))
	ge := float64(len(col) - sort.SearchFloat64s(col, x))
	return -math.Log((le + 1) / (n + 1)), -math.Log((ge + 1) / (n + 1))
}

func skewness(col []float64) float64 {
	n := float64(len(col))
	var mean float64
	for _, x := range col {
		mean += x / n
	}
	var m2, m3 float64
	for _, x := range col {
		d := x - mean
		m2 += d * d / n
		m3 += d * d * d / n
	}
	if m2 == 0 {
		return 0
	}
	return m3 / math.Pow(m2, 1.5)
}
