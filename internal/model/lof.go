package model

import (
	"math"
	"slices"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
)

const (
	lofNeighbors = 5
	lofEpsilon   = 1e-9
)

// LOF is the local outlier factor over standardised features: the ratio of
// the neighbours' reachability density to the vector's own.
type LOF struct {
	opts Options

	points    [][]float64 // standardised history
	mean, std []float64
	kDist     []float64
	lrd       []float64
	k         int
	threshold float64
	fitted    int
}

func NewLOF(o Options) *LOF { return &LOF{opts: o} }

func (l *LOF) Name() string { return LOFName }

func (l *LOF) Update(history []domain.FeatureVector) error {
	l.fitted = len(history)
	if len(history) < l.opts.MinHistory || len(history) < 2 {
		l.points = nil
		return nil
	}

	raw := matrix(history)
	l.mean, l.std = columnStats(raw)
	l.points = make([][]float64, len(raw))
	for i, row := range raw {
		l.points[i] = l.standardise(row)
	}
	l.k = min(lofNeighbors, len(l.points)-1)

	n := len(l.points)
	l.kDist = make([]float64, n)
	neighbours := make([][]int, n)
	for i, p := range l.points {
		neighbours[i], l.kDist[i] = l.knn(p, i)
	}

	l.lrd = make([]float64, n)
	for i, p := range l.points {
		l.lrd[i] = l.density(p, neighbours[i])
	}

	factors := make([]float64, n)
	for i := range l.points {
		factors[i] = l.factor(l.lrd[i], neighbours[i])
	}
	l.threshold = percentile(factors, 100*(1-l.opts.Contamination))
	return nil
}

func (l *LOF) Score(v domain.FeatureVector) (Score, error) {
	if l.points == nil {
		return Score{}, abstain(l.opts.MinHistory, l.fitted)
	}
	if err := checkDim(v, len(l.mean)); err != nil {
		return Score{}, err
	}

	p := l.standardise(v.Values)
	nb, _ := l.knn(p, -1)
	factor := l.factor(l.density(p, nb), nb)

	var value float64
	if factor > 1 {
		value = 1 - 1/factor
	}
	return Score{Value: clamp01(value), Anomalous: factor > 1 && factor > l.threshold}, nil
}

// knn returns the indices of the k nearest history points to p, skipping
// index self, and the distance to the k-th of them.
func (l *LOF) knn(p []float64, self int) ([]int, float64) {
	type cand struct {
		idx  int
		dist float64
	}
	cands := make([]cand, 0, len(l.points))
	for j, q := range l.points {
		if j == self {
			continue
		}
		cands = append(cands, cand{j, euclidean(p, q)})
	}
	slices.SortFunc(cands, func(a, b cand) int {
		if a.dist != b.dist {
			if a.dist < b.dist {
				return -1
			}
			return 1
		}
		return a.idx - b.idx
	})

	k := min(l.k, len(cands))
	idx := make([]int, k)
	for i := 0; i < k; i++ {
		idx[i] = cands[i].idx
	}
	return idx, cands[k-1].dist
}

// density is the local reachability density of p given its neighbours.
func (l *LOF) density(p []float64, nb []int) float64 {
	var sum float64
	for _, j := range nb {
		sum += math.Max(l.kDist[j], euclidean(p, l.points[j]))
	}
	return 1 / (sum/float64(len(nb)) + lofEpsilon)
}

func (l *LOF) factor(lrd float64, nb []int) float64 {
	var sum float64
	for _, j := range nb {
		sum += l.lrd[j]
	}
	return sum / float64(len(nb)) / lrd
}

func (l *LOF) standardise(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, x := range row {
		out[j] = (x - l.mean[j]) / l.std[j]
	}
	return out
}

// columnStats returns per-feature mean and standard deviation; constant
// features get a unit deviation so they do not divide by zero.
func columnStats(data [][]float64) (mean, std []float64) {
	dim := len(data[0])
	mean = make([]float64, dim)
	std = make([]float64, dim)
	n := float64(len(data))
	for _, row := range data {
		for j, x := range row {
			mean[j] += x / n
		}
	}
	for _, row := range data {
		for j, x := range row {
			d := x - mean[j]
			std[j] += d * d / n
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j])
		if std[j] < 1e-12 {
			std[j] = 1
		}
	}
	return mean, std
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
