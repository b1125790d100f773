package model

import (
	"math"
	"math/rand"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
)

const (
	defaultTrees      = 100
	defaultSampleSize = 256
	eulerMascheroni   = 0.5772156649
)

// IsolationForest isolates a vector with random axis-aligned splits; vectors
// that isolate quickly are anomalous.
type IsolationForest struct {
	opts       Options
	nTrees     int
	sampleSize int

	trees         []*node
	avgPathLength float64
	threshold     float64
	dim           int
	fitted        int
}

type node struct {
	splitFeature int
	splitValue   float64
	left, right  *node
	size         int
}

func NewIsolationForest(o Options) *IsolationForest {
	return &IsolationForest{opts: o, nTrees: defaultTrees, sampleSize: defaultSampleSize}
}

func (f *IsolationForest) Name() string { return IsolationForestName }

// Update rebuilds every tree from history. The random source is reseeded on
// each fit so identical histories always produce identical forests.
func (f *IsolationForest) Update(history []domain.FeatureVector) error {
	f.fitted = len(history)
	if len(history) < f.opts.MinHistory || len(history) < 2 {
		f.trees = nil
		return nil
	}

	data := matrix(history)
	rng := rand.New(rand.NewSource(f.opts.Seed))
	sampleSize := min(f.sampleSize, len(data))
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize))))

	f.dim = len(data[0])
	f.trees = make([]*node, f.nTrees)
	for i := range f.trees {
		idx := rng.Perm(len(data))[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, k := range idx {
			sample[j] = data[k]
		}
		f.trees[i] = buildNode(rng, sample, f.dim, 0, maxDepth)
	}
	f.avgPathLength = averagePathLength(float64(sampleSize))

	scores := make([]float64, len(data))
	for i, row := range data {
		scores[i] = f.score(row)
	}
	f.threshold = percentile(scores, 100*(1-f.opts.Contamination))
	return nil
}

func (f *IsolationForest) Score(v domain.FeatureVector) (Score, error) {
	if f.trees == nil {
		return Score{}, abstain(f.opts.MinHistory, f.fitted)
	}
	if err := checkDim(v, f.dim); err != nil {
		return Score{}, err
	}
	s := f.score(v.Values)
	return Score{Value: clamp01(s), Anomalous: s > f.threshold}, nil
}

// score is 2^(-E[h(x)]/c(n)); values near 1 isolate fast.
func (f *IsolationForest) score(x []float64) float64 {
	var total float64
	for _, t := range f.trees {
		total += pathLength(x, t, 0)
	}
	avg := total / float64(len(f.trees))
	if f.avgPathLength == 0 {
		return 0.5
	}
	return math.Pow(2, -avg/f.avgPathLength)
}

func buildNode(rng *rand.Rand, data [][]float64, dim, depth, maxDepth int) *node {
	n := len(data)
	if depth >= maxDepth || n <= 1 {
		return &node{size: n}
	}

	feature := rng.Intn(dim)
	lo, hi := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		lo = min(lo, row[feature])
		hi = max(hi, row[feature])
	}
	if lo == hi {
		return &node{size: n}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, row := range data {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &node{
		splitFeature: feature,
		splitValue:   split,
		left:         buildNode(rng, left, dim, depth+1, maxDepth),
		right:        buildNode(rng, right, dim, depth+1, maxDepth),
	}
}

func pathLength(x []float64, n *node, depth int) float64 {
	if n.left == nil && n.right == nil {
		return float64(depth) + averagePathLength(float64(n.size))
	}
	if x[n.splitFeature] < n.splitValue {
		return pathLength(x, n.left, depth+1)
	}
	return pathLength(x, n.right, depth+1)
}

// averagePathLength is c(n), the mean unsuccessful-search depth of a BST.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	return 2*(math.Log(n-1)+eulerMascheroni) - 2*(n-1)/n
}
