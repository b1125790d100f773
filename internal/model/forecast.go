package model

import (
	"math"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
)

const (
	// zBound is the number of standard errors beyond which a forecast
	// residual counts as anomalous.
	zBound = 2.5

	holtAlpha = 0.5
	holtBeta  = 0.3
	arPhiMax  = 0.99
)

// bound is the fitted state shared by forecast scorers: the expected next
// level and the standard error of one-step forecasts.
type bound struct {
	forecast float64
	sigma    float64
	ready    bool
}

func (b *bound) score(v domain.FeatureVector, need, have int) (Score, error) {
	if !b.ready {
		return Score{}, abstain(need, have)
	}
	x := v.Primary()
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Score{}, checkDim(v, len(v.Values))
	}
	z := math.Abs(x-b.forecast) / b.sigma
	return Score{Value: clamp01(z / (z + zBound)), Anomalous: z > zBound}, nil
}

// sigmaOf is the RMS of residuals with a floor proportional to the series
// level so a perfectly flat history does not flag every wobble.
func sigmaOf(residuals, series []float64) float64 {
	var sq, level float64
	for _, r := range residuals {
		sq += r * r
	}
	for _, y := range series {
		level += y
	}
	level /= float64(len(series))
	sigma := math.Sqrt(sq / float64(len(residuals)))
	return math.Max(sigma, 0.01*math.Abs(level)+1e-6)
}

func primarySeries(history []domain.FeatureVector) []float64 {
	out := make([]float64, len(history))
	for i, v := range history {
		out[i] = v.Primary()
	}
	return out
}

// Holt is linear exponential smoothing over the primary feature.
type Holt struct {
	opts   Options
	fit    bound
	fitted int
}

func NewHolt(o Options) *Holt { return &Holt{opts: o} }

func (h *Holt) Name() string { return HoltName }

func (h *Holt) Update(history []domain.FeatureVector) error {
	h.fitted = len(history)
	need := max(h.opts.MinForecastHistory, 3)
	if len(history) < need {
		h.fit = bound{}
		return nil
	}

	y := primarySeries(history)
	level, trend := y[1], y[1]-y[0]
	residuals := make([]float64, 0, len(y)-2)
	for _, obs := range y[2:] {
		residuals = append(residuals, obs-(level+trend))
		prev := level
		level = holtAlpha*obs + (1-holtAlpha)*(level+trend)
		trend = holtBeta*(level-prev) + (1-holtBeta)*trend
	}

	h.fit = bound{forecast: level + trend, sigma: sigmaOf(residuals, y), ready: true}
	return nil
}

func (h *Holt) Score(v domain.FeatureVector) (Score, error) {
	return h.fit.score(v, max(h.opts.MinForecastHistory, 3), h.fitted)
}

// Autoregressive is a least-squares AR(1) model with intercept over the
// primary feature.
type Autoregressive struct {
	opts   Options
	fit    bound
	fitted int
}

func NewAutoregressive(o Options) *Autoregressive { return &Autoregressive{opts: o} }

func (a *Autoregressive) Name() string { return AutoregressiveName }

func (a *Autoregressive) Update(history []domain.FeatureVector) error {
	a.fitted = len(history)
	need := max(a.opts.MinForecastHistory, 3)
	if len(history) < need {
		a.fit = bound{}
		return nil
	}

	y := primarySeries(history)
	xs, ys := y[:len(y)-1], y[1:]
	m := float64(len(xs))
	var mx, my float64
	for i := range xs {
		mx += xs[i] / m
		my += ys[i] / m
	}
	var cov, varx float64
	for i := range xs {
		cov += (xs[i] - mx) * (ys[i] - my)
		varx += (xs[i] - mx) * (xs[i] - mx)
	}

	var phi float64
	if varx > 0 {
		phi = math.Max(-arPhiMax, math.Min(arPhiMax, cov/varx))
	}
	c := my - phi*mx

	residuals := make([]float64, len(xs))
	for i := range xs {
		residuals[i] = ys[i] - (c + phi*xs[i])
	}

	a.fit = bound{forecast: c + phi*y[len(y)-1], sigma: sigmaOf(residuals, y), ready: true}
	return nil
}

func (a *Autoregressive) Score(v domain.FeatureVector) (Score, error) {
	return a.fit.score(v, max(a.opts.MinForecastHistory, 3), a.fitted)
}
