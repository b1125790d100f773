package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/observability"
)

const weightTolerance = 1e-6

// Info describes one configured model.
type Info struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Bank owns one scorer set and one bounded history per stream. Score runs
// every model in parallel under the read lock; Update takes the write lock so
// no model ever scores against a half-refitted history.
type Bank struct {
	mu      sync.RWMutex
	models  []Info
	opts    Options
	maxHist int
	streams map[domain.StreamKey]*stream

	logger  *slog.Logger
	metrics *observability.Metrics
}

type stream struct {
	history []domain.FeatureVector
	scorers []Scorer
}

// BankOption configures a Bank.
type BankOption func(*Bank)

// WithOptions overrides the scorer options.
func WithOptions(o Options) BankOption {
	return func(b *Bank) { b.opts = o }
}

// WithHistorySize caps the windows kept per stream.
func WithHistorySize(n int) BankOption {
	return func(b *Bank) { b.maxHist = n }
}

// WithLogger sets the logger used for abstentions.
func WithLogger(l *slog.Logger) BankOption {
	return func(b *Bank) { b.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) BankOption {
	return func(b *Bank) { b.metrics = m }
}

// NewBank validates weights and builds a bank. Every name must be in
// Registry and the weights must sum to 1.
func NewBank(weights map[string]float64, opts ...BankOption) (*Bank, error) {
	if len(weights) == 0 {
		return nil, domain.ConfigErrorf("MODEL_WEIGHTS", "at least one model is required")
	}

	var sum float64
	models := make([]Info, 0, len(weights))
	for name, w := range weights {
		if _, ok := Registry[name]; !ok {
			return nil, domain.ConfigErrorf("MODEL_WEIGHTS", "unknown model %q", name)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, domain.ConfigErrorf("MODEL_WEIGHTS", "weight for %q must be a non-negative number", name)
		}
		sum += w
		models = append(models, Info{Name: name, Weight: w})
	}
	if math.Abs(sum-1) > weightTolerance {
		return nil, domain.ConfigErrorf("MODEL_WEIGHTS", "weights sum to %g, want 1.0", sum)
	}
	slices.SortFunc(models, func(a, b Info) int { return orderOf(a.Name) - orderOf(b.Name) })

	b := &Bank{
		models:  models,
		opts:    DefaultOptions(),
		maxHist: 50,
		streams: make(map[domain.StreamKey]*stream),
		logger:  slog.Default(),
		metrics: observability.NewMetricsForTesting(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxHist < b.opts.MinHistory {
		return nil, domain.ConfigErrorf("HISTORY_SIZE", "%d is smaller than MIN_HISTORY %d", b.maxHist, b.opts.MinHistory)
	}
	return b, nil
}

func orderOf(name string) int {
	if i := slices.Index(ModelOrder, name); i >= 0 {
		return i
	}
	return len(ModelOrder)
}

// Models returns the configured models in canonical order.
func (b *Bank) Models() []Info { return slices.Clone(b.models) }

// Size is the total number of configured models, abstaining or not.
func (b *Bank) Size() int { return len(b.models) }

// TotalWeight is the sum of configured weights.
func (b *Bank) TotalWeight() float64 {
	var sum float64
	for _, m := range b.models {
		sum += m.Weight
	}
	return sum
}

// Streams returns the number of streams with history.
func (b *Bank) Streams() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.streams)
}

// History returns a copy of the stream's retained windows.
func (b *Bank) History(key domain.StreamKey) []domain.FeatureVector {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s, ok := b.streams[key]; ok {
		return slices.Clone(s.history)
	}
	return nil
}

// Score returns one verdict per configured model in canonical order. Models
// that cannot score abstain; Score never fails.
func (b *Bank) Score(ctx context.Context, v domain.FeatureVector) []domain.ModelVerdict {
	b.mu.RLock()
	defer b.mu.RUnlock()

	verdicts := make([]domain.ModelVerdict, len(b.models))
	s, ok := b.streams[v.Key()]
	if !ok {
		for i, m := range b.models {
			verdicts[i] = b.abstain(v, m.Name, fmt.Errorf("%w: no history for stream", domain.ErrAbstained))
		}
		return verdicts
	}

	var wg sync.WaitGroup
	for i, m := range b.models {
		i, m := i, m
		wg.Add(1)
		go func() {
			defer wg.Done()
			verdicts[i] = b.scoreOne(ctx, s.scorers[i], m, v)
		}()
	}
	wg.Wait()
	return verdicts
}

func (b *Bank) scoreOne(ctx context.Context, sc Scorer, m Info, v domain.FeatureVector) (verdict domain.ModelVerdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = b.abstain(v, m.Name, fmt.Errorf("scorer panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return b.abstain(v, m.Name, err)
	}
	score, err := sc.Score(v)
	if err != nil {
		return b.abstain(v, m.Name, err)
	}
	if math.IsNaN(score.Value) {
		return b.abstain(v, m.Name, errors.New("score is NaN"))
	}

	outcome := "normal"
	if score.Anomalous {
		outcome = "anomalous"
	}
	b.metrics.ModelVerdicts.WithLabelValues(m.Name, outcome).Inc()
	return domain.ModelVerdict{
		Model:       m.Name,
		IsAnomalous: score.Anomalous,
		Score:       score.Value,
		Weight:      m.Weight,
	}
}

func (b *Bank) abstain(v domain.FeatureVector, model string, err error) domain.ModelVerdict {
	b.metrics.ModelVerdicts.WithLabelValues(model, "abstained").Inc()
	if errors.Is(err, domain.ErrAbstained) {
		b.logger.Debug("model abstained", "model", model, "stream", v.Key().String(), "reason", err)
	} else {
		b.logger.Warn("model failed, abstaining", "model", model, "stream", v.Key().String(), "error", err)
	}
	return domain.Abstain(model, err.Error())
}

// Update appends v to its stream's history and refits every scorer. A scorer
// whose refit fails keeps abstaining until the next successful refit.
func (b *Bank) Update(v domain.FeatureVector) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := v.Key()
	s, ok := b.streams[key]
	if !ok {
		s = &stream{scorers: make([]Scorer, len(b.models))}
		for i, m := range b.models {
			s.scorers[i] = Registry[m.Name](b.opts)
		}
		b.streams[key] = s
	}
	if n := len(s.history); n > 0 && len(s.history[n-1].Values) != len(v.Values) {
		s.history = s.history[:0]
	}
	s.history = append(s.history, v)
	if len(s.history) > b.maxHist {
		s.history = slices.Delete(s.history, 0, len(s.history)-b.maxHist)
	}

	for _, sc := range s.scorers {
		if err := refit(sc, s.history); err != nil {
			b.logger.Warn("model refit failed", "model", sc.Name(), "stream", key.String(), "error", err)
		}
	}
}

func refit(sc Scorer, history []domain.FeatureVector) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refit panic: %v", r)
		}
	}()
	return sc.Update(history)
}
