package model

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/observability"
)

var t0 = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func vec(i int, values ...float64) domain.FeatureVector {
	start := t0.Add(time.Duration(i) * time.Minute)
	return domain.FeatureVector{
		Source: domain.SourceWater,
		Zone:   "Bandra",
		Window: domain.Window{Start: start, End: start.Add(time.Minute)},
		Values: values,
	}
}

// calmHistory is a steady water stream with small deterministic wobble.
func calmHistory(n int) []domain.FeatureVector {
	out := make([]domain.FeatureVector, n)
	for i := range out {
		f := float64(i)
		out[i] = vec(i, 7+0.05*math.Sin(f), 0.01+0.002*math.Cos(f), 0.001*math.Sin(2*f), 5)
	}
	return out
}

func spike() domain.FeatureVector { return vec(99, 12, 3, 1.5, 5) }

func center() domain.FeatureVector { return vec(99, 7, 0.01, 0, 5) }

func TestDensityScorers_FlagSpike(t *testing.T) {
	history := calmHistory(30)
	for _, name := range []string{IsolationForestName, LOFName, ECODName} {
		t.Run(name, func(t *testing.T) {
			sc := Registry[name](DefaultOptions())
			require.NoError(t, sc.Update(history))

			s, err := sc.Score(spike())
			require.NoError(t, err)
			assert.True(t, s.Anomalous)
			assert.GreaterOrEqual(t, s.Value, 0.0)
			assert.LessOrEqual(t, s.Value, 1.0)

			c, err := sc.Score(center())
			require.NoError(t, err)
			assert.Less(t, c.Value, s.Value)
		})
	}
}

func TestECOD_CenterIsNormal(t *testing.T) {
	sc := NewECOD(DefaultOptions())
	require.NoError(t, sc.Update(calmHistory(30)))

	s, err := sc.Score(center())
	require.NoError(t, err)
	assert.False(t, s.Anomalous)
}

func TestScorers_AbstainOnShortHistory(t *testing.T) {
	opts := DefaultOptions()
	for _, name := range ModelOrder {
		t.Run(name, func(t *testing.T) {
			sc := Registry[name](opts)
			require.NoError(t, sc.Update(calmHistory(2)))

			_, err := sc.Score(spike())
			assert.ErrorIs(t, err, domain.ErrAbstained)
		})
	}
}

func TestScorers_MinimumHistoryBoundaries(t *testing.T) {
	opts := DefaultOptions()

	density := NewIsolationForest(opts)
	require.NoError(t, density.Update(calmHistory(opts.MinHistory-1)))
	_, err := density.Score(spike())
	assert.ErrorIs(t, err, domain.ErrAbstained)
	require.NoError(t, density.Update(calmHistory(opts.MinHistory)))
	_, err = density.Score(spike())
	assert.NoError(t, err)

	holt := NewHolt(opts)
	require.NoError(t, holt.Update(calmHistory(opts.MinForecastHistory-1)))
	_, err = holt.Score(spike())
	assert.ErrorIs(t, err, domain.ErrAbstained)
	require.NoError(t, holt.Update(calmHistory(opts.MinForecastHistory)))
	_, err = holt.Score(spike())
	assert.NoError(t, err)
}

func TestScorers_DimensionMismatchAbstains(t *testing.T) {
	sc := NewLOF(DefaultOptions())
	require.NoError(t, sc.Update(calmHistory(20)))

	_, err := sc.Score(vec(1, 1, 2))
	assert.ErrorIs(t, err, domain.ErrAbstained)
}

func TestIsolationForest_Deterministic(t *testing.T) {
	history := calmHistory(25)
	a, b := NewIsolationForest(DefaultOptions()), NewIsolationForest(DefaultOptions())
	require.NoError(t, a.Update(history))
	require.NoError(t, b.Update(history))

	sa, err := a.Score(spike())
	require.NoError(t, err)
	sb, err := b.Score(spike())
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
}

func constantHistory(n int, level float64) []domain.FeatureVector {
	out := make([]domain.FeatureVector, n)
	for i := range out {
		out[i] = vec(i, level, 0, 0, 5)
	}
	return out
}

func TestForecastScorers(t *testing.T) {
	for _, name := range []string{HoltName, AutoregressiveName} {
		t.Run(name, func(t *testing.T) {
			sc := Registry[name](DefaultOptions())
			require.NoError(t, sc.Update(constantHistory(12, 7)))

			normal, err := sc.Score(vec(12, 7.1, 0, 0, 5))
			require.NoError(t, err)
			assert.False(t, normal.Anomalous)

			high, err := sc.Score(vec(12, 12, 0, 0, 5))
			require.NoError(t, err)
			assert.True(t, high.Anomalous)
			assert.Greater(t, high.Value, 0.5)
		})
	}
}

func TestHolt_FollowsTrend(t *testing.T) {
	history := make([]domain.FeatureVector, 10)
	for i := range history {
		history[i] = vec(i, float64(10+i), 0, 1, 5)
	}
	h := NewHolt(DefaultOptions())
	require.NoError(t, h.Update(history))

	s, err := h.Score(vec(10, 20, 0, 1, 5))
	require.NoError(t, err)
	assert.False(t, s.Anomalous)
	assert.InDelta(t, 0, s.Value, 1e-6)
}

func TestPercentile(t *testing.T) {
	data := []float64{5, 1, 4, 2, 3}
	assert.InDelta(t, 1, percentile(data, 0), 1e-9)
	assert.InDelta(t, 3, percentile(data, 50), 1e-9)
	assert.InDelta(t, 5, percentile(data, 100), 1e-9)
	assert.InDelta(t, 0, percentile(nil, 50), 1e-9)
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, data)
}

func TestNewBank_Validation(t *testing.T) {
	_, err := NewBank(DefaultWeights())
	require.NoError(t, err)

	tests := []struct {
		name    string
		weights map[string]float64
	}{
		{"empty", map[string]float64{}},
		{"unknown model", map[string]float64{"prophet": 1}},
		{"sum below one", map[string]float64{IsolationForestName: 0.5, LOFName: 0.2}},
		{"sum above one", map[string]float64{IsolationForestName: 0.9, LOFName: 0.2}},
		{"negative", map[string]float64{IsolationForestName: 1.2, LOFName: -0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBank(tt.weights)
			var cfgErr *domain.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, "MODEL_WEIGHTS", cfgErr.Setting)
		})
	}

	_, err = NewBank(DefaultWeights(), WithHistorySize(3))
	assert.Error(t, err)
}

func newTestBank(t *testing.T) *Bank {
	t.Helper()
	b, err := NewBank(DefaultWeights(),
		WithLogger(discardLogger()),
		WithMetrics(observability.NewMetricsForTesting()),
		WithHistorySize(30),
	)
	require.NoError(t, err)
	return b
}

func TestBank_UnknownStreamAllAbstain(t *testing.T) {
	b := newTestBank(t)

	verdicts := b.Score(context.Background(), spike())
	require.Len(t, verdicts, 5)
	for i, v := range verdicts {
		assert.Equal(t, ModelOrder[i], v.Model)
		assert.True(t, v.Abstained)
		assert.False(t, v.IsAnomalous)
		assert.Zero(t, v.Weight)
	}
}

func TestBank_ScoresSpike(t *testing.T) {
	b := newTestBank(t)
	for _, v := range calmHistory(40) {
		b.Update(v)
	}
	assert.Equal(t, 1, b.Streams())
	assert.Len(t, b.History(spike().Key()), 30)

	verdicts := b.Score(context.Background(), spike())
	require.Len(t, verdicts, 5)

	votes := 0
	for _, v := range verdicts {
		assert.False(t, v.Abstained, v.Model)
		if v.IsAnomalous {
			votes++
			assert.Positive(t, v.Weight)
		}
	}
	assert.Equal(t, 5, votes)
}

func TestBank_CancelledContextAbstains(t *testing.T) {
	b := newTestBank(t)
	for _, v := range calmHistory(20) {
		b.Update(v)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, v := range b.Score(ctx, spike()) {
		assert.True(t, v.Abstained)
	}
}

func TestBank_ResetsHistoryOnDimensionChange(t *testing.T) {
	b := newTestBank(t)
	for _, v := range calmHistory(12) {
		b.Update(v)
	}
	b.Update(vec(50, 1, 2))
	assert.Len(t, b.History(spike().Key()), 1)
}

func TestBank_ConcurrentScoreAndUpdate(t *testing.T) {
	b := newTestBank(t)
	history := calmHistory(40)
	for _, v := range history[:15] {
		b.Update(v)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, v := range history[15:] {
			b.Update(v)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 25; i++ {
			assert.Len(t, b.Score(context.Background(), spike()), 5)
		}
	}()
	wg.Wait()
}

func TestBank_ModelsInCanonicalOrder(t *testing.T) {
	b := newTestBank(t)
	models := b.Models()
	require.Len(t, models, 5)
	for i, m := range models {
		assert.Equal(t, ModelOrder[i], m.Name)
	}
	assert.InDelta(t, 1.0, b.TotalWeight(), 1e-9)
	assert.Equal(t, 5, b.Size())
}
