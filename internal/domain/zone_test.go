package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	zone  string
	err   error
	calls int
}

func (s *stubResolver) ResolveZone(_ context.Context, _, _ float64) (string, error) {
	s.calls++
	return s.zone, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCentroidResolver(t *testing.T) {
	ctx := context.Background()

	zone, err := CentroidResolver{}.ResolveZone(ctx, 19.06, 72.83)
	require.NoError(t, err)
	assert.Equal(t, "Bandra", zone)

	zone, err = CentroidResolver{}.ResolveZone(ctx, 19.22, 72.86)
	require.NoError(t, err)
	assert.Equal(t, "Borivali", zone)

	_, err = CentroidResolver{MaxDistanceKm: 5}.ResolveZone(ctx, 28.61, 77.21)
	assert.ErrorIs(t, err, ErrNoZone)
}

func TestHaversineKm(t *testing.T) {
	assert.InDelta(t, 0, HaversineKm(19.0596, 72.8295, 19.0596, 72.8295), 1e-9)
	// Bandra to Colaba is roughly 17 km.
	assert.InDelta(t, 17, HaversineKm(19.0596, 72.8295, 18.9067, 72.8147), 1.0)
}

func TestCanonicalZone(t *testing.T) {
	z, ok := CanonicalZone("  ANDHERI ")
	assert.True(t, ok)
	assert.Equal(t, "Andheri", z)

	_, ok = CanonicalZone("Atlantis")
	assert.False(t, ok)
	assert.Len(t, ZoneNames(), 5)
}

func TestLocalizeReading(t *testing.T) {
	ctx := context.Background()

	t.Run("zone already set", func(t *testing.T) {
		res := &stubResolver{zone: "Dadar"}
		r := LocalizeReading(ctx, Reading{Zone: "Bandra", Lat: 19.0, Lon: 72.8}, res, discardLogger())
		assert.Equal(t, "Bandra", r.Zone)
		assert.Zero(t, res.calls)
	})

	t.Run("resolved from coordinates", func(t *testing.T) {
		res := &stubResolver{zone: "Dadar"}
		r := LocalizeReading(ctx, Reading{Lat: 19.0, Lon: 72.8}, res, discardLogger())
		assert.Equal(t, "Dadar", r.Zone)
		assert.Equal(t, 1, res.calls)
	})

	t.Run("resolver failure leaves zone empty", func(t *testing.T) {
		res := &stubResolver{err: errors.New("boom")}
		r := LocalizeReading(ctx, Reading{Lat: 19.0, Lon: 72.8}, res, discardLogger())
		assert.Empty(t, r.Zone)
	})

	t.Run("nil resolver", func(t *testing.T) {
		r := LocalizeReading(ctx, Reading{Lat: 19.0, Lon: 72.8}, nil, discardLogger())
		assert.Empty(t, r.Zone)
	})
}
