package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	mu       sync.Mutex
	name     string
	failures int
	got      []domain.AlertEvent
	calls    int
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, ev domain.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("transient")
	}
	s.got = append(s.got, ev)
	return nil
}

func (s *recordingSink) events() []domain.AlertEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AlertEvent(nil), s.got...)
}

func newTestDispatcher(size int, sinks ...Sink) *Dispatcher {
	return NewDispatcher(size, sinks,
		WithLogger(discardLogger()),
		WithMetrics(observability.NewMetricsForTesting()),
		WithRetry(3, time.Millisecond, 2*time.Millisecond),
	)
}

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	a, b := &recordingSink{name: "a"}, &recordingSink{name: "b"}
	d := newTestDispatcher(8, a, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()

	require.True(t, d.Emit(domain.AlertEvent{AlertID: "1", Kind: domain.EventOpened}))
	require.True(t, d.Emit(domain.AlertEvent{AlertID: "1", Kind: domain.EventEscalated}))

	assert.Eventually(t, func() bool { return len(a.events()) == 2 && len(b.events()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, domain.EventOpened, a.events()[0].Kind)
	assert.Equal(t, domain.EventEscalated, a.events()[1].Kind)
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	flaky := &recordingSink{name: "flaky", failures: 2}
	d := newTestDispatcher(1, flaky)

	d.deliver(context.Background(), domain.AlertEvent{AlertID: "x"})

	assert.Len(t, flaky.events(), 1)
	assert.Equal(t, 3, flaky.calls)
}

func TestDispatcher_GivesUpAfterRetries(t *testing.T) {
	dead := &recordingSink{name: "dead", failures: 100}
	healthy := &recordingSink{name: "healthy"}
	d := newTestDispatcher(1, dead, healthy)

	d.deliver(context.Background(), domain.AlertEvent{AlertID: "x"})

	assert.Empty(t, dead.events())
	assert.Equal(t, 4, dead.calls)
	assert.Len(t, healthy.events(), 1)
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	d := newTestDispatcher(1)

	assert.True(t, d.Emit(domain.AlertEvent{AlertID: "1"}))
	assert.False(t, d.Emit(domain.AlertEvent{AlertID: "2"}))
	assert.Equal(t, 1, d.Pending())
}

func TestDispatcher_Drain(t *testing.T) {
	s := &recordingSink{name: "s"}
	d := newTestDispatcher(4, s)
	d.Emit(domain.AlertEvent{AlertID: "1"})
	d.Emit(domain.AlertEvent{AlertID: "2"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Drain(ctx)

	assert.Len(t, s.events(), 2)
	assert.Zero(t, d.Pending())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, sink.Publish(context.Background(), domain.AlertEvent{AlertID: "abc", Zone: "Bandra"}))
	assert.Contains(t, buf.String(), "alert_id=abc")
	assert.Equal(t, "log", sink.Name())
}
