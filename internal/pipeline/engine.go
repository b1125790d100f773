package pipeline

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Arham-Git047/Project-Sentinel/internal/alert"
	"github.com/Arham-Git047/Project-Sentinel/internal/consensus"
	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/feature"
	"github.com/Arham-Git047/Project-Sentinel/internal/model"
	"github.com/Arham-Git047/Project-Sentinel/internal/observability"
	"github.com/Arham-Git047/Project-Sentinel/internal/zone"
)

// Emitter receives lifecycle events. It must not block.
type Emitter interface {
	Emit(ev domain.AlertEvent) bool
}

// Stats are the dashboard counters.
type Stats struct {
	TotalPointsSeen   int64     `json:"total_points_seen"`
	AnomaliesDetected int64     `json:"anomalies_detected"`
	ActiveAlertCount  int       `json:"active_alert_count"`
	AlertsGenerated   int       `json:"alerts_generated"`
	ReadingsRejected  int64     `json:"readings_rejected"`
	StreamsTracked    int       `json:"streams_tracked"`
	Cycles            int64     `json:"cycles"`
	LastCycleAt       time.Time `json:"last_cycle_at,omitzero"`
}

// ModelsReport describes the ensemble for the models endpoint.
type ModelsReport struct {
	Models         []model.Info `json:"models"`
	Quorum         float64      `json:"quorum_fraction"`
	RequiredVotes  int          `json:"required_votes"`
	StreamsTracked int          `json:"streams_tracked"`
}

// Detection is the outcome of the most recent completed cycle.
type Detection struct {
	At        time.Time                  `json:"at"`
	Window    domain.Window              `json:"window"`
	Results   []domain.ConsensusResult   `json:"results"`
	Summaries []domain.ZoneThreatSummary `json:"summaries"`
	Events    int                        `json:"events"`
}

// CycleReport summarises one evaluation cycle.
type CycleReport struct {
	Window    domain.Window
	Results   []domain.ConsensusResult
	Summaries []domain.ZoneThreatSummary
	Events    []domain.AlertEvent
	Skipped   bool
}

// Engine runs the evaluation cycle: snapshot, normalise, score, vote,
// correlate, then apply lifecycle transitions.
type Engine struct {
	buffer     *Buffer
	bank       *model.Bank
	voter      *consensus.Voter
	correlator *zone.Correlator
	alerts     *alert.Manager
	emitter    Emitter
	resolver   domain.ZoneResolver

	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics

	cycleMu    sync.Mutex
	lastMu     sync.RWMutex
	last       *Detection
	ready      atomic.Bool
	pointsSeen atomic.Int64
	anomalies  atomic.Int64
	rejected   atomic.Int64
	cycles     atomic.Int64
	lastCycle  atomic.Int64
}

// Components are the collaborators an Engine orchestrates.
type Components struct {
	Buffer     *Buffer
	Bank       *model.Bank
	Voter      *consensus.Voter
	Correlator *zone.Correlator
	Alerts     *alert.Manager
	Emitter    Emitter
	Resolver   domain.ZoneResolver
}

// NewEngine wires components. interval is both the tick period and the
// length of the window scored each cycle.
func NewEngine(c Components, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*Engine, error) {
	if interval <= 0 {
		return nil, domain.ConfigErrorf("EVAL_INTERVAL", "must be positive, got %s", interval)
	}
	if c.Buffer == nil || c.Bank == nil || c.Voter == nil || c.Correlator == nil || c.Alerts == nil || c.Emitter == nil {
		return nil, errors.New("engine: missing component")
	}
	return &Engine{
		buffer:     c.Buffer,
		bank:       c.Bank,
		voter:      c.Voter,
		correlator: c.Correlator,
		alerts:     c.Alerts,
		emitter:    c.Emitter,
		resolver:   c.Resolver,
		clock:      clock,
		interval:   interval,
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Accept parses, localises and validates one raw message and buffers it.
func (e *Engine) Accept(ctx context.Context, raw domain.RawEvent) error {
	_, err := e.Ingest(ctx, raw)
	return err
}

// Ingest is Accept returning the reading as buffered.
func (e *Engine) Ingest(ctx context.Context, raw domain.RawEvent) (domain.Reading, error) {
	r, err := domain.ParseRawEvent(raw)
	if err != nil {
		e.reject("parse")
		return domain.Reading{}, err
	}
	return e.submit(domain.LocalizeReading(ctx, r, e.resolver, e.logger))
}

// Submit validates and buffers an already-decoded reading. The zone is
// stored under its canonical name.
func (e *Engine) Submit(r domain.Reading) error {
	_, err := e.submit(r)
	return err
}

func (e *Engine) submit(r domain.Reading) (domain.Reading, error) {
	if err := domain.Validate(r); err != nil {
		e.reject("validate")
		return domain.Reading{}, err
	}
	r.Zone, _ = domain.CanonicalZone(r.Zone)
	if r.SourceType == domain.SourcePharmacy {
		r.Category = domain.SaleCategory(r.Category)
	}
	if e.buffer.Add(r) {
		e.logger.Warn("reading buffer full, evicted oldest reading")
	}
	e.pointsSeen.Add(1)
	return r, nil
}

func (e *Engine) reject(reason string) {
	e.rejected.Add(1)
	e.metrics.ReadingsRejected.WithLabelValues(reason).Inc()
}

// Run ticks the evaluation cycle until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine started", "interval", e.interval, "models", e.bank.Size(), "quorum", e.voter.Quorum())
	e.metrics.EngineRunning.Set(1)
	defer e.metrics.EngineRunning.Set(0)

	ticker := e.clock.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			e.Cycle(ctx)
		}
	}
}

// Cycle runs one evaluation over the window ending now. Per-stream failures
// are isolated; a context cancelled before the lifecycle phase skips it.
func (e *Engine) Cycle(ctx context.Context) CycleReport {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	start := time.Now()
	now := e.clock.Now()
	report := CycleReport{Window: domain.WindowEnding(now, e.interval)}

	streams := feature.GroupByStream(e.buffer.Snapshot(report.Window))
	keys := make([]domain.StreamKey, 0, len(streams))
	for k := range streams {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b domain.StreamKey) int { return cmp.Compare(a.String(), b.String()) })

	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		fv, err := feature.Normalize(key.Source, key.Zone, streams[key], report.Window)
		if err != nil {
			e.logger.Warn("normalize failed, skipping stream", "stream", key.String(), "error", err)
			continue
		}

		verdicts := e.bank.Score(ctx, fv)
		res := e.voter.Vote(key.Zone, key.Source, now, verdicts)
		e.bank.Update(fv)
		e.metrics.StreamsScored.Inc()

		if res.IsConfirmed {
			e.anomalies.Add(1)
			e.metrics.ConfirmedAnomalies.WithLabelValues(string(key.Source)).Inc()
			e.logger.Info("anomaly confirmed",
				"zone", res.Zone,
				"source", res.Source,
				"votes_for", res.VotesFor,
				"required", res.RequiredVotes,
				"confidence", res.Confidence,
			)
		}
		report.Results = append(report.Results, res)
	}

	if ctx.Err() != nil {
		e.logger.Warn("cycle cancelled before lifecycle phase", "streams", len(report.Results))
		report.Skipped = true
		return report
	}

	report.Summaries = e.correlator.Observe(now, report.Results)
	report.Events = append(e.alerts.Apply(ctx, report.Summaries), e.alerts.ResolveExpired(ctx)...)
	for _, ev := range report.Events {
		e.emitter.Emit(ev)
	}

	e.buffer.Prune(report.Window.Start)
	e.recordDetection(now, report)
	e.cycles.Add(1)
	e.lastCycle.Store(now.UnixNano())
	e.ready.Store(true)
	e.metrics.Cycles.Inc()
	e.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	return report
}

func (e *Engine) recordDetection(now time.Time, report CycleReport) {
	d := &Detection{
		At:        now,
		Window:    report.Window,
		Results:   slices.Clone(report.Results),
		Summaries: slices.Clone(report.Summaries),
		Events:    len(report.Events),
	}
	if d.Results == nil {
		d.Results = []domain.ConsensusResult{}
	}
	if d.Summaries == nil {
		d.Summaries = []domain.ZoneThreatSummary{}
	}
	e.lastMu.Lock()
	e.last = d
	e.lastMu.Unlock()
}

// LastDetection returns the outcome of the most recent completed cycle.
func (e *Engine) LastDetection() (Detection, bool) {
	e.lastMu.RLock()
	defer e.lastMu.RUnlock()
	if e.last == nil {
		return Detection{}, false
	}
	return *e.last, true
}

// RecentReadings returns up to limit of the newest buffered readings, oldest
// first, along with the number currently buffered.
func (e *Engine) RecentReadings(limit int) ([]domain.Reading, int) {
	return e.buffer.Recent(limit), e.buffer.Len()
}

// CheckReadiness returns nil once at least one cycle has completed.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("engine has not completed an evaluation cycle yet")
	}
	return nil
}

// Stats snapshots the dashboard counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		TotalPointsSeen:   e.pointsSeen.Load(),
		AnomaliesDetected: e.anomalies.Load(),
		ActiveAlertCount:  e.alerts.ActiveCount(),
		AlertsGenerated:   e.alerts.Generated(),
		ReadingsRejected:  e.rejected.Load(),
		StreamsTracked:    e.bank.Streams(),
		Cycles:            e.cycles.Load(),
	}
	if ns := e.lastCycle.Load(); ns != 0 {
		s.LastCycleAt = time.Unix(0, ns).UTC()
	}
	return s
}

// Models reports the ensemble configuration.
func (e *Engine) Models() ModelsReport {
	return ModelsReport{
		Models:         e.bank.Models(),
		Quorum:         e.voter.Quorum(),
		RequiredVotes:  e.voter.RequiredVotes(),
		StreamsTracked: e.bank.Streams(),
	}
}

// ActiveAlerts returns every non-resolved alert.
func (e *Engine) ActiveAlerts() []*domain.Alert { return e.alerts.Active() }

// Alert looks up an alert by id, falling back to the journal for resolved
// alerts.
func (e *Engine) Alert(ctx context.Context, id string) (*domain.Alert, bool) {
	return e.alerts.Lookup(ctx, id)
}

// Dismiss resolves an alert by id and forwards any resulting event.
func (e *Engine) Dismiss(ctx context.Context, id string) bool {
	events, ok := e.alerts.Dismiss(ctx, id)
	for _, ev := range events {
		e.emitter.Emit(ev)
	}
	return ok
}
