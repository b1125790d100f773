// Package alert owns the active-alert table and its lifecycle rules.
package alert

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/observability"
)

// Store journals alert state so active alerts survive a restart.
type Store interface {
	Save(ctx context.Context, a *domain.Alert) error
	LoadActive(ctx context.Context) ([]*domain.Alert, error)
	Get(ctx context.Context, id string) (*domain.Alert, bool, error)
	PruneResolved(ctx context.Context, before time.Time) (int, error)
}

// Config holds the lifecycle settings.
type Config struct {
	ResolutionTimeout time.Duration
	NotifyOnResolve   bool
	Playbook          domain.Playbook
}

// Manager is the only mutator of alerts. Every transition is computed on a
// clone and swapped into the table under one mutex, so the table never holds
// a half-applied update and never more than one alert per key.
type Manager struct {
	mu        sync.Mutex
	active    map[domain.AlertKey]*domain.Alert
	byID      map[string]domain.AlertKey
	generated int

	cfg     Config
	clock   clockwork.Clock
	store   Store
	newID   func() string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Manager.
type Option func(*Manager)

func WithClock(c clockwork.Clock) Option { return func(m *Manager) { m.clock = c } }

func WithStore(s Store) Option { return func(m *Manager) { m.store = s } }

func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

func WithMetrics(mt *observability.Metrics) Option { return func(m *Manager) { m.metrics = mt } }

// WithIDGenerator replaces uuid-based alert ids, mainly for tests.
func WithIDGenerator(f func() string) Option { return func(m *Manager) { m.newID = f } }

// NewManager validates cfg and returns an empty manager.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.ResolutionTimeout <= 0 {
		return nil, domain.ConfigErrorf("RESOLUTION_TIMEOUT", "must be positive, got %s", cfg.ResolutionTimeout)
	}
	if cfg.Playbook == nil {
		cfg.Playbook = domain.DefaultPlaybook()
	}
	m := &Manager{
		active:  make(map[domain.AlertKey]*domain.Alert),
		byID:    make(map[string]domain.AlertKey),
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		newID:   uuid.NewString,
		logger:  slog.Default(),
		metrics: observability.NewMetricsForTesting(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Apply feeds zone summaries through the state machine and returns the
// events to notify. A cancelled context skips the whole batch so no key is
// left partially updated.
func (m *Manager) Apply(ctx context.Context, summaries []domain.ZoneThreatSummary) []domain.AlertEvent {
	if ctx.Err() != nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var events []domain.AlertEvent
	for _, s := range summaries {
		for _, threat := range s.ThreatTypes {
			key := domain.AlertKey{Zone: s.Zone, Threat: threat}
			next, kind, emit := m.transition(m.active[key], s, threat, now)

			m.active[key] = next
			m.byID[next.ID] = key
			m.persist(ctx, next)

			if emit {
				if kind == domain.EventOpened {
					m.generated++
				}
				m.metrics.AlertTransitions.WithLabelValues(string(next.State)).Inc()
				events = append(events, domain.NewAlertEvent(kind, next, now))
				m.logger.Info("alert "+string(kind),
					"alert_id", next.ID,
					"zone", next.Zone,
					"threat_type", next.ThreatType,
					"severity", next.Severity,
					"confidence", next.Confidence,
				)
			}
		}
	}
	m.metrics.ActiveAlerts.Set(float64(len(m.active)))
	return events
}

// transition computes the successor of cur for one summary. cur is never
// modified.
func (m *Manager) transition(cur *domain.Alert, s domain.ZoneThreatSummary, threat domain.ThreatType, now time.Time) (*domain.Alert, domain.EventKind, bool) {
	confidence := s.ConfidenceFor(threat)

	if cur == nil {
		a := &domain.Alert{
			ID:            m.newID(),
			Zone:          s.Zone,
			ThreatType:    threat,
			Severity:      s.Severity,
			Confidence:    confidence,
			AffectedZones: []string{s.Zone},
			SourceTypes:   slices.Clone(s.SourceTypes),
			State:         domain.StateOpen,
			OpenedAt:      now,
			LastUpdatedAt: now,
			EvidenceCount: s.AlertCount,
		}
		m.render(a)
		return a, domain.EventOpened, true
	}

	next := cur.Clone()
	next.LastUpdatedAt = now
	next.EvidenceCount = max(next.EvidenceCount, s.AlertCount)
	for _, src := range s.SourceTypes {
		if !slices.Contains(next.SourceTypes, src) {
			next.SourceTypes = append(next.SourceTypes, src)
		}
	}
	if !slices.Contains(next.AffectedZones, s.Zone) {
		next.AffectedZones = append(next.AffectedZones, s.Zone)
	}

	severityUp := s.Severity.Above(next.Severity)
	confidenceUp := confidence > next.Confidence
	if !severityUp && !confidenceUp {
		return next, "", false
	}

	if confidenceUp {
		next.Confidence = confidence
	}
	if severityUp {
		next.Severity = s.Severity
		next.State = domain.StateEscalated
	}
	next.Revisions = append(next.Revisions, domain.Revision{At: now, Severity: next.Severity, Confidence: next.Confidence})
	m.render(next)
	return next, domain.EventEscalated, severityUp
}

func (m *Manager) render(a *domain.Alert) {
	a.Description = domain.Describe(a.ThreatType, a.Zone, a.EvidenceCount, a.SourceTypes)
	a.Recommendations = m.cfg.Playbook.Recommendations(a.ThreatType, a.Zone, a.Severity)
}

// ResolveExpired resolves every alert whose last update is at least the
// resolution timeout old. Resolved alerts leave the table; events are
// returned only when NotifyOnResolve is set.
func (m *Manager) ResolveExpired(ctx context.Context) []domain.AlertEvent {
	if ctx.Err() != nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var expired []domain.AlertKey
	for key, a := range m.active {
		if now.Sub(a.LastUpdatedAt) >= m.cfg.ResolutionTimeout {
			expired = append(expired, key)
		}
	}
	slices.SortFunc(expired, func(a, b domain.AlertKey) int { return cmp.Compare(a.String(), b.String()) })

	var events []domain.AlertEvent
	for _, key := range expired {
		if ev, ok := m.resolveLocked(ctx, key, now, "timeout"); ok {
			events = append(events, ev)
		}
	}
	m.metrics.ActiveAlerts.Set(float64(len(m.active)))
	return events
}

// Dismiss resolves an alert by id ahead of its timeout. Unknown or already
// resolved ids are a no-op returning false.
func (m *Manager) Dismiss(ctx context.Context, id string) ([]domain.AlertEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	var events []domain.AlertEvent
	if ev, emit := m.resolveLocked(ctx, key, m.clock.Now(), "dismissed"); emit {
		events = append(events, ev)
	}
	m.metrics.ActiveAlerts.Set(float64(len(m.active)))
	return events, true
}

func (m *Manager) resolveLocked(ctx context.Context, key domain.AlertKey, now time.Time, reason string) (domain.AlertEvent, bool) {
	cur, ok := m.active[key]
	if !ok {
		return domain.AlertEvent{}, false
	}
	next := cur.Clone()
	next.State = domain.StateResolved
	next.ResolvedAt = now

	delete(m.active, key)
	delete(m.byID, next.ID)
	m.persist(ctx, next)
	m.metrics.AlertTransitions.WithLabelValues(string(domain.StateResolved)).Inc()
	m.logger.Info("alert resolved", "alert_id", next.ID, "zone", next.Zone, "threat_type", next.ThreatType, "reason", reason)

	if !m.cfg.NotifyOnResolve {
		return domain.AlertEvent{}, false
	}
	return domain.NewAlertEvent(domain.EventResolved, next, now), true
}

// persist journals a; failures are logged and the in-memory table stays
// authoritative.
func (m *Manager) persist(ctx context.Context, a *domain.Alert) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(context.WithoutCancel(ctx), a); err != nil {
		m.metrics.JournalErrors.WithLabelValues("save").Inc()
		m.logger.Error("alert journal save failed", "alert_id", a.ID, "error", err)
	}
}

// Restore loads journaled active alerts into an empty table and returns how
// many became active.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	alerts, err := m.store.LoadActive(ctx)
	if err != nil {
		m.metrics.JournalErrors.WithLabelValues("restore").Inc()
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// A journal can hold two live records for one key when a resolve failed
	// to save. The most recently updated one wins; the rest are closed out.
	var superseded []*domain.Alert
	for _, a := range alerts {
		key := a.Key()
		if existing, ok := m.active[key]; ok {
			if !newer(a, existing) {
				superseded = append(superseded, a)
				continue
			}
			delete(m.byID, existing.ID)
			superseded = append(superseded, existing)
		}
		m.active[key] = a.Clone()
		m.byID[a.ID] = key
	}

	now := m.clock.Now()
	for _, a := range superseded {
		stale := a.Clone()
		stale.State = domain.StateResolved
		stale.ResolvedAt = now
		m.persist(ctx, stale)
		m.logger.Warn("superseded journaled alert resolved", "alert_id", stale.ID, "zone", stale.Zone, "threat_type", stale.ThreatType)
	}
	m.metrics.ActiveAlerts.Set(float64(len(m.active)))
	return len(m.active), nil
}

// newer orders duplicate records by last update, then by id so the outcome
// does not depend on journal iteration order.
func newer(a, b *domain.Alert) bool {
	if c := a.LastUpdatedAt.Compare(b.LastUpdatedAt); c != 0 {
		return c > 0
	}
	return a.ID > b.ID
}

// PruneResolved drops journaled resolved alerts older than retention.
func (m *Manager) PruneResolved(ctx context.Context, retention time.Duration) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	n, err := m.store.PruneResolved(ctx, m.clock.Now().Add(-retention))
	if err != nil {
		m.metrics.JournalErrors.WithLabelValues("prune").Inc()
	}
	return n, err
}

// Active returns clones of all non-resolved alerts, oldest first.
func (m *Manager) Active() []*domain.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*domain.Alert, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, a.Clone())
	}
	slices.SortFunc(out, func(a, b *domain.Alert) int {
		if c := a.OpenedAt.Compare(b.OpenedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Key().String(), b.Key().String())
	})
	return out
}

// Get returns a clone of the active alert with the given id.
func (m *Manager) Get(id string) (*domain.Alert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return m.active[key].Clone(), true
}

// Lookup returns the active alert with the given id, or its journaled record
// once resolved. Journal read failures are logged and reported as not found.
func (m *Manager) Lookup(ctx context.Context, id string) (*domain.Alert, bool) {
	if a, ok := m.Get(id); ok {
		return a, true
	}
	if m.store == nil {
		return nil, false
	}
	a, ok, err := m.store.Get(ctx, id)
	if err != nil {
		m.metrics.JournalErrors.WithLabelValues("get").Inc()
		m.logger.Warn("alert journal lookup failed", "alert_id", id, "error", err)
		return nil, false
	}
	return a, ok
}

// ActiveCount is the number of non-resolved alerts.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Generated is the number of alerts opened since start.
func (m *Manager) Generated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generated
}
