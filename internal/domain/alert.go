package domain

import (
	"slices"
	"time"
)

// AlertState is the lifecycle position of an Alert.
type AlertState string

const (
	StateOpen      AlertState = "OPEN"
	StateEscalated AlertState = "ESCALATED"
	StateResolved  AlertState = "RESOLVED"
)

// AlertKey is the deduplication key: one non-resolved alert per key.
type AlertKey struct {
	Zone   string     `json:"zone"`
	Threat ThreatType `json:"threat_type"`
}

func (k AlertKey) String() string { return k.Zone + "|" + string(k.Threat) }

// Revision records an increase applied to an existing alert.
type Revision struct {
	At         time.Time `json:"at"`
	Severity   Severity  `json:"severity"`
	Confidence float64   `json:"confidence"`
}

// Alert is the unit notified outward. Only the lifecycle manager mutates it;
// everyone else receives clones.
type Alert struct {
	ID              string       `json:"alert_id"`
	Zone            string       `json:"zone"`
	ThreatType      ThreatType   `json:"threat_type"`
	Severity        Severity     `json:"severity"`
	Confidence      float64      `json:"confidence"`
	Description     string       `json:"description"`
	Recommendations []string     `json:"recommendations"`
	AffectedZones   []string     `json:"affected_zones"`
	SourceTypes     []SourceType `json:"source_types"`
	State           AlertState   `json:"state"`
	OpenedAt        time.Time    `json:"opened_at"`
	LastUpdatedAt   time.Time    `json:"last_updated_at"`
	ResolvedAt      time.Time    `json:"resolved_at,omitzero"`
	EvidenceCount   int          `json:"evidence_count"`
	Revisions       []Revision   `json:"revisions,omitempty"`
}

func (a *Alert) Key() AlertKey { return AlertKey{Zone: a.Zone, Threat: a.ThreatType} }

// Active reports whether the alert still occupies its zone/threat slot.
func (a *Alert) Active() bool { return a.State != StateResolved }

// Clone returns a deep copy safe to hand outside the manager.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}
	c := *a
	c.Recommendations = slices.Clone(a.Recommendations)
	c.AffectedZones = slices.Clone(a.AffectedZones)
	c.SourceTypes = slices.Clone(a.SourceTypes)
	c.Revisions = slices.Clone(a.Revisions)
	return &c
}

// EventKind names a lifecycle transition.
type EventKind string

const (
	EventOpened    EventKind = "opened"
	EventEscalated EventKind = "escalated"
	EventResolved  EventKind = "resolved"
)

// AlertEvent is what the notifier receives for each lifecycle transition.
// Consumers must tolerate duplicates of the same AlertID.
type AlertEvent struct {
	AlertID         string     `json:"alert_id"`
	Kind            EventKind  `json:"kind"`
	State           AlertState `json:"state"`
	Zone            string     `json:"zone"`
	ThreatType      ThreatType `json:"threat_type"`
	Severity        Severity   `json:"severity"`
	Confidence      float64    `json:"confidence"`
	Description     string     `json:"description"`
	Recommendations []string   `json:"recommendations"`
	AffectedZones   []string   `json:"affected_zones"`
	Timestamp       time.Time  `json:"timestamp"`
}

// NewAlertEvent snapshots a into an event of the given kind.
func NewAlertEvent(kind EventKind, a *Alert, at time.Time) AlertEvent {
	return AlertEvent{
		AlertID:         a.ID,
		Kind:            kind,
		State:           a.State,
		Zone:            a.Zone,
		ThreatType:      a.ThreatType,
		Severity:        a.Severity,
		Confidence:      a.Confidence,
		Description:     a.Description,
		Recommendations: slices.Clone(a.Recommendations),
		AffectedZones:   slices.Clone(a.AffectedZones),
		Timestamp:       at,
	}
}
