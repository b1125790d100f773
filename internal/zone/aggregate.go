// Package zone rolls confirmed consensus results up into per-zone threat
// summaries.
package zone

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
)

// Summarize groups confirmed results by zone. Each zone's window ends at its
// newest confirmed result and spans correlation back from there. Zones with no
// confirmed results produce no summary. Output is sorted by zone.
func Summarize(results []domain.ConsensusResult, correlation time.Duration, policy domain.SeverityPolicy) []domain.ZoneThreatSummary {
	byZone := make(map[string][]domain.ConsensusResult)
	for _, r := range results {
		if r.IsConfirmed {
			byZone[r.Zone] = append(byZone[r.Zone], r)
		}
	}

	out := make([]domain.ZoneThreatSummary, 0, len(byZone))
	for zone, rs := range byZone {
		out = append(out, summarizeZone(zone, rs, correlation, policy))
	}
	slices.SortFunc(out, func(a, b domain.ZoneThreatSummary) int { return cmp.Compare(a.Zone, b.Zone) })
	return out
}

type resultKey struct {
	source domain.SourceType
	at     time.Time
}

func summarizeZone(zone string, rs []domain.ConsensusResult, correlation time.Duration, policy domain.SeverityPolicy) domain.ZoneThreatSummary {
	newest := rs[0].Timestamp
	for _, r := range rs[1:] {
		if r.Timestamp.After(newest) {
			newest = r.Timestamp
		}
	}
	start := newest.Add(-correlation)

	s := domain.ZoneThreatSummary{
		Zone:             zone,
		Window:           domain.Window{Start: start, End: newest},
		ThreatConfidence: make(map[domain.ThreatType]float64),
	}
	seen := make(map[resultKey]struct{})
	sources := make(map[domain.SourceType]struct{})
	for _, r := range rs {
		if r.Timestamp.Before(start) {
			continue
		}
		k := resultKey{source: r.Source, at: r.Timestamp}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		sources[r.Source] = struct{}{}

		s.AlertCount++
		s.Confidence = max(s.Confidence, r.Confidence)
		t := r.ThreatType()
		s.ThreatConfidence[t] = max(s.ThreatConfidence[t], r.Confidence)
	}

	for _, src := range domain.SourceTypes {
		if _, ok := sources[src]; ok {
			s.SourceTypes = append(s.SourceTypes, src)
		}
	}
	if len(s.SourceTypes) >= domain.VectorBorneSourceCount {
		s.ThreatConfidence[domain.ThreatVectorBorne] = s.Confidence
	}
	for t := range s.ThreatConfidence {
		s.ThreatTypes = append(s.ThreatTypes, t)
	}
	slices.Sort(s.ThreatTypes)

	s.Severity = policy.Classify(s.Confidence, len(s.ThreatTypes))
	return s
}

// Correlator buffers confirmed results across evaluation cycles so evidence
// from earlier cycles still corroborates, while only zones with fresh
// evidence produce summaries.
type Correlator struct {
	mu          sync.Mutex
	correlation time.Duration
	policy      domain.SeverityPolicy
	buf         []domain.ConsensusResult
}

// NewCorrelator validates the window and severity policy.
func NewCorrelator(correlation time.Duration, policy domain.SeverityPolicy) (*Correlator, error) {
	if correlation <= 0 {
		return nil, domain.ConfigErrorf("CORRELATION_WINDOW", "must be positive, got %s", correlation)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Correlator{correlation: correlation, policy: policy}, nil
}

// Observe records this cycle's results and returns summaries for the zones
// that received new confirmed evidence. Buffered results older than the
// correlation window relative to now are discarded.
func (c *Correlator) Observe(now time.Time, results []domain.ConsensusResult) []domain.ZoneThreatSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh := make(map[string]struct{})
	for _, r := range results {
		if r.IsConfirmed {
			c.buf = append(c.buf, r)
			fresh[r.Zone] = struct{}{}
		}
	}

	cutoff := now.Add(-c.correlation)
	c.buf = slices.DeleteFunc(c.buf, func(r domain.ConsensusResult) bool { return r.Timestamp.Before(cutoff) })
	if len(fresh) == 0 {
		return nil
	}

	relevant := make([]domain.ConsensusResult, 0, len(c.buf))
	for _, r := range c.buf {
		if _, ok := fresh[r.Zone]; ok {
			relevant = append(relevant, r)
		}
	}
	return Summarize(relevant, c.correlation, c.policy)
}

// Buffered returns how many confirmed results are held.
func (c *Correlator) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}
