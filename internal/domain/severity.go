package domain

// Severity is ordered low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Above reports whether s is strictly more severe than o.
func (s Severity) Above(o Severity) bool { return s.Rank() > o.Rank() }

// SeverityPolicy holds the confidence thresholds used to classify a zone.
type SeverityPolicy struct {
	Critical float64
	High     float64
	Medium   float64

	// CorroboratingTypes distinct threat types at once force critical.
	CorroboratingTypes int
}

// DefaultSeverityPolicy returns the 90/75/50 thresholds with two
// corroborating threat types forcing critical.
func DefaultSeverityPolicy() SeverityPolicy {
	return SeverityPolicy{Critical: 90, High: 75, Medium: 50, CorroboratingTypes: 2}
}

// Validate rejects thresholds that would make classification non-monotone.
func (p SeverityPolicy) Validate() error {
	if p.Medium < 0 || p.Critical > 100 {
		return ConfigErrorf("severity thresholds", "must lie within [0, 100]")
	}
	if !(p.Medium <= p.High && p.High <= p.Critical) {
		return ConfigErrorf("severity thresholds",
			"need medium <= high <= critical, got %g/%g/%g", p.Medium, p.High, p.Critical)
	}
	if p.CorroboratingTypes < 1 {
		return ConfigErrorf("severity corroborating types", "must be at least 1, got %d", p.CorroboratingTypes)
	}
	return nil
}

// Classify derives a severity from the maximum confidence and the number of
// distinct threat types confirmed together.
func (p SeverityPolicy) Classify(maxConfidence float64, threatTypes int) Severity {
	switch {
	case maxConfidence >= p.Critical || threatTypes >= p.CorroboratingTypes:
		return SeverityCritical
	case maxConfidence >= p.High:
		return SeverityHigh
	case maxConfidence >= p.Medium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
