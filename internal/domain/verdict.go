package domain

import "time"

// ModelVerdict is one scorer's opinion about one FeatureVector.
type ModelVerdict struct {
	Model       string  `json:"model_name"`
	IsAnomalous bool    `json:"is_anomalous"`
	Score       float64 `json:"score"`
	Weight      float64 `json:"weight"`
	Abstained   bool    `json:"abstained,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

// Abstain is the verdict of a model that declined to score. It never counts
// as a vote and carries no weight.
func Abstain(model, reason string) ModelVerdict {
	return ModelVerdict{Model: model, Abstained: true, Reason: reason}
}

// ConsensusResult is the voted outcome for one stream in one cycle.
type ConsensusResult struct {
	Zone           string         `json:"zone"`
	Source         SourceType     `json:"source_type"`
	Timestamp      time.Time      `json:"timestamp"`
	VotesFor       int            `json:"votes_for"`
	TotalWeightFor float64        `json:"total_weight_for"`
	IsConfirmed    bool           `json:"is_confirmed"`
	Confidence     float64        `json:"confidence"`
	RequiredVotes  int            `json:"required_votes"`
	TotalModels    int            `json:"total_models"`
	VotingModels   int            `json:"voting_models"`
	Verdicts       []ModelVerdict `json:"verdicts,omitempty"`
}

// ThreatType is the threat this result is evidence for.
func (r ConsensusResult) ThreatType() ThreatType { return ThreatForSource(r.Source) }

// ZoneThreatSummary rolls up the confirmed results of one zone inside one
// correlation window.
type ZoneThreatSummary struct {
	Zone        string       `json:"zone"`
	ThreatTypes []ThreatType `json:"threat_types"`
	SourceTypes []SourceType `json:"source_types"`
	Severity    Severity     `json:"severity"`
	Confidence  float64      `json:"confidence"`
	AlertCount  int          `json:"alert_count"`
	Window      Window       `json:"window"`

	// ThreatConfidence is the maximum confidence per threat type.
	ThreatConfidence map[ThreatType]float64 `json:"threat_confidence"`
}

// ConfidenceFor returns the per-threat confidence, falling back to the zone maximum.
func (s ZoneThreatSummary) ConfidenceFor(t ThreatType) float64 {
	if c, ok := s.ThreatConfidence[t]; ok {
		return c
	}
	return s.Confidence
}
