package domain

import "strings"

// ThreatType names the kind of outbreak an alert warns about.
type ThreatType string

const (
	ThreatWaterborne  ThreatType = "waterborne_contamination"
	ThreatAirborne    ThreatType = "airborne_contamination"
	ThreatFoodborne   ThreatType = "foodborne_illness"
	ThreatVectorBorne ThreatType = "vector_borne_disease"
	ThreatUnknown     ThreatType = "unknown_outbreak"
)

// VectorBorneSourceCount is how many distinct source types must be confirmed
// together in one zone before vector-borne disease is suspected.
const VectorBorneSourceCount = 3

// ThreatForSource maps a source stream onto the threat it signals.
func ThreatForSource(s SourceType) ThreatType {
	switch s {
	case SourceWater:
		return ThreatWaterborne
	case SourceAir:
		return ThreatAirborne
	case SourcePharmacy, SourceHospital:
		return ThreatFoodborne
	default:
		return ThreatUnknown
	}
}

// DisplayName renders "waterborne_contamination" as "Waterborne Contamination".
func (t ThreatType) DisplayName() string {
	words := strings.Split(string(t), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
