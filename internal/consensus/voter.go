// Package consensus turns per-model verdicts into one weighted decision.
package consensus

import (
	"math"
	"time"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
)

// DefaultQuorum confirms with three of five models.
const DefaultQuorum = 0.6

// Voter applies a quorum rule over a fixed number of configured models.
type Voter struct {
	quorum      float64
	totalModels int
	totalWeight float64
}

// NewVoter validates the quorum fraction and the bank shape it votes for.
// totalWeight is the sum of configured model weights; a zero-weight bank
// never confirms anything.
func NewVoter(quorum float64, totalModels int, totalWeight float64) (*Voter, error) {
	if math.IsNaN(quorum) || quorum <= 0 || quorum > 1 {
		return nil, domain.ConfigErrorf("QUORUM_FRACTION", "must be in (0, 1], got %g", quorum)
	}
	if totalModels < 1 {
		return nil, domain.ConfigErrorf("MODEL_WEIGHTS", "at least one model is required")
	}
	return &Voter{quorum: quorum, totalModels: totalModels, totalWeight: totalWeight}, nil
}

func (v *Voter) Quorum() float64 { return v.quorum }

// RequiredVotes is ceil(quorum × total_models). The epsilon keeps products
// such as 0.6 × 5 from rounding up to 4.
func (v *Voter) RequiredVotes() int {
	return int(math.Ceil(v.quorum*float64(v.totalModels) - 1e-9))
}

// Vote combines verdicts for one stream. It is a pure function of its inputs.
func (v *Voter) Vote(zone string, source domain.SourceType, at time.Time, verdicts []domain.ModelVerdict) domain.ConsensusResult {
	res := domain.ConsensusResult{
		Zone:          zone,
		Source:        source,
		Timestamp:     at,
		RequiredVotes: v.RequiredVotes(),
		TotalModels:   v.totalModels,
		Verdicts:      verdicts,
	}

	var activeWeight float64
	for _, mv := range verdicts {
		if mv.Abstained {
			continue
		}
		res.VotingModels++
		activeWeight += mv.Weight
		if mv.IsAnomalous {
			res.VotesFor++
			res.TotalWeightFor += mv.Weight
		}
	}

	res.Confidence = math.Max(0, math.Min(100, res.TotalWeightFor*100))
	res.IsConfirmed = v.totalWeight > 0 && activeWeight > 0 && res.VotesFor >= res.RequiredVotes
	return res
}
