package verify

import "math"

// Score fusion weights. Tamper evidence dominates identity match: a
// perfect exact-ID match with one severity-0.9 flag lands at 46 before
// any other penalty, well under the VERIFIED threshold.
const (
	anomalyWeight    = 0.6
	extractionWeight = 0.2
	ledgerPenalty    = 15.0

	notFoundCap = 30
)

type Scorer struct {
	verifiedThreshold int
}

func NewScorer(verifiedThreshold int) *Scorer {
	if verifiedThreshold <= 0 {
		verifiedThreshold = 60
	}
	return &Scorer{verifiedThreshold: verifiedThreshold}
}

// Score fuses match quality, anomaly severities, extraction confidence
// and ledger status into the final verdict and 0-100 confidence score.
// Deterministic: identical inputs always produce identical output.
func (s *Scorer) Score(match MatchResult, flags []AnomalyFlag, ledger LedgerStatus, meanExtractionConfidence float64) (Verdict, int) {
	maxSev := maxSeverity(flags)

	if match.Record == nil {
		// A non-matched document is capped low regardless of flags.
		score := clamp(int(math.Round(100*(1-maxSev))), 0, notFoundCap)
		return VerdictNotFound, score
	}

	base := 100 * match.Score
	penalty := anomalyWeight * 100 * maxSev
	penalty += extractionWeight * 100 * (1 - meanExtractionConfidence)
	if !ledger.Anchored {
		penalty += ledgerPenalty
	}

	score := clamp(int(math.Round(base-penalty)), 0, 100)
	if score >= s.verifiedThreshold {
		return VerdictVerified, score
	}
	return VerdictSuspect, score
}

func maxSeverity(flags []AnomalyFlag) float64 {
	var max float64
	for _, f := range flags {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return max
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
