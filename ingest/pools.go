package ingest

import (
	"math"

	"go.uber.org/zap"

	"github.com/padraicbc/raceflow/provider"
)

// poolDeviationLimit is the relative deviation above which entrant-derived
// amounts and the advertised pool total are flagged inconsistent.
const poolDeviationLimit = 0.05

// validatePools cross-checks the advertised win pool total against the sum of
// entrant-derived amounts from hold percentages. An inconsistency only marks
// data quality; it never blocks persistence. Returns true when consistent.
func (p *Pipeline) validatePools(log *zap.Logger, detail *provider.RaceDetail, winTotal float64) bool {
	if winTotal <= 0 || len(detail.MoneyTracker) == 0 {
		return true
	}

	var holdSum float64
	for _, ml := range detail.MoneyTracker {
		holdSum += ml.HoldPercentage
	}
	derived := winTotal * holdSum / 100

	deviation := math.Abs(derived-winTotal) / winTotal
	if deviation > poolDeviationLimit {
		log.Warn("pool total inconsistent with entrant hold percentages",
			zap.Float64("win_total", winTotal),
			zap.Float64("derived_total", derived),
			zap.Float64("deviation", deviation))
		return false
	}
	return true
}
