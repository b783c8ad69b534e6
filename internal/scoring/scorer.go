package scoring

import (
	"sort"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
)

// MinHistory is the fewest bars a symbol needs to enter a scoring pass.
// Shorter series are excluded from rankings, not scored as zero.
const MinHistory = 30

// Weights of the comprehensive blend.
const (
	weightMomentum   = 0.3
	weightTrend      = 0.3
	weightVolume     = 0.2
	weightVolatility = 0.2
)

// Score reduces a bar series to a single ScoredCandidate under the
// given method. ok is false when the series fails the minimum-history
// precondition; the candidate is then meaningless.
func Score(symbol string, bars []domain.PriceBar, method domain.ScoreMethod, th Thresholds) (domain.ScoredCandidate, bool) {
	if len(bars) < MinHistory {
		return domain.ScoredCandidate{}, false
	}

	factors := Factors(bars)

	var score float64
	switch method {
	case domain.MethodMomentum:
		score = factors.Momentum
	case domain.MethodTrend:
		score = factors.Trend
	default:
		score = weightMomentum*factors.Momentum +
			weightTrend*factors.Trend +
			weightVolume*factors.Volume +
			weightVolatility*factors.Volatility
	}

	price := bars[len(bars)-1].Close
	changePct := 0.0
	if prev := bars[len(bars)-2].Close; prev > 0 {
		changePct = (price - prev) / prev * 100
	}

	return domain.ScoredCandidate{
		Symbol:    symbol,
		Score:     score,
		Factors:   factors,
		Price:     price,
		ChangePct: changePct,
		Signal:    th.Signal(score),
	}, true
}

// Rank sorts candidates by score descending. The sort is stable so
// ties keep their enumeration order.
func Rank(candidates []domain.ScoredCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}
