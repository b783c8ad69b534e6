package scoring

import (
	"sync/atomic"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
	"github.com/UrwLee/ai-stock-trader/internal/ta"
)

// neutralScore is what every factor falls back to when the series is
// too short to say anything. Fallbacks are counted so callers and tests
// can observe how often the neutral path is taken.
const neutralScore = 50.0

var neutralFallbacks atomic.Uint64

// NeutralFallbackCount returns how many times a factor fell back to the
// neutral score since process start (or the last reset).
func NeutralFallbackCount() uint64 {
	return neutralFallbacks.Load()
}

// ResetNeutralFallbackCount zeroes the fallback counter.
func ResetNeutralFallbackCount() {
	neutralFallbacks.Store(0)
}

func neutral() float64 {
	neutralFallbacks.Add(1)
	return neutralScore
}

// Factors computes the four independent factor scores from one series.
// Each factor reads only the bars, never another factor's value.
func Factors(bars []domain.PriceBar) domain.FactorScores {
	return domain.FactorScores{
		Momentum:   MomentumScore(bars),
		Trend:      TrendScore(bars),
		Volume:     VolumeScore(bars),
		Volatility: VolatilityScore(bars),
	}
}

// MomentumScore scales the mean of the trailing five 5-period returns
// into a 0-100 score centered at 50.
func MomentumScore(bars []domain.PriceBar) float64 {
	if len(bars) < 10 {
		return neutral()
	}
	returns := ta.PctChanges(domain.Closes(bars), 5)
	if len(returns) < 5 {
		return neutral()
	}
	recent := returns[len(returns)-5:]
	var sum float64
	for _, r := range recent {
		sum += r
	}
	recentReturnPct := sum / float64(len(recent)) * 100
	return clamp(recentReturnPct*10+50, 0, 100)
}

// TrendScore rewards price sitting above its moving averages and a
// bullish MA5>MA20>MA60 stack.
func TrendScore(bars []domain.PriceBar) float64 {
	if len(bars) < 20 {
		return neutral()
	}
	closes := domain.Closes(bars)
	current := closes[len(closes)-1]

	ma5, _ := ta.SMA(closes, 5)
	ma20, _ := ta.SMA(closes, 20)
	ma60 := ma20
	if v, ok := ta.SMA(closes, 60); ok {
		ma60 = v
	}

	score := 50.0
	if current > ma5 {
		score += 10
	}
	if current > ma20 {
		score += 15
	}
	if current > ma60 {
		score += 15
	}
	if ma5 > ma20 && ma20 > ma60 {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

// VolumeScore compares the 5-day mean volume to the 20-day mean.
// Moderate expansion scores best; extremes taper off.
func VolumeScore(bars []domain.PriceBar) float64 {
	if len(bars) < 10 {
		return neutral()
	}
	volumes := domain.Volumes(bars)

	recentWindow := 5
	avgWindow := 20
	if len(volumes) < avgWindow {
		avgWindow = len(volumes)
	}
	recent, _ := ta.SMA(volumes, recentWindow)
	avg, _ := ta.SMA(volumes, avgWindow)

	ratio := 1.0
	if avg > 0 {
		ratio = recent / avg
	}

	var score float64
	switch {
	case ratio >= 0.8 && ratio <= 2.0:
		score = 70 + (ratio-1)*20
	case ratio < 0.8:
		score = 50 + ratio*25
	default:
		score = 90 - (ratio-2)*10
		if score > 90 {
			score = 90
		}
	}
	return clamp(score, 0, 100)
}

// VolatilityScore prefers a daily-return stddev between 2% and 4%:
// too quiet and there is nothing to capture, too wild and risk dominates.
func VolatilityScore(bars []domain.PriceBar) float64 {
	if len(bars) < 20 {
		return neutral()
	}
	returns := ta.PctChanges(domain.Closes(bars), 1)
	_, std := ta.MeanStd(returns)
	volatility := std * 100

	switch {
	case volatility >= 2.0 && volatility <= 4.0:
		return 80
	case volatility < 2.0:
		return 60 + volatility*10
	default:
		score := 80 - (volatility-4)*10
		if score < 40 {
			score = 40
		}
		return score
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
