package scoring

import (
	"fmt"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
	"github.com/UrwLee/ai-stock-trader/internal/indicator"
	"github.com/UrwLee/ai-stock-trader/internal/ta"
)

// Thresholds maps a 0-100 score onto a discrete signal. The floors are
// configuration, not constants: the hold floor in particular has been
// used as both 45 and 50 by different callers, so it must be settable.
type Thresholds struct {
	StrongBuy float64
	Buy       float64
	Hold      float64
	Sell      float64
}

// DefaultThresholds returns the canonical cut points (hold floor 45).
func DefaultThresholds() Thresholds {
	return Thresholds{StrongBuy: 80, Buy: 65, Hold: 45, Sell: 30}
}

// Signal maps a score to its discrete signal under these thresholds.
func (t Thresholds) Signal(score float64) domain.Signal {
	switch {
	case score >= t.StrongBuy:
		return domain.SignalStrongBuy
	case score >= t.Buy:
		return domain.SignalBuy
	case score >= t.Hold:
		return domain.SignalHold
	case score >= t.Sell:
		return domain.SignalSell
	default:
		return domain.SignalStrongSell
	}
}

// Report generates the indicator-driven signal for one symbol: the
// composite technical score mapped through the thresholds, with a
// human-readable reason and the notable indicator readings.
func Report(symbol string, bars []domain.PriceBar, th Thresholds) domain.SignalReport {
	set := indicator.Compute(bars)
	if !set.Ready() {
		return domain.SignalReport{
			Symbol: symbol,
			Signal: domain.SignalHold,
			Score:  float64(set.Score),
			Reason: "insufficient history",
		}
	}

	var details []string
	if set.MA5 != nil && set.MA20 != nil && set.MA60 != nil {
		if *set.MA5 > *set.MA20 && *set.MA20 > *set.MA60 {
			details = append(details, "bullish MA stack")
			if bars[len(bars)-1].Close > *set.MA5 {
				details = append(details, "price above MA5")
			}
		} else if *set.MA5 < *set.MA20 && *set.MA20 < *set.MA60 {
			details = append(details, "bearish MA stack")
		}
	}
	if set.MACD != nil && set.MACDSig != nil && set.Histogram != nil {
		if *set.MACD > *set.MACDSig && *set.Histogram > 0 {
			details = append(details, "MACD bullish")
		} else if *set.MACD < *set.MACDSig && *set.Histogram < 0 {
			details = append(details, "MACD bearish")
		}
	}
	if set.RSI12 != nil {
		if *set.RSI12 < 30 {
			details = append(details, "RSI oversold")
		} else if *set.RSI12 > 70 {
			details = append(details, "RSI overbought")
		}
	}

	score := float64(set.Score)
	sig := th.Signal(score)
	return domain.SignalReport{
		Symbol:     symbol,
		Signal:     sig,
		Score:      score,
		Reason:     reasonFor(sig),
		Details:    details,
		Indicators: &set,
	}
}

func reasonFor(sig domain.Signal) string {
	switch sig {
	case domain.SignalStrongBuy:
		return "technicals broadly positive"
	case domain.SignalBuy:
		return "technicals leaning positive"
	case domain.SignalHold:
		return "technicals neutral"
	case domain.SignalSell:
		return "technicals leaning negative"
	default:
		return "technicals broadly negative"
	}
}

// CrossState is the per-symbol state of the moving-average cross
// strategy. Callers carry it explicitly between calls; nothing here is
// shared, so scoring different symbols in parallel is safe.
type CrossState int

const (
	CrossNone CrossState = iota
	CrossLong
)

// CrossDecision is the outcome of one bar of the cross strategy.
type CrossDecision struct {
	Signal  domain.Signal
	Reason  string
	ShortMA float64
	LongMA  float64
}

// DefaultCrossWindows are the classic golden-cross pair.
const (
	DefaultShortWindow = 5
	DefaultLongWindow  = 20
)

// DetectCross advances the cross state machine by one bar. A golden
// cross while flat emits BUY and moves to Long; a death cross while
// long emits SELL and moves to None; everything else holds.
func DetectCross(state CrossState, bars []domain.PriceBar, shortWindow, longWindow int) (CrossState, CrossDecision) {
	hold := CrossDecision{Signal: domain.SignalHold, Reason: "no cross"}
	if len(bars) < longWindow+5 {
		hold.Reason = "insufficient history"
		return state, hold
	}

	closes := domain.Closes(bars)
	shortNow, _ := ta.SMA(closes, shortWindow)
	longNow, _ := ta.SMA(closes, longWindow)
	shortPrev, _ := ta.SMA(closes[:len(closes)-1], shortWindow)
	longPrev, _ := ta.SMA(closes[:len(closes)-1], longWindow)

	hold.ShortMA = shortNow
	hold.LongMA = longNow

	nowAbove := shortNow > longNow
	prevAbove := shortPrev > longPrev

	if nowAbove && !prevAbove && state != CrossLong {
		return CrossLong, CrossDecision{
			Signal:  domain.SignalBuy,
			Reason:  fmt.Sprintf("MA%d golden cross over MA%d", shortWindow, longWindow),
			ShortMA: shortNow,
			LongMA:  longNow,
		}
	}
	if !nowAbove && prevAbove && state == CrossLong {
		return CrossNone, CrossDecision{
			Signal:  domain.SignalSell,
			Reason:  fmt.Sprintf("MA%d death cross under MA%d", shortWindow, longWindow),
			ShortMA: shortNow,
			LongMA:  longNow,
		}
	}
	return state, hold
}

// Filter reason codes used when a gate forces HOLD.
const (
	FilterReasonTrend      = "trend filter: price below MA60"
	FilterReasonVolatility = "volatility filter: daily stddev above 5%"
)

// PassesTrendFilter reports whether the latest close is above MA60.
// Series too short for MA60 pass by default.
func PassesTrendFilter(bars []domain.PriceBar) bool {
	if len(bars) < 60 {
		return true
	}
	closes := domain.Closes(bars)
	ma60, _ := ta.SMA(closes, 60)
	return closes[len(closes)-1] > ma60
}

// PassesVolatilityFilter reports whether the daily-return stddev is
// under 5%. Series too short to measure pass by default.
func PassesVolatilityFilter(bars []domain.PriceBar) bool {
	if len(bars) < 20 {
		return true
	}
	_, std := ta.MeanStd(ta.PctChanges(domain.Closes(bars), 1))
	return std*100 < 5.0
}

// ApplyFilters gates a cross decision to HOLD with a reason code when a
// filter is violated. The cross state itself is never touched here.
func ApplyFilters(decision CrossDecision, bars []domain.PriceBar) CrossDecision {
	if !PassesTrendFilter(bars) {
		return CrossDecision{Signal: domain.SignalHold, Reason: FilterReasonTrend, ShortMA: decision.ShortMA, LongMA: decision.LongMA}
	}
	if !PassesVolatilityFilter(bars) {
		return CrossDecision{Signal: domain.SignalHold, Reason: FilterReasonVolatility, ShortMA: decision.ShortMA, LongMA: decision.LongMA}
	}
	return decision
}
