package indicator

import (
	"github.com/UrwLee/ai-stock-trader/internal/domain"
	"github.com/UrwLee/ai-stock-trader/internal/ta"
)

// MinBars is the minimum history needed for a full indicator snapshot.
const MinBars = 60

// Compute turns a chronological bar series into an IndicatorSet.
// Series shorter than MinBars yield the zero set with TrendUnknown;
// Compute never fails for short input.
func Compute(bars []domain.PriceBar) domain.IndicatorSet {
	set := domain.IndicatorSet{Trend: domain.TrendUnknown, Score: 50}
	if len(bars) < MinBars {
		return set
	}

	closes := domain.Closes(bars)
	volumes := domain.Volumes(bars)
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
	}

	set.MA5 = smaPtr(closes, 5)
	set.MA10 = smaPtr(closes, 10)
	set.MA20 = smaPtr(closes, 20)
	set.MA60 = smaPtr(closes, 60)
	if len(bars) >= 120 {
		set.MA120 = smaPtr(closes, 120)
	}

	set.EMA5 = emaPtr(closes, 5)
	set.EMA10 = emaPtr(closes, 10)
	set.EMA20 = emaPtr(closes, 20)

	macdLine, signalLine := ta.MACDSeries(closes, 12, 26, 9)
	if n := len(macdLine); n > 0 {
		macd := macdLine[n-1]
		sig := signalLine[n-1]
		hist := macd - sig
		set.MACD = &macd
		set.MACDSig = &sig
		set.Histogram = &hist
	}

	rsi6 := ta.RSI(closes, 6)
	rsi12 := ta.RSI(closes, 12)
	rsi24 := ta.RSI(closes, 24)
	set.RSI6 = &rsi6
	set.RSI12 = &rsi12
	set.RSI24 = &rsi24

	if upper, middle, lower, ok := ta.Bollinger(closes, 20, 2); ok {
		set.BollUpper = &upper
		set.BollMiddle = &middle
		set.BollLower = &lower
		if middle != 0 {
			width := (upper - lower) / middle * 100
			set.BollWidth = &width
		}
	}

	if atr, ok := ta.ATR(highs, lows, closes, 10); ok {
		set.ATR10 = &atr
	}
	if atr, ok := ta.ATR(highs, lows, closes, 14); ok {
		set.ATR14 = &atr
	}

	set.VolumeMA5 = smaPtr(volumes, 5)
	set.VolumeMA10 = smaPtr(volumes, 10)
	set.VolumeMA20 = smaPtr(volumes, 20)
	if set.VolumeMA20 != nil && *set.VolumeMA20 > 0 {
		ratio := volumes[len(volumes)-1] / *set.VolumeMA20
		set.VolumeRatio = &ratio
	}

	set.Trend = classifyTrend(set)
	set.Score = compositeScore(set)
	return set
}

// classifyTrend requires the short MA to clear the long MA by more than
// 2% before calling a trend, otherwise the structure is sideways.
func classifyTrend(set domain.IndicatorSet) domain.Trend {
	if set.MA5 == nil || set.MA20 == nil {
		return domain.TrendUnknown
	}
	ma5, ma20 := *set.MA5, *set.MA20
	var ma60 float64
	if set.MA60 != nil {
		ma60 = *set.MA60
	}

	if ma5 > ma20 && ma20 > ma60 && ma5 > ma20*1.02 {
		return domain.TrendUp
	}
	if ma5 < ma20 && ma20 < ma60 && ma5 < ma20*0.98 {
		return domain.TrendDown
	}
	return domain.TrendSideways
}

func compositeScore(set domain.IndicatorSet) int {
	score := 50

	switch set.Trend {
	case domain.TrendUp:
		score += 20
	case domain.TrendDown:
		score -= 20
	}

	if set.Histogram != nil {
		if *set.Histogram > 0 {
			score += 10
		} else if *set.Histogram < 0 {
			score -= 10
		}
	}

	if set.RSI12 != nil {
		rsi := *set.RSI12
		switch {
		case rsi >= 40 && rsi <= 60:
			score += 5
		case rsi > 70:
			score -= 5
		case rsi < 30:
			score += 5
		}
	}

	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

func smaPtr(values []float64, period int) *float64 {
	v, ok := ta.SMA(values, period)
	if !ok {
		return nil
	}
	return &v
}

func emaPtr(values []float64, period int) *float64 {
	v, ok := ta.EMA(values, period)
	if !ok {
		return nil
	}
	return &v
}
