package ta

import "math"

// MeanStd returns the arithmetic mean and population standard deviation.
func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// SMA returns the arithmetic mean of the last period values.
// ok is false when the series is shorter than period.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// EMASeries computes the full exponential moving average series with
// smoothing factor 2/(period+1). Values are recursive: each element
// folds the previous EMA rather than recomputing a window.
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	if period <= 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// EMA returns the latest exponential moving average value.
func EMA(values []float64, period int) (float64, bool) {
	if len(values) < period {
		return 0, false
	}
	series := EMASeries(values, period)
	return series[len(series)-1], true
}

// MACDSeries returns the MACD line (fast EMA minus slow EMA) and its
// signal line (EMA of the MACD line).
func MACDSeries(values []float64, fast, slow, signal int) ([]float64, []float64) {
	if len(values) == 0 {
		return nil, nil
	}
	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := EMASeries(macdLine, signal)
	return macdLine, signalLine
}

// RSI computes the Relative Strength Index over the last period deltas
// using simple rolling means of gains and losses (not Wilder smoothing).
// A window with zero average loss is undefined and yields the neutral 50,
// as does a series too short for the window.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}
	var gainSum, lossSum float64
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	if avgLoss == 0 {
		return 50
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// Bollinger returns the latest upper, middle and lower band over the
// trailing window using stdDevs standard deviations.
func Bollinger(values []float64, period int, stdDevs float64) (upper, middle, lower float64, ok bool) {
	if period <= 0 || len(values) < period {
		return 0, 0, 0, false
	}
	mean, std := MeanStd(values[len(values)-period:])
	return mean + stdDevs*std, mean, mean - stdDevs*std, true
}

// ATR computes the Average True Range over the trailing period, where
// True Range is max(high-low, |high-prevClose|, |low-prevClose|).
func ATR(high, low, closes []float64, period int) (float64, bool) {
	n := len(closes)
	if period <= 0 || n < period+1 || len(high) != n || len(low) != n {
		return 0, false
	}
	var sum float64
	for i := n - period; i < n; i++ {
		tr := high[i] - low[i]
		if d := math.Abs(high[i] - closes[i-1]); d > tr {
			tr = d
		}
		if d := math.Abs(low[i] - closes[i-1]); d > tr {
			tr = d
		}
		sum += tr
	}
	return sum / float64(period), true
}

// PctChanges returns the lag-period fractional changes of the series.
// The result has len(values)-lag elements.
func PctChanges(values []float64, lag int) []float64 {
	if lag <= 0 || len(values) <= lag {
		return nil
	}
	out := make([]float64, 0, len(values)-lag)
	for i := lag; i < len(values); i++ {
		prev := values[i-lag]
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (values[i]-prev)/prev)
	}
	return out
}
