package ta

import (
	"math"
	"testing"
)

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	got, ok := SMA(values, 3)
	if !ok {
		t.Fatal("expected ok for sufficient series")
	}
	if got != 4 {
		t.Fatalf("expected SMA(3)=4, got %f", got)
	}
	if _, ok := SMA(values, 6); ok {
		t.Fatal("expected not-ok for short series")
	}
}

func TestEMASeriesRecursive(t *testing.T) {
	values := []float64{10, 11, 12, 13, 14}
	series := EMASeries(values, 3)
	if len(series) != len(values) {
		t.Fatalf("expected full-length series, got %d", len(series))
	}
	if series[0] != values[0] {
		t.Fatalf("expected seed from first value, got %f", series[0])
	}
	alpha := 2.0 / 4.0
	want := alpha*values[1] + (1-alpha)*values[0]
	if math.Abs(series[1]-want) > 1e-12 {
		t.Fatalf("expected recursive step %f, got %f", want, series[1])
	}
}

func TestMACDSeriesHistogramSign(t *testing.T) {
	// Rising series: fast EMA leads slow EMA, MACD line positive.
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	macd, signal := MACDSeries(values, 12, 26, 9)
	last := len(values) - 1
	if macd[last] <= 0 {
		t.Fatalf("expected positive MACD on rising series, got %f", macd[last])
	}
	if macd[last]-signal[last] <= 0 {
		t.Fatalf("expected positive histogram on rising series, got %f", macd[last]-signal[last])
	}
}

func TestRSIZeroLossIsNeutral(t *testing.T) {
	// Monotonically rising closes: average loss is zero.
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	if got := RSI(values, 12); got != 50 {
		t.Fatalf("expected neutral 50 on zero average loss, got %f", got)
	}
}

func TestRSIShortSeriesIsNeutral(t *testing.T) {
	if got := RSI([]float64{1, 2, 3}, 12); got != 50 {
		t.Fatalf("expected neutral 50 on short series, got %f", got)
	}
}

func TestRSIBounded(t *testing.T) {
	values := []float64{10, 9, 11, 8, 12, 7, 13, 6, 14, 5, 15, 4, 16, 3}
	got := RSI(values, 12)
	if got < 0 || got > 100 {
		t.Fatalf("RSI out of bounds: %f", got)
	}
}

func TestBollingerFlatSeries(t *testing.T) {
	values := make([]float64, 25)
	for i := range values {
		values[i] = 50
	}
	upper, middle, lower, ok := Bollinger(values, 20, 2)
	if !ok {
		t.Fatal("expected ok")
	}
	if upper != 50 || middle != 50 || lower != 50 {
		t.Fatalf("expected collapsed bands on flat series, got %f/%f/%f", upper, middle, lower)
	}
}

func TestATR(t *testing.T) {
	high := []float64{11, 12, 13, 14}
	low := []float64{9, 10, 11, 12}
	closes := []float64{10, 11, 12, 13}
	got, ok := ATR(high, low, closes, 3)
	if !ok {
		t.Fatal("expected ok")
	}
	// Each bar: high-low=2, |high-prevClose|=2, |low-prevClose|=1 -> TR=2.
	if got != 2 {
		t.Fatalf("expected ATR=2, got %f", got)
	}
	if _, ok := ATR(high, low, closes, 4); ok {
		t.Fatal("expected not-ok when period+1 exceeds series")
	}
}

func TestPctChanges(t *testing.T) {
	got := PctChanges([]float64{100, 110, 121}, 1)
	if len(got) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(got))
	}
	if math.Abs(got[0]-0.1) > 1e-12 || math.Abs(got[1]-0.1) > 1e-12 {
		t.Fatalf("expected 10%% steps, got %v", got)
	}
}

func TestMeanStd(t *testing.T) {
	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Fatalf("expected mean 5, got %f", mean)
	}
	if math.Abs(std-2) > 1e-12 {
		t.Fatalf("expected std 2, got %f", std)
	}
}
