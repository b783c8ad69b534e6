package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
)

func makeBars(closes []float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, len(closes))
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = domain.PriceBar{
			Symbol: "600519",
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1_000_000,
		}
	}
	return bars
}

func flatBars(n int) []domain.PriceBar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100
	}
	return makeBars(closes)
}

func risingBars(n int) []domain.PriceBar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 * math.Pow(1.01, float64(i))
	}
	return makeBars(closes)
}

func TestComputeShortSeriesIsSentinel(t *testing.T) {
	for _, n := range []int{0, 1, 30, 59} {
		set := Compute(flatBars(n))
		if set.Trend != domain.TrendUnknown {
			t.Fatalf("n=%d: expected unknown trend, got %s", n, set.Trend)
		}
		if set.MA5 != nil || set.MA20 != nil || set.RSI12 != nil {
			t.Fatalf("n=%d: expected unset fields on short series", n)
		}
		if set.Ready() {
			t.Fatalf("n=%d: sentinel set must not report ready", n)
		}
	}
}

func TestComputeFlatSeries(t *testing.T) {
	set := Compute(flatBars(120))
	if !set.Ready() {
		t.Fatal("expected ready set for 120 bars")
	}
	if set.Trend != domain.TrendSideways {
		t.Fatalf("expected sideways trend on flat closes, got %s", set.Trend)
	}
	if set.MA120 == nil {
		t.Fatal("expected MA120 with 120 bars")
	}
	if *set.MA5 != 100 || *set.MA60 != 100 {
		t.Fatalf("expected flat MAs at 100, got %f/%f", *set.MA5, *set.MA60)
	}
	if *set.RSI12 != 50 {
		t.Fatalf("expected neutral RSI on flat series, got %f", *set.RSI12)
	}
	// All deltas zero: MACD histogram is exactly zero, trend contribution zero.
	if set.Score != 55 {
		// base 50 + 5 for RSI12 in [40,60]
		t.Fatalf("expected score 55 on flat series, got %d", set.Score)
	}
}

func TestComputeNo120Bars(t *testing.T) {
	set := Compute(flatBars(90))
	if set.MA120 != nil {
		t.Fatal("expected MA120 unset below 120 bars")
	}
	if set.MA60 == nil {
		t.Fatal("expected MA60 set at 90 bars")
	}
}

func TestComputeUptrend(t *testing.T) {
	set := Compute(risingBars(120))
	if set.Trend != domain.TrendUp {
		t.Fatalf("expected uptrend on 1%%/day series, got %s", set.Trend)
	}
	if set.Histogram == nil || *set.Histogram <= 0 {
		t.Fatal("expected positive MACD histogram on rising series")
	}
	if set.Score < 75 {
		t.Fatalf("expected high composite score for uptrend, got %d", set.Score)
	}
	if set.Score > 100 {
		t.Fatalf("score must be clamped to 100, got %d", set.Score)
	}
}

func TestComputeDowntrend(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 * math.Pow(0.99, float64(i))
	}
	set := Compute(makeBars(closes))
	if set.Trend != domain.TrendDown {
		t.Fatalf("expected downtrend, got %s", set.Trend)
	}
	if set.Score >= 50 {
		t.Fatalf("expected depressed composite score, got %d", set.Score)
	}
	if set.Score < 0 {
		t.Fatalf("score must be clamped to 0, got %d", set.Score)
	}
}

func TestVolumeRatio(t *testing.T) {
	bars := flatBars(60)
	bars[len(bars)-1].Volume = 2_000_000
	set := Compute(bars)
	if set.VolumeRatio == nil {
		t.Fatal("expected volume ratio")
	}
	// Last volume doubled against a 20-day mean that includes it once.
	want := 2_000_000.0 / ((19*1_000_000.0 + 2_000_000.0) / 20)
	if math.Abs(*set.VolumeRatio-want) > 1e-9 {
		t.Fatalf("expected ratio %f, got %f", want, *set.VolumeRatio)
	}
}
