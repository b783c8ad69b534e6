package scoring

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

func trendingBars(n int, dailyPct float64) []domain.PriceBar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 * math.Pow(1+dailyPct/100, float64(i))
	}
	return makeBars(closes)
}

func TestFactorsFlatSeries(t *testing.T) {
	f := Factors(flatBars(120))
	if f.Momentum != 50 {
		t.Fatalf("expected momentum 50 on flat series, got %f", f.Momentum)
	}
	// stddev 0 falls under the <2.0 branch: 60 + 0*10.
	if f.Volatility != 60 {
		t.Fatalf("expected volatility score 60 on flat series, got %f", f.Volatility)
	}
	// Flat volumes: ratio 1.0 lands in the moderate branch at 70.
	if f.Volume != 70 {
		t.Fatalf("expected volume score 70 on flat volumes, got %f", f.Volume)
	}
	// Price equals every MA; no bonus applies.
	if f.Trend != 50 {
		t.Fatalf("expected trend score 50 on flat series, got %f", f.Trend)
	}
}

func TestMomentumMonotonicity(t *testing.T) {
	prev := -1.0
	for _, daily := range []float64{-2, -1, -0.5, 0, 0.5, 1, 2} {
		score := MomentumScore(trendingBars(60, daily))
		if score < prev {
			t.Fatalf("momentum score decreased from %f to %f at daily=%f", prev, score, daily)
		}
		prev = score
	}
}

func TestMomentumClamped(t *testing.T) {
	if got := MomentumScore(trendingBars(60, 8)); got != 100 {
		t.Fatalf("expected clamp at 100, got %f", got)
	}
	if got := MomentumScore(trendingBars(60, -8)); got != 0 {
		t.Fatalf("expected clamp at 0, got %f", got)
	}
}

func TestTrendScoreBullishStack(t *testing.T) {
	got := TrendScore(trendingBars(120, 1))
	// Price above all three MAs plus bullish stack: 50+10+15+15+10.
	if got != 100 {
		t.Fatalf("expected trend score 100 on steady uptrend, got %f", got)
	}
}

func TestVolumeScoreBranches(t *testing.T) {
	// Expanding recent volume: 5-day mean well above 20-day mean.
	bars := flatBars(60)
	for i := len(bars) - 5; i < len(bars); i++ {
		bars[i].Volume = 3_000_000
	}
	got := VolumeScore(bars)
	if got < 70 || got > 100 {
		t.Fatalf("expected elevated volume score, got %f", got)
	}

	// Collapsing recent volume hits the ratio<0.8 branch.
	bars = flatBars(60)
	for i := len(bars) - 5; i < len(bars); i++ {
		bars[i].Volume = 100_000
	}
	got = VolumeScore(bars)
	if got >= 70 {
		t.Fatalf("expected depressed volume score, got %f", got)
	}
}

func TestVolatilityScoreBranches(t *testing.T) {
	// Alternating +3%/-3% closes: stddev near 3% lands in the sweet spot.
	closes := make([]float64, 60)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		if i%2 == 0 {
			closes[i] = closes[i-1] * 1.03
		} else {
			closes[i] = closes[i-1] * 0.97
		}
	}
	if got := VolatilityScore(makeBars(closes)); got != 80 {
		t.Fatalf("expected volatility score 80 in [2,4] band, got %f", got)
	}

	// Wild series: stddev above 4% tapers down, floored at 40.
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		if i%2 == 0 {
			closes[i] = closes[i-1] * 1.10
		} else {
			closes[i] = closes[i-1] * 0.90
		}
	}
	got := VolatilityScore(makeBars(closes))
	if got < 40 || got >= 80 {
		t.Fatalf("expected tapered volatility score in [40,80), got %f", got)
	}
}

func TestNeutralFallbackCounted(t *testing.T) {
	ResetNeutralFallbackCount()
	short := flatBars(5)
	_ = Factors(short)
	if got := NeutralFallbackCount(); got != 4 {
		t.Fatalf("expected 4 counted fallbacks for a 5-bar series, got %d", got)
	}
	ResetNeutralFallbackCount()
	_ = Factors(flatBars(120))
	if got := NeutralFallbackCount(); got != 0 {
		t.Fatalf("expected no fallbacks for a full series, got %d", got)
	}
}

func TestFactorIndependence(t *testing.T) {
	bars := trendingBars(120, 1)
	whole := Factors(bars)
	if whole.Momentum != MomentumScore(bars) ||
		whole.Trend != TrendScore(bars) ||
		whole.Volume != VolumeScore(bars) ||
		whole.Volatility != VolatilityScore(bars) {
		t.Fatal("combined factors must equal the isolated computations")
	}
}
