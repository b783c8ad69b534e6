package scoring

import (
	"testing"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
)

func TestScoreInsufficientHistoryExcluded(t *testing.T) {
	_, ok := Score("600519", flatBars(MinHistory-1), domain.MethodComprehensive, DefaultThresholds())
	if ok {
		t.Fatal("expected short series to be excluded, not scored")
	}
}

func TestScoreComprehensiveBlend(t *testing.T) {
	bars := flatBars(120)
	c, ok := Score("600519", bars, domain.MethodComprehensive, DefaultThresholds())
	if !ok {
		t.Fatal("expected candidate")
	}
	f := c.Factors
	want := 0.3*f.Momentum + 0.3*f.Trend + 0.2*f.Volume + 0.2*f.Volatility
	if c.Score != want {
		t.Fatalf("expected blended score %f, got %f", want, c.Score)
	}
	if c.Price != 100 {
		t.Fatalf("expected last close as price, got %f", c.Price)
	}
	if c.ChangePct != 0 {
		t.Fatalf("expected zero change on flat series, got %f", c.ChangePct)
	}
}

func TestScoreSingleFactorMethods(t *testing.T) {
	bars := trendingBars(120, 1)
	mom, _ := Score("600519", bars, domain.MethodMomentum, DefaultThresholds())
	if mom.Score != mom.Factors.Momentum {
		t.Fatalf("momentum method must pass through the factor, got %f vs %f", mom.Score, mom.Factors.Momentum)
	}
	tr, _ := Score("600519", bars, domain.MethodTrend, DefaultThresholds())
	if tr.Score != tr.Factors.Trend {
		t.Fatalf("trend method must pass through the factor, got %f vs %f", tr.Score, tr.Factors.Trend)
	}
}

func TestRankStableDescending(t *testing.T) {
	candidates := []domain.ScoredCandidate{
		{Symbol: "A", Score: 60},
		{Symbol: "B", Score: 80},
		{Symbol: "C", Score: 60},
		{Symbol: "D", Score: 90},
	}
	Rank(candidates)
	want := []string{"D", "B", "A", "C"}
	for i, sym := range want {
		if candidates[i].Symbol != sym {
			t.Fatalf("position %d: expected %s, got %s", i, sym, candidates[i].Symbol)
		}
	}
}
