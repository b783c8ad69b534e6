package bot

import (
	"strings"
	"testing"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
)

func TestStartTelegramBotSkipsWithoutToken(t *testing.T) {
	StartTelegramBot("", nil, nil)
}

func TestFormatRanking(t *testing.T) {
	out := formatRanking([]domain.ScoredCandidate{
		{Symbol: "600036", Score: 86.5, Signal: domain.SignalStrongBuy},
		{Symbol: "000001", Score: 42.0, Signal: domain.SignalHold, Anomalous: true},
	})
	if !strings.Contains(out, "1. 600036") || !strings.Contains(out, "86.5") {
		t.Errorf("ranking output: %q", out)
	}
	if !strings.Contains(out, "⚠") {
		t.Errorf("anomaly flag missing: %q", out)
	}

	if formatRanking(nil) != "No candidates could be scored." {
		t.Error("empty ranking message wrong")
	}
}

func TestFormatSignal(t *testing.T) {
	out := formatSignal(domain.SignalReport{
		Symbol: "600036",
		Signal: domain.SignalBuy,
		Score:  72,
		Reason: "technical setup constructive",
		Details: []string{
			"bullish MA stack",
			"MACD bullish",
		},
	})
	for _, want := range []string{"600036", "buy", "72", "bullish MA stack"} {
		if !strings.Contains(out, want) {
			t.Errorf("signal output missing %q: %q", want, out)
		}
	}
}

func TestFormatPortfolioEmpty(t *testing.T) {
	out := formatPortfolio(domain.PortfolioStatus{
		InitialCapital: 100_000,
		CurrentValue:   100_000,
		Metrics:        domain.RiskMetrics{RiskLevel: domain.RiskLow, CashRatio: 1},
	})
	if !strings.Contains(out, "No open positions.") {
		t.Errorf("portfolio output: %q", out)
	}
}

func TestFormatPortfolioWithPositions(t *testing.T) {
	out := formatPortfolio(domain.PortfolioStatus{
		InitialCapital: 100_000,
		CurrentValue:   101_000,
		TradeCount:     3,
		WinRatePct:     66.7,
		Metrics:        domain.RiskMetrics{RiskLevel: domain.RiskLow},
		Positions: []domain.PositionStatus{
			{Symbol: "600036", Shares: 200, CostBasis: 50, WeightPct: 9.9},
		},
	})
	for _, want := range []string{"600036", "200 shares", "66.7"} {
		if !strings.Contains(out, want) {
			t.Errorf("portfolio output missing %q: %q", want, out)
		}
	}
}
