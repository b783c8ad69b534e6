package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/UrwLee/ai-stock-trader/internal/advisor"
	"github.com/UrwLee/ai-stock-trader/internal/domain"
	"github.com/UrwLee/ai-stock-trader/internal/service"
)

// StartTelegramBot wires the chat commands onto the quant service. A
// missing token skips startup instead of failing it.
func StartTelegramBot(token string, quant *service.QuantService, adv *advisor.Advisor) {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/rank", func(c tele.Context) error {
		candidates, err := quant.ScoreUniverse(context.Background(), domain.MethodComprehensive)
		if err != nil {
			return c.Send(fmt.Sprintf("Error ranking universe: %v", err))
		}
		if len(candidates) > 10 {
			candidates = candidates[:10]
		}
		return c.Send(formatRanking(candidates))
	})

	b.Handle("/signal", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /signal 600036")
		}
		symbol := strings.TrimSpace(args[0])
		report, err := quant.GenerateSignal(context.Background(), symbol)
		if err != nil {
			return c.Send(fmt.Sprintf("Error generating signal for %s: %v", symbol, err))
		}
		return c.Send(formatSignal(report))
	})

	b.Handle("/portfolio", func(c tele.Context) error {
		status, err := quant.PortfolioStatus(context.Background())
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching portfolio: %v", err))
		}
		return c.Send(formatPortfolio(status))
	})

	b.Handle("/why", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /why 600036")
		}
		symbol := strings.TrimSpace(args[0])
		report, err := quant.GenerateSignal(context.Background(), symbol)
		if err != nil {
			return c.Send(fmt.Sprintf("Error generating signal for %s: %v", symbol, err))
		}
		explanation := adv.Explain(context.Background(), report)
		return c.Send(explanation)
	})

	log.Println("Telegram bot started")
	go b.Start()
}

func formatRanking(candidates []domain.ScoredCandidate) string {
	if len(candidates) == 0 {
		return "No candidates could be scored."
	}
	var sb strings.Builder
	sb.WriteString("Top candidates:\n")
	for i, cand := range candidates {
		flag := ""
		if cand.Anomalous {
			flag = " ⚠"
		}
		fmt.Fprintf(&sb, "%d. %s  score %.1f  %s%s\n", i+1, cand.Symbol, cand.Score, cand.Signal, flag)
	}
	return sb.String()
}

func formatSignal(report domain.SignalReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\nSignal: %s\nScore: %.1f\nReason: %s\n", report.Symbol, report.Signal, report.Score, report.Reason)
	for _, detail := range report.Details {
		fmt.Fprintf(&sb, "- %s\n", detail)
	}
	return sb.String()
}

func formatPortfolio(status domain.PortfolioStatus) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Portfolio: %.2f (initial %.2f)\n", status.CurrentValue, status.InitialCapital)
	fmt.Fprintf(&sb, "Return: %.2f%%  Drawdown: %.2f%%  Risk: %s\n",
		status.Metrics.TotalReturnPct, status.Metrics.MaxDrawdownPct, status.Metrics.RiskLevel)
	fmt.Fprintf(&sb, "Trades: %d  Win rate: %.1f%%\n", status.TradeCount, status.WinRatePct)
	if len(status.Positions) == 0 {
		sb.WriteString("No open positions.")
		return sb.String()
	}
	for _, p := range status.Positions {
		fmt.Fprintf(&sb, "%s: %d shares @ %.2f (%.1f%%)\n", p.Symbol, p.Shares, p.CostBasis, p.WeightPct)
	}
	return sb.String()
}
