package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/UrwLee/ai-stock-trader/internal/service"
)

// MarketPoller runs the background loops that keep quotes, history and
// exit alerts fresh.
type MarketPoller struct {
	tracer       trace.Tracer
	quant        MarketRefresher
	universe     []string
	pollInterval time.Duration
}

type MarketRefresher interface {
	RefreshQuotes(ctx context.Context) error
	RefreshHistory(ctx context.Context, symbol string) error
	CheckExits(ctx context.Context) ([]service.ExitAlert, error)
}

func NewMarketPoller(tracer trace.Tracer, quant MarketRefresher, universe []string, pollIntervalSecs int) *MarketPoller {
	return &MarketPoller{
		tracer:       tracer,
		quant:        quant,
		universe:     universe,
		pollInterval: time.Duration(pollIntervalSecs) * time.Second,
	}
}

// Start launches the polling goroutines and blocks until ctx is
// cancelled.
func (p *MarketPoller) Start(ctx context.Context) {
	log.Println("Market poller starting...")

	go p.pollLoop(ctx, "quotes", p.pollInterval, p.quant.RefreshQuotes)

	go p.pollHistory(ctx)

	go p.pollLoop(ctx, "exit-checks", time.Minute, func(ctx context.Context) error {
		alerts, err := p.quant.CheckExits(ctx)
		if err != nil {
			return err
		}
		for _, alert := range alerts {
			if alert.TakeProfit {
				log.Printf("ALERT %s at %.2f: take-profit target reached", alert.Symbol, alert.Price)
			} else {
				log.Printf("ALERT %s at %.2f: stop-loss breached", alert.Symbol, alert.Price)
			}
		}
		return nil
	})

	<-ctx.Done()
	log.Println("Market poller stopped")
}

func (p *MarketPoller) pollLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		log.Printf("poller %s initial run error: %v", name, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				log.Printf("poller %s error: %v", name, err)
			}
		}
	}
}

// pollHistory refreshes daily bars round-robin, two symbols every five
// minutes, staggered behind the quote poller.
func (p *MarketPoller) pollHistory(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(10 * time.Second):
	}

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	index := 0
	p.refreshHistoryBatch(ctx, &index, 2)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refreshHistoryBatch(ctx, &index, 2)
		}
	}
}

func (p *MarketPoller) refreshHistoryBatch(ctx context.Context, index *int, count int) {
	if len(p.universe) == 0 {
		return
	}
	for i := 0; i < count; i++ {
		symbol := p.universe[*index%len(p.universe)]
		*index++

		if err := p.quant.RefreshHistory(ctx, symbol); err != nil {
			log.Printf("history refresh error for %s: %v", symbol, err)
		}
	}
}
