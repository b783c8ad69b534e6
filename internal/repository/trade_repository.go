package repository

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
)

const createTradeTables = `
CREATE TABLE IF NOT EXISTS trades (
    id         BIGSERIAL   PRIMARY KEY,
    symbol     TEXT        NOT NULL,
    shares     BIGINT      NOT NULL,
    buy_price  NUMERIC     NOT NULL,
    sell_price NUMERIC     NOT NULL,
    profit_pct NUMERIC     NOT NULL,
    closed_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS equity_curve (
    sampled_at TIMESTAMPTZ PRIMARY KEY,
    value      NUMERIC     NOT NULL
);
`

// TradeRepository persists the closed-trade log and the equity curve
// so risk metrics survive restarts.
type TradeRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewTradeRepository(pool PgxPool, tracer trace.Tracer) *TradeRepository {
	return &TradeRepository{pool: pool, tracer: tracer}
}

func (r *TradeRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "trade-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createTradeTables)
	return err
}

func (r *TradeRepository) InsertTrade(ctx context.Context, trade domain.TradeRecord) error {
	_, span := r.tracer.Start(ctx, "trade-repo.insert-trade")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO trades (symbol, shares, buy_price, sell_price, profit_pct, closed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		trade.Symbol, trade.Shares, trade.BuyPrice, trade.SellPrice, trade.ProfitPct, trade.ClosedAt,
	)
	return err
}

func (r *TradeRepository) RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	_, span := r.tracer.Start(ctx, "trade-repo.recent-trades")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT symbol, shares, buy_price, sell_price, profit_pct, closed_at
		 FROM trades
		 ORDER BY closed_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var tr domain.TradeRecord
		if err := rows.Scan(&tr.Symbol, &tr.Shares, &tr.BuyPrice, &tr.SellPrice, &tr.ProfitPct, &tr.ClosedAt); err != nil {
			return nil, err
		}
		trades = append(trades, tr)
	}
	return trades, rows.Err()
}

func (r *TradeRepository) InsertEquityPoint(ctx context.Context, point domain.EquityPoint) error {
	_, span := r.tracer.Start(ctx, "trade-repo.insert-equity-point")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO equity_curve (sampled_at, value)
		 VALUES ($1, $2)
		 ON CONFLICT (sampled_at) DO UPDATE SET value = EXCLUDED.value`,
		point.Timestamp, point.Value,
	)
	return err
}

func (r *TradeRepository) EquityCurve(ctx context.Context, limit int) ([]domain.EquityPoint, error) {
	_, span := r.tracer.Start(ctx, "trade-repo.equity-curve")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT sampled_at, value
		 FROM (
		     SELECT sampled_at, value
		     FROM equity_curve
		     ORDER BY sampled_at DESC
		     LIMIT $1
		 ) recent
		 ORDER BY sampled_at ASC`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []domain.EquityPoint
	for rows.Next() {
		var p domain.EquityPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
