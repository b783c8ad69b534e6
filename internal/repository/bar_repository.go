package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
)

const createBarsTable = `
CREATE TABLE IF NOT EXISTS daily_bars (
    symbol   TEXT        NOT NULL,
    bar_date DATE        NOT NULL,
    open     NUMERIC     NOT NULL,
    high     NUMERIC     NOT NULL,
    low      NUMERIC     NOT NULL,
    close    NUMERIC     NOT NULL,
    volume   NUMERIC     NOT NULL,
    PRIMARY KEY (symbol, bar_date)
);

CREATE INDEX IF NOT EXISTS idx_daily_bars_symbol_date
    ON daily_bars (symbol, bar_date DESC);
`

// PgxPool is the slice of pgxpool.Pool the repositories use.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// BarRepository stores daily OHLCV bars keyed by (symbol, date).
type BarRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewBarRepository(pool PgxPool, tracer trace.Tracer) *BarRepository {
	return &BarRepository{pool: pool, tracer: tracer}
}

func (r *BarRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "bar-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createBarsTable)
	return err
}

// UpsertBars writes a batch of bars; re-fetched days overwrite cleanly.
func (r *BarRepository) UpsertBars(ctx context.Context, bars []domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "bar-repo.upsert-bars")
	defer span.End()

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(
			`INSERT INTO daily_bars (symbol, bar_date, open, high, low, close, volume)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (symbol, bar_date) DO UPDATE SET
			     open = EXCLUDED.open,
			     high = EXCLUDED.high,
			     low = EXCLUDED.low,
			     close = EXCLUDED.close,
			     volume = EXCLUDED.volume`,
			b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range bars {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// GetBars returns up to limit bars for a symbol in chronological order,
// oldest first, as the indicator engine expects.
func (r *BarRepository) GetBars(ctx context.Context, symbol string, limit int) ([]domain.PriceBar, error) {
	_, span := r.tracer.Start(ctx, "bar-repo.get-bars")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT symbol, bar_date, open, high, low, close, volume
		 FROM (
		     SELECT symbol, bar_date, open, high, low, close, volume
		     FROM daily_bars
		     WHERE symbol = $1
		     ORDER BY bar_date DESC
		     LIMIT $2
		 ) recent
		 ORDER BY bar_date ASC`,
		symbol, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBars(rows)
}

// GetBarsInRange returns a symbol's bars between from and to inclusive,
// oldest first.
func (r *BarRepository) GetBarsInRange(ctx context.Context, symbol string, from, to time.Time) ([]domain.PriceBar, error) {
	_, span := r.tracer.Start(ctx, "bar-repo.get-bars-in-range")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT symbol, bar_date, open, high, low, close, volume
		 FROM daily_bars
		 WHERE symbol = $1 AND bar_date >= $2 AND bar_date <= $3
		 ORDER BY bar_date ASC`,
		symbol, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBars(rows)
}

func scanBars(rows pgx.Rows) ([]domain.PriceBar, error) {
	var bars []domain.PriceBar
	for rows.Next() {
		var b domain.PriceBar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
