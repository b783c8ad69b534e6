package db

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Pool *pgxpool.Pool

var newPool = pgxpool.New

// InitPostgres connects the package-level pool. Callers without a
// configured database run degraded (no bar history persistence), so an
// empty URL is a log line, not a fatal.
func InitPostgres(ctx context.Context, databaseURL string) bool {
	if databaseURL == "" {
		log.Println("DATABASE_URL empty, running without persistence")
		return false
	}

	pool, err := newPool(ctx, databaseURL)
	if err != nil {
		log.Fatalf("failed to create postgres pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	Pool = pool
	log.Println("Connected to Postgres")
	return true
}
