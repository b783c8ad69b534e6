package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/UrwLee/ai-stock-trader/internal/cache"
	"github.com/UrwLee/ai-stock-trader/internal/config"
	"github.com/UrwLee/ai-stock-trader/internal/db"
	"github.com/UrwLee/ai-stock-trader/internal/overlay"
	"github.com/UrwLee/ai-stock-trader/internal/provider"
	"github.com/UrwLee/ai-stock-trader/internal/repository"
	"github.com/UrwLee/ai-stock-trader/internal/risk"
	"github.com/UrwLee/ai-stock-trader/internal/service"
	"github.com/UrwLee/ai-stock-trader/internal/tui"
	"github.com/UrwLee/ai-stock-trader/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	gossh "golang.org/x/crypto/ssh"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc         = godotenv.Load
	loadConfigFunc      = config.Load
	initPostgresFunc    = db.InitPostgres
	initRedisFunc       = cache.InitRedis
	initTracerFunc      = tracing.InitTracer
	newBarRepoFunc      = repository.NewBarRepository
	newSinaProviderFunc = func(tracer trace.Tracer) service.MarketProvider {
		return provider.NewSinaProvider(tracer)
	}
	newQuantServiceFunc = service.NewQuantService
	newWishServerFunc   = wish.NewServer
	setupSignalNotify   = ossignal.Notify
	waitForSignalFunc   = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Without Postgres the repository stays a nil interface so the
	// service skips persistence instead of dereferencing a nil pool.
	var barRepo service.BarRepository
	if db.Pool != nil {
		barRepo = newBarRepoFunc(db.Pool, tracer)
	}
	marketProvider := newSinaProviderFunc(tracer)

	riskMgr := risk.NewManager(risk.Config{
		InitialCapital:    cfg.InitialCapital,
		MaxPositionWeight: cfg.MaxPositionWeight,
		StopLossRatio:     cfg.StopLossRatio,
		TakeProfitRatio:   cfg.TakeProfitRatio,
		MaxDrawdownLimit:  cfg.MaxDrawdownLimit,
		MaxPositionCount:  cfg.MaxPositionCount,
		RiskPerTrade:      cfg.RiskPerTrade,
		LotSize:           cfg.LotSize,
	})

	opts := service.Options{
		Universe: cfg.Universe,
		QuoteTTL: time.Duration(cfg.QuoteCacheSecs) * time.Second,
	}
	if policy, err := overlay.Load(cfg.PolicyTable); err == nil {
		opts.Overlay = policy
	}

	quantService := newQuantServiceFunc(tracer, marketProvider, barRepo, cache.Client, riskMgr, opts)

	addr := fmt.Sprintf("%s:%d", cfg.SSHHost, cfg.SSHPort)

	srv, err := newWishServerFunc(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		wish.WithPublicKeyAuth(func(ctx ssh.Context, key ssh.PublicKey) bool {
			// Read-only dashboard: any key is accepted, logged for audit.
			log.Printf("SSH session: user=%s fingerprint=%s", ctx.User(), gossh.FingerprintSHA256(key))
			return true
		}),
		wish.WithMiddleware(
			bubbletea.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				model := tui.NewAppModel(tui.Services{
					Ranker:    quantService,
					Portfolio: quantService,
					Username:  s.User(),
				})
				pty, _, _ := s.Pty()
				model.SetSize(pty.Window.Width, pty.Window.Height)

				return model, []tea.ProgramOption{tea.WithAltScreen()}
			}),
			logging.Middleware(),
		),
	)
	if err != nil {
		log.Fatalf("failed to create SSH server: %v", err)
	}

	if srv != nil {
		go func() {
			log.Printf("SSH server listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil {
				log.Printf("SSH server stopped: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down SSH server...")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("SSH server shutdown error: %v", err)
		}
	}

	log.Println("SSH server exited")
}
