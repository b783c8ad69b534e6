package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UrwLee/ai-stock-trader/internal/advisor"
	"github.com/UrwLee/ai-stock-trader/internal/anomaly"
	"github.com/UrwLee/ai-stock-trader/internal/bot"
	"github.com/UrwLee/ai-stock-trader/internal/cache"
	"github.com/UrwLee/ai-stock-trader/internal/config"
	"github.com/UrwLee/ai-stock-trader/internal/db"
	"github.com/UrwLee/ai-stock-trader/internal/domain"
	"github.com/UrwLee/ai-stock-trader/internal/handler"
	"github.com/UrwLee/ai-stock-trader/internal/job"
	"github.com/UrwLee/ai-stock-trader/internal/ml/upside"
	"github.com/UrwLee/ai-stock-trader/internal/overlay"
	"github.com/UrwLee/ai-stock-trader/internal/provider"
	"github.com/UrwLee/ai-stock-trader/internal/repository"
	"github.com/UrwLee/ai-stock-trader/internal/risk"
	"github.com/UrwLee/ai-stock-trader/internal/scoring"
	"github.com/UrwLee/ai-stock-trader/internal/service"
	"github.com/UrwLee/ai-stock-trader/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "github.com/UrwLee/ai-stock-trader/docs"
)

const trainingBars = 120

var (
	loadEnvFunc          = godotenv.Load
	loadConfigFunc       = config.Load
	initPostgresFunc     = db.InitPostgres
	initRedisFunc        = cache.InitRedis
	initTracerFunc       = tracing.InitTracer
	newBarRepoFunc       = repository.NewBarRepository
	newTradeRepoFunc     = repository.NewTradeRepository
	newSinaProviderFunc  = func(tracer trace.Tracer) service.MarketProvider {
		return provider.NewSinaProvider(tracer)
	}
	newQuantServiceFunc  = service.NewQuantService
	newMarketPollerFunc  = job.NewMarketPoller
	startPollerFunc      = func(p *job.MarketPoller, ctx context.Context) { go p.Start(ctx) }
	startTelegramBotFunc = bot.StartTelegramBot
	newHandlerFunc       = handler.New
	newRouterFunc        = gin.Default
	setupSignalNotify    = signal.Notify
	waitForSignalFunc    = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           AI Stock Trader API
// @version         1.0
// @description     Quantitative scoring and risk-managed position engine for A-share equities.

// @host      localhost:8080
// @BasePath  /
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

	// Without Postgres the repositories stay nil interfaces so the
	// service skips persistence instead of dereferencing a nil pool.
	var barRepo service.BarRepository
	var tradeLog service.TradeLog
	if db.Pool != nil {
		bars := newBarRepoFunc(db.Pool, tracer)
		trades := newTradeRepoFunc(db.Pool, tracer)
		if err := bars.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		if err := trades.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		barRepo = bars
		tradeLog = trades
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
		Thresholds: scoring.Thresholds{
			StrongBuy: cfg.StrongBuyThreshold,
			Buy:       cfg.BuyThreshold,
			Hold:      cfg.HoldThreshold,
			Sell:      cfg.SellThreshold,
		},
		QuoteTTL: time.Duration(cfg.QuoteCacheSecs) * time.Second,
		TradeLog: tradeLog,
	}

	policy, err := overlay.Load(cfg.PolicyTable)
	if err != nil {
		log.Printf("policy table %s not loaded, recommendations disabled: %v", cfg.PolicyTable, err)
	} else {
		opts.Overlay = policy
	}

	if cfg.AnomalyEnabled {
		opts.Detector = anomaly.NewDetector(cfg.AnomalyThreshold)
		log.Println("anomaly detection enabled")
	}

	if cfg.MLEnabled {
		opts.Model = trainUpsideModel(ctx, marketProvider, cfg.Universe)
	}

	quantService := newQuantServiceFunc(tracer, marketProvider, barRepo, cache.Client, riskMgr, opts)

	poller := newMarketPollerFunc(tracer, quantService, quantService.Universe(), cfg.QuotePollSecs)
	startPollerFunc(poller, ctx)

	var llm advisor.LLMClient
	if cfg.OpenAIAPIKey != "" {
		llm = advisor.NewOpenAIClient(cfg.OpenAIAPIKey)
	}
	adv := advisor.New(tracer, llm, cfg.OpenAIModel)

	startTelegramBotFunc(cfg.TelegramBotToken, quantService, adv)

	h := newHandlerFunc(tracer, quantService)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("ai-stock-trader"))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

// trainUpsideModel fits the gradient-boosted classifier on recent
// history at startup. Any failure leaves the model nil and scoring
// proceeds without up-probabilities.
func trainUpsideModel(ctx context.Context, p service.MarketProvider, universe []string) *upside.Model {
	if len(universe) == 0 {
		all, err := p.ListTradableSymbols(ctx)
		if err != nil {
			log.Printf("upside model not trained, universe unavailable: %v", err)
			return nil
		}
		universe = all
	}

	series := make(map[string][]domain.PriceBar, len(universe))
	for _, symbol := range universe {
		bars, err := p.FetchHistory(ctx, symbol, trainingBars)
		if err != nil {
			log.Printf("training history for %s unavailable: %v", symbol, err)
			continue
		}
		series[symbol] = bars
	}

	model, err := upside.TrainFromSeries(series, upside.TrainOptions{})
	if err != nil {
		log.Printf("upside model not trained: %v", err)
		return nil
	}
	log.Printf("upside model trained on %d symbols", len(series))
	return model
}
