package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/UrwLee/ai-stock-trader/internal/anomaly"
	"github.com/UrwLee/ai-stock-trader/internal/domain"
	"github.com/UrwLee/ai-stock-trader/internal/indicator"
	"github.com/UrwLee/ai-stock-trader/internal/ml/upside"
	"github.com/UrwLee/ai-stock-trader/internal/overlay"
	"github.com/UrwLee/ai-stock-trader/internal/risk"
	"github.com/UrwLee/ai-stock-trader/internal/scoring"
	"github.com/UrwLee/ai-stock-trader/internal/ta"
)

const (
	quoteCacheTTL = 30 * time.Second

	// scoreWorkers bounds concurrent history fetches during a universe
	// scan so the upstream rate limit is shared fairly.
	scoreWorkers = 4

	historyBars = 120
)

// MarketProvider is the slice of the data provider the service needs.
type MarketProvider interface {
	FetchQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error)
	FetchHistory(ctx context.Context, symbol string, limit int) ([]domain.PriceBar, error)
	ListTradableSymbols(ctx context.Context) ([]string, error)
}

type BarRepository interface {
	GetBars(ctx context.Context, symbol string, limit int) ([]domain.PriceBar, error)
	UpsertBars(ctx context.Context, bars []domain.PriceBar) error
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// TradeLog persists closed trades and equity samples.
type TradeLog interface {
	InsertTrade(ctx context.Context, trade domain.TradeRecord) error
	InsertEquityPoint(ctx context.Context, point domain.EquityPoint) error
}

// QuantService orchestrates scoring, signals and position management
// over one symbol universe.
type QuantService struct {
	tracer     trace.Tracer
	provider   MarketProvider
	repo       BarRepository
	redis      RedisClient
	tradeLog   TradeLog
	riskMgr    *risk.Manager
	overlay    *overlay.Overlay
	detector   *anomaly.Detector
	model      *upside.Model
	thresholds scoring.Thresholds
	universe   []string
	quoteTTL   time.Duration
}

type Options struct {
	Universe   []string
	Thresholds scoring.Thresholds
	QuoteTTL   time.Duration
	Overlay    *overlay.Overlay
	Detector   *anomaly.Detector
	Model      *upside.Model
	TradeLog   TradeLog
}

func NewQuantService(
	tracer trace.Tracer,
	provider MarketProvider,
	repo BarRepository,
	redisClient RedisClient,
	riskMgr *risk.Manager,
	opts Options,
) *QuantService {
	universe := opts.Universe
	if len(universe) == 0 {
		universe = domain.DefaultUniverse
	}
	thresholds := opts.Thresholds
	if thresholds == (scoring.Thresholds{}) {
		thresholds = scoring.DefaultThresholds()
	}
	quoteTTL := opts.QuoteTTL
	if quoteTTL <= 0 {
		quoteTTL = quoteCacheTTL
	}
	return &QuantService{
		tracer:     tracer,
		provider:   provider,
		repo:       repo,
		redis:      redisClient,
		tradeLog:   opts.TradeLog,
		riskMgr:    riskMgr,
		overlay:    opts.Overlay,
		detector:   opts.Detector,
		model:      opts.Model,
		thresholds: thresholds,
		universe:   universe,
		quoteTTL:   quoteTTL,
	}
}

func (s *QuantService) Universe() []string {
	out := make([]string, len(s.universe))
	copy(out, s.universe)
	return out
}

func (s *QuantService) RiskManager() *risk.Manager {
	return s.riskMgr
}

// ScoreUniverse scores every symbol in the universe with the given
// method and returns the candidates ranked best first. A symbol whose
// history cannot be fetched or is too short is skipped with a log
// line; one bad symbol never fails the scan.
func (s *QuantService) ScoreUniverse(ctx context.Context, method domain.ScoreMethod) ([]domain.ScoredCandidate, error) {
	ctx, span := s.tracer.Start(ctx, "quant-service.score-universe")
	defer span.End()

	if !method.IsValid() {
		return nil, fmt.Errorf("unknown scoring method: %s", method)
	}

	series := s.fetchUniverseHistory(ctx)

	var candidates []domain.ScoredCandidate
	for _, symbol := range s.universe {
		bars, ok := series[symbol]
		if !ok {
			continue
		}
		candidate, ok := scoring.Score(symbol, bars, method, s.thresholds)
		if !ok {
			log.Printf("skipping %s: history too short to score", symbol)
			continue
		}
		if s.model != nil {
			prob := s.model.PredictSeries(bars)
			candidate.UpProb = &prob
		}
		candidates = append(candidates, candidate)
	}

	if s.detector != nil {
		flagged := s.detector.Flag(series)
		for i := range candidates {
			candidates[i].Anomalous = flagged[candidates[i].Symbol]
		}
	}

	scoring.Rank(candidates)
	return candidates, nil
}

// fetchUniverseHistory loads bars for the whole universe with bounded
// concurrency, repository first with a provider fallback.
func (s *QuantService) fetchUniverseHistory(ctx context.Context) map[string][]domain.PriceBar {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		sem    = make(chan struct{}, scoreWorkers)
		series = make(map[string][]domain.PriceBar, len(s.universe))
	)

	for _, symbol := range s.universe {
		wg.Add(1)
		sem <- struct{}{}
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			bars, err := s.History(ctx, symbol, historyBars)
			if err != nil {
				log.Printf("skipping %s: %v", symbol, err)
				return
			}
			mu.Lock()
			series[symbol] = bars
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()
	return series
}

// History returns the bar series for one symbol, oldest first. The
// repository is authoritative when it has enough bars; otherwise the
// provider is hit and the result stored.
func (s *QuantService) History(ctx context.Context, symbol string, limit int) ([]domain.PriceBar, error) {
	ctx, span := s.tracer.Start(ctx, "quant-service.history")
	defer span.End()

	if s.repo != nil {
		bars, err := s.repo.GetBars(ctx, symbol, limit)
		if err != nil {
			log.Printf("bar repository read error for %s: %v", symbol, err)
		} else if len(bars) >= indicator.MinBars {
			return bars, nil
		}
	}

	bars, err := s.provider.FetchHistory(ctx, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", symbol, err)
	}
	if s.repo != nil {
		if err := s.repo.UpsertBars(ctx, bars); err != nil {
			log.Printf("bar repository write error for %s: %v", symbol, err)
		}
	}
	return bars, nil
}

// GenerateSignal produces the full signal report for one symbol.
func (s *QuantService) GenerateSignal(ctx context.Context, symbol string) (domain.SignalReport, error) {
	ctx, span := s.tracer.Start(ctx, "quant-service.generate-signal")
	defer span.End()

	bars, err := s.History(ctx, symbol, historyBars)
	if err != nil {
		return domain.SignalReport{}, err
	}
	return scoring.Report(symbol, bars, s.thresholds), nil
}

// SizePosition answers "how many shares could I buy now": the latest
// quote priced through the risk budget against free cash.
func (s *QuantService) SizePosition(ctx context.Context, symbol string) (int64, float64, error) {
	ctx, span := s.tracer.Start(ctx, "quant-service.size-position")
	defer span.End()

	quotes, err := s.Quotes(ctx, []string{symbol})
	if err != nil {
		return 0, 0, err
	}
	quote, ok := quotes[symbol]
	if !ok || quote.Close <= 0 {
		return 0, 0, fmt.Errorf("no quote for %s", symbol)
	}
	shares := s.riskMgr.PositionSize(symbol, quote.Close, s.riskMgr.Cash())
	return shares, quote.Close, nil
}

// PortfolioStatus marks the book to market with live quotes and
// returns the full status report.
func (s *QuantService) PortfolioStatus(ctx context.Context) (domain.PortfolioStatus, error) {
	ctx, span := s.tracer.Start(ctx, "quant-service.portfolio-status")
	defer span.End()

	positions := s.riskMgr.Positions()
	symbols := make([]string, 0, len(positions))
	for symbol := range positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	prices := make(map[string]float64, len(symbols))
	if len(symbols) > 0 {
		quotes, err := s.Quotes(ctx, symbols)
		if err != nil {
			log.Printf("marking to cost basis, quote fetch failed: %v", err)
		}
		for symbol, q := range quotes {
			prices[symbol] = q.Close
		}
	}

	value := s.riskMgr.Valuation(prices)
	s.riskMgr.RecordEquity(value)
	if s.tradeLog != nil {
		point := domain.EquityPoint{Timestamp: time.Now(), Value: value}
		if err := s.tradeLog.InsertEquityPoint(ctx, point); err != nil {
			log.Printf("equity point not persisted: %v", err)
		}
	}
	return s.riskMgr.PortfolioStatus(value), nil
}

// OpenPosition buys a risk-sized lot of the symbol at the live price.
// The risk manager decides the size and can refuse the open outright.
func (s *QuantService) OpenPosition(ctx context.Context, symbol string) (domain.Position, error) {
	ctx, span := s.tracer.Start(ctx, "quant-service.open-position")
	defer span.End()

	quotes, err := s.Quotes(ctx, []string{symbol})
	if err != nil {
		return domain.Position{}, err
	}
	quote, ok := quotes[symbol]
	if !ok || quote.Close <= 0 {
		return domain.Position{}, fmt.Errorf("no quote for %s", symbol)
	}

	cash := s.riskMgr.Cash()
	shares := s.riskMgr.PositionSize(symbol, quote.Close, cash)
	if shares <= 0 {
		return domain.Position{}, fmt.Errorf("open %s: no size at price %.2f", symbol, quote.Close)
	}

	weight := float64(shares) * quote.Close / cash
	if ok, reason := s.riskMgr.CanOpen(symbol, weight); !ok {
		return domain.Position{}, fmt.Errorf("open %s: %s", symbol, reason)
	}
	if ok, reason := s.riskMgr.AddPosition(symbol, shares, quote.Close, weight); !ok {
		return domain.Position{}, fmt.Errorf("open %s: %s", symbol, reason)
	}

	positions := s.riskMgr.Positions()
	return positions[symbol], nil
}

// ClosePosition sells an open position at the live price, records the
// trade with the risk manager, and persists it when a trade log is
// configured.
func (s *QuantService) ClosePosition(ctx context.Context, symbol string) (domain.TradeRecord, error) {
	ctx, span := s.tracer.Start(ctx, "quant-service.close-position")
	defer span.End()

	quotes, err := s.Quotes(ctx, []string{symbol})
	if err != nil {
		return domain.TradeRecord{}, err
	}
	quote, ok := quotes[symbol]
	if !ok || quote.Close <= 0 {
		return domain.TradeRecord{}, fmt.Errorf("no quote for %s", symbol)
	}

	trade, ok, reason := s.riskMgr.RemovePosition(symbol, quote.Close)
	if !ok {
		return domain.TradeRecord{}, fmt.Errorf("close %s: %s", symbol, reason)
	}
	if s.tradeLog != nil {
		if err := s.tradeLog.InsertTrade(ctx, trade); err != nil {
			log.Printf("trade not persisted: %v", err)
		}
	}
	return trade, nil
}

// Recommend scores the universe and blends the results through the
// context overlay, best final score first.
func (s *QuantService) Recommend(ctx context.Context, method domain.ScoreMethod, topN int) ([]domain.Recommendation, error) {
	ctx, span := s.tracer.Start(ctx, "quant-service.recommend")
	defer span.End()

	if s.overlay == nil {
		return nil, fmt.Errorf("context overlay not configured")
	}

	candidates, err := s.ScoreUniverse(ctx, method)
	if err != nil {
		return nil, err
	}

	quotes, err := s.Quotes(ctx, s.universe)
	if err != nil {
		log.Printf("recommend: quote fetch failed, blending without live quotes: %v", err)
		quotes = map[string]domain.Quote{}
	}

	recommendations := make([]domain.Recommendation, 0, len(candidates))
	for _, candidate := range candidates {
		recommendations = append(recommendations, s.overlay.Blend(candidate, quotes[candidate.Symbol]))
	}
	overlay.Rank(recommendations)

	if topN > 0 && len(recommendations) > topN {
		recommendations = recommendations[:topN]
	}
	return recommendations, nil
}

// Quotes returns snapshots for the requested symbols, serving from the
// Redis cache where fresh and batching the rest into one upstream call.
func (s *QuantService) Quotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "quant-service.quotes")
	defer span.End()

	quotes := make(map[string]domain.Quote, len(symbols))
	var missing []string

	for _, symbol := range symbols {
		if s.redis != nil {
			if cached, err := s.getQuoteCache(ctx, symbol); err != nil {
				log.Printf("redis cache read error: %v", err)
			} else if cached != nil {
				quotes[symbol] = *cached
				continue
			}
		}
		missing = append(missing, symbol)
	}

	if len(missing) > 0 {
		fetched, err := s.provider.FetchQuotes(ctx, missing)
		if err != nil {
			return quotes, err
		}
		for symbol, quote := range fetched {
			quotes[symbol] = quote
			if s.redis != nil {
				if err := s.setQuoteCache(ctx, quote); err != nil {
					log.Printf("redis cache write error for %s: %v", symbol, err)
				}
			}
		}
	}
	return quotes, nil
}

// MAScreenResult is one hit from the moving-average screener.
type MAScreenResult struct {
	Symbol  string  `json:"symbol"`
	Close   float64 `json:"close"`
	MAShort float64 `json:"ma_short"`
	MALong  float64 `json:"ma_long"`
}

// ScreenByMA returns universe symbols whose short MA sits above the
// long MA on the latest bar.
func (s *QuantService) ScreenByMA(ctx context.Context, shortWindow, longWindow int) ([]MAScreenResult, error) {
	ctx, span := s.tracer.Start(ctx, "quant-service.screen-by-ma")
	defer span.End()

	if shortWindow <= 0 || longWindow <= shortWindow {
		return nil, fmt.Errorf("invalid windows %d/%d", shortWindow, longWindow)
	}

	var results []MAScreenResult
	for symbol, bars := range s.fetchUniverseHistory(ctx) {
		closes := domain.Closes(bars)
		maShort, okS := ta.SMA(closes, shortWindow)
		maLong, okL := ta.SMA(closes, longWindow)
		if !okS || !okL || maShort <= maLong {
			continue
		}
		results = append(results, MAScreenResult{
			Symbol:  symbol,
			Close:   closes[len(closes)-1],
			MAShort: maShort,
			MALong:  maLong,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Symbol < results[j].Symbol })
	return results, nil
}

// VolumeScreenResult is one hit from the volume-surge screener.
type VolumeScreenResult struct {
	Symbol      string  `json:"symbol"`
	Close       float64 `json:"close"`
	VolumeRatio float64 `json:"volume_ratio"`
}

// ScreenByVolume returns universe symbols whose latest volume is at
// least multiplier times their recent average.
func (s *QuantService) ScreenByVolume(ctx context.Context, multiplier float64) ([]VolumeScreenResult, error) {
	ctx, span := s.tracer.Start(ctx, "quant-service.screen-by-volume")
	defer span.End()

	if multiplier <= 0 {
		multiplier = 2.0
	}

	var results []VolumeScreenResult
	for symbol, bars := range s.fetchUniverseHistory(ctx) {
		if len(bars) < 6 {
			continue
		}
		volumes := domain.Volumes(bars)
		latest := volumes[len(volumes)-1]
		window := volumes[len(volumes)-6 : len(volumes)-1]
		var mean float64
		for _, v := range window {
			mean += v
		}
		mean /= float64(len(window))
		if mean <= 0 || latest < mean*multiplier {
			continue
		}
		results = append(results, VolumeScreenResult{
			Symbol:      symbol,
			Close:       bars[len(bars)-1].Close,
			VolumeRatio: latest / mean,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].VolumeRatio > results[j].VolumeRatio })
	return results, nil
}

// RefreshQuotes pulls fresh snapshots for the whole universe and warms
// the cache.
func (s *QuantService) RefreshQuotes(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "quant-service.refresh-quotes")
	defer span.End()

	quotes, err := s.provider.FetchQuotes(ctx, s.universe)
	if err != nil {
		return err
	}
	for _, quote := range quotes {
		if s.redis != nil {
			if err := s.setQuoteCache(ctx, quote); err != nil {
				log.Printf("redis cache write error for %s: %v", quote.Symbol, err)
			}
		}
	}
	log.Printf("Refreshed quotes for %d symbols", len(quotes))
	return nil
}

// RefreshHistory re-fetches one symbol's daily bars and stores them.
func (s *QuantService) RefreshHistory(ctx context.Context, symbol string) error {
	ctx, span := s.tracer.Start(ctx, "quant-service.refresh-history")
	defer span.End()

	bars, err := s.provider.FetchHistory(ctx, symbol, historyBars)
	if err != nil {
		return err
	}
	if s.repo != nil {
		if err := s.repo.UpsertBars(ctx, bars); err != nil {
			return fmt.Errorf("upsert bars for %s: %w", symbol, err)
		}
	}
	log.Printf("Refreshed history for %s (%d bars)", symbol, len(bars))
	return nil
}

// ExitAlert flags an open position that has crossed its stop-loss or
// take-profit price.
type ExitAlert struct {
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	TakeProfit bool    `json:"take_profit"`
}

// CheckExits marks every open position against its latest quote and
// returns the ones due to close. It never closes positions itself.
func (s *QuantService) CheckExits(ctx context.Context) ([]ExitAlert, error) {
	ctx, span := s.tracer.Start(ctx, "quant-service.check-exits")
	defer span.End()

	positions := s.riskMgr.Positions()
	if len(positions) == 0 {
		return nil, nil
	}
	symbols := make([]string, 0, len(positions))
	for symbol := range positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	quotes, err := s.Quotes(ctx, symbols)
	if err != nil {
		return nil, err
	}

	var alerts []ExitAlert
	for _, symbol := range symbols {
		quote, ok := quotes[symbol]
		if !ok || quote.Close <= 0 {
			continue
		}
		switch {
		case s.riskMgr.CheckStopLoss(symbol, quote.Close):
			alerts = append(alerts, ExitAlert{Symbol: symbol, Price: quote.Close})
		case s.riskMgr.CheckTakeProfit(symbol, quote.Close):
			alerts = append(alerts, ExitAlert{Symbol: symbol, Price: quote.Close, TakeProfit: true})
		}
	}
	return alerts, nil
}

func (s *QuantService) setQuoteCache(ctx context.Context, quote domain.Quote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, "quote:"+quote.Symbol, data, s.quoteTTL).Err()
}

func (s *QuantService) getQuoteCache(ctx context.Context, symbol string) (*domain.Quote, error) {
	data, err := s.redis.Get(ctx, "quote:"+symbol).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var quote domain.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}
