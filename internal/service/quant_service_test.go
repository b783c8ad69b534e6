package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
	"github.com/UrwLee/ai-stock-trader/internal/risk"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type mockProvider struct {
	mu              sync.Mutex
	quotes          map[string]domain.Quote
	history         map[string][]domain.PriceBar
	quoteErr        error
	historyErr      map[string]error
	fetchQuoteCalls int
}

func (m *mockProvider) FetchQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchQuoteCalls++
	if m.quoteErr != nil {
		return nil, m.quoteErr
	}
	out := make(map[string]domain.Quote)
	for _, s := range symbols {
		if q, ok := m.quotes[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

func (m *mockProvider) FetchHistory(ctx context.Context, symbol string, limit int) ([]domain.PriceBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.historyErr[symbol]; ok {
		return nil, err
	}
	bars, ok := m.history[symbol]
	if !ok {
		return nil, errors.New("no history")
	}
	return bars, nil
}

func (m *mockProvider) ListTradableSymbols(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	symbols := make([]string, 0, len(m.history))
	for s := range m.history {
		symbols = append(symbols, s)
	}
	return symbols, nil
}

type fakeRedis struct {
	mu     sync.Mutex
	data   map[string][]byte
	setErr error
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = append([]byte(nil), v...)
	case string:
		f.data[key] = []byte(v)
	default:
		bytes, _ := json.Marshal(v)
		f.data[key] = bytes
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(string(v), nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func trendingHistory(symbol string, n int, daily float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, n)
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 50.0
	for i := 0; i < n; i++ {
		price *= 1 + daily
		bars[i] = domain.PriceBar{
			Symbol: symbol,
			Date:   base.AddDate(0, 0, i),
			Open:   price, High: price * 1.01, Low: price * 0.99, Close: price,
			Volume: 1_000_000,
		}
	}
	return bars
}

func newTestService(provider *mockProvider, universe []string) *QuantService {
	mgr := risk.NewManager(risk.DefaultConfig(100_000))
	return NewQuantService(testTracer, provider, nil, nil, mgr, Options{Universe: universe})
}

func TestScoreUniverseRanksDescending(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		history: map[string][]domain.PriceBar{
			"600036": trendingHistory("600036", 120, 0.01),
			"000001": trendingHistory("000001", 120, -0.01),
			"600519": trendingHistory("600519", 120, 0.0),
		},
	}
	svc := newTestService(provider, []string{"600036", "000001", "600519"})

	candidates, err := svc.ScoreUniverse(context.Background(), domain.MethodComprehensive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score > candidates[i-1].Score {
			t.Fatalf("candidates not ranked: %v then %v", candidates[i-1], candidates[i])
		}
	}
	if candidates[0].Symbol != "600036" {
		t.Errorf("uptrending symbol not first: %s", candidates[0].Symbol)
	}
}

func TestScoreUniverseSkipsFailures(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		history: map[string][]domain.PriceBar{
			"600036": trendingHistory("600036", 120, 0.01),
			"300750": trendingHistory("300750", 5, 0.01), // too short
		},
		historyErr: map[string]error{"000001": errors.New("upstream down")},
	}
	svc := newTestService(provider, []string{"600036", "000001", "300750"})

	candidates, err := svc.ScoreUniverse(context.Background(), domain.MethodComprehensive)
	if err != nil {
		t.Fatalf("scan failed on a single bad symbol: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Symbol != "600036" {
		t.Fatalf("expected only 600036, got %+v", candidates)
	}
}

func TestScoreUniverseRejectsUnknownMethod(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockProvider{}, []string{"600036"})
	if _, err := svc.ScoreUniverse(context.Background(), domain.ScoreMethod("vibes")); err == nil {
		t.Fatal("unknown method accepted")
	}
}

func TestGenerateSignalOnUptrend(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		history: map[string][]domain.PriceBar{
			"600036": trendingHistory("600036", 120, 0.01),
		},
	}
	svc := newTestService(provider, []string{"600036"})

	report, err := svc.GenerateSignal(context.Background(), "600036")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Symbol != "600036" {
		t.Errorf("symbol = %s", report.Symbol)
	}
	if report.Signal != domain.SignalStrongBuy && report.Signal != domain.SignalBuy {
		t.Errorf("uptrend signal = %s", report.Signal)
	}
	if report.Indicators == nil || !report.Indicators.Ready() {
		t.Error("indicators missing from report")
	}
}

func TestQuotesServedFromCache(t *testing.T) {
	t.Parallel()

	fake := newFakeRedis()
	cached := domain.Quote{Symbol: "600036", Close: 44.55, PrevClose: 44.00}
	data, _ := json.Marshal(cached)
	_ = fake.Set(context.Background(), "quote:600036", data, 0)

	provider := &mockProvider{}
	mgr := risk.NewManager(risk.DefaultConfig(100_000))
	svc := NewQuantService(testTracer, provider, nil, fake, mgr, Options{Universe: []string{"600036"}})

	quotes, err := svc.Quotes(context.Background(), []string{"600036"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quotes["600036"].Close != 44.55 {
		t.Fatalf("cache miss: %+v", quotes)
	}
	if provider.fetchQuoteCalls != 0 {
		t.Fatalf("provider hit despite cache: %d calls", provider.fetchQuoteCalls)
	}
}

func TestQuotesFetchesAndCachesMisses(t *testing.T) {
	t.Parallel()

	fake := newFakeRedis()
	provider := &mockProvider{
		quotes: map[string]domain.Quote{
			"600036": {Symbol: "600036", Close: 44.55},
		},
	}
	mgr := risk.NewManager(risk.DefaultConfig(100_000))
	svc := NewQuantService(testTracer, provider, nil, fake, mgr, Options{Universe: []string{"600036"}})

	quotes, err := svc.Quotes(context.Background(), []string{"600036"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quotes["600036"].Close != 44.55 {
		t.Fatalf("quote missing: %+v", quotes)
	}
	if provider.fetchQuoteCalls != 1 {
		t.Fatalf("expected one upstream call, got %d", provider.fetchQuoteCalls)
	}
	if _, ok := fake.data["quote:600036"]; !ok {
		t.Fatal("quote not cached")
	}
}

func TestSizePosition(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		quotes: map[string]domain.Quote{
			"600036": {Symbol: "600036", Close: 50},
		},
	}
	svc := newTestService(provider, []string{"600036"})

	shares, price, err := svc.SizePosition(context.Background(), "600036")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 50 {
		t.Errorf("price = %.2f", price)
	}
	// cash 100000, risk 2% = 2000, risk/share 5 -> 400 raw, lot 100 -> 400
	if shares != 400 {
		t.Errorf("shares = %d, want 400", shares)
	}

	if _, _, err := svc.SizePosition(context.Background(), "999999"); err == nil {
		t.Error("sizing succeeded without a quote")
	}
}

func TestPortfolioStatusMarksToMarket(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		quotes: map[string]domain.Quote{
			"600036": {Symbol: "600036", Close: 60},
		},
	}
	svc := newTestService(provider, []string{"600036"})
	svc.riskMgr.AddPosition("600036", 100, 50, 0.05)

	status, err := svc.PortfolioStatus(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// cash 95000 + 100 shares at live 60
	if status.CurrentValue != 95_000+6000 {
		t.Errorf("current value = %.2f, want 101000", status.CurrentValue)
	}
	if len(status.Positions) != 1 {
		t.Errorf("positions = %d", len(status.Positions))
	}
}

func TestScreenByMA(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		history: map[string][]domain.PriceBar{
			"600036": trendingHistory("600036", 120, 0.01),  // rising, short MA above long
			"000001": trendingHistory("000001", 120, -0.01), // falling
		},
	}
	svc := newTestService(provider, []string{"600036", "000001"})

	results, err := svc.ScreenByMA(context.Background(), 5, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Symbol != "600036" {
		t.Fatalf("expected only 600036, got %+v", results)
	}
	if results[0].MAShort <= results[0].MALong {
		t.Error("screener returned a symbol failing its own predicate")
	}

	if _, err := svc.ScreenByMA(context.Background(), 20, 5); err == nil {
		t.Error("inverted windows accepted")
	}
}

func TestScreenByVolume(t *testing.T) {
	t.Parallel()

	surging := trendingHistory("600519", 120, 0)
	surging[len(surging)-1].Volume = 5_000_000

	provider := &mockProvider{
		history: map[string][]domain.PriceBar{
			"600036": trendingHistory("600036", 120, 0),
			"600519": surging,
		},
	}
	svc := newTestService(provider, []string{"600036", "600519"})

	results, err := svc.ScreenByVolume(context.Background(), 2.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Symbol != "600519" {
		t.Fatalf("expected only 600519, got %+v", results)
	}
	if results[0].VolumeRatio != 5 {
		t.Errorf("volume ratio = %.2f, want 5", results[0].VolumeRatio)
	}
}

type fakeTradeLog struct {
	mu     sync.Mutex
	trades []domain.TradeRecord
	equity []domain.EquityPoint
}

func (f *fakeTradeLog) InsertTrade(ctx context.Context, trade domain.TradeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trades = append(f.trades, trade)
	return nil
}

func (f *fakeTradeLog) InsertEquityPoint(ctx context.Context, point domain.EquityPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.equity = append(f.equity, point)
	return nil
}

func TestOpenAndClosePosition(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		quotes: map[string]domain.Quote{
			"600036": {Symbol: "600036", Close: 50},
		},
	}
	tradeLog := &fakeTradeLog{}
	mgr := risk.NewManager(risk.DefaultConfig(100_000))
	svc := NewQuantService(testTracer, provider, nil, nil, mgr, Options{
		Universe: []string{"600036"},
		TradeLog: tradeLog,
	})

	position, err := svc.OpenPosition(context.Background(), "600036")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if position.Symbol != "600036" || position.Shares <= 0 {
		t.Fatalf("unexpected position %+v", position)
	}
	if position.Shares%100 != 0 {
		t.Errorf("shares %d not lot aligned", position.Shares)
	}

	trade, err := svc.ClosePosition(context.Background(), "600036")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.Symbol != "600036" || trade.ProfitPct != 0 {
		t.Fatalf("unexpected trade %+v", trade)
	}
	if len(tradeLog.trades) != 1 {
		t.Fatalf("expected trade to be persisted, got %d", len(tradeLog.trades))
	}
	if mgr.Cash() != 100_000 {
		t.Errorf("cash = %.2f, want 100000 after flat round trip", mgr.Cash())
	}
}

func TestOpenPositionWithoutQuote(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{quotes: map[string]domain.Quote{}}
	svc := newTestService(provider, []string{"600036"})

	if _, err := svc.OpenPosition(context.Background(), "600036"); err == nil {
		t.Fatal("expected error without a quote")
	}
}

func TestClosePositionNotHeld(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		quotes: map[string]domain.Quote{
			"600036": {Symbol: "600036", Close: 50},
		},
	}
	svc := newTestService(provider, []string{"600036"})

	if _, err := svc.ClosePosition(context.Background(), "600036"); err == nil {
		t.Fatal("expected error closing an unheld symbol")
	}
}

func TestPortfolioStatusPersistsEquity(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{quotes: map[string]domain.Quote{}}
	tradeLog := &fakeTradeLog{}
	mgr := risk.NewManager(risk.DefaultConfig(100_000))
	svc := NewQuantService(testTracer, provider, nil, nil, mgr, Options{
		Universe: []string{"600036"},
		TradeLog: tradeLog,
	})

	if _, err := svc.PortfolioStatus(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tradeLog.equity) != 1 {
		t.Fatalf("expected 1 equity point, got %d", len(tradeLog.equity))
	}
	if tradeLog.equity[0].Value != 100_000 {
		t.Errorf("equity value = %.2f, want 100000", tradeLog.equity[0].Value)
	}
}
