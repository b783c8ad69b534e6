package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/UrwLee/ai-stock-trader/internal/domain"
)

const (
	sinaQuoteBaseURL = "https://hq.sinajs.cn"
	sinaKlineBaseURL = "https://quotes.sina.cn/cn/api/json_v2.php"
)

// SinaProvider fetches A-share quotes and daily bars from the Sina
// finance endpoints.
type SinaProvider struct {
	client   *http.Client
	quoteURL string
	klineURL string
	tracer   trace.Tracer
	limiter  *RateLimiter
}

// NewSinaProvider creates a provider rate limited to 30 requests per
// minute (one token every 2 seconds).
func NewSinaProvider(tracer trace.Tracer) *SinaProvider {
	return &SinaProvider{
		client:   &http.Client{Timeout: 10 * time.Second},
		quoteURL: sinaQuoteBaseURL,
		klineURL: sinaKlineBaseURL,
		tracer:   tracer,
		limiter:  NewRateLimiter(30, 2*time.Second),
	}
}

// exchangePrefix maps a bare symbol to its exchange-qualified form.
// Codes starting with 6 trade in Shanghai, the rest in Shenzhen.
func exchangePrefix(symbol string) string {
	if strings.HasPrefix(symbol, "6") {
		return "sh" + symbol
	}
	return "sz" + symbol
}

// FetchQuotes fetches real-time snapshots for all symbols in one call.
// Symbols the endpoint does not recognize are silently absent from the
// result.
func (p *SinaProvider) FetchQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	_, span := p.tracer.Start(ctx, "sina.fetch-quotes")
	defer span.End()

	if len(symbols) == 0 {
		return map[string]domain.Quote{}, nil
	}

	qualified := make([]string, len(symbols))
	for i, s := range symbols {
		qualified[i] = exchangePrefix(s)
	}
	url := fmt.Sprintf("%s/list=%s", p.quoteURL, strings.Join(qualified, ","))

	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch quotes: %w", err)
	}

	return parseQuoteResponse(string(body)), nil
}

// FetchHistory fetches up to limit daily bars for one symbol, oldest
// first.
func (p *SinaProvider) FetchHistory(ctx context.Context, symbol string, limit int) ([]domain.PriceBar, error) {
	_, span := p.tracer.Start(ctx, "sina.fetch-history")
	defer span.End()

	if limit <= 0 {
		limit = 120
	}
	url := fmt.Sprintf("%s/CN_MarketDataService.getKLineData?symbol=%s&scale=240&ma=no&datalen=%d",
		p.klineURL, exchangePrefix(symbol), limit)

	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", symbol, err)
	}

	var raw []struct {
		Day    string `json:"day"`
		Open   string `json:"open"`
		High   string `json:"high"`
		Low    string `json:"low"`
		Close  string `json:"close"`
		Volume string `json:"volume"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse history for %s: %w", symbol, err)
	}

	bars := make([]domain.PriceBar, 0, len(raw))
	for _, row := range raw {
		date, err := time.Parse("2006-01-02", row.Day)
		if err != nil {
			continue
		}
		bars = append(bars, domain.PriceBar{
			Symbol: symbol,
			Date:   date,
			Open:   parseFloat(row.Open),
			High:   parseFloat(row.High),
			Low:    parseFloat(row.Low),
			Close:  parseFloat(row.Close),
			Volume: parseFloat(row.Volume),
		})
	}
	return bars, nil
}

// ListTradableSymbols returns the default scoring universe. The free
// endpoint has no listing API, so the universe is static.
func (p *SinaProvider) ListTradableSymbols(ctx context.Context) ([]string, error) {
	out := make([]string, len(domain.DefaultUniverse))
	copy(out, domain.DefaultUniverse)
	return out, nil
}

func (p *SinaProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	// the quote endpoint rejects requests without a finance referer
	req.Header.Set("Referer", "https://finance.sina.com.cn")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sina API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// parseQuoteResponse parses the hq_str line format. One line per
// symbol:
//
//	var hq_str_sh600036="name,open,prevClose,price,high,low,...,volume,amount,...,date,time,...";
//
// Malformed lines are skipped, not fatal: one bad symbol must not sink
// the batch.
func parseQuoteResponse(body string) map[string]domain.Quote {
	quotes := make(map[string]domain.Quote)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		start := strings.Index(line, "hq_str_")
		eq := strings.Index(line, "=")
		quoteStart := strings.Index(line, `"`)
		if start < 0 || quoteStart < 0 || eq < start+len("hq_str_") {
			continue
		}
		key := line[start+len("hq_str_") : eq]
		symbol := strings.TrimLeft(key, "shz")
		payload := line[quoteStart+1:]
		if end := strings.Index(payload, `"`); end >= 0 {
			payload = payload[:end]
		}
		fields := strings.Split(payload, ",")
		if len(fields) < 10 {
			continue
		}

		q := domain.Quote{
			Symbol:    symbol,
			Name:      fields[0],
			Open:      parseFloat(fields[1]),
			PrevClose: parseFloat(fields[2]),
			Close:     parseFloat(fields[3]),
			High:      parseFloat(fields[4]),
			Low:       parseFloat(fields[5]),
			Volume:    parseFloat(fields[8]),
			Amount:    parseFloat(fields[9]),
		}
		if len(fields) > 31 {
			if ts, err := time.Parse("2006-01-02 15:04:05", fields[30]+" "+fields[31]); err == nil {
				q.Timestamp = ts
			}
		}
		if q.Timestamp.IsZero() {
			q.Timestamp = time.Now()
		}
		quotes[symbol] = q
	}
	return quotes
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
