package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const sampleQuoteBody = `var hq_str_sh600036="招商银行,44.10,44.00,44.55,44.80,43.90,44.54,44.55,61784500,2742516354.00,2300,44.54,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,2025-06-20,15:00:00,00";
var hq_str_sz000001="平安银行,11.50,11.48,11.62,11.70,11.45,11.61,11.62,98214300,1139482045.00,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,2025-06-20,15:00:00,00";
var hq_str_sz999999="";`

func TestParseQuoteResponse(t *testing.T) {
	quotes := parseQuoteResponse(sampleQuoteBody)
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}

	q, ok := quotes["600036"]
	if !ok {
		t.Fatal("600036 missing")
	}
	if q.Name != "招商银行" {
		t.Errorf("name = %q", q.Name)
	}
	if q.Open != 44.10 || q.PrevClose != 44.00 || q.Close != 44.55 {
		t.Errorf("prices = %+v", q)
	}
	if q.High != 44.80 || q.Low != 43.90 {
		t.Errorf("range = %+v", q)
	}
	if q.Volume != 61784500 {
		t.Errorf("volume = %f", q.Volume)
	}
	want := time.Date(2025, 6, 20, 15, 0, 0, 0, time.UTC)
	if !q.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", q.Timestamp, want)
	}

	if _, ok := quotes["999999"]; ok {
		t.Error("empty payload parsed as a quote")
	}
}

func TestParseQuoteResponseChangePct(t *testing.T) {
	quotes := parseQuoteResponse(sampleQuoteBody)
	q := quotes["600036"]
	want := (44.55 - 44.00) / 44.00 * 100
	if got := q.ChangePct(); got < want-1e-9 || got > want+1e-9 {
		t.Errorf("change pct = %.4f, want %.4f", got, want)
	}
}

func TestExchangePrefix(t *testing.T) {
	tests := map[string]string{
		"600036": "sh600036",
		"601398": "sh601398",
		"000001": "sz000001",
		"300750": "sz300750",
	}
	for symbol, want := range tests {
		if got := exchangePrefix(symbol); got != want {
			t.Errorf("exchangePrefix(%s) = %s, want %s", symbol, got, want)
		}
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestSinaProviderFetchQuotes(t *testing.T) {
	t.Parallel()

	provider := NewSinaProvider(trace.NewNoopTracerProvider().Tracer("test"))
	provider.quoteURL = "http://example"
	provider.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if !strings.Contains(req.URL.RawQuery+req.URL.Path, "sh600036,sz000001") {
				t.Fatalf("unexpected URL: %s", req.URL)
			}
			if req.Header.Get("Referer") == "" {
				t.Fatal("missing referer header")
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewReader([]byte(sampleQuoteBody))),
				Header:     make(http.Header),
			}, nil
		}),
	}
	provider.limiter = NewRateLimiter(10, time.Millisecond)

	quotes, err := provider.FetchQuotes(context.Background(), []string{"600036", "000001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
}

func TestSinaProviderFetchHistory(t *testing.T) {
	t.Parallel()

	klineBody := `[{"day":"2025-06-19","open":"44.00","high":"44.50","low":"43.80","close":"44.10","volume":"55000000"},
{"day":"2025-06-20","open":"44.10","high":"44.80","low":"43.90","close":"44.55","volume":"61784500"}]`

	provider := NewSinaProvider(trace.NewNoopTracerProvider().Tracer("test"))
	provider.klineURL = "http://example"
	provider.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if !strings.Contains(req.URL.RawQuery, "symbol=sh600036") {
				t.Fatalf("unexpected query: %s", req.URL.RawQuery)
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewReader([]byte(klineBody))),
				Header:     make(http.Header),
			}, nil
		}),
	}
	provider.limiter = NewRateLimiter(10, time.Millisecond)

	bars, err := provider.FetchHistory(context.Background(), "600036", 120)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Date.After(bars[1].Date) {
		t.Error("bars not in chronological order")
	}
	if bars[1].Close != 44.55 || bars[1].Volume != 61784500 {
		t.Errorf("unexpected last bar: %+v", bars[1])
	}
}

func TestSinaProviderErrorStatus(t *testing.T) {
	t.Parallel()

	provider := NewSinaProvider(trace.NewNoopTracerProvider().Tracer("test"))
	provider.quoteURL = "http://example"
	provider.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusForbidden,
				Body:       io.NopCloser(bytes.NewReader([]byte("denied"))),
				Header:     make(http.Header),
			}, nil
		}),
	}
	provider.limiter = NewRateLimiter(10, time.Millisecond)

	if _, err := provider.FetchQuotes(context.Background(), []string{"600036"}); err == nil {
		t.Fatal("expected an error on non-200 status")
	}
}

func TestListTradableSymbols(t *testing.T) {
	provider := NewSinaProvider(trace.NewNoopTracerProvider().Tracer("test"))
	symbols, err := provider.ListTradableSymbols(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(symbols) == 0 {
		t.Fatal("empty universe")
	}
}
