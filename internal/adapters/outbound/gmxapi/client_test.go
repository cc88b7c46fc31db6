package gmxapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		BaseURL:        baseURL,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	return client
}

func TestClient_TickerPrices(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prices/tickers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"tokenAddress": "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", "tokenSymbol": "ETH", "minPrice": "1990000000000", "maxPrice": "2010000000000"},
			{"tokenAddress": "0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f", "tokenSymbol": "BTC", "minPrice": "400000000000000", "maxPrice": "400000000000002"}
		]`))
	})

	client := newTestClient(t, server.URL)
	prices, err := client.TickerPrices(context.Background())
	if err != nil {
		t.Fatalf("TickerPrices() failed: %v", err)
	}

	if len(prices) != 2 {
		t.Fatalf("got %d prices, want 2", len(prices))
	}

	weth := common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	eth, ok := prices[weth]
	if !ok {
		t.Fatal("missing ETH ticker")
	}
	if eth.TokenSymbol != "ETH" {
		t.Errorf("symbol = %q, want ETH", eth.TokenSymbol)
	}
	if eth.Min.String() != "1990000000000" {
		t.Errorf("min = %s, want 1990000000000", eth.Min)
	}

	// WETH has 18 decimals; tickers are scaled by 10^(30-18), so the
	// midpoint should land at 2000 USD.
	if mid := eth.Mid(18); mid < 1999.99 || mid > 2000.01 {
		t.Errorf("mid price = %f, want ~2000", mid)
	}
}

func TestClient_TickerPrices_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	})

	client := newTestClient(t, server.URL)
	if _, err := client.TickerPrices(context.Background()); err != nil {
		t.Fatalf("TickerPrices() failed after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("request count = %d, want 2 (one retry)", calls.Load())
	}
}

func TestClient_TickerPrices_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	client := newTestClient(t, server.URL)
	if _, err := client.TickerPrices(context.Background()); err == nil {
		t.Fatal("expected error for HTTP 404")
	}
	if calls.Load() != 1 {
		t.Errorf("request count = %d, want 1 (no retries)", calls.Load())
	}
}

func TestClient_TickerPrices_MalformedPrice(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"tokenAddress": "0x01", "tokenSymbol": "BAD", "minPrice": "not-a-number", "maxPrice": "1"}]`))
	})

	client := newTestClient(t, server.URL)
	if _, err := client.TickerPrices(context.Background()); err == nil {
		t.Fatal("expected error for malformed price payload")
	}
}

func TestClient_TickerPrices_MalformedJSON(t *testing.T) {
	var calls atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"not": "an array"`))
	})

	client := newTestClient(t, server.URL)
	if _, err := client.TickerPrices(context.Background()); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if calls.Load() != 1 {
		t.Errorf("request count = %d, want 1 (parse errors are not retried)", calls.Load())
	}
}
