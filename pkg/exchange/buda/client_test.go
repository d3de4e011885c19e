package buda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"dca-core/pkg/exchange"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New("key", "secret")
	c.baseURL = srv.URL
	c.nonce = func() string { return "1" }
	return c
}

func TestFetchCandles(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/btc-clp/ohlc" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("period") != "60" {
			t.Errorf("period = %s", r.URL.Query().Get("period"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candles":[
			{"timestamp":1700000000000,"open":"100.5","high":"110","low":"99","close":"105.25","volume":"3.5"},
			{"timestamp":1700003600000,"open":"105.25","high":"108","low":"104","close":"107","volume":"1.2"}
		]}`))
	})

	candles, err := c.FetchCandles(context.Background(), "BTC-CLP", "1h", 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("len = %d, want 2", len(candles))
	}
	if !candles[0].Close.Equal(decimal.NewFromFloat(105.25)) {
		t.Fatalf("close = %s, want 105.25", candles[0].Close)
	}
	if candles[1].Timestamp != 1700003600000 {
		t.Fatalf("timestamp = %d", candles[1].Timestamp)
	}
}

func TestFetchBalances(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-SBTC-APIKEY") != "key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("X-SBTC-SIGNATURE") == "" {
			t.Errorf("missing signature header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"balances":[
			{"id":"btc","amount":["1.5","BTC"],"available_amount":["1.0","BTC"],"frozen_amount":["0.5","BTC"]},
			{"id":"clp","amount":["20000","CLP"],"available_amount":["20000","CLP"],"frozen_amount":["0","CLP"]}
		]}`))
	})

	balances, err := c.FetchBalances(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("len = %d, want 2", len(balances))
	}
	if balances[0].Currency != "BTC" || !balances[0].Available.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unexpected balance: %+v", balances[0])
	}
}

func TestFetchBalancesRequiresCredentials(t *testing.T) {
	c := New("", "")
	if _, err := c.FetchBalances(context.Background()); err == nil {
		t.Fatal("expected credentials error")
	}
}

func TestSubmitOrder(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/markets/btc-clp/orders" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["type"] != "Bid" || body["price_type"] != "market" {
			t.Errorf("unexpected body: %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"order":{"id":12345,"state":"received","amount":["0.001","BTC"]}}`))
	})

	order, err := c.SubmitOrder(context.Background(), exchange.OrderRequest{
		Symbol: "BTC-CLP",
		Side:   exchange.SideBuy,
		Type:   exchange.OrderTypeMarket,
		Amount: decimal.NewFromFloat(0.001),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if order.ID != "12345" || order.Status != "received" {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not authorized"}`, http.StatusUnauthorized)
	})

	if _, err := c.FetchBalances(context.Background()); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestTimeframeMinutes(t *testing.T) {
	cases := map[string]int{"1m": 1, "5m": 5, "15m": 15, "1h": 60, "4h": 240, "1d": 1440, "weird": 60}
	for tf, want := range cases {
		if got := timeframeMinutes(tf); got != want {
			t.Fatalf("timeframeMinutes(%q) = %d, want %d", tf, got, want)
		}
	}
}
