package sim

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"dca-core/pkg/exchange"
)

func TestFetchCandlesShape(t *testing.T) {
	e := New(WithSeed(42), WithStartPrice(1_000_000))

	candles, err := e.FetchCandles(context.Background(), "BTC-CLP", "1h", 50)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(candles) != 50 {
		t.Fatalf("len = %d, want 50", len(candles))
	}

	for i := 1; i < len(candles); i++ {
		if candles[i].Timestamp <= candles[i-1].Timestamp {
			t.Fatalf("timestamps not increasing at %d", i)
		}
		if !candles[i].Open.Equal(candles[i-1].Close) {
			t.Fatalf("bar %d does not open at the previous close", i)
		}
	}
	for i, c := range candles {
		if c.High.LessThan(c.Low) {
			t.Fatalf("bar %d: high %s below low %s", i, c.High, c.Low)
		}
		if c.Close.LessThanOrEqual(decimal.Zero) {
			t.Fatalf("bar %d: non-positive close", i)
		}
	}
}

func TestFetchCandlesDeterministicWithSeed(t *testing.T) {
	a, _ := New(WithSeed(7)).FetchCandles(context.Background(), "BTC-CLP", "1h", 20)
	b, _ := New(WithSeed(7)).FetchCandles(context.Background(), "BTC-CLP", "1h", 20)
	for i := range a {
		if !a[i].Close.Equal(b[i].Close) {
			t.Fatalf("seeded runs diverged at bar %d: %s vs %s", i, a[i].Close, b[i].Close)
		}
	}
}

func TestFetchBalances(t *testing.T) {
	e := New(WithBalances([]exchange.Balance{
		{Currency: "CLP", Available: decimal.NewFromInt(50_000), Total: decimal.NewFromInt(50_000)},
	}))
	balances, err := e.FetchBalances(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(balances) != 1 || balances[0].Currency != "CLP" {
		t.Fatalf("unexpected balances: %+v", balances)
	}
}

func TestSubmitOrderFillsAtWalkPrice(t *testing.T) {
	e := New(WithSeed(1))

	order, err := e.SubmitOrder(context.Background(), exchange.OrderRequest{
		Symbol: "BTC-CLP",
		Side:   exchange.SideBuy,
		Type:   exchange.OrderTypeMarket,
		Amount: decimal.NewFromFloat(0.001),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if order.Status != "traded" {
		t.Fatalf("status = %q, want traded", order.Status)
	}
	if !order.Price.IsPositive() {
		t.Fatalf("price = %s, want > 0", order.Price)
	}

	second, _ := e.SubmitOrder(context.Background(), exchange.OrderRequest{
		Symbol: "BTC-CLP",
		Side:   exchange.SideSell,
		Type:   exchange.OrderTypeMarket,
		Amount: decimal.NewFromFloat(0.001),
	})
	if second.ID == order.ID {
		t.Fatal("order ids must be unique")
	}
}
