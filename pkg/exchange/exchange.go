package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType distinguishes market from limit orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// Candle is a single OHLCV bar. Timestamp is unix milliseconds.
type Candle struct {
	Timestamp int64           `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Balance is the per-currency account balance reported by an exchange.
type Balance struct {
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Frozen    decimal.Decimal `json:"frozen"`
	Total     decimal.Decimal `json:"total"`
}

// OrderRequest describes an order to submit. Price is ignored for market orders.
type OrderRequest struct {
	Symbol string
	Side   Side
	Type   OrderType
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// Order is the exchange's acknowledgment of a submitted order.
type Order struct {
	ID     string          `json:"id"`
	Symbol string          `json:"symbol"`
	Side   Side            `json:"side"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
	Status string          `json:"status"`
}

// Client is the market-data and order-submission contract the engine
// depends on. Implementations own their transport and timeout policy.
type Client interface {
	// FetchCandles returns up to limit bars for symbol/timeframe, oldest first.
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	// FetchBalances returns all non-zero account balances.
	FetchBalances(ctx context.Context) ([]Balance, error)
	// SubmitOrder places an order and returns the exchange acknowledgment.
	SubmitOrder(ctx context.Context, req OrderRequest) (*Order, error)
	Close() error
}

// Closes extracts closing prices as float64 for indicator math.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i], _ = c.Close.Float64()
	}
	return out
}

// LastClose returns the most recent closing price, or zero for an empty series.
func LastClose(candles []Candle) decimal.Decimal {
	if len(candles) == 0 {
		return decimal.Zero
	}
	return candles[len(candles)-1].Close
}
