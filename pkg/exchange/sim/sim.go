// Package sim provides a synthetic in-memory exchange for local development
// and tests. Prices follow a simple random walk around a starting price.
package sim

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dca-core/pkg/exchange"
)

// Exchange implements exchange.Client with generated market data.
type Exchange struct {
	mu         sync.Mutex
	rng        *rand.Rand
	price      float64
	stepPct    float64
	balances   []exchange.Balance
	nextOrder  int64
	candleSpan int64 // milliseconds per bar
}

// Option mutates a new Exchange.
type Option func(*Exchange)

// WithSeed makes the walk deterministic.
func WithSeed(seed int64) Option {
	return func(e *Exchange) { e.rng = rand.New(rand.NewSource(seed)) }
}

// WithStartPrice sets the initial price of the walk.
func WithStartPrice(p float64) Option {
	return func(e *Exchange) { e.price = p }
}

// WithBalances sets the balances FetchBalances reports.
func WithBalances(balances []exchange.Balance) Option {
	return func(e *Exchange) { e.balances = balances }
}

// New creates a simulated exchange. Defaults: price 45,000,000 (a plausible
// BTC-CLP level), 0.4% max step per bar, hourly bars.
func New(opts ...Option) *Exchange {
	e := &Exchange{
		rng:        rand.New(rand.NewSource(1)),
		price:      45_000_000,
		stepPct:    0.004,
		nextOrder:  1,
		candleSpan: int64(3600 * 1000),
		balances: []exchange.Balance{
			{Currency: "CLP", Available: decimal.NewFromInt(20_000), Total: decimal.NewFromInt(20_000)},
			{Currency: "BTC", Available: decimal.Zero, Total: decimal.Zero},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FetchCandles synthesizes a fresh random-walk series ending at the current
// walk position. Each call advances the walk by one step.
func (e *Exchange) FetchCandles(_ context.Context, _ string, _ string, limit int) ([]exchange.Candle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.price *= 1 + (e.rng.Float64()*2-1)*e.stepPct
	end := e.price

	// Walk backwards from the current price so the series always ends at it.
	prices := make([]float64, limit)
	p := end
	for i := limit - 1; i >= 0; i-- {
		prices[i] = p
		p /= 1 + (e.rng.Float64()*2-1)*e.stepPct
	}

	now := nowMillis()
	candles := make([]exchange.Candle, limit)
	for i, px := range prices {
		open := px
		if i > 0 {
			open = prices[i-1]
		}
		high, low := open, px
		if px > high {
			high = px
		}
		if open < low {
			low = open
		}
		candles[i] = exchange.Candle{
			Timestamp: now - int64(limit-1-i)*e.candleSpan,
			Open:      decimal.NewFromFloat(open),
			High:      decimal.NewFromFloat(high),
			Low:       decimal.NewFromFloat(low),
			Close:     decimal.NewFromFloat(px),
			Volume:    decimal.NewFromFloat(e.rng.Float64() * 10),
		}
	}
	return candles, nil
}

// FetchBalances returns the configured static balances.
func (e *Exchange) FetchBalances(_ context.Context) ([]exchange.Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]exchange.Balance, len(e.balances))
	copy(out, e.balances)
	return out, nil
}

// SubmitOrder acknowledges every order as immediately filled at the current
// walk price.
func (e *Exchange) SubmitOrder(_ context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextOrder
	e.nextOrder++
	price := req.Price
	if req.Type == exchange.OrderTypeMarket {
		price = decimal.NewFromFloat(e.price)
	}
	return &exchange.Order{
		ID:     strconv.FormatInt(id, 10),
		Symbol: req.Symbol,
		Side:   req.Side,
		Amount: req.Amount,
		Price:  price,
		Status: "traded",
	}, nil
}

func (e *Exchange) Close() error { return nil }

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
