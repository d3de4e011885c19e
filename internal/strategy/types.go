// Package strategy defines the signal contract strategies must satisfy and
// the concrete variants shipped with the engine.
package strategy

import (
	"github.com/shopspring/decimal"

	"dca-core/pkg/exchange"
)

// Kind is the direction of a trade signal.
type Kind string

const (
	Buy  Kind = "buy"
	Sell Kind = "sell"
	Hold Kind = "hold"
)

// TradeSignal is a decision emitted by a strategy for one loop iteration.
// AmountPct is the suggested trade size as a fraction of the available
// balance (quote for buys, base for sells), already clamped by the strategy.
type TradeSignal struct {
	Kind       Kind            `json:"kind"`
	Confidence float64         `json:"confidence"`
	Reason     string          `json:"reason"`
	AmountPct  decimal.Decimal `json:"amount_pct"`
	Price      decimal.Decimal `json:"price,omitempty"`
}

// Portfolio is the balance view a strategy decides against.
type Portfolio struct {
	QuoteBalance decimal.Decimal
	BaseBalance  decimal.Decimal
	AvgBuyPrice  decimal.Decimal
}

// Indicators carries precomputed indicator values for one iteration.
// HasRSI is false when the candle series was too short.
type Indicators struct {
	RSI    float64
	HasRSI bool
}

// Strategy produces a TradeSignal from market and portfolio state. The only
// internal state a strategy may hold is buy-cadence tracking, mutated via
// RecordBuy after the engine actually executes a buy.
type Strategy interface {
	ID() string
	Name() string
	Description() string
	RiskLevel() string
	Analyze(candles []exchange.Candle, portfolio Portfolio, ind Indicators) TradeSignal
	RecordBuy()
}

// Info describes a registered strategy for API listings.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	RiskLevel   string `json:"risk_level"`
}
