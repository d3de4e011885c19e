package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"dca-core/pkg/exchange"
)

// RSISwingParams tunes the RSI swing variant.
type RSISwingParams struct {
	Oversold      float64 // buy below this RSI
	Overbought    float64 // sell above this RSI
	BuyAmountPct  float64 // buy size, fraction of quote balance
	SellAmountPct float64 // sell size, fraction of the base position
	MaxAmountPct  float64 // hard clamp on the buy size
}

// DefaultRSISwingParams returns the standard tuning.
func DefaultRSISwingParams() RSISwingParams {
	return RSISwingParams{
		Oversold:      30,
		Overbought:    70,
		BuyAmountPct:  0.10,
		SellAmountPct: 0.50,
		MaxAmountPct:  0.25,
	}
}

// RSISwing buys oversold and sells overbought. Its sells go through the risk
// gate, which refuses to realize a loss, so an overbought signal below the
// average buy price is rejected downstream rather than here.
type RSISwing struct {
	params RSISwingParams
}

// NewRSISwing creates the strategy. Zero-valued params fields fall back to
// the defaults.
func NewRSISwing(params RSISwingParams) *RSISwing {
	def := DefaultRSISwingParams()
	if params.Oversold == 0 {
		params.Oversold = def.Oversold
	}
	if params.Overbought == 0 {
		params.Overbought = def.Overbought
	}
	if params.BuyAmountPct == 0 {
		params.BuyAmountPct = def.BuyAmountPct
	}
	if params.SellAmountPct == 0 {
		params.SellAmountPct = def.SellAmountPct
	}
	if params.MaxAmountPct == 0 {
		params.MaxAmountPct = def.MaxAmountPct
	}
	return &RSISwing{params: params}
}

func (s *RSISwing) ID() string   { return "rsi_swing" }
func (s *RSISwing) Name() string { return "RSI Swing" }

func (s *RSISwing) Description() string {
	return "Buys oversold and takes profit when overbought"
}

func (s *RSISwing) RiskLevel() string { return "medium" }

func (s *RSISwing) Analyze(_ []exchange.Candle, portfolio Portfolio, ind Indicators) TradeSignal {
	if !ind.HasRSI {
		return TradeSignal{
			Kind:       Hold,
			Confidence: 0.5,
			Reason:     "insufficient data for RSI",
		}
	}

	if ind.RSI < s.params.Oversold {
		pct := s.params.BuyAmountPct
		if pct > s.params.MaxAmountPct {
			pct = s.params.MaxAmountPct
		}
		return TradeSignal{
			Kind:       Buy,
			Confidence: 0.75,
			Reason:     fmt.Sprintf("RSI oversold: %.2f < %.2f", ind.RSI, s.params.Oversold),
			AmountPct:  decimal.NewFromFloat(pct),
		}
	}

	if ind.RSI > s.params.Overbought {
		if portfolio.BaseBalance.LessThanOrEqual(decimal.Zero) {
			return TradeSignal{
				Kind:       Hold,
				Confidence: 0.6,
				Reason:     fmt.Sprintf("RSI overbought: %.2f but no position to sell", ind.RSI),
			}
		}
		return TradeSignal{
			Kind:       Sell,
			Confidence: 0.75,
			Reason:     fmt.Sprintf("RSI overbought: %.2f > %.2f", ind.RSI, s.params.Overbought),
			AmountPct:  decimal.NewFromFloat(s.params.SellAmountPct),
		}
	}

	return TradeSignal{
		Kind:       Hold,
		Confidence: 0.6,
		Reason:     fmt.Sprintf("RSI neutral: %.2f", ind.RSI),
	}
}

// RecordBuy is a no-op; this variant keeps no cadence state.
func (s *RSISwing) RecordBuy() {}
