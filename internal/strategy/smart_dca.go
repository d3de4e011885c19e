package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"dca-core/pkg/exchange"
)

// SmartDCAParams tunes the smart dollar-cost-averaging variant.
type SmartDCAParams struct {
	Oversold            float64       // RSI floor that accelerates buying
	Overbought          float64       // RSI ceiling that blocks buying
	BaseAmountPct       float64       // regular DCA buy size, fraction of quote balance
	AccelerateAmountPct float64       // extra size added when oversold
	MaxAmountPct        float64       // hard clamp on any suggested size
	Interval            time.Duration // regular DCA cadence
}

// DefaultSmartDCAParams returns the standard tuning.
func DefaultSmartDCAParams() SmartDCAParams {
	return SmartDCAParams{
		Oversold:            30,
		Overbought:          70,
		BaseAmountPct:       0.10,
		AccelerateAmountPct: 0.15,
		MaxAmountPct:        0.25,
		Interval:            72 * time.Hour,
	}
}

// SmartDCA buys on a fixed cadence and accelerates when the market is
// oversold. It never sells.
type SmartDCA struct {
	params  SmartDCAParams
	lastBuy time.Time
	now     func() time.Time
}

// NewSmartDCA creates the strategy. Zero-valued params fields fall back to
// the defaults.
func NewSmartDCA(params SmartDCAParams) *SmartDCA {
	def := DefaultSmartDCAParams()
	if params.Oversold == 0 {
		params.Oversold = def.Oversold
	}
	if params.Overbought == 0 {
		params.Overbought = def.Overbought
	}
	if params.BaseAmountPct == 0 {
		params.BaseAmountPct = def.BaseAmountPct
	}
	if params.AccelerateAmountPct == 0 {
		params.AccelerateAmountPct = def.AccelerateAmountPct
	}
	if params.MaxAmountPct == 0 {
		params.MaxAmountPct = def.MaxAmountPct
	}
	if params.Interval == 0 {
		params.Interval = def.Interval
	}
	return &SmartDCA{params: params, now: time.Now}
}

func (s *SmartDCA) ID() string   { return "smart_dca" }
func (s *SmartDCA) Name() string { return "Smart DCA" }

func (s *SmartDCA) Description() string {
	return "Dollar-cost averaging with RSI-based acceleration on dips"
}

func (s *SmartDCA) RiskLevel() string { return "low" }

// Analyze decides in a fixed order: overbought blocks, oversold accelerates,
// an elapsed DCA interval triggers a regular buy, otherwise hold.
func (s *SmartDCA) Analyze(_ []exchange.Candle, _ Portfolio, ind Indicators) TradeSignal {
	if !ind.HasRSI {
		return TradeSignal{
			Kind:       Hold,
			Confidence: 0.5,
			Reason:     "insufficient data for RSI",
		}
	}

	if ind.RSI > s.params.Overbought {
		return TradeSignal{
			Kind:       Hold,
			Confidence: 0.8,
			Reason:     fmt.Sprintf("RSI overbought: %.2f > %.2f", ind.RSI, s.params.Overbought),
		}
	}

	if ind.RSI < s.params.Oversold {
		pct := s.params.BaseAmountPct + s.params.AccelerateAmountPct
		if pct > s.params.MaxAmountPct {
			pct = s.params.MaxAmountPct
		}
		return TradeSignal{
			Kind:       Buy,
			Confidence: 0.85,
			Reason:     fmt.Sprintf("RSI oversold: %.2f < %.2f, accelerated buy", ind.RSI, s.params.Oversold),
			AmountPct:  decimal.NewFromFloat(pct),
		}
	}

	if s.lastBuy.IsZero() || s.now().Sub(s.lastBuy) >= s.params.Interval {
		return TradeSignal{
			Kind:       Buy,
			Confidence: 0.7,
			Reason:     fmt.Sprintf("DCA interval elapsed (%s)", s.params.Interval),
			AmountPct:  decimal.NewFromFloat(s.params.BaseAmountPct),
		}
	}

	return TradeSignal{
		Kind:       Hold,
		Confidence: 0.6,
		Reason:     fmt.Sprintf("RSI neutral: %.2f, waiting for next interval", ind.RSI),
	}
}

// RecordBuy marks the DCA cadence. Called by the engine after an executed buy.
func (s *SmartDCA) RecordBuy() {
	s.lastBuy = s.now()
}
