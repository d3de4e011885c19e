package strategy

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownStrategy is returned when no variant matches the requested id.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Params carries numeric tuning values from configuration. Durations are
// expressed in hours.
type Params map[string]float64

func (p Params) get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// New constructs a fresh strategy instance for the given id. Each engine
// start gets its own instance so cadence state never leaks across sessions.
func New(id string, params Params) (Strategy, error) {
	switch id {
	case "smart_dca":
		p := DefaultSmartDCAParams()
		p.Oversold = params.get("oversold", p.Oversold)
		p.Overbought = params.get("overbought", p.Overbought)
		p.BaseAmountPct = params.get("base_amount_pct", p.BaseAmountPct)
		p.AccelerateAmountPct = params.get("accelerate_amount_pct", p.AccelerateAmountPct)
		p.MaxAmountPct = params.get("max_amount_pct", p.MaxAmountPct)
		if hours := params.get("interval_hours", p.Interval.Hours()); hours > 0 {
			p.Interval = time.Duration(hours * float64(time.Hour))
		}
		return NewSmartDCA(p), nil
	case "rsi_swing":
		p := DefaultRSISwingParams()
		p.Oversold = params.get("oversold", p.Oversold)
		p.Overbought = params.get("overbought", p.Overbought)
		p.BuyAmountPct = params.get("buy_amount_pct", p.BuyAmountPct)
		p.SellAmountPct = params.get("sell_amount_pct", p.SellAmountPct)
		p.MaxAmountPct = params.get("max_amount_pct", p.MaxAmountPct)
		return NewRSISwing(p), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, id)
	}
}

// List describes every registered strategy.
func List() []Info {
	variants := []Strategy{
		NewSmartDCA(DefaultSmartDCAParams()),
		NewRSISwing(DefaultRSISwingParams()),
	}
	out := make([]Info, len(variants))
	for i, v := range variants {
		out[i] = Info{
			ID:          v.ID(),
			Name:        v.Name(),
			Description: v.Description(),
			RiskLevel:   v.RiskLevel(),
		}
	}
	return out
}
