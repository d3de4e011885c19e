package engine

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"dca-core/internal/paper"
	"dca-core/internal/risk"
)

// State is the engine lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
	StateError    State = "error"
)

// Configuration failures reported synchronously by the control methods.
// They never count toward the loop error threshold.
var (
	ErrNotStopped          = errors.New("engine: already running, stop it first")
	ErrNotRunning          = errors.New("engine: not running")
	ErrNotPaused           = errors.New("engine: not paused")
	ErrRealTradingDisabled = errors.New("engine: real trading is disabled")
	ErrNoPaperLedger       = errors.New("engine: no paper session active")
)

// Status is the read-only snapshot exposed to the service layer.
type Status struct {
	State        State           `json:"state"`
	StrategyID   string          `json:"strategy_id,omitempty"`
	PaperTrading bool            `json:"paper_trading"`
	Symbol       string          `json:"symbol"`
	LoopCount    int             `json:"loop_count"`
	ErrorCount   int             `json:"error_count"`
	TotalTrades  int             `json:"total_trades"`
	Wins         int             `json:"wins"`
	Losses       int             `json:"losses"`
	WinRate      float64         `json:"win_rate"`
	TotalProfit  decimal.Decimal `json:"total_profit"`
	LastAction   string          `json:"last_action,omitempty"`
	LastSignal   string          `json:"last_signal,omitempty"`
	LastRSI      float64         `json:"last_rsi,omitempty"`
	LastPrice    decimal.Decimal `json:"last_price"`
	StartTime    *time.Time      `json:"start_time,omitempty"`
	UptimeSec    float64         `json:"uptime_sec"`

	Portfolio *paper.Portfolio `json:"portfolio,omitempty"`
	Risk      *risk.Status     `json:"risk,omitempty"`
}

// TradeEvent is the payload published on the event bus for every executed
// trade, paper or real.
type TradeEvent struct {
	ID          string          `json:"id"`
	Mode        string          `json:"mode"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	Price       decimal.Decimal `json:"price"`
	AmountBase  decimal.Decimal `json:"amount_base"`
	AmountQuote decimal.Decimal `json:"amount_quote"`
	Fee         decimal.Decimal `json:"fee"`
	ExecutedAt  time.Time       `json:"executed_at"`
}
