// Package risk implements the pre-trade validation gate. The manager holds
// only trade-timing history; balances come in with each validation call.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the risk policy knobs.
type Config struct {
	MaxTradePct     decimal.Decimal // ceiling as fraction of quote balance
	MinBalanceQuote decimal.Decimal // reserve that must remain after a buy
	Cooldown        time.Duration   // minimum delay between executed trades
	MaxDailyTrades  int             // executed trades allowed per sliding 24h
	FeePct          decimal.Decimal // proportional fee, e.g. 0.008

	// Fee-impact guard: trades below SmallTradeThreshold are rejected when
	// the fee eats more than MaxFeeImpactPct of the trade.
	SmallTradeThreshold decimal.Decimal
	MaxFeeImpactPct     decimal.Decimal
}

// DefaultConfig returns the standard policy.
func DefaultConfig() Config {
	return Config{
		MaxTradePct:         decimal.NewFromFloat(0.25),
		MinBalanceQuote:     decimal.NewFromInt(5000),
		Cooldown:            30 * time.Minute,
		MaxDailyTrades:      3,
		FeePct:              decimal.NewFromFloat(0.008),
		SmallTradeThreshold: decimal.NewFromInt(10000),
		MaxFeeImpactPct:     decimal.NewFromFloat(0.02),
	}
}

// Validation is the outcome of a single check. MaxAllowed carries the
// largest acceptable amount when a size rule rejected the trade.
type Validation struct {
	Approved   bool            `json:"approved"`
	Reason     string          `json:"reason"`
	MaxAllowed decimal.Decimal `json:"max_allowed,omitempty"`
}

// Status is a read-only snapshot of the manager's history for the API.
type Status struct {
	DailyTradesUsed   int           `json:"daily_trades_used"`
	MaxDailyTrades    int           `json:"max_daily_trades"`
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
	LastTradeTime     *time.Time    `json:"last_trade_time,omitempty"`
}

const dailyWindow = 24 * time.Hour

// Manager validates proposed trades against the policy and the recorded
// trade history. The clock is injectable for tests.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	lastTrade time.Time
	daily     []time.Time
	now       func() time.Time
}

// NewManager creates a manager with empty history.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, now: time.Now}
}

func reject(reason string) Validation {
	return Validation{Reason: reason}
}

func rejectMax(reason string, max decimal.Decimal) Validation {
	return Validation{Reason: reason, MaxAllowed: max}
}

func approve(reason string) Validation {
	return Validation{Approved: true, Reason: reason}
}

// ValidateBuy checks a proposed buy of amountQuote against the quote
// balance. Rules run in a fixed order and the first failure wins.
func (m *Manager) ValidateBuy(amountQuote, balanceQuote, currentPrice decimal.Decimal) Validation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.checkHistory(); !ok {
		return v
	}

	remaining := balanceQuote.Sub(amountQuote)
	if remaining.LessThan(m.cfg.MinBalanceQuote) {
		headroom := balanceQuote.Sub(m.cfg.MinBalanceQuote)
		if headroom.LessThanOrEqual(decimal.Zero) {
			return reject(fmt.Sprintf("balance %s below minimum reserve %s",
				balanceQuote, m.cfg.MinBalanceQuote))
		}
		return rejectMax(fmt.Sprintf("trade would breach minimum reserve, max allowed %s", headroom), headroom)
	}

	ceiling := balanceQuote.Mul(m.cfg.MaxTradePct)
	if amountQuote.GreaterThan(ceiling) {
		return rejectMax(fmt.Sprintf("amount exceeds %s%% of balance, max allowed %s",
			m.cfg.MaxTradePct.Mul(decimal.NewFromInt(100)), ceiling), ceiling)
	}

	fee := amountQuote.Mul(m.cfg.FeePct)
	if amountQuote.IsPositive() && amountQuote.LessThan(m.cfg.SmallTradeThreshold) {
		if fee.Div(amountQuote).GreaterThan(m.cfg.MaxFeeImpactPct) {
			return reject(fmt.Sprintf("fee %s exceeds %s%% of small trade %s",
				fee, m.cfg.MaxFeeImpactPct.Mul(decimal.NewFromInt(100)), amountQuote))
		}
	}

	return approve(fmt.Sprintf("approved, estimated fee %s", fee))
}

// ValidateSell checks a proposed sell of amountBase against the position.
// Sells below the average buy price are always rejected.
func (m *Manager) ValidateSell(amountBase, balanceBase, currentPrice, avgBuyPrice decimal.Decimal) Validation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amountBase.LessThanOrEqual(decimal.Zero) {
		return reject("no position to sell")
	}

	if v, ok := m.checkHistory(); !ok {
		return v
	}

	if amountBase.GreaterThan(balanceBase) {
		return rejectMax(fmt.Sprintf("amount %s exceeds position %s", amountBase, balanceBase), balanceBase)
	}

	if currentPrice.LessThan(avgBuyPrice) {
		return reject(fmt.Sprintf("price %s below average buy price %s, holding",
			currentPrice, avgBuyPrice))
	}

	gain := currentPrice.Sub(avgBuyPrice).Mul(amountBase)
	return approve(fmt.Sprintf("approved, estimated gain %s", gain))
}

// checkHistory runs the shared daily-limit and cooldown rules. Callers hold
// the lock.
func (m *Manager) checkHistory() (Validation, bool) {
	now := m.now()
	m.prune(now)

	// MaxDailyTrades <= 0 means trading is shut off, so the history can be
	// empty while the limit is already reached.
	if len(m.daily) >= m.cfg.MaxDailyTrades {
		freeIn := time.Duration(0)
		if len(m.daily) > 0 {
			freeIn = m.daily[0].Add(dailyWindow).Sub(now)
		}
		return reject(fmt.Sprintf("daily trade limit reached (%d/%d), next slot in %s",
			len(m.daily), m.cfg.MaxDailyTrades, freeIn.Round(time.Minute))), false
	}

	if !m.lastTrade.IsZero() {
		elapsed := now.Sub(m.lastTrade)
		if elapsed < m.cfg.Cooldown {
			left := m.cfg.Cooldown - elapsed
			return reject(fmt.Sprintf("cooldown active, %s remaining", left.Round(time.Second))), false
		}
	}

	return Validation{}, true
}

// prune drops history entries older than the sliding window. Callers hold
// the lock.
func (m *Manager) prune(now time.Time) {
	cutoff := now.Add(-dailyWindow)
	i := 0
	for i < len(m.daily) && m.daily[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		m.daily = append([]time.Time(nil), m.daily[i:]...)
	}
}

// RecordTrade registers an executed trade. Call exactly once per trade that
// actually executed, never on rejection.
func (m *Manager) RecordTrade() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.lastTrade = now
	m.daily = append(m.daily, now)
}

// Status reports current history usage.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.prune(now)

	s := Status{
		DailyTradesUsed: len(m.daily),
		MaxDailyTrades:  m.cfg.MaxDailyTrades,
	}
	if !m.lastTrade.IsZero() {
		t := m.lastTrade
		s.LastTradeTime = &t
		if left := m.cfg.Cooldown - now.Sub(m.lastTrade); left > 0 {
			s.CooldownRemaining = left
		}
	}
	return s
}
