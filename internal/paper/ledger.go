// Package paper implements the simulated trading ledger: a virtual
// quote/base portfolio mutated only through ExecuteBuy and ExecuteSell.
package paper

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the direction of a paper trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is an immutable executed-trade record.
type Trade struct {
	ID                string          `json:"id"`
	Timestamp         time.Time       `json:"timestamp"`
	Side              Side            `json:"side"`
	AmountBase        decimal.Decimal `json:"amount_base"`
	Price             decimal.Decimal `json:"price"`
	AmountQuote       decimal.Decimal `json:"amount_quote"`
	Fee               decimal.Decimal `json:"fee"`
	BalanceQuoteAfter decimal.Decimal `json:"balance_quote_after"`
	BalanceBaseAfter  decimal.Decimal `json:"balance_base_after"`
}

// Portfolio is a read-only snapshot of the ledger state.
type Portfolio struct {
	BalanceQuote       decimal.Decimal `json:"balance_quote"`
	BalanceBase        decimal.Decimal `json:"balance_base"`
	TotalInvestedQuote decimal.Decimal `json:"total_invested_quote"`
	TotalBaseBought    decimal.Decimal `json:"total_base_bought"`
	AvgBuyPrice        decimal.Decimal `json:"avg_buy_price"`
	TradeCount         int             `json:"trade_count"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Performance summarizes unrealized P&L at a given market price.
type Performance struct {
	TotalValue    decimal.Decimal `json:"total_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPct decimal.Decimal `json:"unrealized_pct"`
	FeesPaid      decimal.Decimal `json:"fees_paid"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
}

// Ledger tracks a virtual portfolio. All mutations go through
// ExecuteBuy/ExecuteSell/Reset; readers take the read lock because the
// HTTP layer snapshots state from other goroutines.
type Ledger struct {
	mu sync.RWMutex

	quote           decimal.Decimal
	base            decimal.Decimal
	totalInvested   decimal.Decimal
	totalBaseBought decimal.Decimal
	avgBuyPrice     decimal.Decimal
	feePct          decimal.Decimal
	trades          []Trade
	createdAt       time.Time
}

// NewLedger creates a ledger with the given starting quote balance and
// proportional fee (e.g. 0.008 for 0.8%).
func NewLedger(initialBalance, feePct decimal.Decimal) *Ledger {
	return &Ledger{
		quote:     initialBalance,
		feePct:    feePct,
		createdAt: time.Now(),
	}
}

// ExecuteBuy spends amountQuote at the given price. A nil return means the
// request was rejected and nothing changed; rejections here indicate the
// caller skipped risk validation, so they are logged rather than returned
// as errors.
func (l *Ledger) ExecuteBuy(amountQuote, price decimal.Decimal) *Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amountQuote.LessThanOrEqual(decimal.Zero) || amountQuote.GreaterThan(l.quote) {
		log.Printf("paper: buy rejected: amount=%s balance=%s", amountQuote, l.quote)
		return nil
	}
	if price.LessThanOrEqual(decimal.Zero) {
		log.Printf("paper: buy rejected: non-positive price %s", price)
		return nil
	}

	fee := amountQuote.Mul(l.feePct)
	baseBought := amountQuote.Sub(fee).Div(price)

	l.quote = l.quote.Sub(amountQuote)
	l.base = l.base.Add(baseBought)
	l.totalInvested = l.totalInvested.Add(amountQuote)

	// Weighted mean purchase price across all buys to date.
	newTotalBase := l.totalBaseBought.Add(baseBought)
	l.avgBuyPrice = l.totalBaseBought.Mul(l.avgBuyPrice).
		Add(baseBought.Mul(price)).
		Div(newTotalBase)
	l.totalBaseBought = newTotalBase

	trade := Trade{
		ID:                uuid.NewString(),
		Timestamp:         time.Now(),
		Side:              SideBuy,
		AmountBase:        baseBought,
		Price:             price,
		AmountQuote:       amountQuote,
		Fee:               fee,
		BalanceQuoteAfter: l.quote,
		BalanceBaseAfter:  l.base,
	}
	l.trades = append(l.trades, trade)
	return &trade
}

// ExecuteSell sells amountBase at the given price. Sells never touch the
// average buy price. A nil return means the request was rejected.
func (l *Ledger) ExecuteSell(amountBase, price decimal.Decimal) *Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amountBase.LessThanOrEqual(decimal.Zero) || amountBase.GreaterThan(l.base) {
		log.Printf("paper: sell rejected: amount=%s position=%s", amountBase, l.base)
		return nil
	}
	if price.LessThanOrEqual(decimal.Zero) {
		log.Printf("paper: sell rejected: non-positive price %s", price)
		return nil
	}

	gross := amountBase.Mul(price)
	fee := gross.Mul(l.feePct)
	net := gross.Sub(fee)

	l.base = l.base.Sub(amountBase)
	l.quote = l.quote.Add(net)

	trade := Trade{
		ID:                uuid.NewString(),
		Timestamp:         time.Now(),
		Side:              SideSell,
		AmountBase:        amountBase,
		Price:             price,
		AmountQuote:       net,
		Fee:               fee,
		BalanceQuoteAfter: l.quote,
		BalanceBaseAfter:  l.base,
	}
	l.trades = append(l.trades, trade)
	return &trade
}

// Snapshot returns a copy of the current portfolio state.
func (l *Ledger) Snapshot() Portfolio {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Portfolio{
		BalanceQuote:       l.quote,
		BalanceBase:        l.base,
		TotalInvestedQuote: l.totalInvested,
		TotalBaseBought:    l.totalBaseBought,
		AvgBuyPrice:        l.avgBuyPrice,
		TradeCount:         len(l.trades),
		CreatedAt:          l.createdAt,
	}
}

// Performance derives unrealized P&L against the position's cost basis.
// The percentage is zero when the cost basis is zero.
func (l *Ledger) Performance(currentPrice decimal.Decimal) Performance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positionValue := l.base.Mul(currentPrice)
	costBasis := l.base.Mul(l.avgBuyPrice)
	pnl := positionValue.Sub(costBasis)

	pct := decimal.Zero
	if costBasis.IsPositive() {
		pct = pnl.Div(costBasis).Mul(decimal.NewFromInt(100))
	}

	fees := decimal.Zero
	for _, t := range l.trades {
		fees = fees.Add(t.Fee)
	}

	return Performance{
		TotalValue:    l.quote.Add(positionValue),
		UnrealizedPnL: pnl,
		UnrealizedPct: pct,
		FeesPaid:      fees,
		CurrentPrice:  currentPrice,
	}
}

// History returns up to limit trades, newest first. limit <= 0 means all.
func (l *Ledger) History(limit int) []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.trades)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Trade, limit)
	for i := 0; i < limit; i++ {
		out[i] = l.trades[n-1-i]
	}
	return out
}

// Reset discards all state and starts a fresh portfolio. Intended for use
// between paper sessions, never during a live run.
func (l *Ledger) Reset(initialBalance decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.quote = initialBalance
	l.base = decimal.Zero
	l.totalInvested = decimal.Zero
	l.totalBaseBought = decimal.Zero
	l.avgBuyPrice = decimal.Zero
	l.trades = nil
	l.createdAt = time.Now()
}
