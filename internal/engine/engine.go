// Package engine runs the autonomous trading control loop: fetch market
// data, ask the strategy for a signal, gate it through the risk manager,
// and execute against the paper ledger or the real exchange.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"dca-core/internal/events"
	"dca-core/internal/indicators"
	"dca-core/internal/monitor"
	"dca-core/internal/paper"
	"dca-core/internal/risk"
	"dca-core/internal/strategy"
	"dca-core/pkg/db"
	"dca-core/pkg/exchange"
)

const rsiPeriod = 14

// Config holds the engine's operating parameters. Intervals are injectable
// so tests can compress time.
type Config struct {
	Symbol      string
	Timeframe   string
	CandleLimit int

	LoopInterval   time.Duration
	PausedInterval time.Duration
	ErrorBackoff   time.Duration
	MaxLoopErrors  int

	// RealTradingEnabled is the server-level kill switch. Starting with
	// paperTrading=false while this is off fails synchronously.
	RealTradingEnabled bool

	PaperInitialBalance decimal.Decimal
	FeePct              decimal.Decimal

	Risk           risk.Config
	StrategyParams map[string]strategy.Params
}

// DefaultConfig returns production defaults for BTC-CLP hourly trading.
func DefaultConfig() Config {
	return Config{
		Symbol:              "BTC-CLP",
		Timeframe:           "1h",
		CandleLimit:         100,
		LoopInterval:        60 * time.Second,
		PausedInterval:      5 * time.Second,
		ErrorBackoff:        30 * time.Second,
		MaxLoopErrors:       10,
		PaperInitialBalance: decimal.NewFromInt(20000),
		FeePct:              decimal.NewFromFloat(0.008),
		Risk:                risk.DefaultConfig(),
	}
}

// Engine owns the lifecycle state machine and the periodic loop. One
// instance per process; the HTTP layer reads status snapshots from other
// goroutines, so all mutable state sits behind the mutex.
type Engine struct {
	cfg      Config
	client   exchange.Client
	bus      *events.Bus
	metrics  *monitor.SystemMetrics
	store    *db.Database // optional trade audit log, may be nil

	mu        sync.RWMutex
	state     State
	strat     strategy.Strategy
	riskMgr   *risk.Manager
	ledger    *paper.Ledger
	paperMode bool

	loopCount   int
	errorCount  int
	totalTrades int
	wins        int
	losses      int
	totalProfit decimal.Decimal
	lastAction  string
	lastSignal  string
	lastRSI     float64
	lastPrice   decimal.Decimal
	startTime   time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped engine. The exchange client is owned by the caller
// and survives engine restarts.
func New(cfg Config, client exchange.Client, bus *events.Bus, metrics *monitor.SystemMetrics, store *db.Database) *Engine {
	def := DefaultConfig()
	if cfg.Symbol == "" {
		cfg.Symbol = def.Symbol
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = def.Timeframe
	}
	if cfg.CandleLimit == 0 {
		cfg.CandleLimit = def.CandleLimit
	}
	if cfg.LoopInterval == 0 {
		cfg.LoopInterval = def.LoopInterval
	}
	if cfg.PausedInterval == 0 {
		cfg.PausedInterval = def.PausedInterval
	}
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = def.ErrorBackoff
	}
	if cfg.MaxLoopErrors == 0 {
		cfg.MaxLoopErrors = def.MaxLoopErrors
	}
	if cfg.PaperInitialBalance.IsZero() {
		cfg.PaperInitialBalance = def.PaperInitialBalance
	}
	if cfg.FeePct.IsZero() {
		cfg.FeePct = def.FeePct
	}
	if cfg.Risk == (risk.Config{}) {
		cfg.Risk = def.Risk
	}
	if metrics == nil {
		metrics = monitor.NewSystemMetrics()
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &Engine{
		cfg:     cfg,
		client:  client,
		bus:     bus,
		metrics: metrics,
		store:   store,
		state:   StateStopped,
	}
}

// Start constructs a fresh strategy, risk manager and (in paper mode)
// ledger, then launches the loop. Fails synchronously on configuration
// errors with no state change.
func (e *Engine) Start(strategyID string, paperTrading bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateStopped && e.state != StateError {
		return ErrNotStopped
	}
	if !paperTrading && !e.cfg.RealTradingEnabled {
		return ErrRealTradingDisabled
	}

	strat, err := strategy.New(strategyID, e.cfg.StrategyParams[strategyID])
	if err != nil {
		return err
	}

	e.state = StateStarting
	e.strat = strat
	e.riskMgr = risk.NewManager(e.cfg.Risk)
	e.paperMode = paperTrading
	e.ledger = nil
	if paperTrading {
		e.ledger = paper.NewLedger(e.cfg.PaperInitialBalance, e.cfg.FeePct)
	}

	e.loopCount = 0
	e.errorCount = 0
	e.totalTrades = 0
	e.wins = 0
	e.losses = 0
	e.totalProfit = decimal.Zero
	e.lastAction = ""
	e.lastSignal = ""
	e.lastRSI = 0
	e.lastPrice = decimal.Zero
	e.startTime = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.state = StateRunning

	log.Printf("engine: started strategy=%s paper=%v symbol=%s", strategyID, paperTrading, e.cfg.Symbol)
	go e.run(ctx)

	e.publishStatusLocked()
	return nil
}

// Stop cancels the loop and waits for it to unwind. Idempotent: stopping a
// stopped engine succeeds trivially.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state == StateStopped {
		e.mu.Unlock()
		return nil
	}
	cancel := e.cancel
	done := e.done
	e.state = StateStopping
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	e.mu.Lock()
	e.state = StateStopped
	e.cancel = nil
	e.done = nil
	e.publishStatusLocked()
	e.mu.Unlock()

	log.Println("engine: stopped")
	return nil
}

// Pause suspends trading without tearing the session down.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return ErrNotRunning
	}
	e.state = StatePaused
	e.publishStatusLocked()
	log.Println("engine: paused")
	return nil
}

// Resume continues a paused session.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePaused {
		return ErrNotPaused
	}
	e.state = StateRunning
	e.publishStatusLocked()
	log.Println("engine: resumed")
	return nil
}

// run is the control loop. It exits on cancellation or when the cumulative
// error count exceeds the threshold.
func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	for {
		if ctx.Err() != nil {
			return
		}

		e.mu.Lock()
		e.loopCount++
		state := e.state
		e.mu.Unlock()
		e.metrics.IncrementLoops()

		if state == StatePaused {
			e.setLastAction("paused")
			if !e.sleep(ctx, e.cfg.PausedInterval) {
				return
			}
			continue
		}

		if err := e.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			e.metrics.IncrementErrors()

			e.mu.Lock()
			e.errorCount++
			e.lastAction = "error: " + truncate(err.Error(), 120)
			tooMany := e.errorCount > e.cfg.MaxLoopErrors
			if tooMany {
				e.state = StateError
			}
			e.publishStatusLocked()
			e.mu.Unlock()

			log.Printf("engine: loop error (%d): %v", e.ErrorCount(), err)
			if tooMany {
				log.Printf("engine: error threshold exceeded, halting loop")
				return
			}
			if !e.sleep(ctx, e.cfg.ErrorBackoff) {
				return
			}
			continue
		}

		if !e.sleep(ctx, e.cfg.LoopInterval) {
			return
		}
	}
}

// sleep waits for d or cancellation; reports false when cancelled.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// cycle runs one loop iteration: fetch, analyze, gate, execute.
func (e *Engine) cycle(ctx context.Context) error {
	timer := monitor.NewTimer(e.metrics.LoopLatency)
	defer timer.Stop()

	candles, err := e.client.FetchCandles(ctx, e.cfg.Symbol, e.cfg.Timeframe, e.cfg.CandleLimit)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) == 0 {
		e.setLastAction("no_data")
		return nil
	}

	price := exchange.LastClose(candles)
	rsi, rsiErr := indicators.RSI(exchange.Closes(candles), rsiPeriod)
	ind := strategy.Indicators{RSI: rsi, HasRSI: rsiErr == nil}

	portfolio, err := e.portfolio(ctx, price)
	if err != nil {
		return fmt.Errorf("fetch portfolio: %w", err)
	}

	sig := e.strat.Analyze(candles, portfolio, ind)
	e.metrics.IncrementSignals()
	e.bus.Publish(events.EventSignal, sig)

	e.mu.Lock()
	e.lastSignal = string(sig.Kind)
	e.lastRSI = rsi
	e.lastPrice = price
	e.mu.Unlock()

	switch sig.Kind {
	case strategy.Buy:
		e.processBuy(ctx, sig, portfolio, price)
	case strategy.Sell:
		e.processSell(ctx, sig, portfolio, price)
	default:
		e.setLastAction("hold")
	}

	e.publishStatus()
	return nil
}

// portfolio builds the strategy's balance view. In real mode the average
// buy price defaults to the current price: cost-basis tracking is not
// implemented for live accounts.
func (e *Engine) portfolio(ctx context.Context, price decimal.Decimal) (strategy.Portfolio, error) {
	if e.paperMode {
		snap := e.ledger.Snapshot()
		return strategy.Portfolio{
			QuoteBalance: snap.BalanceQuote,
			BaseBalance:  snap.BalanceBase,
			AvgBuyPrice:  snap.AvgBuyPrice,
		}, nil
	}

	balances, err := e.client.FetchBalances(ctx)
	if err != nil {
		return strategy.Portfolio{}, err
	}
	base, quote := splitSymbol(e.cfg.Symbol)
	pf := strategy.Portfolio{AvgBuyPrice: price}
	for _, b := range balances {
		switch b.Currency {
		case quote:
			pf.QuoteBalance = b.Available
		case base:
			pf.BaseBalance = b.Available
		}
	}
	return pf, nil
}

func (e *Engine) processBuy(ctx context.Context, sig strategy.TradeSignal, pf strategy.Portfolio, price decimal.Decimal) {
	amountQuote := pf.QuoteBalance.Mul(sig.AmountPct)

	v := e.riskMgr.ValidateBuy(amountQuote, pf.QuoteBalance, price)
	if !v.Approved {
		e.setLastAction("rejected: " + v.Reason)
		return
	}

	if e.paperMode {
		trade := e.ledger.ExecuteBuy(amountQuote, price)
		if trade == nil {
			e.setLastAction("buy_failed")
			return
		}
		e.finishTrade(*trade)
		e.setLastAction("buy_executed")
		return
	}

	order, err := e.client.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol: e.cfg.Symbol,
		Side:   exchange.SideBuy,
		Type:   exchange.OrderTypeMarket,
		Amount: amountQuote.Div(price),
	})
	if err != nil {
		// Submission failures are surfaced via last_action, not counted
		// toward the loop error threshold.
		e.setLastAction("trade_error: " + truncate(err.Error(), 120))
		return
	}
	e.finishRealTrade(order, price, amountQuote)
	e.setLastAction("buy_executed")
}

func (e *Engine) processSell(ctx context.Context, sig strategy.TradeSignal, pf strategy.Portfolio, price decimal.Decimal) {
	amountBase := pf.BaseBalance.Mul(sig.AmountPct)

	v := e.riskMgr.ValidateSell(amountBase, pf.BaseBalance, price, pf.AvgBuyPrice)
	if !v.Approved {
		e.setLastAction("rejected: " + v.Reason)
		return
	}

	if e.paperMode {
		trade := e.ledger.ExecuteSell(amountBase, price)
		if trade == nil {
			e.setLastAction("sell_failed")
			return
		}
		// Realized P&L against the cost basis, paper mode only.
		profit := price.Sub(pf.AvgBuyPrice).Mul(amountBase)
		e.mu.Lock()
		e.totalProfit = e.totalProfit.Add(profit)
		if profit.IsPositive() {
			e.wins++
		} else {
			e.losses++
		}
		e.mu.Unlock()

		e.finishTrade(*trade)
		e.setLastAction("sell_executed")
		return
	}

	order, err := e.client.SubmitOrder(ctx, exchange.OrderRequest{
		Symbol: e.cfg.Symbol,
		Side:   exchange.SideSell,
		Type:   exchange.OrderTypeMarket,
		Amount: amountBase,
	})
	if err != nil {
		e.setLastAction("sell_error: " + truncate(err.Error(), 120))
		return
	}
	e.finishRealTrade(order, price, amountBase.Mul(price))
	e.setLastAction("sell_executed")
}

// finishTrade runs the shared post-execution bookkeeping for paper trades.
func (e *Engine) finishTrade(trade paper.Trade) {
	e.riskMgr.RecordTrade()
	if trade.Side == paper.SideBuy {
		e.strat.RecordBuy()
	}

	e.mu.Lock()
	e.totalTrades++
	e.mu.Unlock()
	e.metrics.IncrementTrades()

	event := TradeEvent{
		ID:          trade.ID,
		Mode:        "paper",
		Symbol:      e.cfg.Symbol,
		Side:        string(trade.Side),
		Price:       trade.Price,
		AmountBase:  trade.AmountBase,
		AmountQuote: trade.AmountQuote,
		Fee:         trade.Fee,
		ExecutedAt:  trade.Timestamp,
	}
	e.bus.Publish(events.EventTradeExecuted, event)
	e.audit(event)
}

// finishRealTrade records a live order acknowledgment.
func (e *Engine) finishRealTrade(order *exchange.Order, price, amountQuote decimal.Decimal) {
	e.riskMgr.RecordTrade()
	if order.Side == exchange.SideBuy {
		e.strat.RecordBuy()
	}

	e.mu.Lock()
	e.totalTrades++
	e.mu.Unlock()
	e.metrics.IncrementTrades()

	event := TradeEvent{
		ID:          order.ID,
		Mode:        "real",
		Symbol:      order.Symbol,
		Side:        string(order.Side),
		Price:       price,
		AmountBase:  order.Amount,
		AmountQuote: amountQuote,
		ExecutedAt:  time.Now(),
	}
	e.bus.Publish(events.EventTradeExecuted, event)
	e.audit(event)
}

// audit appends the trade to the database. Best effort: the ledger is the
// source of truth, so persistence failures only log.
func (e *Engine) audit(event TradeEvent) {
	if e.store == nil {
		return
	}
	err := e.store.InsertTrade(db.TradeRecord{
		ID:          event.ID,
		Mode:        event.Mode,
		Symbol:      event.Symbol,
		Side:        event.Side,
		Price:       event.Price,
		AmountBase:  event.AmountBase,
		AmountQuote: event.AmountQuote,
		Fee:         event.Fee,
		ExecutedAt:  event.ExecutedAt,
	})
	if err != nil {
		log.Printf("engine: trade audit write failed: %v", err)
	}
}

// Status returns a point-in-time snapshot for the API.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Status{
		State:        e.state,
		PaperTrading: e.paperMode,
		Symbol:       e.cfg.Symbol,
		LoopCount:    e.loopCount,
		ErrorCount:   e.errorCount,
		TotalTrades:  e.totalTrades,
		Wins:         e.wins,
		Losses:       e.losses,
		TotalProfit:  e.totalProfit,
		LastAction:   e.lastAction,
		LastSignal:   e.lastSignal,
		LastRSI:      e.lastRSI,
		LastPrice:    e.lastPrice,
	}
	if e.strat != nil {
		s.StrategyID = e.strat.ID()
	}
	if decided := e.wins + e.losses; decided > 0 {
		s.WinRate = float64(e.wins) / float64(decided)
	}
	if !e.startTime.IsZero() && e.state != StateStopped {
		t := e.startTime
		s.StartTime = &t
		s.UptimeSec = time.Since(t).Seconds()
	}
	if e.ledger != nil {
		snap := e.ledger.Snapshot()
		s.Portfolio = &snap
	}
	if e.riskMgr != nil {
		rs := e.riskMgr.Status()
		s.Risk = &rs
	}
	return s
}

// TradeHistory returns the paper session's trades, newest first.
func (e *Engine) TradeHistory(limit int) ([]paper.Trade, error) {
	e.mu.RLock()
	ledger := e.ledger
	e.mu.RUnlock()

	if ledger == nil {
		return nil, ErrNoPaperLedger
	}
	return ledger.History(limit), nil
}

// Performance derives the paper session's unrealized P&L at the last seen
// price.
func (e *Engine) Performance() (paper.Performance, error) {
	e.mu.RLock()
	ledger := e.ledger
	price := e.lastPrice
	e.mu.RUnlock()

	if ledger == nil {
		return paper.Performance{}, ErrNoPaperLedger
	}
	return ledger.Performance(price), nil
}

// ErrorCount reports accumulated transient loop errors.
func (e *Engine) ErrorCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.errorCount
}

func (e *Engine) setLastAction(action string) {
	e.mu.Lock()
	e.lastAction = action
	e.mu.Unlock()
}

func (e *Engine) publishStatus() {
	e.bus.Publish(events.EventEngineStatus, e.Status())
}

// publishStatusLocked publishes while the caller holds the write lock.
func (e *Engine) publishStatusLocked() {
	s := Status{
		State:        e.state,
		PaperTrading: e.paperMode,
		Symbol:       e.cfg.Symbol,
		LoopCount:    e.loopCount,
		ErrorCount:   e.errorCount,
		TotalTrades:  e.totalTrades,
		LastAction:   e.lastAction,
	}
	if e.strat != nil {
		s.StrategyID = e.strat.ID()
	}
	e.bus.Publish(events.EventEngineStatus, s)
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// splitSymbol breaks "BTC-CLP" into base and quote currencies.
func splitSymbol(symbol string) (base, quote string) {
	parts := strings.SplitN(symbol, "-", 2)
	if len(parts) != 2 {
		return symbol, ""
	}
	return parts[0], parts[1]
}
