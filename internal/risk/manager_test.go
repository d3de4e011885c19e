package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// newTestManager returns a manager on a simulated clock plus a function to
// advance it.
func newTestManager(cfg Config) (*Manager, func(d time.Duration)) {
	m := NewManager(cfg)
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }
	return m, func(d time.Duration) { current = current.Add(d) }
}

func TestValidateBuyApproves(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())

	v := m.ValidateBuy(dec("4000"), dec("20000"), dec("90000000"))
	if !v.Approved {
		t.Fatalf("expected approval, got: %s", v.Reason)
	}
	if !strings.Contains(v.Reason, "fee") {
		t.Fatalf("approval reason should estimate the fee, got: %s", v.Reason)
	}
}

func TestValidateBuyDailyLimit(t *testing.T) {
	m, advance := newTestManager(DefaultConfig())

	for i := 0; i < 3; i++ {
		m.RecordTrade()
		advance(time.Hour)
	}

	// Regardless of amount or balance.
	v := m.ValidateBuy(dec("1"), dec("1000000"), dec("100"))
	if v.Approved {
		t.Fatal("fourth trade within 24h should be rejected")
	}
	if !strings.Contains(v.Reason, "daily trade limit") {
		t.Fatalf("unexpected reason: %s", v.Reason)
	}

	// 24h after the first trade a slot frees up; cooldown has long passed.
	advance(22 * time.Hour)
	v = m.ValidateBuy(dec("4000"), dec("20000"), dec("100"))
	if !v.Approved {
		t.Fatalf("slot should have freed after 24h, got: %s", v.Reason)
	}
}

func TestValidateBuyZeroDailyLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDailyTrades = 0
	m, _ := newTestManager(cfg)

	// Empty history with a zero limit must reject, not panic.
	v := m.ValidateBuy(dec("4000"), dec("20000"), dec("100"))
	if v.Approved {
		t.Fatal("zero daily limit should reject every trade")
	}
	if !strings.Contains(v.Reason, "daily trade limit") {
		t.Fatalf("unexpected reason: %s", v.Reason)
	}

	v = m.ValidateSell(dec("0.001"), dec("0.01"), dec("110"), dec("100"))
	if v.Approved {
		t.Fatal("zero daily limit should reject sells too")
	}
}

func TestValidateBuyCooldown(t *testing.T) {
	m, advance := newTestManager(DefaultConfig())

	m.RecordTrade()

	v := m.ValidateBuy(dec("4000"), dec("20000"), dec("100"))
	if v.Approved {
		t.Fatal("buy during cooldown should be rejected")
	}
	if !strings.Contains(v.Reason, "cooldown") {
		t.Fatalf("unexpected reason: %s", v.Reason)
	}

	advance(31 * time.Minute)
	v = m.ValidateBuy(dec("4000"), dec("20000"), dec("100"))
	if !v.Approved {
		t.Fatalf("buy after cooldown should be approved, got: %s", v.Reason)
	}
}

func TestValidateBuyMinBalance(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())

	// 20000 - 16000 = 4000 < 5000 reserve; headroom is 15000.
	v := m.ValidateBuy(dec("16000"), dec("20000"), dec("100"))
	if v.Approved {
		t.Fatal("buy breaching the reserve should be rejected")
	}
	if !v.MaxAllowed.Equal(dec("15000")) {
		t.Fatalf("max allowed = %s, want 15000", v.MaxAllowed)
	}

	// Balance already at or below the reserve: no headroom at all.
	v = m.ValidateBuy(dec("1"), dec("4000"), dec("100"))
	if v.Approved {
		t.Fatal("buy with balance below reserve should be rejected")
	}
	if !strings.Contains(v.Reason, "below minimum reserve") {
		t.Fatalf("unexpected reason: %s", v.Reason)
	}
}

func TestValidateBuyMaxTradePct(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinBalanceQuote = decimal.Zero
	m, _ := newTestManager(cfg)

	// 30% of balance with a 25% ceiling.
	v := m.ValidateBuy(dec("30000"), dec("100000"), dec("100"))
	if v.Approved {
		t.Fatal("buy above the percentage ceiling should be rejected")
	}
	if !v.MaxAllowed.Equal(dec("25000")) {
		t.Fatalf("max allowed = %s, want 25000", v.MaxAllowed)
	}
}

func TestValidateBuyFeeImpact(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FeePct = dec("0.03") // pushes fee impact over the 2% guard
	cfg.MinBalanceQuote = decimal.Zero
	m, _ := newTestManager(cfg)

	v := m.ValidateBuy(dec("500"), dec("100000"), dec("100"))
	if v.Approved {
		t.Fatal("small trade with oversized fee impact should be rejected")
	}
	if !strings.Contains(v.Reason, "fee") {
		t.Fatalf("unexpected reason: %s", v.Reason)
	}

	// Above the small-trade threshold the guard does not apply.
	v = m.ValidateBuy(dec("15000"), dec("100000"), dec("100"))
	if !v.Approved {
		t.Fatalf("large trade should skip the fee guard, got: %s", v.Reason)
	}
}

func TestValidateSellHODL(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())

	// Current price below average buy price: always rejected.
	v := m.ValidateSell(dec("0.001"), dec("0.01"), dec("90"), dec("100"))
	if v.Approved {
		t.Fatal("sell below avg buy price should be rejected")
	}
	if !strings.Contains(v.Reason, "below average buy price") {
		t.Fatalf("unexpected reason: %s", v.Reason)
	}

	v = m.ValidateSell(dec("0.001"), dec("0.01"), dec("110"), dec("100"))
	if !v.Approved {
		t.Fatalf("profitable sell should be approved, got: %s", v.Reason)
	}
}

func TestValidateSellOversizedAmount(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())

	v := m.ValidateSell(dec("0.02"), dec("0.01"), dec("110"), dec("100"))
	if v.Approved {
		t.Fatal("sell above position should be rejected")
	}
	if !v.MaxAllowed.Equal(dec("0.01")) {
		t.Fatalf("max allowed = %s, want 0.01", v.MaxAllowed)
	}
}

func TestValidateSellNonPositiveAmount(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())

	for _, amount := range []string{"0", "-0.001"} {
		v := m.ValidateSell(dec(amount), dec("0"), dec("110"), dec("100"))
		if v.Approved {
			t.Fatalf("sell of %s should be rejected", amount)
		}
		if !strings.Contains(v.Reason, "no position") {
			t.Fatalf("unexpected reason: %s", v.Reason)
		}
	}
}

func TestValidateSellSharesHistoryRules(t *testing.T) {
	m, _ := newTestManager(DefaultConfig())
	for i := 0; i < 3; i++ {
		m.RecordTrade()
	}

	v := m.ValidateSell(dec("0.001"), dec("0.01"), dec("110"), dec("100"))
	if v.Approved {
		t.Fatal("sell should hit the daily limit too")
	}
	if !strings.Contains(v.Reason, "daily trade limit") {
		t.Fatalf("unexpected reason: %s", v.Reason)
	}
}

func TestStatus(t *testing.T) {
	m, advance := newTestManager(DefaultConfig())

	s := m.Status()
	if s.DailyTradesUsed != 0 || s.LastTradeTime != nil {
		t.Fatalf("fresh manager status: %+v", s)
	}

	m.RecordTrade()
	advance(10 * time.Minute)

	s = m.Status()
	if s.DailyTradesUsed != 1 {
		t.Fatalf("daily trades used = %d, want 1", s.DailyTradesUsed)
	}
	if s.CooldownRemaining != 20*time.Minute {
		t.Fatalf("cooldown remaining = %s, want 20m", s.CooldownRemaining)
	}

	advance(25 * time.Hour)
	s = m.Status()
	if s.DailyTradesUsed != 0 {
		t.Fatalf("window should have pruned, got %d", s.DailyTradesUsed)
	}
	if s.CooldownRemaining != 0 {
		t.Fatalf("cooldown should be over, got %s", s.CooldownRemaining)
	}
}
