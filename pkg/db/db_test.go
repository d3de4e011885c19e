package db

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := New(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := ApplyMigrations(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func TestUserRoundTrip(t *testing.T) {
	d := newTestDB(t)

	u := User{ID: "u1", Email: "trader@example.com", PasswordHash: "hash"}
	if err := d.CreateUser(u); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := d.GetUserByEmail("trader@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "u1" || got.PasswordHash != "hash" {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := d.GetUserByEmail("nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Duplicate email violates the unique constraint.
	if err := d.CreateUser(User{ID: "u2", Email: "trader@example.com", PasswordHash: "x"}); err == nil {
		t.Fatal("duplicate email should fail")
	}
}

func TestTradeAuditLog(t *testing.T) {
	d := newTestDB(t)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, price := range []string{"100", "200", "300"} {
		p, _ := decimal.NewFromString(price)
		err := d.InsertTrade(TradeRecord{
			ID:          price,
			Mode:        "paper",
			Symbol:      "BTC-CLP",
			Side:        "buy",
			Price:       p,
			AmountBase:  decimal.NewFromFloat(0.001),
			AmountQuote: decimal.NewFromInt(1000),
			Fee:         decimal.NewFromInt(8),
			ExecutedAt:  base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	trades, err := d.ListTrades(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("len = %d, want 2", len(trades))
	}
	if !trades[0].Price.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("not newest first: %s", trades[0].Price)
	}
	if !trades[0].Fee.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("fee = %s, want 8", trades[0].Fee)
	}

	all, err := d.ListTrades(0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
}
