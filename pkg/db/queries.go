package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("db: not found")

// User is an account row.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser inserts a new user. The email must be unique.
func (d *Database) CreateUser(u User) error {
	_, err := d.DB.Exec(
		`INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail looks a user up for login.
func (d *Database) GetUserByEmail(email string) (*User, error) {
	row := d.DB.QueryRow(
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email)

	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// TradeRecord is one executed-trade audit row.
type TradeRecord struct {
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

// InsertTrade appends an executed trade to the audit log.
func (d *Database) InsertTrade(t TradeRecord) error {
	_, err := d.DB.Exec(
		`INSERT INTO trades (id, mode, symbol, side, price, amount_base, amount_quote, fee, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Mode, t.Symbol, t.Side,
		t.Price.String(), t.AmountBase.String(), t.AmountQuote.String(), t.Fee.String(),
		t.ExecutedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// ListTrades returns up to limit trades, newest first. limit <= 0 means all.
func (d *Database) ListTrades(limit int) ([]TradeRecord, error) {
	query := `SELECT id, mode, symbol, side, price, amount_base, amount_quote, fee, executed_at
	          FROM trades ORDER BY executed_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		var price, base, quote, fee string
		if err := rows.Scan(&t.ID, &t.Mode, &t.Symbol, &t.Side, &price, &base, &quote, &fee, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse trade price: %w", err)
		}
		if t.AmountBase, err = decimal.NewFromString(base); err != nil {
			return nil, fmt.Errorf("parse trade amount: %w", err)
		}
		if t.AmountQuote, err = decimal.NewFromString(quote); err != nil {
			return nil, fmt.Errorf("parse trade amount: %w", err)
		}
		if t.Fee, err = decimal.NewFromString(fee); err != nil {
			return nil, fmt.Errorf("parse trade fee: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
