// Package db persists positions, trades, and daily risk metrics in SQLite.
// Positions are keyed by symbol: at most one open position per symbol, and
// every open trade has a matching position row.
package db

import (
	"errors"
	"time"
)

// Trade lifecycle states. An order that never confirmed its fill leaves the
// trade unconfirmed until reconciliation either opens or voids it.
const (
	TradeStatusOpen        = "open"
	TradeStatusUnconfirmed = "unconfirmed"
	TradeStatusClosed      = "closed"
	TradeStatusVoid        = "void"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrTradeClosed = errors.New("trade already closed")
)

// Position is the current net exposure in one symbol. Quantity is signed:
// positive long, negative short.
type Position struct {
	Symbol        string    `json:"symbol"`
	Quantity      int64     `json:"quantity"`
	EntryPrice    float64   `json:"entry_price"`
	CurrentPrice  float64   `json:"current_price"`
	StopLoss      float64   `json:"stop_loss"`
	Strategy      string    `json:"strategy"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	EntryAt       time.Time `json:"entry_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Side returns "buy" for long positions and "sell" for short ones.
func (p Position) Side() string {
	if p.Quantity < 0 {
		return "sell"
	}
	return "buy"
}

// Trade records one round trip (or its open half). PnL fields are set on
// close only.
type Trade struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	Side       string     `json:"side"`
	Quantity   int64      `json:"quantity"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	StopLoss   float64    `json:"stop_loss"`
	Strategy   string     `json:"strategy"`
	Status     string     `json:"status"`
	OrderID    string     `json:"order_id,omitempty"`
	PnL        *float64   `json:"pnl,omitempty"`
	PnLPercent *float64   `json:"pnl_percent,omitempty"`
	EntryAt    time.Time  `json:"entry_at"`
	ExitAt     *time.Time `json:"exit_at,omitempty"`
}
