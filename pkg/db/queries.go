package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertPosition stores the latest position for a symbol.
func (d *Database) UpsertPosition(ctx context.Context, p Position) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO positions (symbol, quantity, entry_price, current_price, stop_loss, strategy, unrealized_pnl, entry_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP), CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET
			quantity = excluded.quantity,
			entry_price = excluded.entry_price,
			current_price = excluded.current_price,
			stop_loss = excluded.stop_loss,
			strategy = excluded.strategy,
			unrealized_pnl = excluded.unrealized_pnl,
			updated_at = CURRENT_TIMESTAMP
	`, p.Symbol, p.Quantity, p.EntryPrice, p.CurrentPrice, p.StopLoss, p.Strategy, p.UnrealizedPnL, nullableTime(p.EntryAt))
	return err
}

// MarkPosition updates the last seen price and unrealized PnL for a symbol.
func (d *Database) MarkPosition(ctx context.Context, symbol string, price, unrealizedPnL float64) error {
	res, err := d.DB.ExecContext(ctx, `
		UPDATE positions
		SET current_price = ?, unrealized_pnl = ?, updated_at = CURRENT_TIMESTAMP
		WHERE symbol = ?
	`, price, unrealizedPnL, symbol)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPosition returns the position for a symbol, or ErrNotFound.
func (d *Database) GetPosition(ctx context.Context, symbol string) (Position, error) {
	row := d.DB.QueryRowContext(ctx, `
		SELECT symbol, quantity, entry_price, current_price, stop_loss, strategy, unrealized_pnl, entry_at, updated_at
		FROM positions WHERE symbol = ?
	`, symbol)
	var p Position
	err := row.Scan(&p.Symbol, &p.Quantity, &p.EntryPrice, &p.CurrentPrice, &p.StopLoss, &p.Strategy, &p.UnrealizedPnL, &p.EntryAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return Position{}, ErrNotFound
	}
	if err != nil {
		return Position{}, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

// GetOpenPositions returns all current positions.
func (d *Database) GetOpenPositions(ctx context.Context) ([]Position, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT symbol, quantity, entry_price, current_price, stop_loss, strategy, unrealized_pnl, entry_at, updated_at
		FROM positions ORDER BY symbol
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Symbol, &p.Quantity, &p.EntryPrice, &p.CurrentPrice, &p.StopLoss, &p.Strategy, &p.UnrealizedPnL, &p.EntryAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// RemovePosition deletes the position for a symbol.
func (d *Database) RemovePosition(ctx context.Context, symbol string) error {
	_, err := d.DB.ExecContext(ctx, `DELETE FROM positions WHERE symbol = ?`, symbol)
	return err
}

// LogTrade inserts a new trade row and returns its id.
func (d *Database) LogTrade(ctx context.Context, t Trade) (string, error) {
	if t.ID == "" {
		return "", fmt.Errorf("log trade: empty id")
	}
	if t.Status == "" {
		t.Status = TradeStatusOpen
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trades (id, symbol, side, quantity, entry_price, stop_loss, strategy, status, order_id, entry_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`, t.ID, t.Symbol, t.Side, t.Quantity, t.EntryPrice, t.StopLoss, t.Strategy, t.Status, t.OrderID, nullableTime(t.EntryAt))
	if err != nil {
		return "", fmt.Errorf("log trade: %w", err)
	}
	return t.ID, nil
}

// CloseTrade finalizes an open trade with its exit price and realized PnL.
// A trade closes exactly once: closing a closed or void trade returns
// ErrTradeClosed.
func (d *Database) CloseTrade(ctx context.Context, id string, exitPrice, pnl, pnlPercent float64, exitAt time.Time) error {
	var status string
	err := d.DB.QueryRowContext(ctx, `SELECT status FROM trades WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	if status == TradeStatusClosed || status == TradeStatusVoid {
		return ErrTradeClosed
	}

	_, err = d.DB.ExecContext(ctx, `
		UPDATE trades
		SET status = ?, exit_price = ?, pnl = ?, pnl_percent = ?, exit_at = ?
		WHERE id = ?
	`, TradeStatusClosed, exitPrice, pnl, pnlPercent, exitAt, id)
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	return nil
}

// UpdateTradeStatus sets the status of a trade.
func (d *Database) UpdateTradeStatus(ctx context.Context, id, status string) error {
	res, err := d.DB.ExecContext(ctx, `UPDATE trades SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConfirmTrade promotes an unconfirmed trade to open, persisting the price
// the venue actually filled at.
func (d *Database) ConfirmTrade(ctx context.Context, id string, entryPrice float64) error {
	res, err := d.DB.ExecContext(ctx,
		`UPDATE trades SET status = ?, entry_price = ? WHERE id = ?`,
		TradeStatusOpen, entryPrice, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOpenTrades returns trades whose round trip has not completed.
func (d *Database) GetOpenTrades(ctx context.Context) ([]Trade, error) {
	return d.tradesByStatus(ctx, TradeStatusOpen)
}

// GetUnconfirmedTrades returns trades awaiting fill reconciliation.
func (d *Database) GetUnconfirmedTrades(ctx context.Context) ([]Trade, error) {
	return d.tradesByStatus(ctx, TradeStatusUnconfirmed)
}

func (d *Database) tradesByStatus(ctx context.Context, status string) ([]Trade, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, symbol, side, quantity, entry_price, exit_price, stop_loss, strategy, status, order_id, pnl, pnl_percent, entry_at, exit_at
		FROM trades WHERE status = ?
		ORDER BY entry_at DESC
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

// ListRecentTrades returns the most recent trades regardless of status.
func (d *Database) ListRecentTrades(ctx context.Context, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, symbol, side, quantity, entry_price, exit_price, stop_loss, strategy, status, order_id, pnl, pnl_percent, entry_at, exit_at
		FROM trades
		ORDER BY entry_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]Trade, error) {
	var res []Trade
	for rows.Next() {
		var (
			t          Trade
			exitPrice  sql.NullFloat64
			pnl        sql.NullFloat64
			pnlPercent sql.NullFloat64
			exitAt     sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Quantity, &t.EntryPrice, &exitPrice, &t.StopLoss, &t.Strategy, &t.Status, &t.OrderID, &pnl, &pnlPercent, &t.EntryAt, &exitAt); err != nil {
			return nil, err
		}
		if exitPrice.Valid {
			t.ExitPrice = &exitPrice.Float64
		}
		if pnl.Valid {
			t.PnL = &pnl.Float64
		}
		if pnlPercent.Valid {
			t.PnLPercent = &pnlPercent.Float64
		}
		if exitAt.Valid {
			t.ExitAt = &exitAt.Time
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// RecordDailyPnL accumulates realized PnL into the day's risk metrics row.
func (d *Database) RecordDailyPnL(ctx context.Context, day string, pnl float64) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO risk_metrics (date, daily_pnl, daily_trades)
		VALUES (?, ?, 1)
		ON CONFLICT(date) DO UPDATE SET
			daily_pnl = daily_pnl + excluded.daily_pnl,
			daily_trades = daily_trades + 1
	`, day, pnl)
	return err
}

// GetDailyPnL returns the accumulated realized PnL for a day.
func (d *Database) GetDailyPnL(ctx context.Context, day string) (float64, error) {
	var pnl float64
	err := d.DB.QueryRowContext(ctx, `SELECT daily_pnl FROM risk_metrics WHERE date = ?`, day).Scan(&pnl)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return pnl, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
