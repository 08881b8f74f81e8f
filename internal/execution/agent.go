package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"trading-agent/internal/agent"
	"trading-agent/internal/events"
	"trading-agent/pkg/db"
)

// ErrFillUnconfirmed marks an order whose fill could not be confirmed
// within the polling window. The trade is recorded as unconfirmed and
// reconciled on a later cycle.
var ErrFillUnconfirmed = errors.New("execution: fill not confirmed")

// Store is the persistence the agent needs for its bookkeeping.
// *db.Database satisfies it.
type Store interface {
	LogTrade(ctx context.Context, t db.Trade) (string, error)
	CloseTrade(ctx context.Context, id string, exitPrice, pnl, pnlPercent float64, exitAt time.Time) error
	ConfirmTrade(ctx context.Context, id string, entryPrice float64) error
	UpdateTradeStatus(ctx context.Context, id, status string) error
	GetOpenTrades(ctx context.Context) ([]db.Trade, error)
	GetUnconfirmedTrades(ctx context.Context) ([]db.Trade, error)
	UpsertPosition(ctx context.Context, p db.Position) error
	GetPosition(ctx context.Context, symbol string) (db.Position, error)
	GetOpenPositions(ctx context.Context) ([]db.Position, error)
	RemovePosition(ctx context.Context, symbol string) error
}

// CloseResult summarizes a completed round trip.
type CloseResult struct {
	Symbol     string  `json:"symbol"`
	Quantity   int64   `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	PnL        float64 `json:"pnl"`
	PnLPercent float64 `json:"pnl_percent"`
	ExitType   string  `json:"exit_type"`
	Reason     string  `json:"reason"`
}

// Agent executes validated trades against a venue and maintains the
// position/trade books. One instance serves both simulated and live
// venues; the venue is injected.
type Agent struct {
	store Store
	venue Venue
	bus   *events.Bus

	// Fill-confirmation polling: bounded attempts with doubling delay,
	// globally throttled so live venues are not hammered.
	limiter      *rate.Limiter
	maxAttempts  int
	initialDelay time.Duration
}

func NewAgent(store Store, venue Venue, bus *events.Bus) *Agent {
	return &Agent{
		store:        store,
		venue:        venue,
		bus:          bus,
		limiter:      rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
		maxAttempts:  5,
		initialDelay: 200 * time.Millisecond,
	}
}

// SetPolling overrides the fill-confirmation settings. Useful for tests and
// for venues with slow fill reporting.
func (a *Agent) SetPolling(attempts int, initialDelay time.Duration) {
	if attempts > 0 {
		a.maxAttempts = attempts
	}
	if initialDelay > 0 {
		a.initialDelay = initialDelay
	}
}

// ExecuteTrade places an entry order for an approved signal. On a
// confirmed fill it opens a Trade and upserts the Position. If the fill
// cannot be confirmed in time, the trade is recorded as unconfirmed and
// no position is created; ReconcileUnconfirmed settles it later.
func (a *Agent) ExecuteTrade(ctx context.Context, sig agent.CombinedSignal, quantity int64, strategyName string) (db.Trade, error) {
	side, err := sideForAction(sig.Action)
	if err != nil {
		return db.Trade{}, err
	}
	if quantity <= 0 {
		return db.Trade{}, fmt.Errorf("execute trade: invalid quantity %d", quantity)
	}

	req := OrderRequest{
		Symbol:   sig.Symbol,
		Side:     side,
		Quantity: quantity,
		Type:     OrderTypeMarket,
		Price:    sig.EntryPrice,
		ClientID: uuid.NewString(),
	}
	a.publish(events.EventOrderSubmitted, req)

	ack, err := a.venue.PlaceOrder(ctx, req)
	if err != nil {
		return db.Trade{}, fmt.Errorf("place order %s %s: %w", side, sig.Symbol, err)
	}

	trade := db.Trade{
		ID:         uuid.NewString(),
		Symbol:     sig.Symbol,
		Side:       side,
		Quantity:   quantity,
		EntryPrice: sig.EntryPrice,
		StopLoss:   sig.StopLoss,
		Strategy:   strategyName,
		OrderID:    ack.OrderID,
		EntryAt:    time.Now().UTC(),
	}

	state, err := a.awaitFill(ctx, ack.OrderID)
	if errors.Is(err, ErrFillUnconfirmed) {
		trade.Status = db.TradeStatusUnconfirmed
		if _, logErr := a.store.LogTrade(ctx, trade); logErr != nil {
			return db.Trade{}, fmt.Errorf("record unconfirmed trade: %w", logErr)
		}
		log.Printf("execution: order %s for %s unconfirmed after %d polls, deferred to reconciliation",
			ack.OrderID, sig.Symbol, a.maxAttempts)
		a.publish(events.EventOrderUnconfirmed, trade)
		return trade, nil
	}
	if err != nil {
		return db.Trade{}, fmt.Errorf("confirm fill for %s: %w", ack.OrderID, err)
	}

	if state.FilledPrice > 0 {
		trade.EntryPrice = state.FilledPrice
	}
	trade.Status = db.TradeStatusOpen
	if _, err := a.store.LogTrade(ctx, trade); err != nil {
		return db.Trade{}, fmt.Errorf("record trade: %w", err)
	}
	if err := a.store.UpsertPosition(ctx, positionFromTrade(trade)); err != nil {
		return db.Trade{}, fmt.Errorf("record position: %w", err)
	}

	log.Printf("execution: filled %s %d %s @ %.2f (%s)", side, quantity, sig.Symbol, trade.EntryPrice, strategyName)
	a.publish(events.EventOrderFilled, trade)
	return trade, nil
}

// ClosePosition exits an open position with an opposite-side order at the
// reference price. State changes only after the closing fill is
// confirmed.
func (a *Agent) ClosePosition(ctx context.Context, symbol string, refPrice float64, exitType, reason string) (CloseResult, error) {
	pos, err := a.store.GetPosition(ctx, symbol)
	if err != nil {
		return CloseResult{}, fmt.Errorf("close %s: %w", symbol, err)
	}

	qty := pos.Quantity
	side := SideSell
	if qty < 0 {
		side = SideBuy
		qty = -qty
	}

	req := OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
		Type:     OrderTypeMarket,
		Price:    refPrice,
		ClientID: uuid.NewString(),
	}
	a.publish(events.EventOrderSubmitted, req)

	ack, err := a.venue.PlaceOrder(ctx, req)
	if err != nil {
		return CloseResult{}, fmt.Errorf("place closing order for %s: %w", symbol, err)
	}
	state, err := a.awaitFill(ctx, ack.OrderID)
	if err != nil {
		// The books stay untouched: the position remains open and the
		// next management cycle retries the exit.
		return CloseResult{}, fmt.Errorf("confirm closing fill for %s: %w", symbol, err)
	}

	exitPrice := state.FilledPrice
	if exitPrice <= 0 {
		exitPrice = refPrice
	}

	res := CloseResult{
		Symbol:     symbol,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		ExitType:   exitType,
		Reason:     reason,
	}
	res.PnL, res.PnLPercent = realizedPnL(pos.Quantity, pos.EntryPrice, exitPrice)

	if tradeID, ok := a.openTradeID(ctx, symbol); ok {
		if err := a.store.CloseTrade(ctx, tradeID, exitPrice, res.PnL, res.PnLPercent, time.Now().UTC()); err != nil {
			return CloseResult{}, fmt.Errorf("close trade %s: %w", tradeID, err)
		}
	} else {
		log.Printf("execution: no open trade found for %s, closing position only", symbol)
	}
	if err := a.store.RemovePosition(ctx, symbol); err != nil {
		return CloseResult{}, fmt.Errorf("remove position %s: %w", symbol, err)
	}

	log.Printf("execution: closed %s %d @ %.2f, pnl %.2f (%s)", symbol, pos.Quantity, exitPrice, res.PnL, exitType)
	a.publish(events.EventPositionClosed, res)
	return res, nil
}

// ReconcileUnconfirmed settles trades whose entry fill was never
// confirmed: filled orders open their position, dead orders void the
// trade, pending ones stay for the next pass.
func (a *Agent) ReconcileUnconfirmed(ctx context.Context) error {
	pending, err := a.store.GetUnconfirmedTrades(ctx)
	if err != nil {
		return fmt.Errorf("load unconfirmed trades: %w", err)
	}

	for _, trade := range pending {
		state, err := a.venue.GetOrder(ctx, trade.OrderID)
		if errors.Is(err, ErrUnknownOrder) {
			log.Printf("execution: order %s vanished, voiding trade %s", trade.OrderID, trade.ID)
			if err := a.store.UpdateTradeStatus(ctx, trade.ID, db.TradeStatusVoid); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("reconcile order %s: %w", trade.OrderID, err)
		}

		switch state.Status {
		case OrderStatusFilled:
			if state.FilledPrice > 0 {
				trade.EntryPrice = state.FilledPrice
			}
			if err := a.store.ConfirmTrade(ctx, trade.ID, trade.EntryPrice); err != nil {
				return err
			}
			if err := a.store.UpsertPosition(ctx, positionFromTrade(trade)); err != nil {
				return err
			}
			log.Printf("execution: reconciled trade %s as filled @ %.2f", trade.ID, trade.EntryPrice)
			a.publish(events.EventOrderFilled, trade)
		case OrderStatusCancelled, OrderStatusRejected:
			if err := a.store.UpdateTradeStatus(ctx, trade.ID, db.TradeStatusVoid); err != nil {
				return err
			}
			log.Printf("execution: reconciled trade %s as void (%s)", trade.ID, state.Status)
		default:
			// Still pending at the venue: try again next cycle.
		}
	}
	return nil
}

// AccountInfo reports the venue account plus the marked value of open
// positions, so portfolio value stays meaningful while capital is
// deployed.
func (a *Agent) AccountInfo(ctx context.Context) (Account, error) {
	acct, err := a.venue.GetAccount(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	positions, err := a.store.GetOpenPositions(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("load positions: %w", err)
	}
	for _, p := range positions {
		acct.Equity += float64(p.Quantity) * p.CurrentPrice
	}
	return acct, nil
}

// awaitFill polls for fill confirmation: at most maxAttempts polls with a
// doubling delay, throttled by the shared limiter.
func (a *Agent) awaitFill(ctx context.Context, orderID string) (OrderState, error) {
	delay := a.initialDelay
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return OrderState{}, err
		}
		state, err := a.venue.GetOrder(ctx, orderID)
		if err != nil {
			return OrderState{}, err
		}
		switch state.Status {
		case OrderStatusFilled:
			return state, nil
		case OrderStatusCancelled, OrderStatusRejected:
			return state, fmt.Errorf("order %s ended %s", orderID, state.Status)
		}

		if attempt == a.maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return OrderState{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return OrderState{}, ErrFillUnconfirmed
}

func (a *Agent) openTradeID(ctx context.Context, symbol string) (string, bool) {
	open, err := a.store.GetOpenTrades(ctx)
	if err != nil {
		log.Printf("execution: load open trades: %v", err)
		return "", false
	}
	for _, t := range open {
		if t.Symbol == symbol {
			return t.ID, true
		}
	}
	return "", false
}

func (a *Agent) publish(e events.Event, payload any) {
	if a.bus != nil {
		a.bus.Publish(e, payload)
	}
}

func positionFromTrade(t db.Trade) db.Position {
	qty := t.Quantity
	if t.Side == SideSell {
		qty = -qty
	}
	return db.Position{
		Symbol:       t.Symbol,
		Quantity:     qty,
		EntryPrice:   t.EntryPrice,
		CurrentPrice: t.EntryPrice,
		StopLoss:     t.StopLoss,
		Strategy:     t.Strategy,
		EntryAt:      t.EntryAt,
	}
}

// realizedPnL computes the round-trip result. Long: (exit-entry)*qty;
// short: (entry-exit)*|qty|. The percentage is relative to entry value.
func realizedPnL(signedQty int64, entry, exit float64) (pnl, pnlPercent float64) {
	qty := signedQty
	if qty < 0 {
		qty = -qty
	}
	if signedQty >= 0 {
		pnl = (exit - entry) * float64(qty)
	} else {
		pnl = (entry - exit) * float64(qty)
	}
	if entry > 0 && qty > 0 {
		pnlPercent = pnl / (entry * float64(qty)) * 100
	}
	return pnl, pnlPercent
}

func sideForAction(action string) (string, error) {
	switch action {
	case agent.ActionBuy:
		return SideBuy, nil
	case agent.ActionSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("execute trade: action %q is not tradable", action)
	}
}
