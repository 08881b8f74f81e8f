package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"trading-agent/internal/agent"
	"trading-agent/internal/analyzer"
	"trading-agent/internal/execution"
	"trading-agent/internal/marketdata"
	"trading-agent/internal/risk"
	"trading-agent/internal/strategy"
	"trading-agent/pkg/db"
)

// alwaysLong signals an entry on every bar, which drives the pipeline
// deterministically through validation and execution.
type alwaysLong struct {
	entry, stop float64
}

func (s alwaysLong) Name() string { return "alwayslong" }

func (s alwaysLong) GenerateSignal(symbol string, bars []marketdata.Bar) strategy.Output {
	return strategy.Output{
		Strategy:   "alwayslong",
		Action:     strategy.ActionLong,
		Strength:   1,
		EntryPrice: s.entry,
		StopLoss:   s.stop,
	}
}

func flatBars(n int, price float64) []marketdata.Bar {
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]marketdata.Bar, n)
	for i := range bars {
		bars[i] = marketdata.Bar{Timestamp: base.AddDate(0, 0, i), Close: price, Volume: 1_000_000}
	}
	return bars
}

type fixture struct {
	orch   *Orchestrator
	source *marketdata.MockSource
	store  *db.Database
	risk   *risk.Manager
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	store, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := db.ApplyMigrations(store); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	source := marketdata.NewMockSource(100, 0.5, 1)
	source.SetBars("AAPL", flatBars(60, 100))

	rm := risk.NewManager(risk.DefaultConfig(), 10_000)
	exec := execution.NewAgent(store, execution.NewSimVenue(10_000), nil)
	ag := agent.New([]strategy.Strategy{alwaysLong{entry: 100, stop: 98}})

	orch := New(source, analyzer.New(), ag, rm, exec, store, nil, []string{"AAPL"}, 60)
	return fixture{orch: orch, source: source, store: store, risk: rm}
}

func TestTradingCycleOpensPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	summary, err := f.orch.RunTradingCycle(ctx)
	if err != nil {
		t.Fatalf("RunTradingCycle: %v", err)
	}
	if summary.Opportunities != 1 || summary.Executed != 1 {
		t.Fatalf("summary = %+v, want 1 opportunity executed", summary)
	}

	pos, err := f.store.GetPosition(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	// risk cap: 200/2 = 100 shares; position cap trims to 2000/100 = 20.
	if pos.Quantity != 20 {
		t.Fatalf("quantity = %d, want 20", pos.Quantity)
	}
	if pos.Strategy != "alwayslong" {
		t.Fatalf("strategy attribution = %q", pos.Strategy)
	}

	open, _ := f.store.GetOpenTrades(ctx)
	if len(open) != 1 {
		t.Fatalf("open trades = %d, want 1", len(open))
	}
}

func TestTradingCycleNoPyramiding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.orch.RunTradingCycle(ctx); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	summary, err := f.orch.RunTradingCycle(ctx)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if summary.Executed != 0 || summary.Rejected != 1 {
		t.Fatalf("summary = %+v, want rejection of duplicate entry", summary)
	}

	positions, _ := f.store.GetOpenPositions(ctx)
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}
}

// delayedVenue acknowledges orders but reports no fill until Settle is
// called.
type delayedVenue struct {
	filled bool
	orders int
}

func (v *delayedVenue) Settle() { v.filled = true }

func (v *delayedVenue) PlaceOrder(ctx context.Context, req execution.OrderRequest) (execution.OrderAck, error) {
	v.orders++
	return execution.OrderAck{OrderID: "late-1", Status: execution.OrderStatusNew}, nil
}

func (v *delayedVenue) GetOrder(ctx context.Context, orderID string) (execution.OrderState, error) {
	if v.filled {
		return execution.OrderState{OrderID: orderID, Status: execution.OrderStatusFilled, FilledPrice: 100.5}, nil
	}
	return execution.OrderState{OrderID: orderID, Status: execution.OrderStatusNew}, nil
}

func (v *delayedVenue) GetAccount(ctx context.Context) (execution.Account, error) {
	return execution.Account{Cash: 10_000, Equity: 10_000, BuyingPower: 10_000}, nil
}

func (v *delayedVenue) CancelAllOrders(ctx context.Context) error { return nil }

func TestSlowFillBlocksReentryUntilReconciled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	venue := &delayedVenue{}
	exec := execution.NewAgent(f.store, venue, nil)
	exec.SetPolling(1, time.Millisecond)
	ag := agent.New([]strategy.Strategy{alwaysLong{entry: 100, stop: 98}})
	orch := New(f.source, analyzer.New(), ag, f.risk, exec, f.store, nil, []string{"AAPL"}, 60)

	// First cycle: the fill never confirms, so the trade is parked as
	// unconfirmed and no position exists yet.
	summary, err := orch.RunTradingCycle(ctx)
	if err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if summary.Executed != 0 {
		t.Fatalf("executed = %d, want 0 while fill is pending", summary.Executed)
	}
	pending, _ := f.store.GetUnconfirmedTrades(ctx)
	if len(pending) != 1 {
		t.Fatalf("unconfirmed trades = %d, want 1", len(pending))
	}

	// Second cycle: the symbol is committed to the pending fill, so the
	// duplicate entry is rejected instead of double-booking.
	summary, err = orch.RunTradingCycle(ctx)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if summary.Executed != 0 || summary.Rejected != 1 {
		t.Fatalf("summary = %+v, want rejection while fill is pending", summary)
	}
	if venue.orders != 1 {
		t.Fatalf("orders placed = %d, want 1", venue.orders)
	}

	// The venue settles: reconciliation opens exactly one trade and one
	// position, both at the filled price.
	venue.Settle()
	if err := orch.ManagePositions(ctx); err != nil {
		t.Fatalf("ManagePositions: %v", err)
	}
	open, _ := f.store.GetOpenTrades(ctx)
	if len(open) != 1 {
		t.Fatalf("open trades = %d, want 1", len(open))
	}
	if open[0].EntryPrice != 100.5 {
		t.Fatalf("trade entry = %.2f, want filled price 100.5", open[0].EntryPrice)
	}
	pos, err := f.store.GetPosition(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetPosition after reconcile: %v", err)
	}
	if pos.Quantity != 20 || pos.EntryPrice != 100.5 {
		t.Fatalf("position = %+v, want qty 20 @ 100.5", pos)
	}
}

func TestManagePositionsMarksToMarket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.orch.RunTradingCycle(ctx); err != nil {
		t.Fatalf("RunTradingCycle: %v", err)
	}

	// Price dips but stays above the stop; the aligned long signal keeps
	// the position open.
	f.source.SetBars("AAPL", flatBars(61, 99))
	if err := f.orch.ManagePositions(ctx); err != nil {
		t.Fatalf("ManagePositions: %v", err)
	}

	pos, err := f.store.GetPosition(ctx, "AAPL")
	if err != nil {
		t.Fatalf("position should survive: %v", err)
	}
	if pos.CurrentPrice != 99 {
		t.Fatalf("current price = %.2f, want 99", pos.CurrentPrice)
	}
	if pos.UnrealizedPnL != -20 {
		t.Fatalf("unrealized = %.2f, want -20 ((99-100)*20)", pos.UnrealizedPnL)
	}
}

func TestManagePositionsStopLossExit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.orch.RunTradingCycle(ctx); err != nil {
		t.Fatalf("RunTradingCycle: %v", err)
	}

	// Breach the 98 stop: the exit fires even though the strategy still
	// says long.
	f.source.SetBars("AAPL", flatBars(61, 97))
	if err := f.orch.ManagePositions(ctx); err != nil {
		t.Fatalf("ManagePositions: %v", err)
	}

	if _, err := f.store.GetPosition(ctx, "AAPL"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("position should be closed, err %v", err)
	}
	if got := f.risk.Summary().DailyPnL; got != -60 {
		t.Fatalf("daily pnl = %.2f, want -60 ((97-100)*20)", got)
	}

	day := time.Now().UTC().Format("2006-01-02")
	pnl, err := f.store.GetDailyPnL(ctx, day)
	if err != nil || pnl != -60 {
		t.Fatalf("persisted daily pnl = %.2f err %v, want -60", pnl, err)
	}
}

// downSource always fails, standing in for an unreachable data feed.
type downSource struct{}

func (downSource) GetBars(ctx context.Context, symbols []string, lookbackDays int) (map[string][]marketdata.Bar, error) {
	return nil, errors.New("feed unreachable")
}

func (downSource) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	return 0, errors.New("feed unreachable")
}

func TestTradingCycleAbortsCleanlyOnDataFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	store := f.store
	rm := f.risk
	exec := execution.NewAgent(store, execution.NewSimVenue(10_000), nil)
	ag := agent.New([]strategy.Strategy{alwaysLong{entry: 100, stop: 98}})
	broken := New(downSource{}, analyzer.New(), ag, rm, exec, store, nil, []string{"AAPL"}, 60)

	if _, err := broken.RunTradingCycle(ctx); err == nil {
		t.Fatal("expected cycle error when feed is down")
	}

	// Nothing was mutated: the next cycle on a healthy source works.
	positions, _ := store.GetOpenPositions(ctx)
	if len(positions) != 0 {
		t.Fatalf("positions = %d, want 0 after aborted cycle", len(positions))
	}
	if _, err := f.orch.RunTradingCycle(ctx); err != nil {
		t.Fatalf("healthy cycle after abort: %v", err)
	}
}
