// Package orchestrator sequences the pipeline into two independently
// schedulable cycles: the trading cycle (analyze, fuse, validate,
// execute) and the position-management cycle (reconcile, mark-to-market,
// exit). Cycles run to completion one at a time; a failing cycle aborts
// without corrupting risk state or the books and is retried on the next
// tick.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"trading-agent/internal/agent"
	"trading-agent/internal/analyzer"
	"trading-agent/internal/events"
	"trading-agent/internal/execution"
	"trading-agent/internal/marketdata"
	"trading-agent/internal/risk"
	"trading-agent/internal/strategy"
	"trading-agent/pkg/db"
)

// CycleSummary reports what one trading cycle did.
type CycleSummary struct {
	StartedAt     time.Time `json:"started_at"`
	Duration      string    `json:"duration"`
	Symbols       int       `json:"symbols"`
	Sentiment     string    `json:"sentiment"`
	Opportunities int       `json:"opportunities"`
	Executed      int       `json:"executed"`
	Rejected      int       `json:"rejected"`
}

// Orchestrator wires the collaborators together. All of them are
// injected; it owns no hidden state beyond the universe it trades.
type Orchestrator struct {
	source   marketdata.Source
	analyzer *analyzer.Analyzer
	agent    *agent.StrategyAgent
	risk     *risk.Manager
	exec     *execution.Agent
	store    *db.Database
	bus      *events.Bus

	universe     []string
	lookbackDays int
}

func New(
	source marketdata.Source,
	an *analyzer.Analyzer,
	ag *agent.StrategyAgent,
	rm *risk.Manager,
	ex *execution.Agent,
	store *db.Database,
	bus *events.Bus,
	universe []string,
	lookbackDays int,
) *Orchestrator {
	if lookbackDays <= 0 {
		lookbackDays = 100
	}
	return &Orchestrator{
		source:       source,
		analyzer:     an,
		agent:        ag,
		risk:         rm,
		exec:         ex,
		store:        store,
		bus:          bus,
		universe:     universe,
		lookbackDays: lookbackDays,
	}
}

func (o *Orchestrator) Universe() []string { return o.universe }

// RunTradingCycle performs one full pass: refresh portfolio value, fetch
// bars, analyze the universe, scan for opportunities, and validate and
// execute each one in ranked order.
func (o *Orchestrator) RunTradingCycle(ctx context.Context) (CycleSummary, error) {
	start := time.Now()
	summary := CycleSummary{StartedAt: start.UTC()}
	o.publish(events.EventCycleStarted, summary)

	o.refreshPortfolioValue(ctx)

	bars, err := o.source.GetBars(ctx, o.universe, o.lookbackDays)
	if err != nil {
		return summary, fmt.Errorf("trading cycle: fetch bars: %w", err)
	}

	market := o.analyzer.AnalyzeUniverse(bars)
	summary.Symbols = len(market.Symbols)
	summary.Sentiment = market.Sentiment

	opportunities := o.agent.ScanUniverse(bars, market)
	summary.Opportunities = len(opportunities)

	open, err := o.store.GetOpenPositions(ctx)
	if err != nil {
		return summary, fmt.Errorf("trading cycle: load positions: %w", err)
	}
	pending, err := o.store.GetUnconfirmedTrades(ctx)
	if err != nil {
		return summary, fmt.Errorf("trading cycle: load unconfirmed trades: %w", err)
	}

	for _, opp := range opportunities {
		o.publish(events.EventStrategySignal, opp)

		volatility := market.Symbols[opp.Symbol].Volatility
		validation := o.risk.ValidateTrade(opp, volatility, open, pending)
		if !validation.Approved {
			summary.Rejected++
			log.Printf("orchestrator: %s %s rejected: %s", opp.Action, opp.Symbol, validation.Reason)
			o.publish(events.EventTradeRejected, validation)
			continue
		}
		o.publish(events.EventTradeValidated, validation)

		trade, err := o.exec.ExecuteTrade(ctx, opp, validation.Sizing.Quantity, leadStrategy(opp))
		if err != nil {
			log.Printf("orchestrator: execute %s %s: %v", opp.Action, opp.Symbol, err)
			continue
		}
		if trade.Status == db.TradeStatusOpen {
			summary.Executed++
		}

		// Later opportunities see the updated book, including any fill
		// still awaiting confirmation.
		if open, err = o.store.GetOpenPositions(ctx); err != nil {
			return summary, fmt.Errorf("trading cycle: reload positions: %w", err)
		}
		if pending, err = o.store.GetUnconfirmedTrades(ctx); err != nil {
			return summary, fmt.Errorf("trading cycle: reload unconfirmed trades: %w", err)
		}
	}

	summary.Duration = time.Since(start).Round(time.Millisecond).String()
	o.publish(events.EventCycleFinished, summary)
	log.Printf("orchestrator: cycle done in %s: %d symbols, %d opportunities, %d executed, %d rejected",
		summary.Duration, summary.Symbols, summary.Opportunities, summary.Executed, summary.Rejected)
	return summary, nil
}

// ManagePositions reconciles unconfirmed fills, marks every open position
// to market, and exits the ones whose stop or signal says so.
func (o *Orchestrator) ManagePositions(ctx context.Context) error {
	if err := o.exec.ReconcileUnconfirmed(ctx); err != nil {
		log.Printf("orchestrator: reconcile unconfirmed: %v", err)
	}

	positions, err := o.store.GetOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("manage positions: load: %w", err)
	}

	for _, pos := range positions {
		price, err := o.source.GetLatestPrice(ctx, pos.Symbol)
		if err != nil {
			log.Printf("orchestrator: no price for %s: %v", pos.Symbol, err)
			continue
		}
		o.publish(events.EventPriceTick, map[string]any{"symbol": pos.Symbol, "price": price})

		unrealized := (price - pos.EntryPrice) * float64(pos.Quantity)
		if err := o.store.MarkPosition(ctx, pos.Symbol, price, unrealized); err != nil {
			log.Printf("orchestrator: mark %s: %v", pos.Symbol, err)
		}

		sig := o.freshSignal(ctx, pos.Symbol)
		decision := o.risk.ShouldClose(pos, price, sig)
		if !decision.ShouldExit {
			continue
		}

		res, err := o.exec.ClosePosition(ctx, pos.Symbol, price, decision.ExitType, decision.Reason)
		if err != nil {
			log.Printf("orchestrator: close %s: %v", pos.Symbol, err)
			continue
		}

		o.risk.AddRealizedPnL(res.PnL)
		day := time.Now().UTC().Format("2006-01-02")
		if err := o.store.RecordDailyPnL(ctx, day, res.PnL); err != nil {
			log.Printf("orchestrator: record daily pnl: %v", err)
		}
		if s := o.risk.Summary(); s.TradingHalted {
			log.Printf("orchestrator: daily loss limit reached (%.2f), new entries halted", s.DailyPnL)
			o.publish(events.EventRiskAlert, s)
		}
	}
	return nil
}

// freshSignal re-evaluates the symbol for the exit decision. Returns nil
// when data is unavailable; the stop check still runs without it.
func (o *Orchestrator) freshSignal(ctx context.Context, symbol string) *agent.CombinedSignal {
	bars, err := o.source.GetBars(ctx, []string{symbol}, o.lookbackDays)
	if err != nil {
		log.Printf("orchestrator: fetch bars for %s: %v", symbol, err)
		return nil
	}
	series, ok := bars[symbol]
	if !ok {
		return nil
	}

	regime := ""
	if analysis, err := o.analyzer.AnalyzeSymbol(symbol, series); err == nil {
		regime = analysis.Regime
	}
	sig := o.agent.Evaluate(symbol, series, regime)
	return &sig
}

// refreshPortfolioValue pulls account equity from the venue; on failure
// the previous value stays in effect.
func (o *Orchestrator) refreshPortfolioValue(ctx context.Context) {
	acct, err := o.exec.AccountInfo(ctx)
	if err != nil {
		log.Printf("orchestrator: account info unavailable, keeping last portfolio value: %v", err)
		return
	}
	o.risk.SetPortfolioValue(acct.Equity)
}

// leadStrategy names the strongest strategy agreeing with the fused
// action, for trade attribution.
func leadStrategy(sig agent.CombinedSignal) string {
	best := ""
	strength := -1.0
	for _, s := range sig.Signals {
		agrees := (sig.Action == agent.ActionBuy && s.Action == strategy.ActionLong) ||
			(sig.Action == agent.ActionSell && s.Action == strategy.ActionShort)
		if agrees && s.Strength > strength {
			best = s.Strategy
			strength = s.Strength
		}
	}
	if best == "" {
		return "fusion"
	}
	return best
}

func (o *Orchestrator) publish(e events.Event, payload any) {
	if o.bus != nil {
		o.bus.Publish(e, payload)
	}
}
