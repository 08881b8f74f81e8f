// Package backtest replays a strategy over historical bars walk-forward:
// step i sees only bars[0..i], never future data. A single simulated
// position is held at a time, and exits reuse the live pipeline's rules
// (close signal, opposite signal, stop breach).
package backtest

import (
	"errors"
	"math"
	"time"

	"trading-agent/internal/marketdata"
	"trading-agent/internal/strategy"
)

// ErrNoBars is returned when the series is empty.
var ErrNoBars = errors.New("backtest: no bars")

// Config parameterizes a run.
type Config struct {
	InitialCapital   float64
	StopLossFraction float64
}

func DefaultConfig() Config {
	return Config{InitialCapital: 10_000, StopLossFraction: 0.02}
}

// Trade is one simulated round trip.
type Trade struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"` // long or short
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	EntryAt    time.Time `json:"entry_at"`
	ExitAt     time.Time `json:"exit_at"`
	PnL        float64   `json:"pnl"` // per-unit result
	PnLPercent float64   `json:"pnl_percent"`
	ExitReason string    `json:"exit_reason"`
}

// Result aggregates a run's statistics.
type Result struct {
	Symbol       string  `json:"symbol"`
	Strategy     string  `json:"strategy"`
	Trades       []Trade `json:"trades"`
	TotalTrades  int     `json:"total_trades"`
	Winners      int     `json:"winners"`
	Losers       int     `json:"losers"`
	WinRate      float64 `json:"win_rate"`
	TotalReturn  float64 `json:"total_return"` // fraction of initial capital
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	FinalCapital float64 `json:"final_capital"`
}

// openPosition is the single simulated position during a run.
type openPosition struct {
	side     strategy.Action // long or short
	entry    float64
	stop     float64
	openedAt time.Time
}

// Run replays one strategy over the bar series.
func Run(strat strategy.Strategy, symbol string, bars []marketdata.Bar, cfg Config) (Result, error) {
	if len(bars) == 0 {
		return Result{}, ErrNoBars
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = DefaultConfig().InitialCapital
	}
	if cfg.StopLossFraction <= 0 {
		cfg.StopLossFraction = DefaultConfig().StopLossFraction
	}

	res := Result{Symbol: symbol, Strategy: strat.Name()}
	capital := cfg.InitialCapital
	var pos *openPosition

	for i := range bars {
		window := bars[:i+1]
		bar := bars[i]
		sig := strat.GenerateSignal(symbol, window)

		if pos != nil {
			if reason, exited := exitReason(pos, bar.Close, sig); exited {
				trade := closeOut(pos, symbol, bar, reason)
				res.Trades = append(res.Trades, trade)
				capital *= 1 + trade.PnLPercent/100
				pos = nil
			}
			continue
		}

		if sig.Action == strategy.ActionLong || sig.Action == strategy.ActionShort {
			entry := sig.EntryPrice
			if entry <= 0 {
				entry = bar.Close
			}
			stop := sig.StopLoss
			if stop <= 0 {
				if sig.Action == strategy.ActionLong {
					stop = entry * (1 - cfg.StopLossFraction)
				} else {
					stop = entry * (1 + cfg.StopLossFraction)
				}
			}
			pos = &openPosition{side: sig.Action, entry: entry, stop: stop, openedAt: bar.Timestamp}
		}
	}

	res.FinalCapital = capital
	res.TotalReturn = (capital - cfg.InitialCapital) / cfg.InitialCapital
	aggregate(&res)
	return res, nil
}

// RunAll backtests every strategy over every symbol's series.
func RunAll(strategies []strategy.Strategy, bars map[string][]marketdata.Bar, cfg Config) ([]Result, error) {
	var out []Result
	for _, strat := range strategies {
		for symbol, series := range bars {
			res, err := Run(strat, symbol, series, cfg)
			if err != nil {
				return nil, err
			}
			out = append(out, res)
		}
	}
	return out, nil
}

// exitReason applies the exit rules in priority order: stop breach, close
// signal, opposite signal.
func exitReason(pos *openPosition, price float64, sig strategy.Output) (string, bool) {
	if pos.side == strategy.ActionLong && price <= pos.stop {
		return "stop_loss", true
	}
	if pos.side == strategy.ActionShort && price >= pos.stop {
		return "stop_loss", true
	}
	if sig.Action == strategy.ActionClose {
		return "close_signal", true
	}
	if (pos.side == strategy.ActionLong && sig.Action == strategy.ActionShort) ||
		(pos.side == strategy.ActionShort && sig.Action == strategy.ActionLong) {
		return "opposite_signal", true
	}
	return "", false
}

func closeOut(pos *openPosition, symbol string, bar marketdata.Bar, reason string) Trade {
	exit := bar.Close
	var pnl float64
	if pos.side == strategy.ActionLong {
		pnl = exit - pos.entry
	} else {
		pnl = pos.entry - exit
	}
	pct := 0.0
	if pos.entry > 0 {
		pct = pnl / pos.entry * 100
	}
	return Trade{
		Symbol:     symbol,
		Side:       string(pos.side),
		EntryPrice: pos.entry,
		ExitPrice:  exit,
		EntryAt:    pos.openedAt,
		ExitAt:     bar.Timestamp,
		PnL:        pnl,
		PnLPercent: pct,
		ExitReason: reason,
	}
}

func aggregate(res *Result) {
	res.TotalTrades = len(res.Trades)
	if res.TotalTrades == 0 {
		return
	}

	var winSum, lossSum float64
	for _, t := range res.Trades {
		if t.PnL > 0 {
			res.Winners++
			winSum += t.PnL
		} else if t.PnL < 0 {
			res.Losers++
			lossSum += t.PnL
		}
	}
	res.WinRate = float64(res.Winners) / float64(res.TotalTrades)
	if res.Winners > 0 {
		res.AvgWin = winSum / float64(res.Winners)
	}
	if res.Losers > 0 {
		res.AvgLoss = lossSum / float64(res.Losers)
	}
	if res.AvgLoss != 0 {
		res.ProfitFactor = math.Abs(res.AvgWin / res.AvgLoss)
	}
}
