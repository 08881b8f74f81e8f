// Package agent fuses independent strategy signals into one decision per
// symbol. Strategies vote in a shared directional vocabulary; the agent
// counts votes, scores confidence, applies the market-regime discount, and
// ranks the resulting opportunities.
package agent

import (
	"sort"

	"trading-agent/internal/analyzer"
	"trading-agent/internal/marketdata"
	"trading-agent/internal/strategy"
)

// Trade-signal vocabulary after normalization. Strategies speak
// long/short; downstream consumers speak buy/sell.
const (
	ActionBuy   = "buy"
	ActionSell  = "sell"
	ActionClose = "close"
	ActionHold  = "hold"
)

// minBars is the history required before fusing signals for a symbol.
const minBars = 50

// CombinedSignal is the fused decision for one symbol.
type CombinedSignal struct {
	Symbol      string            `json:"symbol"`
	Action      string            `json:"action"`
	Confidence  float64           `json:"confidence"`
	Reasoning   string            `json:"reasoning"`
	EntryPrice  float64           `json:"entry_price,omitempty"`
	StopLoss    float64           `json:"stop_loss,omitempty"`
	TargetPrice float64           `json:"target_price,omitempty"`
	Signals     []strategy.Output `json:"signals"`
}

// StrategyAgent runs a fixed strategy set and fuses their outputs.
type StrategyAgent struct {
	strategies []strategy.Strategy
}

func New(strategies []strategy.Strategy) *StrategyAgent {
	return &StrategyAgent{strategies: strategies}
}

// Evaluate runs every strategy on the symbol's bars and fuses the votes.
// The regime, when known, discounts confidence in volatile markets.
func (a *StrategyAgent) Evaluate(symbol string, bars []marketdata.Bar, regime string) CombinedSignal {
	out := CombinedSignal{Symbol: symbol, Action: ActionHold}
	if len(bars) < minBars || len(a.strategies) == 0 {
		out.Reasoning = "insufficient data"
		return out
	}

	signals := make([]strategy.Output, 0, len(a.strategies))
	for _, s := range a.strategies {
		signals = append(signals, s.GenerateSignal(symbol, bars))
	}
	out.Signals = signals

	votes := map[string]int{}
	for _, sig := range signals {
		votes[normalize(sig.Action)]++
	}
	total := len(signals)

	// A close vote from any strategy wins outright: exiting is never
	// blocked by a disagreeing entry signal.
	if votes[ActionClose] > 0 {
		out.Action = ActionClose
		out.Confidence = float64(votes[ActionClose]) / float64(total)
		out.Reasoning = reasonFor(signals, strategy.ActionClose)
		return out
	}

	buy, sell, holdN := votes[ActionBuy], votes[ActionSell], votes[ActionHold]
	var winner string
	var winnerVotes int
	switch {
	case buy > sell && buy > holdN:
		winner, winnerVotes = ActionBuy, buy
	case sell > buy && sell > holdN:
		winner, winnerVotes = ActionSell, sell
	default:
		out.Reasoning = "no consensus"
		return out
	}

	agreeing := agreeingSignals(signals, winner)
	avgStrength := 0.0
	for _, sig := range agreeing {
		avgStrength += sig.Strength
	}
	avgStrength /= float64(len(agreeing))

	conf := float64(winnerVotes) / float64(total) * avgStrength
	if regime == analyzer.RegimeHighVolatility {
		conf *= 0.7
	}

	strongest := agreeing[0]
	for _, sig := range agreeing[1:] {
		if sig.Strength > strongest.Strength {
			strongest = sig
		}
	}

	out.Action = winner
	out.Confidence = conf
	out.Reasoning = strongest.Reason
	out.EntryPrice = strongest.EntryPrice
	out.StopLoss = strongest.StopLoss
	out.TargetPrice = strongest.TargetPrice
	return out
}

// ScanUniverse evaluates every symbol and returns actionable entries
// (buy/sell with confidence above 0.3) ranked by confidence.
func (a *StrategyAgent) ScanUniverse(bars map[string][]marketdata.Bar, market analyzer.UniverseAnalysis) []CombinedSignal {
	var out []CombinedSignal
	for symbol, series := range bars {
		regime := ""
		if analysis, ok := market.Symbols[symbol]; ok {
			regime = analysis.Regime
		}
		sig := a.Evaluate(symbol, series, regime)
		if (sig.Action == ActionBuy || sig.Action == ActionSell) && sig.Confidence > 0.3 {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func normalize(a strategy.Action) string {
	switch a {
	case strategy.ActionLong:
		return ActionBuy
	case strategy.ActionShort:
		return ActionSell
	case strategy.ActionClose:
		return ActionClose
	default:
		return ActionHold
	}
}

func agreeingSignals(signals []strategy.Output, winner string) []strategy.Output {
	var out []strategy.Output
	for _, sig := range signals {
		if normalize(sig.Action) == winner {
			out = append(out, sig)
		}
	}
	return out
}

func reasonFor(signals []strategy.Output, action strategy.Action) string {
	for _, sig := range signals {
		if sig.Action == action {
			return sig.Reason
		}
	}
	return ""
}
