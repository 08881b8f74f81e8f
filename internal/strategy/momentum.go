package strategy

import (
	"fmt"
	"math"

	"trading-agent/internal/indicators"
	"trading-agent/internal/marketdata"
)

// MomentumParams configures the moving-average crossover strategy.
type MomentumParams struct {
	FastPeriod       int
	SlowPeriod       int
	RSIPeriod        int
	RSIOversold      float64
	RSIOverbought    float64
	StopLossFraction float64
}

// Momentum rides trends: long on the fast mean crossing above the slow
// mean with RSI not yet overbought, short on the symmetric cross, and an
// exit when the trend weakens while RSI stays elevated.
type Momentum struct {
	params MomentumParams
}

func NewMomentum(p MomentumParams) *Momentum {
	if p.FastPeriod <= 0 {
		p.FastPeriod = 10
	}
	if p.SlowPeriod <= 0 {
		p.SlowPeriod = 30
	}
	if p.RSIPeriod <= 0 {
		p.RSIPeriod = 14
	}
	if p.RSIOversold == 0 {
		p.RSIOversold = 40
	}
	if p.RSIOverbought == 0 {
		p.RSIOverbought = 60
	}
	return &Momentum{params: p}
}

func (s *Momentum) Name() string { return "momentum" }

func (s *Momentum) GenerateSignal(symbol string, bars []marketdata.Bar) Output {
	// One extra bar beyond the slow window so a cross is observable.
	if len(bars) < s.params.SlowPeriod+1 {
		return hold(s.Name(), "insufficient data")
	}

	closes := marketdata.Closes(bars)
	prev := closes[:len(closes)-1]

	fast, err1 := indicators.SMA(closes, s.params.FastPeriod)
	slow, err2 := indicators.SMA(closes, s.params.SlowPeriod)
	prevFast, err3 := indicators.SMA(prev, s.params.FastPeriod)
	prevSlow, err4 := indicators.SMA(prev, s.params.SlowPeriod)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return hold(s.Name(), "insufficient data")
	}

	rsi, err := indicators.RSI(closes, s.params.RSIPeriod)
	if err != nil {
		return hold(s.Name(), "insufficient data")
	}

	price := closes[len(closes)-1]
	trendStrength := 0.0
	if slow != 0 {
		trendStrength = (fast - slow) / slow * 100
	}
	strength := math.Min(math.Abs(trendStrength)/5, 1.0)

	// Bullish cross with RSI below the overbought gate.
	if fast > slow && prevFast <= prevSlow && rsi < s.params.RSIOverbought {
		return Output{
			Strategy:   s.Name(),
			Action:     ActionLong,
			Strength:   strength,
			EntryPrice: price,
			StopLoss:   slow * (1 - s.params.StopLossFraction),
			Reason:     fmt.Sprintf("bullish crossover, fast %.2f slow %.2f RSI %.1f", fast, slow, rsi),
		}
	}

	// Bearish cross with RSI above the oversold gate.
	if fast < slow && prevFast >= prevSlow && rsi > s.params.RSIOversold {
		return Output{
			Strategy:   s.Name(),
			Action:     ActionShort,
			Strength:   strength,
			EntryPrice: price,
			StopLoss:   slow * (1 + s.params.StopLossFraction),
			Reason:     fmt.Sprintf("bearish crossover, fast %.2f slow %.2f RSI %.1f", fast, slow, rsi),
		}
	}

	// Trend weakening while RSI stays elevated: exit.
	if fast < slow && rsi > 60 {
		return Output{
			Strategy: s.Name(),
			Action:   ActionClose,
			Strength: 0.8,
			Reason:   fmt.Sprintf("trend weakening, RSI %.1f", rsi),
		}
	}

	reason := "in downtrend"
	if fast > slow {
		reason = "in uptrend"
	}
	switch {
	case rsi > s.params.RSIOverbought:
		reason += ", RSI overbought"
	case rsi < s.params.RSIOversold:
		reason += ", RSI oversold"
	}
	return Output{Strategy: s.Name(), Action: ActionHold, Reason: reason}
}
