// Package strategy contains the signal-generating strategies. Every
// strategy satisfies the same interface and vocabulary; callers dispatch
// uniformly and never special-case by name.
package strategy

import (
	"fmt"

	"trading-agent/internal/marketdata"
)

// Action is the directional vocabulary shared by all strategies.
type Action string

const (
	ActionLong  Action = "long"
	ActionShort Action = "short"
	ActionClose Action = "close"
	ActionHold  Action = "hold"
)

// Output is a single strategy's decision for one symbol. Strength is
// normalized to [0,1]. Entry/stop/target are zero when the action carries
// no levels (hold, close).
type Output struct {
	Strategy    string
	Action      Action
	Strength    float64
	EntryPrice  float64
	StopLoss    float64
	TargetPrice float64
	Reason      string
}

// Strategy maps a bar series to a directional signal.
type Strategy interface {
	Name() string
	GenerateSignal(symbol string, bars []marketdata.Bar) Output
}

func hold(name, reason string) Output {
	return Output{Strategy: name, Action: ActionHold, Reason: reason}
}

// New builds a strategy instance from a config entry.
func New(cfg Config) (Strategy, error) {
	switch cfg.Type {
	case "mean_reversion":
		return NewMeanReversion(MeanReversionParams{
			Period:           cfg.intParam("period", 20),
			StdDev:           cfg.floatParam("std_dev", 1.5),
			RSIPeriod:        cfg.intParam("rsi_period", 14),
			StopLossFraction: cfg.floatParam("stop_loss_fraction", 0.02),
		}), nil
	case "momentum":
		return NewMomentum(MomentumParams{
			FastPeriod:       cfg.intParam("fast_period", 10),
			SlowPeriod:       cfg.intParam("slow_period", 30),
			RSIPeriod:        cfg.intParam("rsi_period", 14),
			RSIOversold:      cfg.floatParam("rsi_oversold", 40),
			RSIOverbought:    cfg.floatParam("rsi_overbought", 60),
			StopLossFraction: cfg.floatParam("stop_loss_fraction", 0.02),
		}), nil
	default:
		return nil, fmt.Errorf("strategy: unknown type %q", cfg.Type)
	}
}

// Defaults returns the standard strategy set used when no config file is
// provided.
func Defaults() []Strategy {
	return []Strategy{
		NewMeanReversion(MeanReversionParams{Period: 20, StdDev: 1.5, RSIPeriod: 14, StopLossFraction: 0.02}),
		NewMomentum(MomentumParams{FastPeriod: 10, SlowPeriod: 30, RSIPeriod: 14, RSIOversold: 40, RSIOverbought: 60, StopLossFraction: 0.02}),
	}
}
