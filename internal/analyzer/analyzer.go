// Package analyzer classifies market conditions per symbol and across the
// trading universe. Its output feeds the signal fusion layer (regime-based
// confidence discounts) and the risk manager (volatility-based sizing).
package analyzer

import (
	"errors"

	"trading-agent/internal/indicators"
	"trading-agent/internal/marketdata"
)

const (
	RegimeHighVolatility   = "high_volatility"
	RegimeMediumVolatility = "medium_volatility"
	RegimeLowVolatility    = "low_volatility"

	TrendUp       = "up"
	TrendDown     = "down"
	TrendSideways = "sideways"
)

// minBars is the history needed for a full analysis.
const minBars = 20

// ErrInsufficientData is returned when a symbol has too little history to
// analyze.
var ErrInsufficientData = errors.New("analyzer: insufficient data")

// Analysis is the per-symbol market condition snapshot.
type Analysis struct {
	Symbol         string  `json:"symbol"`
	Price          float64 `json:"price"`
	Volatility     float64 `json:"volatility"` // stddev of daily returns, percent
	VolumeRatio    float64 `json:"volume_ratio"`
	SMA20          float64 `json:"sma_20"`
	SMA50          float64 `json:"sma_50,omitempty"`
	Trend          string  `json:"trend"`
	Regime         string  `json:"regime"`
	Recommendation string  `json:"recommendation"`
}

// UniverseAnalysis aggregates per-symbol snapshots into a market view.
type UniverseAnalysis struct {
	Symbols       map[string]Analysis `json:"symbols"`
	Sentiment     string              `json:"sentiment"`
	AvgVolatility float64             `json:"avg_volatility"`
}

type Analyzer struct{}

func New() *Analyzer { return &Analyzer{} }

// AnalyzeSymbol builds a condition snapshot for one symbol. It needs at
// least 20 bars of history.
func (a *Analyzer) AnalyzeSymbol(symbol string, bars []marketdata.Bar) (Analysis, error) {
	if len(bars) < minBars {
		return Analysis{Symbol: symbol}, ErrInsufficientData
	}

	closes := marketdata.Closes(bars)
	price := closes[len(closes)-1]

	vol := returnVolatility(closes, minBars)

	volumeRatio, err := indicators.VolumeRatio(marketdata.Volumes(bars), 20)
	if err != nil {
		volumeRatio = 1
	}

	sma20, _ := indicators.SMA(closes, 20)
	sma50, _ := indicators.SMA(closes, 50) // zero when history is short

	out := Analysis{
		Symbol:      symbol,
		Price:       price,
		Volatility:  vol,
		VolumeRatio: volumeRatio,
		SMA20:       sma20,
		SMA50:       sma50,
		Trend:       classifyTrend(price, sma20, sma50),
		Regime:      classifyRegime(vol),
	}
	out.Recommendation = recommend(out)
	return out, nil
}

// AnalyzeUniverse analyzes every symbol and derives an aggregate
// sentiment. Symbols with too little history are skipped.
func (a *Analyzer) AnalyzeUniverse(bars map[string][]marketdata.Bar) UniverseAnalysis {
	out := UniverseAnalysis{
		Symbols:   make(map[string]Analysis, len(bars)),
		Sentiment: "neutral",
	}

	var up, down int
	var volSum float64
	for symbol, series := range bars {
		analysis, err := a.AnalyzeSymbol(symbol, series)
		if err != nil {
			continue
		}
		out.Symbols[symbol] = analysis
		volSum += analysis.Volatility
		switch analysis.Trend {
		case TrendUp:
			up++
		case TrendDown:
			down++
		}
	}

	n := len(out.Symbols)
	if n == 0 {
		return out
	}
	out.AvgVolatility = volSum / float64(n)

	// Sentiment needs a clear majority, not a plurality.
	switch {
	case float64(up)/float64(n) > 0.6:
		out.Sentiment = "bullish"
	case float64(down)/float64(n) > 0.6:
		out.Sentiment = "bearish"
	}
	return out
}

// returnVolatility is the sample standard deviation of the last `window`
// daily returns, expressed in percent.
func returnVolatility(closes []float64, window int) float64 {
	returns := indicators.Returns(closes)
	if len(returns) > window {
		returns = returns[len(returns)-window:]
	}
	if len(returns) < 2 {
		return 0
	}
	std, err := indicators.StdDev(returns, len(returns))
	if err != nil {
		return 0
	}
	return std * 100
}

func classifyTrend(price, sma20, sma50 float64) string {
	// With 50 bars of history require both means aligned; with less,
	// fall back to the 20-bar mean alone.
	if sma50 > 0 {
		switch {
		case price > sma20 && sma20 > sma50:
			return TrendUp
		case price < sma20 && sma20 < sma50:
			return TrendDown
		default:
			return TrendSideways
		}
	}
	switch {
	case price > sma20:
		return TrendUp
	case price < sma20:
		return TrendDown
	default:
		return TrendSideways
	}
}

func classifyRegime(volatility float64) string {
	switch {
	case volatility > 3:
		return RegimeHighVolatility
	case volatility > 1.5:
		return RegimeMediumVolatility
	default:
		return RegimeLowVolatility
	}
}

func recommend(a Analysis) string {
	switch {
	case a.Volatility > 3:
		return "high_risk"
	case a.VolumeRatio > 1.5:
		return "active_trading"
	default:
		return "normal_trading"
	}
}
