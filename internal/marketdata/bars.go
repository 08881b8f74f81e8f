// Package marketdata defines the bar model and the data source boundary.
package marketdata

import (
	"context"
	"time"
)

// Bar is one OHLCV sample for a symbol at a fixed timeframe.
// Series are ordered ascending by timestamp.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Source abstracts the market data provider. Implementations are injected;
// the pipeline never talks to a provider API directly.
type Source interface {
	// GetBars returns an ascending daily bar series per symbol. Symbols with
	// no data are simply absent from the result.
	GetBars(ctx context.Context, symbols []string, lookbackDays int) (map[string][]Bar, error)

	// GetLatestPrice returns the most recent price for a symbol.
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)
}

// Closes extracts the close series from bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts the volume series from bars.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}
