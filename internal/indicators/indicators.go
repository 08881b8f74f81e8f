// Package indicators provides technical analysis primitives used by the
// strategies and the market analyzer. All functions are pure: they read a
// series and return a value, or ErrInsufficientData when the series is too
// short. Callers are expected to recover from ErrInsufficientData locally
// (typically by holding) rather than propagate it.
package indicators

import (
	"errors"
	"math"
)

// ErrInsufficientData signals that the series is shorter than the indicator
// requires.
var ErrInsufficientData = errors.New("indicators: insufficient data")

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 || len(values) < period {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// StdDev returns the sample standard deviation of the last period values.
func StdDev(values []float64, period int) (float64, error) {
	if period <= 1 || len(values) < period {
		return 0, ErrInsufficientData
	}
	window := values[len(values)-period:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(period)

	variance := 0.0
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	variance /= float64(period - 1)
	return math.Sqrt(variance), nil
}

// RSI computes the Relative Strength Index over the last period price
// changes using the average-gain/average-loss ratio. Requires period+1
// closes. A series with no losses returns 100.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 || len(closes) < period+1 {
		return 0, ErrInsufficientData
	}
	window := closes[len(closes)-period-1:]

	var avgGain, avgLoss float64
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}

// Momentum returns close[t] - close[t-n].
func Momentum(closes []float64, n int) (float64, error) {
	if n <= 0 || len(closes) < n+1 {
		return 0, ErrInsufficientData
	}
	return closes[len(closes)-1] - closes[len(closes)-1-n], nil
}

// VolumeRatio returns the latest volume relative to its period-average.
// A flat or empty average yields ErrInsufficientData.
func VolumeRatio(volumes []float64, period int) (float64, error) {
	avg, err := SMA(volumes, period)
	if err != nil {
		return 0, err
	}
	if avg <= 0 {
		return 0, ErrInsufficientData
	}
	return volumes[len(volumes)-1] / avg, nil
}

// Returns computes the simple percentage-change series of closes. The
// result has len(closes)-1 entries.
func Returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (closes[i]-closes[i-1])/closes[i-1])
	}
	return out
}
