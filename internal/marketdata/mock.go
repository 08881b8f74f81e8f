package marketdata

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrNoPrice is returned when a symbol has no quotable price.
var ErrNoPrice = errors.New("marketdata: no price available")

// MockSource generates synthetic random-walk bar series for local
// development, so the whole pipeline runs without an external feed.
// Series are generated once per symbol and then held fixed, which keeps
// repeated calls within a process consistent.
type MockSource struct {
	StartPrice float64
	Step       float64
	Seed       int64

	mu     sync.Mutex
	series map[string][]Bar
}

func NewMockSource(startPrice, step float64, seed int64) *MockSource {
	return &MockSource{
		StartPrice: startPrice,
		Step:       step,
		Seed:       seed,
		series:     make(map[string][]Bar),
	}
}

func (m *MockSource) GetBars(ctx context.Context, symbols []string, lookbackDays int) (map[string][]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]Bar, len(symbols))
	for _, sym := range symbols {
		bars, ok := m.series[sym]
		if !ok || len(bars) < lookbackDays {
			bars = m.generate(sym, lookbackDays)
			m.series[sym] = bars
		}
		if len(bars) > lookbackDays {
			bars = bars[len(bars)-lookbackDays:]
		}
		out[sym] = bars
	}
	return out, nil
}

func (m *MockSource) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	bars, ok := m.series[symbol]
	if !ok || len(bars) == 0 {
		return 0, ErrNoPrice
	}
	return bars[len(bars)-1].Close, nil
}

// SetBars overrides the series for a symbol (used by tests and replay).
func (m *MockSource) SetBars(symbol string, bars []Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[symbol] = bars
}

func (m *MockSource) generate(symbol string, days int) []Bar {
	price := m.StartPrice
	if price == 0 {
		price = 100.0
	}
	step := m.Step
	if step == 0 {
		step = 0.5
	}

	// Per-symbol seed so different symbols do not walk in lockstep.
	seed := m.Seed
	for _, c := range symbol {
		seed = seed*31 + int64(c)
	}
	rng := rand.New(rand.NewSource(seed))

	start := time.Now().UTC().AddDate(0, 0, -days).Truncate(24 * time.Hour)
	bars := make([]Bar, 0, days)
	for i := 0; i < days; i++ {
		open := price
		price += (rng.Float64()*2 - 1) * step
		high := open
		low := open
		if price > high {
			high = price
		}
		if price < low {
			low = price
		}
		bars = append(bars, Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      open,
			High:      high + rng.Float64()*step/2,
			Low:       low - rng.Float64()*step/2,
			Close:     price,
			Volume:    1_000_000 + rng.Float64()*500_000,
		})
	}
	return bars
}
