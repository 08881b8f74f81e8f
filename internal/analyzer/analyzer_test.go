package analyzer

import (
	"errors"
	"testing"
	"time"

	"trading-agent/internal/marketdata"
)

func barsFromCloses(closes []float64, volume float64) []marketdata.Bar {
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]marketdata.Bar, len(closes))
	for i, c := range closes {
		bars[i] = marketdata.Bar{
			Timestamp: base.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    volume,
		}
	}
	return bars
}

func trending(n int, start, step float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + float64(i)*step
	}
	return closes
}

func TestAnalyzeSymbolInsufficientData(t *testing.T) {
	a := New()
	_, err := a.AnalyzeSymbol("TEST", barsFromCloses(trending(19, 100, 1), 1_000_000))
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestAnalyzeSymbolUptrend(t *testing.T) {
	a := New()
	out, err := a.AnalyzeSymbol("TEST", barsFromCloses(trending(60, 100, 0.5), 1_000_000))
	if err != nil {
		t.Fatalf("AnalyzeSymbol: %v", err)
	}
	if out.Trend != TrendUp {
		t.Fatalf("trend = %s, want up", out.Trend)
	}
	if out.Price != 129.5 {
		t.Fatalf("price = %.2f, want 129.5", out.Price)
	}
	if out.SMA20 >= out.Price || out.SMA50 >= out.SMA20 {
		t.Fatalf("means not aligned for uptrend: price %.2f sma20 %.2f sma50 %.2f", out.Price, out.SMA20, out.SMA50)
	}
	// Steady half-point steps keep daily returns well under 1%.
	if out.Regime != RegimeLowVolatility {
		t.Fatalf("regime = %s, want low_volatility", out.Regime)
	}
	if out.Recommendation != "normal_trading" {
		t.Fatalf("recommendation = %s, want normal_trading", out.Recommendation)
	}
}

func TestAnalyzeSymbolHighVolatility(t *testing.T) {
	a := New()

	// Alternating ±10% moves: return stddev far above the 3% threshold.
	closes := make([]float64, 30)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		if i%2 == 1 {
			closes[i] = closes[i-1] * 1.10
		} else {
			closes[i] = closes[i-1] * 0.90
		}
	}

	out, err := a.AnalyzeSymbol("TEST", barsFromCloses(closes, 1_000_000))
	if err != nil {
		t.Fatalf("AnalyzeSymbol: %v", err)
	}
	if out.Regime != RegimeHighVolatility {
		t.Fatalf("regime = %s (volatility %.2f), want high_volatility", out.Regime, out.Volatility)
	}
	if out.Recommendation != "high_risk" {
		t.Fatalf("recommendation = %s, want high_risk", out.Recommendation)
	}
}

func TestAnalyzeSymbolActiveTrading(t *testing.T) {
	a := New()
	bars := barsFromCloses(trending(60, 100, 0.5), 1_000_000)
	bars[len(bars)-1].Volume = 2_000_000 // roughly 1.9x the 20-bar average

	out, err := a.AnalyzeSymbol("TEST", bars)
	if err != nil {
		t.Fatalf("AnalyzeSymbol: %v", err)
	}
	if out.VolumeRatio <= 1.5 {
		t.Fatalf("volume ratio = %.2f, want > 1.5", out.VolumeRatio)
	}
	if out.Recommendation != "active_trading" {
		t.Fatalf("recommendation = %s, want active_trading", out.Recommendation)
	}
}

func TestAnalyzeUniverseSentiment(t *testing.T) {
	a := New()

	up := barsFromCloses(trending(60, 100, 0.5), 1_000_000)
	down := barsFromCloses(trending(60, 150, -0.5), 1_000_000)

	tests := []struct {
		name string
		bars map[string][]marketdata.Bar
		want string
	}{
		{
			"bullish majority",
			map[string][]marketdata.Bar{"A": up, "B": up, "C": up, "D": down},
			"bullish",
		},
		{
			"bearish majority",
			map[string][]marketdata.Bar{"A": down, "B": down, "C": down, "D": up},
			"bearish",
		},
		{
			"split is neutral",
			map[string][]marketdata.Bar{"A": up, "B": down},
			"neutral",
		},
		{
			"empty universe",
			map[string][]marketdata.Bar{},
			"neutral",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := a.AnalyzeUniverse(tc.bars)
			if out.Sentiment != tc.want {
				t.Fatalf("sentiment = %s, want %s", out.Sentiment, tc.want)
			}
		})
	}
}

func TestAnalyzeUniverseSkipsShortHistory(t *testing.T) {
	a := New()
	out := a.AnalyzeUniverse(map[string][]marketdata.Bar{
		"OK":    barsFromCloses(trending(60, 100, 0.5), 1_000_000),
		"SHORT": barsFromCloses(trending(5, 100, 0.5), 1_000_000),
	})
	if len(out.Symbols) != 1 {
		t.Fatalf("analyzed %d symbols, want 1", len(out.Symbols))
	}
	if _, ok := out.Symbols["OK"]; !ok {
		t.Fatalf("expected OK in results")
	}
}
