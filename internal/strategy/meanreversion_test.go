package strategy

import (
	"math"
	"testing"
	"time"

	"trading-agent/internal/marketdata"
)

// barsFromCloses builds a daily bar series with uniform volume.
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

// oscillating returns n closes alternating low/high, ending on high when n
// is even.
func oscillating(n int, low, high float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = low
		} else {
			closes[i] = high
		}
	}
	return closes
}

func TestMeanReversionLongEntry(t *testing.T) {
	s := NewMeanReversion(MeanReversionParams{Period: 20, StdDev: 1.5, RSIPeriod: 14, StopLossFraction: 0.02})

	// 40 bars oscillating around 100 and a final sharp drop to 95. The
	// last close sits roughly 3.9 standard deviations below the 20-bar
	// mean with RSI near 38, which clears every entry filter.
	closes := append(oscillating(40, 99.5, 100.5), 95)
	bars := barsFromCloses(closes, 1_000_000)
	bars[len(bars)-1].Volume = 1_200_000

	out := s.GenerateSignal("TEST", bars)
	if out.Action != ActionLong {
		t.Fatalf("action = %s (%s), want long", out.Action, out.Reason)
	}
	if out.Strength < 0.4 || out.Strength > 1 {
		t.Fatalf("strength = %.2f, want in [0.4, 1]", out.Strength)
	}
	if out.EntryPrice != 95 {
		t.Fatalf("entry = %.2f, want 95", out.EntryPrice)
	}
	if want := 95 * 0.98; math.Abs(out.StopLoss-want) > 1e-9 {
		t.Fatalf("stop = %.4f, want %.4f", out.StopLoss, want)
	}
	if out.TargetPrice <= out.EntryPrice {
		t.Fatalf("target %.2f should be above entry %.2f", out.TargetPrice, out.EntryPrice)
	}
}

func TestMeanReversionShortEntry(t *testing.T) {
	s := NewMeanReversion(MeanReversionParams{Period: 20, StdDev: 1.5, RSIPeriod: 14, StopLossFraction: 0.02})

	// Mirror of the long case: oscillation then a spike to 105.
	closes := append(oscillating(40, 100.5, 99.5), 105)
	bars := barsFromCloses(closes, 1_000_000)
	bars[len(bars)-1].Volume = 1_200_000

	out := s.GenerateSignal("TEST", bars)
	if out.Action != ActionShort {
		t.Fatalf("action = %s (%s), want short", out.Action, out.Reason)
	}
	if out.EntryPrice != 105 {
		t.Fatalf("entry = %.2f, want 105", out.EntryPrice)
	}
	if want := 105 * 1.02; math.Abs(out.StopLoss-want) > 1e-9 {
		t.Fatalf("stop = %.4f, want %.4f", out.StopLoss, want)
	}
}

func TestMeanReversionCloseNearMean(t *testing.T) {
	s := NewMeanReversion(MeanReversionParams{Period: 20, StdDev: 1.5, RSIPeriod: 14})

	// Final close sits essentially on the rolling mean.
	closes := append(oscillating(40, 99.5, 100.5), 100)
	out := s.GenerateSignal("TEST", barsFromCloses(closes, 1_000_000))
	if out.Action != ActionClose {
		t.Fatalf("action = %s (%s), want close", out.Action, out.Reason)
	}
	if out.Strength != 0.5 {
		t.Fatalf("strength = %.2f, want 0.5", out.Strength)
	}
}

func TestMeanReversionInsufficientData(t *testing.T) {
	s := NewMeanReversion(MeanReversionParams{Period: 20, StdDev: 1.5, RSIPeriod: 14})
	out := s.GenerateSignal("TEST", barsFromCloses(oscillating(39, 99.5, 100.5), 1_000_000))
	if out.Action != ActionHold {
		t.Fatalf("action = %s, want hold on short history", out.Action)
	}
}

func TestMeanReversionFlatSeries(t *testing.T) {
	s := NewMeanReversion(MeanReversionParams{Period: 20, StdDev: 1.5, RSIPeriod: 14})
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	out := s.GenerateSignal("TEST", barsFromCloses(closes, 1_000_000))
	if out.Action != ActionHold {
		t.Fatalf("action = %s, want hold on flat series", out.Action)
	}
}

func TestMeanReversionVolumeFilter(t *testing.T) {
	s := NewMeanReversion(MeanReversionParams{Period: 20, StdDev: 1.5, RSIPeriod: 14})

	closes := append(oscillating(40, 99.5, 100.5), 95)
	bars := barsFromCloses(closes, 1_000_000)
	bars[len(bars)-1].Volume = 100_000 // well under 80% of the 20-bar average

	out := s.GenerateSignal("TEST", bars)
	if out.Action != ActionHold {
		t.Fatalf("action = %s, want hold on thin volume", out.Action)
	}
	if out.Reason != "insufficient volume" {
		t.Fatalf("reason = %q, want insufficient volume", out.Reason)
	}
}

func TestReversionConfidence(t *testing.T) {
	tests := []struct {
		name     string
		z        float64
		rsi      float64
		volumeOK bool
		trend    string
		action   Action
		want     float64
	}{
		{"strong long setup", -2.1, 25, true, trendNeutral, ActionLong, 0.90},
		{"extreme z", -2.6, 25, true, trendNeutral, ActionLong, 1.0},
		{"misaligned trend earns no bonus", -2.1, 25, true, trendStrongDown, ActionLong, 0.65},
		{"weak short", 1.6, 62, false, trendNeutral, ActionShort, 0.40},
		{"no factors", -1.6, 55, false, trendStrongDown, ActionLong, 0.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := reversionConfidence(tc.z, tc.rsi, tc.volumeOK, tc.trend, tc.action)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("confidence = %.2f, want %.2f", got, tc.want)
			}
		})
	}
}

func TestClassifyTrend(t *testing.T) {
	up := make([]float64, 50)
	for i := range up {
		up[i] = 100 + float64(i) // ends at 149, well above the 50-bar mean
	}
	if got := classifyTrend(up); got != trendStrongUp {
		t.Fatalf("trend = %s, want %s", got, trendStrongUp)
	}

	down := make([]float64, 50)
	for i := range down {
		down[i] = 150 - float64(i)
	}
	if got := classifyTrend(down); got != trendStrongDown {
		t.Fatalf("trend = %s, want %s", got, trendStrongDown)
	}

	if got := classifyTrend(oscillating(50, 99.5, 100.5)); got != trendNeutral {
		t.Fatalf("trend = %s, want %s", got, trendNeutral)
	}

	// Under 50 bars the trend defaults to neutral.
	if got := classifyTrend(up[:30]); got != trendNeutral {
		t.Fatalf("trend on short history = %s, want %s", got, trendNeutral)
	}
}
