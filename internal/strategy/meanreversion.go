package strategy

import (
	"fmt"
	"math"

	"trading-agent/internal/indicators"
	"trading-agent/internal/marketdata"
)

// trend classes used by the mean reversion filters.
const (
	trendNeutral    = "neutral"
	trendStrongUp   = "strong_uptrend"
	trendStrongDown = "strong_downtrend"
)

// MeanReversionParams configures the z-score band strategy.
type MeanReversionParams struct {
	Period           int     // rolling mean/std window
	StdDev           float64 // band width in standard deviations
	RSIPeriod        int
	StopLossFraction float64
}

// MeanReversion fades moves away from the rolling mean. Entries require the
// z-score beyond the band, RSI confirmation, sufficient volume, and no
// strong counter-trend. Exits fire when price returns near the mean.
type MeanReversion struct {
	params MeanReversionParams
}

func NewMeanReversion(p MeanReversionParams) *MeanReversion {
	if p.Period <= 0 {
		p.Period = 20
	}
	if p.StdDev <= 0 {
		p.StdDev = 1.5
	}
	if p.RSIPeriod <= 0 {
		p.RSIPeriod = 14
	}
	return &MeanReversion{params: p}
}

func (s *MeanReversion) Name() string { return "mean_reversion" }

func (s *MeanReversion) GenerateSignal(symbol string, bars []marketdata.Bar) Output {
	// Extra history beyond the band window so RSI, volume, and trend
	// filters all have data.
	if len(bars) < s.params.Period+20 {
		return hold(s.Name(), "insufficient data")
	}

	closes := marketdata.Closes(bars)
	price := closes[len(closes)-1]

	ma, err := indicators.SMA(closes, s.params.Period)
	if err != nil {
		return hold(s.Name(), "insufficient data")
	}
	std, err := indicators.StdDev(closes, s.params.Period)
	if err != nil || std == 0 {
		return hold(s.Name(), "flat price series")
	}
	z := (price - ma) / std

	rsi, err := indicators.RSI(closes, s.params.RSIPeriod)
	if err != nil {
		return hold(s.Name(), "insufficient data")
	}

	trend := classifyTrend(closes)
	volumeOK := volumeSufficient(marketdata.Volumes(bars))

	action := ActionHold
	reason := ""

	switch {
	case z < -s.params.StdDev:
		action = ActionLong
		reason = fmt.Sprintf("price %.2f std devs below mean", -z)
		switch {
		case rsi > 40:
			action, reason = ActionHold, fmt.Sprintf("RSI too high (%.1f > 40)", rsi)
		case trend == trendStrongDown:
			action, reason = ActionHold, "strong downtrend"
		case !volumeOK:
			action, reason = ActionHold, "insufficient volume"
		}
	case z > s.params.StdDev:
		action = ActionShort
		reason = fmt.Sprintf("price %.2f std devs above mean", z)
		switch {
		case rsi < 60:
			action, reason = ActionHold, fmt.Sprintf("RSI too low (%.1f < 60)", rsi)
		case trend == trendStrongUp:
			action, reason = ActionHold, "strong uptrend"
		case !volumeOK:
			action, reason = ActionHold, "insufficient volume"
		}
	case math.Abs(z) < 0.5:
		return Output{
			Strategy: s.Name(),
			Action:   ActionClose,
			Strength: 0.5,
			Reason:   "price returned to mean",
		}
	}

	conf := reversionConfidence(z, rsi, volumeOK, trend, action)

	if action == ActionLong || action == ActionShort {
		if conf < 0.4 {
			return Output{
				Strategy: s.Name(),
				Action:   ActionHold,
				Strength: conf,
				Reason:   fmt.Sprintf("low confidence (%.2f)", conf),
			}
		}
		out := Output{
			Strategy:    s.Name(),
			Action:      action,
			Strength:    conf,
			EntryPrice:  price,
			TargetPrice: ma,
			Reason:      reason,
		}
		if action == ActionLong {
			out.StopLoss = price * (1 - s.params.StopLossFraction)
		} else {
			out.StopLoss = price * (1 + s.params.StopLossFraction)
		}
		return out
	}

	return Output{Strategy: s.Name(), Action: ActionHold, Strength: conf, Reason: reason}
}

// classifyTrend labels the prevailing trend from the 50-day mean. Without
// 50 bars of history the trend is treated as neutral.
func classifyTrend(closes []float64) string {
	ma50, err := indicators.SMA(closes, 50)
	if err != nil {
		return trendNeutral
	}
	price := closes[len(closes)-1]
	switch {
	case price > ma50*1.05:
		return trendStrongUp
	case price < ma50*0.95:
		return trendStrongDown
	default:
		return trendNeutral
	}
}

// volumeSufficient checks that current volume is at least 80% of its
// 20-day average. Too little history allows the trade.
func volumeSufficient(volumes []float64) bool {
	ratio, err := indicators.VolumeRatio(volumes, 20)
	if err != nil {
		return true
	}
	return ratio >= 0.8
}

// reversionConfidence scores an entry in [0,1] from four factors:
// z magnitude, RSI extremity, volume confirmation, and trend alignment.
// Entries against a strong trend never reach scoring; the entry filters
// veto those first.
func reversionConfidence(z, rsi float64, volumeOK bool, trend string, action Action) float64 {
	conf := 0.0

	switch {
	case math.Abs(z) > 2.5:
		conf += 0.25
	case math.Abs(z) > 2.0:
		conf += 0.15
	}

	switch {
	case action == ActionLong && rsi < 30:
		conf += 0.25
	case action == ActionLong && rsi < 40:
		conf += 0.15
	case action == ActionShort && rsi > 70:
		conf += 0.25
	case action == ActionShort && rsi > 60:
		conf += 0.15
	}

	if volumeOK {
		conf += 0.25
	}

	switch {
	case action == ActionLong && (trend == trendNeutral || trend == trendStrongUp):
		conf += 0.25
	case action == ActionShort && (trend == trendNeutral || trend == trendStrongDown):
		conf += 0.25
	}

	return math.Min(1, conf)
}
