// Package risk enforces portfolio-level constraints: position sizing,
// pre-trade validation, exit decisions, and the daily-loss circuit
// breaker. All fractions and confidences are expressed in [0,1]; callers
// convert to percentages only at presentation boundaries.
package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"trading-agent/internal/agent"
	"trading-agent/pkg/db"
)

// volatility (percent stddev of daily returns) above which position sizes
// are halved.
const highVolatilityThreshold = 3.0

// minConfidence below which entries are rejected outright.
const minConfidence = 0.3

const (
	ExitTypeStopLoss = "stop_loss"
	ExitTypeSignal   = "signal"
)

// Config bounds the portfolio's exposure. Fractions are of portfolio
// value.
type Config struct {
	MaxPositionFraction float64
	MaxRiskFraction     float64
	MaxPositions        int
	DailyLossLimit      float64
	StopLossFraction    float64
}

// DefaultConfig returns conservative limits suitable for paper trading.
func DefaultConfig() Config {
	return Config{
		MaxPositionFraction: 0.20,
		MaxRiskFraction:     0.02,
		MaxPositions:        5,
		DailyLossLimit:      0.05,
		StopLossFraction:    0.02,
	}
}

// Sizing is the outcome of the position sizing pass.
type Sizing struct {
	Quantity        int64   `json:"quantity"`
	PositionValue   float64 `json:"position_value"`
	RiskPerShare    float64 `json:"risk_per_share"`
	RiskAmount      float64 `json:"risk_amount"`
	RiskFraction    float64 `json:"risk_fraction"`
	PositionFrac    float64 `json:"position_fraction"`
	Approved        bool    `json:"approved"`
	Reason          string  `json:"reason,omitempty"`
	VolatilityHalve bool    `json:"volatility_halved"`
}

// Check records one validation step.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Validation is the ordered, fail-fast checklist result for one proposed
// entry.
type Validation struct {
	Approved bool    `json:"approved"`
	Reason   string  `json:"reason,omitempty"`
	Checks   []Check `json:"checks"`
	Sizing   Sizing  `json:"sizing"`
}

// ExitDecision says whether an open position should be closed and why.
type ExitDecision struct {
	ShouldExit bool   `json:"should_exit"`
	ExitType   string `json:"exit_type,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Summary is a snapshot of the risk state for observability endpoints.
type Summary struct {
	PortfolioValue float64 `json:"portfolio_value"`
	DailyPnL       float64 `json:"daily_pnl"`
	DailyLossLimit float64 `json:"daily_loss_limit"`
	TradingHalted  bool    `json:"trading_halted"`
	MaxPositions   int     `json:"max_positions"`
}

// Manager holds the mutable risk state shared by trading and
// position-management cycles. Validation and state updates are serialized
// behind the mutex; exit decisions are pure.
type Manager struct {
	cfg Config

	mu             sync.Mutex
	portfolioValue float64
	dailyPnL       float64
	day            string

	now func() time.Time
}

func NewManager(cfg Config, portfolioValue float64) *Manager {
	m := &Manager{cfg: cfg, portfolioValue: portfolioValue, now: time.Now}
	m.day = tradingDay(m.now())
	return m
}

func (m *Manager) Config() Config { return m.cfg }

// SetPortfolioValue refreshes the portfolio value, typically from the
// venue's account equity at the start of a cycle.
func (m *Manager) SetPortfolioValue(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolioValue = v
}

// AddRealizedPnL feeds a closed trade's result into the daily tally.
func (m *Manager) AddRealizedPnL(pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNewDayLocked()
	m.dailyPnL += pnl
}

// PositionSize computes how many shares to buy or short for an entry.
// The risk cap is applied first, then the position-value cap, then the
// volatility halving.
func (m *Manager) PositionSize(entry, stop, volatility float64) Sizing {
	m.mu.Lock()
	pv := m.portfolioValue
	m.mu.Unlock()

	s := Sizing{RiskPerShare: math.Abs(entry - stop)}
	if entry <= 0 || pv <= 0 {
		s.Reason = "invalid entry price or portfolio value"
		return s
	}
	if s.RiskPerShare == 0 {
		s.Reason = "entry and stop are identical: undefined risk"
		return s
	}

	maxRisk := pv * m.cfg.MaxRiskFraction
	qty := int64(math.Floor(maxRisk / s.RiskPerShare))

	maxValue := pv * m.cfg.MaxPositionFraction
	if float64(qty)*entry > maxValue {
		qty = int64(math.Floor(maxValue / entry))
	}

	if volatility > highVolatilityThreshold {
		qty /= 2
		s.VolatilityHalve = true
	}

	if qty <= 0 {
		s.Reason = "position size rounds to zero"
		return s
	}

	s.Quantity = qty
	s.PositionValue = float64(qty) * entry
	s.RiskAmount = float64(qty) * s.RiskPerShare
	s.RiskFraction = s.RiskAmount / pv
	s.PositionFrac = s.PositionValue / pv
	s.Approved = true
	return s
}

// ValidateTrade runs the ordered pre-trade checklist. The first failing
// check rejects the trade; later checks are not evaluated. pending holds
// trades awaiting fill confirmation: their symbols are already committed
// even though no position exists yet.
func (m *Manager) ValidateTrade(sig agent.CombinedSignal, volatility float64, open []db.Position, pending []db.Trade) Validation {
	m.mu.Lock()
	m.resetIfNewDayLocked()
	pv := m.portfolioValue
	dailyPnL := m.dailyPnL
	m.mu.Unlock()

	var v Validation
	fail := func(name, detail string) Validation {
		v.Checks = append(v.Checks, Check{Name: name, Passed: false, Detail: detail})
		v.Reason = detail
		return v
	}
	pass := func(name string) {
		v.Checks = append(v.Checks, Check{Name: name, Passed: true})
	}

	if dailyPnL < -(pv * m.cfg.DailyLossLimit) {
		return fail("daily_loss_limit", fmt.Sprintf("daily loss %.2f exceeds limit %.2f", -dailyPnL, pv*m.cfg.DailyLossLimit))
	}
	pass("daily_loss_limit")

	if len(open) >= m.cfg.MaxPositions {
		return fail("max_positions", fmt.Sprintf("%d positions open, limit %d", len(open), m.cfg.MaxPositions))
	}
	pass("max_positions")

	for _, p := range open {
		if p.Symbol == sig.Symbol {
			return fail("no_pyramiding", fmt.Sprintf("position already open in %s", sig.Symbol))
		}
	}
	for _, t := range pending {
		if t.Symbol == sig.Symbol {
			return fail("no_pyramiding", fmt.Sprintf("unconfirmed trade pending in %s", sig.Symbol))
		}
	}
	pass("no_pyramiding")

	if sig.Confidence < minConfidence {
		return fail("confidence", fmt.Sprintf("confidence %.2f below %.2f", sig.Confidence, minConfidence))
	}
	pass("confidence")

	sizing := m.PositionSize(sig.EntryPrice, sig.StopLoss, volatility)
	v.Sizing = sizing
	if !sizing.Approved {
		return fail("position_sizing", sizing.Reason)
	}
	pass("position_sizing")

	if sizing.PositionValue > pv*0.9 {
		return fail("capital_sufficiency", fmt.Sprintf("position value %.2f exceeds 90%% of portfolio", sizing.PositionValue))
	}
	pass("capital_sufficiency")

	v.Approved = true
	return v
}

// ShouldClose decides whether an open position exits at the given price.
// The stop-loss breach is unconditional and checked before any signal. The
// decision is a pure function of its inputs.
func (m *Manager) ShouldClose(pos db.Position, price float64, sig *agent.CombinedSignal) ExitDecision {
	long := pos.Quantity > 0

	if pos.StopLoss > 0 {
		if long && price <= pos.StopLoss {
			return ExitDecision{ShouldExit: true, ExitType: ExitTypeStopLoss,
				Reason: fmt.Sprintf("price %.2f breached stop %.2f", price, pos.StopLoss)}
		}
		if !long && price >= pos.StopLoss {
			return ExitDecision{ShouldExit: true, ExitType: ExitTypeStopLoss,
				Reason: fmt.Sprintf("price %.2f breached stop %.2f", price, pos.StopLoss)}
		}
	}

	if sig == nil {
		return ExitDecision{}
	}

	if sig.Action == agent.ActionClose {
		return ExitDecision{ShouldExit: true, ExitType: ExitTypeSignal, Reason: "close signal: " + sig.Reasoning}
	}

	if (long && sig.Action == agent.ActionSell) || (!long && sig.Action == agent.ActionBuy) {
		return ExitDecision{ShouldExit: true, ExitType: ExitTypeSignal, Reason: "opposite signal: " + sig.Reasoning}
	}

	return ExitDecision{}
}

// Summary reports the current risk state.
func (m *Manager) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNewDayLocked()
	return Summary{
		PortfolioValue: m.portfolioValue,
		DailyPnL:       m.dailyPnL,
		DailyLossLimit: m.cfg.DailyLossLimit,
		TradingHalted:  m.dailyPnL < -(m.portfolioValue * m.cfg.DailyLossLimit),
		MaxPositions:   m.cfg.MaxPositions,
	}
}

// resetIfNewDayLocked zeroes the daily tally once per trading day.
// Callers must hold the mutex.
func (m *Manager) resetIfNewDayLocked() {
	today := tradingDay(m.now())
	if today != m.day {
		m.day = today
		m.dailyPnL = 0
	}
}

func tradingDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
