package events

// Event enumerates high-level topics inside the trading agent.
type Event string

const (
	EventCycleStarted     Event = "cycle.started"
	EventCycleFinished    Event = "cycle.finished"
	EventStrategySignal   Event = "strategy_signal"
	EventTradeValidated   Event = "trade.validated"
	EventTradeRejected    Event = "trade.rejected"
	EventOrderSubmitted   Event = "order.submitted"
	EventOrderFilled      Event = "order.filled"
	EventOrderUnconfirmed Event = "order.unconfirmed"
	EventPositionClosed   Event = "position.closed"
	EventRiskAlert        Event = "risk_alert"
	EventPriceTick        Event = "price_tick"
)
