package events

// Event enumerates high-level topics inside the trading core.
type Event string

const (
	EventEngineStatus  Event = "engine.status"
	EventSignal        Event = "engine.signal"
	EventTradeExecuted Event = "trade.executed"
)
