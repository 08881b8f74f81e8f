package api

import (
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"trading-agent/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var streamTopics = []events.Event{
	events.EventCycleStarted,
	events.EventCycleFinished,
	events.EventStrategySignal,
	events.EventTradeValidated,
	events.EventTradeRejected,
	events.EventOrderSubmitted,
	events.EventOrderFilled,
	events.EventOrderUnconfirmed,
	events.EventPositionClosed,
	events.EventRiskAlert,
	events.EventPriceTick,
}

type wsMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// websocket streams bus events to the client until the connection or the
// bus closes. Every topic is forwarded; slow clients lose events at the
// bus, not here.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	merged := make(chan wsMessage, 64)
	var wg sync.WaitGroup
	var unsubs []func()

	for _, topic := range streamTopics {
		ch, unsub := s.Bus.Subscribe(topic, 100)
		unsubs = append(unsubs, unsub)
		wg.Add(1)
		go func(topic events.Event, ch <-chan any) {
			defer wg.Done()
			for payload := range ch {
				select {
				case merged <- wsMessage{Event: string(topic), Data: payload}:
				default:
				}
			}
		}(topic, ch)
	}
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()
	go func() {
		wg.Wait()
		close(merged)
	}()

	for msg := range merged {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
