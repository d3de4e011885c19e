package api

import (
	"log"
	"net/http"

	"dca-core/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage wraps every payload with its topic so clients can demultiplex.
type wsMessage struct {
	Event   events.Event `json:"event"`
	Payload any          `json:"payload"`
}

// websocket streams engine status snapshots and executed trades.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	statusCh, unsubStatus := s.Bus.Subscribe(events.EventEngineStatus, 100)
	defer unsubStatus()
	tradeCh, unsubTrades := s.Bus.Subscribe(events.EventTradeExecuted, 100)
	defer unsubTrades()

	for {
		var msg wsMessage
		select {
		case payload, ok := <-statusCh:
			if !ok {
				return
			}
			msg = wsMessage{Event: events.EventEngineStatus, Payload: payload}
		case payload, ok := <-tradeCh:
			if !ok {
				return
			}
			msg = wsMessage{Event: events.EventTradeExecuted, Payload: payload}
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}
