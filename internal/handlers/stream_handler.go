package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/bossandy123/debate-agents-sub001/internal/events"
)

// StreamHandler bridges the event bus to websocket clients. Wire framing is
// this layer's concern; the bus contract is the stable part.
type StreamHandler struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(bus *events.Bus, log *logrus.Logger) *StreamHandler {
	if log == nil {
		log = logrus.New()
	}
	return &StreamHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// StreamEvents handles GET /api/v1/debates/:id/events. Each coalesced batch
// from the bus becomes one JSON array frame.
func (h *StreamHandler) StreamEvents(c *gin.Context) {
	debateID := c.Param("id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	batches, unsubscribe := h.bus.Subscribe(debateID)
	defer unsubscribe()

	// Drain client frames so close messages are noticed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case batch, ok := <-batches:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "debate channel closed"),
					time.Now().Add(time.Second))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(batch); err != nil {
				h.log.WithField("debate_id", debateID).WithError(err).Debug("Websocket write failed")
				return
			}
		case <-clientGone:
			return
		}
	}
}
