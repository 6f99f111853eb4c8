package handlers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/team-taskboard/internal/broadcast"
)

const keepAliveInterval = 25 * time.Second

// Subscriber hands out event channels to stream clients.
type Subscriber interface {
	Subscribe() (<-chan broadcast.Event, func())
}

type EventsHandler struct {
	hub Subscriber
}

func NewEventsHandler(hub Subscriber) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream relays broadcast events to the client as Server-Sent Events until
// the client disconnects or the hub closes.
func (h *EventsHandler) Stream(c *gin.Context) {
	events, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("ready", gin.H{"status": "ok"})
	c.Writer.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Payload)
			return true
		}
	})
}
