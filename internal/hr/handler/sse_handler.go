package handler

import (
	"io"
	"time"

	"github.com/bitfantasy/nimo-hr/internal/hr/sse"
	"github.com/gin-gonic/gin"
)

const sseHeartbeat = 30 * time.Second

// SSEHandler streams workflow notifications to the caller's browser.
type SSEHandler struct {
	hub *sse.Hub
}

func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// Stream GET /api/v1/sse/events?token=xxx
func (h *SSEHandler) Stream(c *gin.Context) {
	sub := h.hub.Subscribe(GetUserID(c), sse.DefaultBuffer)
	defer h.hub.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("connected", gin.H{"subscription_id": sub.ID})
	c.Writer.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()
	done := c.Request.Context().Done()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-done:
			return false
		case ev, ok := <-sub.Events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Data)
		case t := <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"at": t.UTC().Format(time.RFC3339)})
		}
		return true
	})
}
