package handler

import (
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"ridecore/internal/realtime"
)

// RealtimeHandler upgrades clients to the websocket event stream.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler creates a new RealtimeHandler.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Subscribe handles GET /v1/realtime?topics=drivers,map,ride:<id>
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	var topics []string
	for _, t := range strings.Split(c.Query("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		badRequest(c, "topics is required")
		return
	}

	// The upgrader writes its own error response on failure.
	if err := h.hub.ServeWS(c.Writer, c.Request, topics); err != nil {
		log.Printf("[REALTIME] websocket upgrade failed: %v", err)
	}
}
