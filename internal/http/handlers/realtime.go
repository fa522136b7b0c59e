package handlers

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/quizforge/quizforge-backend/internal/http/middleware"
	"github.com/quizforge/quizforge-backend/internal/sse"
)

type RealtimeHandler struct {
	hub *sse.Hub
}

func NewRealtimeHandler(hub *sse.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// GET /api/sse/stream
//
// One long-lived stream per operator, subscribed to their own user channel;
// every job event for jobs they own arrives here.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	userID := middleware.MustUserID(c)
	client := h.hub.NewClient(userID)
	h.hub.Subscribe(client, userID.String())

	h.hub.Serve(c.Writer, c.Request, client, func(m sse.Message) []byte {
		raw, err := json.Marshal(m.Data)
		if err != nil {
			return []byte("{}")
		}
		return raw
	})
}
