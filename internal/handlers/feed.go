package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"taskflow/backend/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

var feedTables = map[string]bool{
	"tasks":              true,
	"projects":           true,
	"notifications":      true,
	"task_edit_requests": true,
}

type FeedHandler struct {
	hub       *realtime.Hub
	heartbeat time.Duration
}

func NewFeedHandler(hub *realtime.Hub, heartbeat time.Duration) *FeedHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &FeedHandler{hub: hub, heartbeat: heartbeat}
}

// Stream serves a server-sent-events feed of row changes for one table,
// optionally filtered to a single row via the row_id query parameter.
func (h *FeedHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transport_failure", "message": "feed unavailable"})
		return
	}

	table := c.Param("table")
	if !feedTables[table] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "unknown feed table: " + table})
		return
	}

	rowID := uuid.Nil
	if raw := c.Query("row_id"); raw != "" {
		parsed, err := uuid.FromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid row_id"})
			return
		}
		rowID = parsed
	}

	sub, err := h.hub.Subscribe(c.Request.Context(), table, rowID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transport_failure", "message": "feed unavailable"})
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event, ok := <-sub.C:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				return true
			}
			c.SSEvent("change", string(data))
			return true
		case <-ticker.C:
			c.SSEvent("heartbeat", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}
