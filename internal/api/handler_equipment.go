package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"gym-status-client/internal/model"
)

const streamHeartbeat = 30 * time.Second

// equipmentStatusResponse is one mirror record plus its transient emphasis
// flag.
type equipmentStatusResponse struct {
	model.EquipmentRecord
	Flashing bool `json:"flashing"`
}

// GetEquipment handles the GET /api/equipment request. An optional category
// query narrows the listing to cardio or strength equipment.
func (h *Handler) GetEquipment(c *gin.Context) {
	if err := h.engine.LoadError(); err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error": "equipment status is unavailable",
			"hint":  "POST /api/equipment/reload to retry",
		})
		return
	}

	category := c.Query("category")
	switch category {
	case "", string(model.CategoryCardio), string(model.CategoryStrength):
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
		return
	}

	c.JSON(http.StatusOK, h.listEquipment(category))
}

func (h *Handler) listEquipment(category string) []equipmentStatusResponse {
	var records []*model.EquipmentRecord
	if category == "" {
		records = h.mirror.Snapshot()
	} else {
		records = h.mirror.ByCategory(category)
	}

	response := make([]equipmentStatusResponse, 0, len(records))
	for _, rec := range records {
		response = append(response, equipmentStatusResponse{
			EquipmentRecord: *rec,
			Flashing:        h.mirror.Flashing(rec.ID),
		})
	}
	return response
}

// StreamEquipment re-broadcasts reconciled snapshots to the local UI over
// server-sent events.
func (h *Handler) StreamEquipment(c *gin.Context) {
	updates, cancel := h.engine.Subscribe()
	defer cancel()

	c.Writer.Header().Set("Content-Type", sse.ContentType)
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// New subscribers start from the current mirror contents.
	sse.Encode(c.Writer, sse.Event{Event: "initial", Data: h.listEquipment("")})
	c.Writer.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			event := "update"
			if u.Initial {
				event = "initial"
			}
			sse.Encode(c.Writer, sse.Event{Event: event, Data: h.listEquipment("")})
			c.Writer.Flush()
		case <-heartbeat.C:
			sse.Encode(c.Writer, sse.Event{Event: "heartbeat", Data: "ping"})
			c.Writer.Flush()
		}
	}
}

// ReloadEquipment handles POST /api/equipment/reload. It nudges the engine to
// retry a failed initial load.
func (h *Handler) ReloadEquipment(c *gin.Context) {
	h.engine.RequestReload()
	c.Status(http.StatusAccepted)
}
