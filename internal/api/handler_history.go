package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// historyRowResponse is one completed status period.
type historyRowResponse struct {
	EquipmentID string    `json:"equipmentId"`
	Status      string    `json:"status"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
	ObservedAt  time.Time `json:"observedAt"`
}

// GetHistory handles the GET /api/history/{equipment_id} request.
func (h *Handler) GetHistory(c *gin.Context) {
	equipmentID := c.Param("equipment_id")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	rows, err := h.history.Recent(c.Request.Context(), equipmentID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve history"})
		return
	}

	response := make([]historyRowResponse, 0, len(rows))
	for _, row := range rows {
		response = append(response, historyRowResponse{
			EquipmentID: row.EquipmentID,
			Status:      row.Status,
			PeriodStart: row.PeriodStart,
			PeriodEnd:   row.PeriodEnd,
			ObservedAt:  row.ObservedAt,
		})
	}
	c.JSON(http.StatusOK, response)
}
