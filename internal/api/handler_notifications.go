package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetNotifications handles GET /api/notifications. It returns the currently
// surfaced "your turn" notifications with their remaining seconds.
func (h *Handler) GetNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, h.watcher.Active())
}

// DismissNotification handles POST /api/notifications/:id/dismiss.
func (h *Handler) DismissNotification(c *gin.Context) {
	id := c.Param("id")
	if !h.watcher.Dismiss(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
