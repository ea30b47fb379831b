package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"gym-status-client/internal/mw"
)

// NewRouter creates and configures a new Gin router. Zero values fall back to
// a 10 req/s limit and a 30 second history cache.
func NewRouter(h *Handler, rateLimitPerSec float64, cacheTTL time.Duration) *gin.Engine {
	r := gin.Default()

	if rateLimitPerSec <= 0 {
		rateLimitPerSec = 10
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}

	rateLimiter := mw.RateLimiter(rate.Limit(rateLimitPerSec), 5)

	// History rows change at most once per poll, so a short cache absorbs
	// repeated chart reloads.
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/equipment", h.GetEquipment)
		api.GET("/equipment/stream", h.StreamEquipment)
		api.POST("/equipment/reload", h.ReloadEquipment)

		api.GET("/notifications", h.GetNotifications)
		api.POST("/notifications/:id/dismiss", h.DismissNotification)

		api.GET("/history/:equipment_id", caching, h.GetHistory)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
