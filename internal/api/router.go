package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/aydetodd/todocerca-tracking/config"
	"github.com/aydetodd/todocerca-tracking/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 10*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Location ingest
		api.POST("/positions", h.PostPosition)
		api.POST("/history", h.PostHistory)
		api.GET("/history/:tracker_id", caching, h.GetHistory)

		// Live snapshots
		api.GET("/providers", caching, h.GetProviders)
		api.GET("/groups/:group_id/members", caching, h.GetGroupMembers)

		// Presence
		api.GET("/presence/:subject_id", h.GetPresence)
		api.PUT("/presence", h.PutPresence)

		// Geofences
		api.POST("/geofences", h.PostGeofence)
		api.PUT("/geofences/:id", h.PutGeofence)
		api.DELETE("/geofences/:id", h.DeleteGeofence)
		api.PUT("/geofences/:id/assignments", h.PutGeofenceAssignments)
		api.GET("/groups/:group_id/geofences", caching, h.GetGroupGeofences)

		// Alerts
		api.GET("/alerts", h.GetAlerts)
		api.POST("/alerts/:id/read", h.ReadAlert)
		api.POST("/alerts/:id/resolve", h.ResolveAlert)

		// Web push subscriptions
		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	// Websocket live stream sits outside the cache and rate-limit stack.
	r.GET("/ws/live", h.LiveStream)

	return r
}
