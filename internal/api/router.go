package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"room-occupancy-backend/config"
	"room-occupancy-backend/internal/mw"
	"room-occupancy-backend/internal/realtime"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, h *Handler, hub *realtime.Hub, responseCache *cache.Cache) *gin.Engine {
	r := gin.Default()
	r.Use(cors.New(corsConfig(cfg)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	caching := mw.Cache(responseCache, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	requireUser := mw.RequireUser()

	api := r.Group("/api")
	api.Use(mw.Identity(cfg.UserIDHeader), mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst))
	{
		api.GET("/rooms", caching, h.GetRooms)
		api.GET("/professors", caching, h.GetProfessors)

		bookings := api.Group("/bookings")
		{
			bookings.POST("", requireUser, h.CreateBooking)
			bookings.GET("/active", h.GetActiveBookings)
			bookings.GET("/my", requireUser, h.GetMyBookings)
			bookings.GET("/history", h.GetHistory)
			bookings.PUT("/:id/end", requireUser, h.EndBooking)
			bookings.PUT("/:id/force-end", h.ForceEndBooking)
			bookings.PUT("/:id/cancel", requireUser, h.CancelBooking)
		}

		notifications := api.Group("/notifications")
		{
			notifications.POST("/subscribe", requireUser, h.Subscribe)
			notifications.DELETE("/subscribe", requireUser, h.Unsubscribe)
			notifications.GET("/vapid-public-key", h.GetVAPIDPublicKey)
		}

		api.GET("/events", hub.Stream)
	}

	return r
}

func corsConfig(cfg config.ServerConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", cfg.UserIDHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	for _, origin := range cfg.CORSOrigins {
		if origin == "*" {
			c.AllowAllOrigins = true
			c.AllowCredentials = false
			return c
		}
	}
	if len(cfg.CORSOrigins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
		return c
	}
	c.AllowOrigins = cfg.CORSOrigins
	return c
}
