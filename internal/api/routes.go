package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes.
func SetupRoutes(router *gin.Engine, handler *Handler, limiter *RateLimiter) {
	// Health and readiness checks
	router.GET("/health", handler.HealthCheck)
	router.GET("/ready", handler.ReadyCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := router.Group("/", limiter.Middleware())
	{
		limited.POST("/simulate", handler.Simulate)
		limited.POST("/webhook/:platform", handler.Webhook)
		limited.GET("/analytics/creators", handler.Analytics)
		limited.POST("/admin/reload", handler.Reload)
	}
}
