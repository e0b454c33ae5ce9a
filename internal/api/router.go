package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"energy-monitor/internal/config"
	"energy-monitor/internal/logging"
)

func NewRouter(logger *logging.Logger, cfg config.Config, h *Handler, hub *Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		// Sites catalog
		api.GET("/sites", h.GetSites)
		api.GET("/sites/:site", h.GetSite)

		// Analytics
		api.GET("/analytics/dashboard/:site", h.GetDashboard)
		api.GET("/analytics/trends/:site", h.GetTrends)
		api.GET("/analytics/sectors/:site", h.GetSectorBreakdown)
		api.GET("/analytics/patterns/hourly/:site", h.GetHourlyPattern)
		api.GET("/analytics/pareto/:site", h.GetPareto)

		// Anomalies
		api.GET("/anomalies/site/:site", h.GetAnomalies)
		api.GET("/anomalies/site/:site/summary", h.GetAnomalySummary)
		api.GET("/anomalies/feed", h.GetAnomalyFeed)
		api.PATCH("/anomalies/:id/status", h.UpdateAnomalyStatus)

		// Ingestion status
		api.GET("/ingest/status", h.GetIngestStatus)
	}

	r.GET("/ws/anomalies", hub.Serve)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
