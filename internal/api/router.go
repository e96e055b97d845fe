package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"portfolioHub/internal/api/middleware"
	"portfolioHub/internal/config"
	"portfolioHub/internal/metrics"
)

// NewRouter builds the engine with the ambient middleware chain, the health
// check and the metrics endpoint.
func NewRouter(cfg *config.Config, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(logger),
		metrics.GinMiddleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics",
		middleware.MetricsSecretMiddleware(cfg.API.MetricsSecret),
		gin.WrapH(promhttp.Handler()),
	)

	return router
}
