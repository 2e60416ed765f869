package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/hairstyle-api/internal/metrics"
)

// RegisterRoutes wires the middleware and HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, h *Handler, staticDir string, m *metrics.Metrics, logger *zap.Logger) {
	router.Use(gin.Recovery(), RequestIDMiddleware(), AccessLogMiddleware(logger), MetricsMiddleware(m))

	router.GET("/", h.Home)
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.POST("/predict", h.Predict)
	router.Static("/static", staticDir)
}
