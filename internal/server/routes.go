package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every endpoint onto a fresh gin engine.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), instrument())

	router.GET("/healthz", h.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	RegisterRoutes(router.Group("/v1"), h)
	return router
}

// RegisterRoutes registers the versioned API.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.POST("/solve", h.HandleSolve)
	rg.POST("/solve/batch", h.HandleSolveBatch)

	rg.GET("/parameters", h.HandleParameters)
	rg.GET("/rules", h.HandleRules)

	analysis := rg.Group("/analysis")
	{
		analysis.GET("/requirements", h.HandleRequirements)
		analysis.GET("/impact", h.HandleImpact)
	}

	rg.GET("/runs", h.HandleRuns)
}

func instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
