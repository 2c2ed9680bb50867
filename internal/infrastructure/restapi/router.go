package restapi

import (
	"time"

	"deploy_networks/internal/app/port"
	"deploy_networks/internal/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter builds the read-only HTTP API.
func SetupRouter(networkHandler *NetworkHandler, m *metrics.Metrics, logger port.Logger) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	router.Use(RequestLogger(logger))
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/networks", networkHandler.ListNetworksHandler)
		v1.GET("/networks/:name", networkHandler.GetNetworkHandler)
		v1.GET("/networks/:name/check", networkHandler.CheckNetworkHandler)
		v1.GET("/test-runner", networkHandler.GetTestRunnerHandler)
	}

	router.GET("/healthz", HealthHandler)
	if m != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	return router
}

// RequestLogger logs one line per request through logger.
func RequestLogger(logger port.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		switch {
		case c.Writer.Status() >= 500:
			logger.Error("Request failed", args...)
		case len(c.Errors) > 0:
			logger.Warn("Request completed with errors", append(args, "errors", c.Errors.String())...)
		default:
			logger.Debug("Request served", args...)
		}
	}
}
