package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const readinessTimeout = 5 * time.Second

// registerHealthRoutes mounts liveness and readiness probes. Readiness
// checks both stores the file pipeline depends on: the metadata pool and
// the blob bucket's object store.
func registerHealthRoutes(router *gin.Engine, deps Dependencies) {
	logg := deps.Logger.Named("health")

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		if err := deps.DB.Ping(ctx); err != nil {
			logg.Warn("readiness check failed", zap.String("component", "postgres"), zap.Error(err))
			degraded(c, "postgres", err)
			return
		}

		if _, err := deps.ObjectStore.ListBuckets(ctx); err != nil {
			logg.Warn("readiness check failed", zap.String("component", "minio"), zap.Error(err))
			degraded(c, "minio", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func degraded(c *gin.Context, component string, err error) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"status":    "degraded",
		"component": component,
		"error":     err.Error(),
	})
}
