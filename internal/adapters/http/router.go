// Package http exposes a small local observability surface: health checks
// and session snapshots. No auth: it binds for local inspection only.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/DannyahIA/nexus-sub002/internal/app"
	"github.com/DannyahIA/nexus-sub002/internal/config"
)

func SetupRouter(cfg *config.Config, engine *app.Engine, coordinator *app.TrackCoordinator, monitor *app.HealthMonitor) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		results := monitor.PerformHealthCheck()
		healthy := true
		for _, res := range results {
			if !res.Healthy {
				healthy = false
				break
			}
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"healthy": healthy, "peers": results})
	})

	api := r.Group("/api")
	api.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, engine.Sessions())
	})
	api.POST("/mute/toggle", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"isMuted": coordinator.ToggleMute()})
	})
	api.POST("/video/toggle", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"isVideoEnabled": coordinator.ToggleVideo()})
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
