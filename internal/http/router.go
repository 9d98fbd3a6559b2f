package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/oncall-dispatch/backend/internal/config"
	"github.com/oncall-dispatch/backend/internal/http/handlers"
	"github.com/oncall-dispatch/backend/internal/http/middleware"
	"github.com/oncall-dispatch/backend/internal/metrics"

	_ "github.com/oncall-dispatch/backend/docs"
)

func Router(cfg config.Config, h *handlers.Handler, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "If-None-Match", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"ETag", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = splitOrigins(cfg.CORSAllowed)
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	{
		api.POST("/lookup", h.LookupTicket)
		api.POST("/lookup/choose", h.ChooseAlternate)
	}

	oncall := api.Group("/oncall")
	{
		oncall.POST("/rotation", h.UploadRotation)
		oncall.GET("/rotation/cleaned", h.CleanedRotation)
		oncall.POST("/techdb", h.UploadTechDB)
		oncall.POST("/refdata/reload", h.ReloadRefData)
		oncall.GET("/weeks", h.Weeks)
		oncall.GET("/boundary", h.Boundary)
		oncall.GET("/nonavailability", h.NonAvailability)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Route not found", "details": nil}})
	})

	return r
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
