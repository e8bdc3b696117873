package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"

	"github.com/andresuchdata/compras/backend-go/internal/api/handlers"
	"github.com/andresuchdata/compras/backend-go/internal/api/middleware"
	"github.com/andresuchdata/compras/backend-go/internal/config"
	"github.com/andresuchdata/compras/backend-go/internal/drive"
	"github.com/andresuchdata/compras/backend-go/internal/service"
)

type Services struct {
	Analysis *service.AnalysisService
	Drive    drive.Files
	Defaults config.AnalysisConfig
}

func NewRouter(services *Services, server config.ServerConfig) *gin.Engine {
	router := gin.New()
	metrics := middleware.NewMetrics()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(metrics.Middleware())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(server.AllowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(server.AllowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	if services == nil {
		return router
	}

	if services.Analysis != nil {
		h := handlers.NewAnalysisHandler(services.Analysis, services.Defaults, server.MaxUploadMB, metrics.ObserveRun)
		analysisGroup := router.Group("/api/v1/analysis")
		{
			analysisGroup.POST("/products", h.Products)
			analysisGroup.POST("/customers", h.Customers)
			analysisGroup.POST("/customers/:customer/products", h.CustomerProducts)
			analysisGroup.POST("/customers/:customer/trend", h.CustomerTrend)
			analysisGroup.POST("/report", h.Report)
		}
	}

	if services.Drive != nil {
		driveRouter := mux.NewRouter()
		drive.NewHandler(services.Drive).RegisterRoutes(driveRouter)
		router.GET("/api/drive/*path", gin.WrapH(driveRouter))
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
