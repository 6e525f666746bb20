// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/javajoker/canva-seat-ledger/internal/config"
	"github.com/javajoker/canva-seat-ledger/internal/handlers"
	"github.com/javajoker/canva-seat-ledger/internal/middleware"
	"github.com/javajoker/canva-seat-ledger/internal/services"
)

const Version = "1.0.0"

// Services are the application services the HTTP layer exposes.
type Services struct {
	Snapshots *services.SnapshotService
	Dashboard *services.DashboardService
	Licenses  *services.LicenseService
	Audit     *services.AuditService
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept-Language", middleware.HeaderActorID, middleware.HeaderActorName, middleware.HeaderActorEmail, middleware.HeaderRequestID},
		ExposeHeaders: []string{middleware.HeaderRequestID, "X-Total-Count", "X-Page", "X-Per-Page", "X-Total-Pages"},
		MaxAge:        12 * time.Hour,
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func Initialize(svc Services, cfg *config.Config) *gin.Engine {
	// Initialize handlers
	snapshotHandler := handlers.NewSnapshotHandler(svc.Snapshots)
	dashboardHandler := handlers.NewDashboardHandler(svc.Dashboard)
	licenseHandler := handlers.NewLicenseHandler(svc.Licenses)
	auditHandler := handlers.NewAuditHandler(svc.Audit)

	limiter := middleware.PerSecond(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(cors.New(corsConfig(cfg.CORS)))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(middleware.ActorFromHeaders())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"version":  Version,
			"snapshot": svc.Snapshots.State(),
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	v1.Use(limiter.Middleware())
	{
		// Snapshot ingestion
		snapshots := v1.Group("/snapshots")
		{
			snapshots.GET("/state", snapshotHandler.State)
			snapshots.POST("/refresh", snapshotHandler.Refresh)
			snapshots.POST("/:format", snapshotHandler.Ingest)
		}

		// Dashboard views
		schools := v1.Group("/schools")
		{
			schools.GET("", dashboardHandler.ListSchools)
			schools.GET("/:id", dashboardHandler.GetSchool)
			schools.PUT("/:id/limit", licenseHandler.ChangeLimit)
			schools.PUT("/:id/status", licenseHandler.SetSchoolStatus)
		}
		v1.GET("/stats", dashboardHandler.GetStats)

		rankings := v1.Group("/rankings")
		{
			rankings.GET("", dashboardHandler.GetRankings)
			rankings.GET("/schools", dashboardHandler.GetSchoolRankings)
		}

		// Seat mutations
		licenses := v1.Group("/licenses")
		{
			licenses.POST("/assign", licenseHandler.Assign)
			licenses.POST("/revoke", licenseHandler.Revoke)
			licenses.POST("/transfer", licenseHandler.Transfer)
		}
		v1.PUT("/users/:email", licenseHandler.UpdateUser)

		// Audit trail
		auditRoutes := v1.Group("/audit")
		{
			auditRoutes.POST("", auditHandler.Record)
			auditRoutes.GET("/recent", auditHandler.Recent)
			auditRoutes.GET("/entries/:id", auditHandler.GetEntry)
			auditRoutes.POST("/entries/:id/revert", auditHandler.Revert)
			auditRoutes.GET("/actors/:actorId", auditHandler.ActorHistory)
			auditRoutes.GET("/:kind/:id", auditHandler.EntityHistory)
		}
	}

	return r
}
