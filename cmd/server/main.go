package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stwalsh4118/dissent/internal/app"
	"github.com/stwalsh4118/dissent/internal/config"
	"github.com/stwalsh4118/dissent/internal/database"
	"github.com/stwalsh4118/dissent/internal/handlers"
	"github.com/stwalsh4118/dissent/internal/logger"
	"github.com/stwalsh4118/dissent/internal/middleware"
	"github.com/stwalsh4118/dissent/internal/observability"
	"github.com/stwalsh4118/dissent/internal/repository"
	"github.com/stwalsh4118/dissent/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.NewWithLevel(cfg.Server.Env, cfg.Server.LogLevel)
	log.Info("Starting protest dashboard API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
		"dataset":     cfg.Dataset.Path,
		"submissions": cfg.Submissions.Backend,
	})

	ctx := context.Background()
	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	// Dashboard service over the dataset. A failed initial load keeps the server up so
	// that /health/ready reports it and POST /api/v1/dataset/reload can recover.
	dash, err := app.NewDashboard(cfg, clock, metrics, log)
	if err != nil {
		log.Fatal("Failed to initialize dashboard", err, nil)
	}
	if _, err := dash.Service.Reload(ctx); err != nil {
		log.Error("Initial dataset load failed", err, map[string]interface{}{
			"path": cfg.Dataset.Path,
		})
	}

	// Submission storage
	var (
		submissionRepo repository.SubmissionRepository
		pinger         handlers.Pinger
	)
	switch cfg.Submissions.Backend {
	case config.BackendPostgres:
		db, err := database.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", err, map[string]interface{}{
				"host": cfg.Database.Host,
				"port": cfg.Database.Port,
				"name": cfg.Database.Name,
			})
		}
		defer db.Close()

		log.Info("Database connection established", map[string]interface{}{
			"host":     cfg.Database.Host,
			"port":     cfg.Database.Port,
			"database": cfg.Database.Name,
			"pool_min": cfg.Database.PoolMin,
			"pool_max": cfg.Database.PoolMax,
		})

		submissionRepo, err = repository.NewPostgresSubmissionRepository(ctx, db)
		if err != nil {
			log.Fatal("Failed to prepare submission table", err, nil)
		}
		pinger = db
	default:
		submissionRepo = repository.NewCSVSubmissionRepository(cfg.Submissions.Path)
	}
	submissionService := services.NewSubmissionService(submissionRepo, clock, metrics, log)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS -> Metrics
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))
	router.Use(middleware.Metrics(metrics))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(dash.Service, pinger, clock, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	if cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Initialize handlers
	dashboardHandler := handlers.NewDashboardHandler(dash.Service)
	submissionHandler := handlers.NewSubmissionHandler(submissionService)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/dashboard", dashboardHandler.Dashboard)
		v1.GET("/map", dashboardHandler.Map)
		v1.GET("/series", dashboardHandler.Series)
		v1.GET("/kpis", dashboardHandler.KPIs)
		v1.GET("/events", dashboardHandler.Events)
		v1.GET("/locations/events", dashboardHandler.LocationEvents)
		v1.GET("/filters/options", dashboardHandler.FilterOptions)
		v1.GET("/export", dashboardHandler.Export)
		v1.POST("/submissions", submissionHandler.Create)
		v1.POST("/dataset/reload", dashboardHandler.Reload)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
