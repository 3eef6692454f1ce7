package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/dissent/internal/middleware"
	"github.com/stwalsh4118/dissent/internal/services"
)

const (
	// APIVersion is the current version of the API
	APIVersion = "0.1.0"
	// HealthCheckTimeout is the timeout for dependency health checks
	HealthCheckTimeout = 2 * time.Second
)

// Pinger is satisfied by *database.Database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check and readiness endpoints.
type HealthHandler struct {
	dashboard services.DashboardService
	db        Pinger
	clock     clockwork.Clock
	startTime time.Time
	env       string
}

// NewHealthHandler creates a new HealthHandler instance. db may be nil when submissions
// are not stored in PostgreSQL.
func NewHealthHandler(dashboard services.DashboardService, db Pinger, clock clockwork.Clock, env string) *HealthHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HealthHandler{
		dashboard: dashboard,
		db:        db,
		clock:     clock,
		startTime: clock.Now(),
		env:       env,
	}
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status   string `json:"status"`
	Dataset  string `json:"dataset"`
	Database string `json:"database,omitempty"`
}

// InfoResponse represents the API information response.
type InfoResponse struct {
	Dataset     *services.DatasetInfo `json:"dataset,omitempty"`
	Version     string                `json:"version"`
	Environment string                `json:"environment"`
	Uptime      string                `json:"uptime"`
}

// Health handles GET /health endpoint.
// This is a basic liveness check that always returns 200 OK.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
	})
}

// Ready handles GET /health/ready endpoint.
// Returns 200 OK once the dataset is loaded and, when configured, the database answers;
// 503 Service Unavailable otherwise.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Dataset: "loaded"}
	status := http.StatusOK

	if _, err := h.dashboard.Info(ctx); err != nil {
		resp.Status = "not_ready"
		resp.Dataset = "unavailable"
		status = http.StatusServiceUnavailable
	}

	if h.db != nil {
		resp.Database = "connected"
		if err := h.db.Ping(ctx); err != nil {
			if log := middleware.GetLogger(c); log != nil {
				log.Error("Database health check failed", err, map[string]interface{}{
					"timeout": HealthCheckTimeout.String(),
				})
			}
			resp.Status = "not_ready"
			resp.Database = "disconnected"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, resp)
}

// Info handles GET /api/v1/info endpoint.
// Returns API metadata including version, environment, uptime and the dataset being served.
func (h *HealthHandler) Info(c *gin.Context) {
	resp := InfoResponse{
		Version:     APIVersion,
		Environment: h.env,
		Uptime:      formatUptime(h.clock.Since(h.startTime)),
	}
	if info, err := h.dashboard.Info(c.Request.Context()); err == nil {
		resp.Dataset = info
	}
	c.JSON(http.StatusOK, resp)
}

// formatUptime formats a duration into a human-readable string.
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
