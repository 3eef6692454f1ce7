package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/dissent/internal/errors"
	"github.com/stwalsh4118/dissent/internal/middleware"
	"github.com/stwalsh4118/dissent/internal/models"
	"github.com/stwalsh4118/dissent/internal/pipeline"
	"github.com/stwalsh4118/dissent/internal/services"
)

// ExportFilename is the attachment name used for CSV downloads.
const ExportFilename = "protest_data.csv"

// DashboardHandler handles the dashboard, data table and export endpoints.
type DashboardHandler struct {
	service services.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler instance.
func NewDashboardHandler(service services.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		service: service,
	}
}

// KPIResponse is the response for the KPI endpoint.
type KPIResponse struct {
	KPIs    pipeline.Summary    `json:"kpis"`
	Display pipeline.KPIDisplay `json:"display"`
	Matched int                 `json:"matched"`
}

// LocationResponse lists the rows behind a clicked marker.
type LocationResponse struct {
	Label  string         `json:"label"`
	Events []models.Event `json:"events"`
	Count  int            `json:"count"`
}

// Dashboard handles GET /api/v1/dashboard.
// It returns the map, series and KPIs computed from one filtered row set.
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	result, ok := h.compute(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result)
}

// Map handles GET /api/v1/map.
func (h *DashboardHandler) Map(c *gin.Context) {
	result, ok := h.compute(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result.Map)
}

// Series handles GET /api/v1/series.
func (h *DashboardHandler) Series(c *gin.Context) {
	result, ok := h.compute(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result.Series)
}

// KPIs handles GET /api/v1/kpis.
func (h *DashboardHandler) KPIs(c *gin.Context) {
	result, ok := h.compute(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, KPIResponse{
		KPIs:    result.KPIs,
		Display: result.Display,
		Matched: result.Matched,
	})
}

// compute binds the filter query and runs the (memoized) pipeline. On failure the error
// response has already been written.
func (h *DashboardHandler) compute(c *gin.Context) (*pipeline.Result, bool) {
	var req FilterQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BindingError(c, err)
		return nil, false
	}

	result, err := h.service.Dashboard(c.Request.Context(), req.Params())
	if err != nil {
		serviceError(c, err, "Failed to compute dashboard")
		return nil, false
	}
	return result, true
}

// Events handles GET /api/v1/events.
// It returns one page of the filtered rows for the data table.
func (h *DashboardHandler) Events(c *gin.Context) {
	var req EventsQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}

	page, err := h.service.Events(c.Request.Context(), req.Params(), services.Page{
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		serviceError(c, err, "Failed to list events")
		return
	}
	c.JSON(http.StatusOK, page)
}

// LocationEvents handles GET /api/v1/locations/events.
// It resolves a clicked map marker back to the filtered rows at that location.
func (h *DashboardHandler) LocationEvents(c *gin.Context) {
	var req LocationQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}

	events, err := h.service.LocationEvents(c.Request.Context(), req.Params(), req.Label)
	if err != nil {
		serviceError(c, err, "Failed to look up location")
		return
	}
	c.JSON(http.StatusOK, LocationResponse{
		Label:  req.Label,
		Events: events,
		Count:  len(events),
	})
}

// FilterOptions handles GET /api/v1/filters/options.
func (h *DashboardHandler) FilterOptions(c *gin.Context) {
	var req OptionsQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}

	opts, err := h.service.FilterOptions(c.Request.Context(), req.States)
	if err != nil {
		serviceError(c, err, "Failed to load filter options")
		return
	}
	c.JSON(http.StatusOK, opts)
}

// Export handles GET /api/v1/export.
// The CSV is rendered in full before any byte is sent so that failures still produce
// the standard JSON error body.
func (h *DashboardHandler) Export(c *gin.Context) {
	var req ExportQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}

	var buf bytes.Buffer
	rows, err := h.service.Export(c.Request.Context(), &buf, req.Params(), services.ExportScope(req.Scope))
	if err != nil {
		serviceError(c, err, "Failed to export data")
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Serving export", map[string]interface{}{
			"scope": req.Scope,
			"rows":  rows,
			"bytes": buf.Len(),
		})
	}

	c.Header("Content-Disposition", `attachment; filename="`+ExportFilename+`"`)
	c.Header(middleware.ExportRowsHeader, strconv.Itoa(rows))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Reload handles POST /api/v1/dataset/reload.
func (h *DashboardHandler) Reload(c *gin.Context) {
	info, err := h.service.Reload(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to reload dataset", err)
		return
	}
	c.JSON(http.StatusOK, info)
}
