package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CreateDashboard handles POST /api/dashboards/create.
func (s *Server) CreateDashboard(c *gin.Context) {
	var req CreateDashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request body", err.Error()))
		return
	}

	dashboard, err := s.dashboards.Create(c.Request.Context(), req.Title)
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse("Failed to create dashboard", msg))
		return
	}
	c.JSON(http.StatusCreated, okResponse("Dashboard created successfully", dashboard))
}

// AddChartToDashboard handles POST /api/dashboards/add-chart.
func (s *Server) AddChartToDashboard(c *gin.Context) {
	var req AddChartToDashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request body", err.Error()))
		return
	}

	chart, err := s.dashboards.AddChart(c.Request.Context(), req.DashboardID, req.ChartTitle, req.ChartData)
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse("Failed to add chart to dashboard", msg))
		return
	}
	c.JSON(http.StatusOK, okResponse("Chart added to dashboard successfully", chart))
}

// ListDashboards handles GET /api/dashboards.
func (s *Server) ListDashboards(c *gin.Context) {
	dashboards, err := s.dashboards.List(c.Request.Context())
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse("Failed to retrieve dashboards", msg))
		return
	}
	c.JSON(http.StatusOK, okResponse(
		fmt.Sprintf("Retrieved %d dashboards", len(dashboards)),
		gin.H{"dashboards": dashboards, "total_count": len(dashboards)},
	))
}

// GetDashboardCharts handles GET /api/dashboards/:dashboard_id/charts.
func (s *Server) GetDashboardCharts(c *gin.Context) {
	dashboardID := c.Param("dashboard_id")

	charts, err := s.dashboards.Charts(c.Request.Context(), dashboardID)
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse(fmt.Sprintf("Failed to get charts for dashboard %s", dashboardID), msg))
		return
	}
	c.JSON(http.StatusOK, okResponse(
		fmt.Sprintf("Retrieved %d charts", len(charts)),
		gin.H{"dashboard_id": dashboardID, "charts": charts, "total_charts": len(charts)},
	))
}
