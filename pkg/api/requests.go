package api

// QueryRequest is the body of the stateless query endpoint.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// CreateDashboardRequest is the body for creating a dashboard.
type CreateDashboardRequest struct {
	Title string `json:"title" binding:"required"`
}

// AddChartToDashboardRequest pins a chart to an existing dashboard.
type AddChartToDashboardRequest struct {
	DashboardID string `json:"dashboard_id" binding:"required"`
	ChartTitle  string `json:"chart_title" binding:"required"`
	ChartData   any    `json:"chart_data"`
}
