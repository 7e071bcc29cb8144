package models

import "time"

// Dashboard is a saved collection of charts.
type Dashboard struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ChartsCount int       `json:"charts_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DashboardChart is a chart pinned to a dashboard. ChartData is normalized
// to a map once at the storage boundary, whatever shape it was saved in.
type DashboardChart struct {
	ChartID     string         `json:"chart_id"`
	DashboardID string         `json:"dashboard_id"`
	ChartTitle  string         `json:"chart_title"`
	ChartData   map[string]any `json:"chart_data"`
	CreatedAt   time.Time      `json:"created_at"`
}
