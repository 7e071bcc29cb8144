package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paymentops/ledgerchat/pkg/models"
)

// DashboardService manages saved dashboards and their pinned charts.
type DashboardService struct {
	pool *pgxpool.Pool
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(pool *pgxpool.Pool) *DashboardService {
	return &DashboardService{pool: pool}
}

// Create saves a new empty dashboard.
func (s *DashboardService) Create(httpCtx context.Context, title string) (*models.Dashboard, error) {
	if title == "" {
		return nil, NewValidationError("title", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, persistTimeout)
	defer cancel()

	d := models.Dashboard{ID: uuid.New().String(), Title: title}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO dashboards (id, title)
		VALUES ($1, $2)
		RETURNING charts_count, created_at, updated_at`,
		d.ID, d.Title).Scan(&d.ChartsCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard: %w", err)
	}
	return &d, nil
}

// AddChart pins a chart to a dashboard, bumping its chart count in the same
// transaction.
func (s *DashboardService) AddChart(httpCtx context.Context, dashboardID, chartTitle string, chartData any) (*models.DashboardChart, error) {
	if dashboardID == "" {
		return nil, NewValidationError("dashboard_id", "required")
	}
	if chartTitle == "" {
		return nil, NewValidationError("chart_title", "required")
	}

	chartJSON, err := json.Marshal(chartData)
	if err != nil {
		return nil, NewValidationError("chart_data", "not serializable")
	}

	ctx, cancel := context.WithTimeout(httpCtx, persistTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var one int
	if err := tx.QueryRow(ctx, `SELECT 1 FROM dashboards WHERE id = $1`, dashboardID).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to verify dashboard existence: %w", err)
	}

	chart := models.DashboardChart{
		ChartID:     uuid.New().String(),
		DashboardID: dashboardID,
		ChartTitle:  chartTitle,
		ChartData:   normalizeChartData(chartJSON),
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO dashboard_charts (id, dashboard_id, chart_title, chart_data)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		chart.ChartID, dashboardID, chartTitle, chartJSON).Scan(&chart.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add chart: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE dashboards SET charts_count = charts_count + 1, updated_at = NOW() WHERE id = $1`,
		dashboardID); err != nil {
		return nil, fmt.Errorf("failed to update chart count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit chart: %w", err)
	}
	return &chart, nil
}

// List returns all dashboards, newest first.
func (s *DashboardService) List(httpCtx context.Context) ([]models.Dashboard, error) {
	ctx, cancel := context.WithTimeout(httpCtx, persistTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, title, charts_count, created_at, updated_at
		FROM dashboards ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}
	defer rows.Close()

	var dashboards []models.Dashboard
	for rows.Next() {
		var d models.Dashboard
		if err := rows.Scan(&d.ID, &d.Title, &d.ChartsCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dashboard: %w", err)
		}
		dashboards = append(dashboards, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dashboards: %w", err)
	}
	return dashboards, nil
}

// Charts returns a dashboard's charts in pin order.
func (s *DashboardService) Charts(httpCtx context.Context, dashboardID string) ([]models.DashboardChart, error) {
	if dashboardID == "" {
		return nil, NewValidationError("dashboard_id", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, persistTimeout)
	defer cancel()

	var one int
	if err := s.pool.QueryRow(ctx, `SELECT 1 FROM dashboards WHERE id = $1`, dashboardID).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to verify dashboard existence: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, dashboard_id, chart_title, chart_data, created_at
		FROM dashboard_charts WHERE dashboard_id = $1 ORDER BY created_at ASC`, dashboardID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard charts: %w", err)
	}
	defer rows.Close()

	var charts []models.DashboardChart
	for rows.Next() {
		var (
			c   models.DashboardChart
			raw []byte
		)
		if err := rows.Scan(&c.ChartID, &c.DashboardID, &c.ChartTitle, &raw, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dashboard chart: %w", err)
		}
		c.ChartData = normalizeChartData(raw)
		charts = append(charts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dashboard charts: %w", err)
	}
	return charts, nil
}

// normalizeChartData coerces a stored chart payload into a map regardless of
// the shape it was saved in. Objects pass through; a JSON-encoded string is
// parsed and, failing that, wrapped as raw_data; any other value is wrapped
// as data.
func normalizeChartData(raw []byte) map[string]any {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return map[string]any{"raw_data": string(raw)}
	}

	switch v := value.(type) {
	case map[string]any:
		return v
	case string:
		var nested map[string]any
		if err := json.Unmarshal([]byte(v), &nested); err == nil {
			return nested
		}
		return map[string]any{"raw_data": v}
	default:
		return map[string]any{"data": v}
	}
}
