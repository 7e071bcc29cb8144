package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/ledgerchat/test/util"
)

func TestDashboardService_Lifecycle(t *testing.T) {
	pool := util.SetupTestDatabase(t)
	svc := NewDashboardService(pool)
	ctx := context.Background()

	dash, err := svc.Create(ctx, "Payment failures")
	require.NoError(t, err)
	require.NotEmpty(t, dash.ID)
	assert.Equal(t, 0, dash.ChartsCount)

	_, err = svc.Create(ctx, "")
	assert.True(t, IsValidationError(err))

	chartData := map[string]any{
		"labels": []any{"card", "wallet"},
		"values": []any{12.0, 7.0},
	}
	chart, err := svc.AddChart(ctx, dash.ID, "Failures by method", chartData)
	require.NoError(t, err)
	assert.Equal(t, dash.ID, chart.DashboardID)
	assert.Equal(t, chartData, chart.ChartData)

	// Adding to an unknown dashboard leaves no chart behind
	_, err = svc.AddChart(ctx, "no-such-dashboard", "Orphan", chartData)
	assert.ErrorIs(t, err, ErrNotFound)

	dashboards, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, dashboards, 1)
	assert.Equal(t, 1, dashboards[0].ChartsCount)

	// Pinning a chart bumps updated_at, so the older dashboard floats to
	// the top of the list
	newer, err := svc.Create(ctx, "Settlement volume")
	require.NoError(t, err)
	_, err = svc.AddChart(ctx, dash.ID, "Failures by day", chartData)
	require.NoError(t, err)

	dashboards, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, dashboards, 2)
	assert.Equal(t, dash.ID, dashboards[0].ID)
	assert.Equal(t, 2, dashboards[0].ChartsCount)
	assert.Equal(t, newer.ID, dashboards[1].ID)

	charts, err := svc.Charts(ctx, dash.ID)
	require.NoError(t, err)
	require.Len(t, charts, 2)
	assert.Equal(t, "Failures by method", charts[0].ChartTitle)
	assert.Equal(t, "Failures by day", charts[1].ChartTitle)
	assert.Equal(t, chartData, charts[0].ChartData)

	_, err = svc.Charts(ctx, "no-such-dashboard")
	assert.ErrorIs(t, err, ErrNotFound)
}
