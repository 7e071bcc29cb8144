package sqlrepair

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepairFinalStatusSelect(t *testing.T) {
	got := Repair("SELECT final_status FROM transactions")
	assert.Equal(t,
		"SELECT CASE WHEN event_type = 'SettlementConfirmed' THEN 'SUCCESSFUL' ELSE 'FAILED' END as final_status FROM transactions",
		got)
}

func TestRepairFinalStatusSelectWithLeadingColumn(t *testing.T) {
	got := Repair("SELECT transaction_id, final_status FROM transactions")
	assert.Equal(t,
		"SELECT transaction_id, CASE WHEN event_type = 'SettlementConfirmed' THEN 'SUCCESSFUL' ELSE 'FAILED' END as final_status FROM transactions",
		got)
}

func TestRepairFinalStatusWherePreservesLiteral(t *testing.T) {
	got := Repair("SELECT * FROM transactions WHERE final_status = 'FAILED'")
	assert.Contains(t, got, "WHERE (CASE WHEN event_type = 'SettlementConfirmed' THEN 'SUCCESSFUL' ELSE 'FAILED' END) = 'FAILED'")
}

func TestRepairFinalStatusOrderBy(t *testing.T) {
	got := Repair("SELECT transaction_id FROM transactions ORDER BY final_status")
	assert.Contains(t, got, "ORDER BY (CASE WHEN event_type = 'SettlementConfirmed' THEN 'SUCCESSFUL' ELSE 'FAILED' END)")
}

func TestRepairSuccessRatePredicate(t *testing.T) {
	got := Repair("SELECT 1 WHERE success_rate > 90")
	assert.Contains(t, got, "WHERE (SELECT success_rate FROM")
	// The synthesized subselect target is itself inlined by the
	// transaction_summary rewrite in the same pass.
	assert.Contains(t, got, "WITH latest_events AS")
	assert.Contains(t, got, "> 90")
}

func TestRepairBareCountPredicate(t *testing.T) {
	got := Repair("SELECT user_id FROM transactions WHERE count > 5")
	assert.Contains(t, got, "WHERE transaction_count > 5")
}

func TestRepairTransactionSummaryTable(t *testing.T) {
	got := Repair("SELECT total_transactions FROM transaction_summary")
	assert.Contains(t, got, "FROM (WITH latest_events AS (")
	assert.Contains(t, got, ") as transaction_summary")
	assert.NotContains(t, got, "FROM transaction_summary")
}

func TestRepairTimestampComparison(t *testing.T) {
	got := Repair("SELECT * FROM transactions WHERE timestamp > '2024-01-01'")
	assert.Contains(t, got, "timestamp::timestamptz > '2024-01-01'")
}

func TestRepairTimestampClauses(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "order by gains cast",
			in:   "SELECT * FROM transactions ORDER BY timestamp DESC",
			want: "SELECT * FROM transactions ORDER BY timestamp::timestamptz DESC",
		},
		{
			name: "group by gains cast",
			in:   "SELECT COUNT(*) FROM transactions GROUP BY timestamp",
			want: "SELECT COUNT(*) FROM transactions GROUP BY timestamp::timestamptz",
		},
		{
			name: "existing cast untouched",
			in:   "SELECT * FROM transactions ORDER BY timestamp::timestamptz DESC",
			want: "SELECT * FROM transactions ORDER BY timestamp::timestamptz DESC",
		},
		{
			name: "case insensitive",
			in:   "select * from transactions order by timestamp desc",
			want: "select * from transactions order by timestamp::timestamptz desc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Repair(tt.in))
		})
	}
}

func TestRepairLeavesWellFormedQueriesUnchanged(t *testing.T) {
	queries := []string{
		"SELECT transaction_id, tx_status FROM transactions WHERE user_id = $1",
		"SELECT COUNT(*) FROM transactions",
		"SELECT * FROM transactions WHERE timestamp::timestamptz > NOW() - INTERVAL '1 day'",
		"WITH latest AS (SELECT * FROM transactions) SELECT * FROM latest",
		"",
	}

	for _, q := range queries {
		assert.Equal(t, q, Repair(q), "query should be unchanged: %s", q)
	}
}

// Repair must be idempotent over every rewrite class: repairing an already
// repaired query changes nothing.
func TestRepairIdempotent(t *testing.T) {
	queries := []string{
		"SELECT final_status FROM transactions",
		"SELECT transaction_id, final_status FROM transactions ORDER BY final_status",
		"SELECT * FROM transactions WHERE final_status = 'SUCCESSFUL'",
		"SELECT 1 WHERE success_rate >= 95",
		"SELECT user_id FROM transactions WHERE count > 3",
		"SELECT total_transactions FROM transaction_summary",
		"SELECT * FROM transactions WHERE timestamp > '2024-06-01' ORDER BY timestamp DESC",
		"SELECT COUNT(*) FROM transactions GROUP BY timestamp",
		"SELECT transaction_id FROM transactions WHERE user_id = 'U1'",
	}

	for _, q := range queries {
		once := Repair(q)
		twice := Repair(once)
		assert.Equal(t, once, twice, "repair not idempotent for: %s", q)
	}
}

func TestRepairHandlesMixedCaseKeywords(t *testing.T) {
	got := Repair("select Final_Status from transactions")
	assert.True(t, strings.Contains(got, "SettlementConfirmed"), "expected rewrite, got: %s", got)
}
