package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paymentops/ledgerchat/pkg/agent"
	"github.com/paymentops/ledgerchat/pkg/bound"
	"github.com/paymentops/ledgerchat/pkg/models"
)

const (
	defaultUserTransactionsLimit = 10
	maxUserTransactionsLimit     = 100
)

// transactionSummarySQL derives each transaction's outcome from its latest
// event and aggregates the outcomes across the ledger.
const transactionSummarySQL = `
WITH latest_events AS (
    SELECT *,
           ROW_NUMBER() OVER (PARTITION BY transaction_id ORDER BY timestamp::timestamptz DESC) AS rn
    FROM transactions
),
transaction_status AS (
    SELECT
        transaction_id,
        CASE WHEN event_type = 'SettlementConfirmed' THEN 'SUCCESSFUL' ELSE 'FAILED' END AS final_status
    FROM latest_events
    WHERE rn = 1
)
SELECT
    COUNT(*) AS total_transactions,
    SUM(CASE WHEN final_status = 'SUCCESSFUL' THEN 1 ELSE 0 END) AS successful_transactions,
    SUM(CASE WHEN final_status = 'FAILED' THEN 1 ELSE 0 END) AS failed_transactions,
    ROUND(
        (SUM(CASE WHEN final_status = 'SUCCESSFUL' THEN 1 ELSE 0 END)::numeric / COUNT(*)) * 100, 2
    )::float8 AS success_rate
FROM transaction_status;`

const userTransactionsSQL = `
WITH latest_events AS (
    SELECT *,
           ROW_NUMBER() OVER (PARTITION BY transaction_id ORDER BY timestamp::timestamptz DESC) AS rn
    FROM transactions
    WHERE user_id = $1
)
SELECT
    transaction_id,
    event_type,
    tx_status,
    fiat_amount,
    fiat_currency,
    crypto_amount,
    crypto_token,
    timestamp,
    CASE WHEN event_type = 'SettlementConfirmed' THEN 'SUCCESSFUL' ELSE 'FAILED' END AS final_status
FROM latest_events
WHERE rn = 1
ORDER BY timestamp::timestamptz DESC
LIMIT $2;`

// LedgerQuerier runs fixed, parameterized statements against the ledger.
type LedgerQuerier interface {
	Select(ctx context.Context, sqlQuery string, args ...any) ([]map[string]any, error)
	Exec(ctx context.Context, sqlQuery string, args ...any) error
}

// AnalysisStore persists retry-analyst output.
type AnalysisStore interface {
	SaveAlertAnalysis(ctx context.Context, transactionID, summary string) error
}

// WebhookResult is the outcome of processing a Grafana alert.
type WebhookResult struct {
	Status   string                `json:"status"`
	Reason   string                `json:"reason,omitempty"`
	Analysis *models.RetryAnalysis `json:"analysis,omitempty"`
}

// TransactionService answers the fixed ledger questions (summary, per-user
// listings, alerts) and analyzes failed transactions from webhook alerts.
type TransactionService struct {
	ledger       LedgerQuerier
	analyses     AnalysisStore
	retryAnalyst agent.RetryAnalyst
	agentTimeout time.Duration
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(ledger LedgerQuerier, analyses AnalysisStore, retryAnalyst agent.RetryAnalyst, agentTimeout time.Duration) *TransactionService {
	return &TransactionService{
		ledger:       ledger,
		analyses:     analyses,
		retryAnalyst: retryAnalyst,
		agentTimeout: agentTimeout,
	}
}

// Summary aggregates outcome counts across the ledger.
func (s *TransactionService) Summary(httpCtx context.Context) (*models.TransactionSummary, error) {
	rows, err := s.ledger.Select(httpCtx, transactionSummarySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to compute transaction summary: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	row := rows[0]
	return &models.TransactionSummary{
		TotalTransactions:      asInt64(row["total_transactions"]),
		SuccessfulTransactions: asInt64(row["successful_transactions"]),
		FailedTransactions:     asInt64(row["failed_transactions"]),
		SuccessRate:            asFloat64(row["success_rate"]),
	}, nil
}

// UserTransactions returns the latest event per transaction for a user,
// newest first. limit defaults to 10 and is capped at 100.
func (s *TransactionService) UserTransactions(httpCtx context.Context, userID string, limit int) ([]map[string]any, error) {
	if userID == "" {
		return nil, NewValidationError("user_id", "required")
	}
	if limit <= 0 {
		limit = defaultUserTransactionsLimit
	}
	if limit > maxUserTransactionsLimit {
		return nil, NewValidationError("limit", fmt.Sprintf("must be at most %d", maxUserTransactionsLimit))
	}

	rows, err := s.ledger.Select(httpCtx, userTransactionsSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load user transactions: %w", err)
	}
	return rows, nil
}

// Alerts returns all ledger alerts, newest first.
func (s *TransactionService) Alerts(httpCtx context.Context) ([]map[string]any, error) {
	rows, err := s.ledger.Select(httpCtx, `SELECT * FROM alerts ORDER BY timestamp::timestamptz DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}
	return rows, nil
}

// MarkAlertSeen flags a ledger alert as seen.
func (s *TransactionService) MarkAlertSeen(httpCtx context.Context, alertID string) error {
	if alertID == "" {
		return NewValidationError("alert_id", "required")
	}
	if err := s.ledger.Exec(httpCtx, `UPDATE alerts SET is_seen = true WHERE id = $1`, alertID); err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	return nil
}

// FailedTransactionDetails returns the alert rows recorded for a transaction.
func (s *TransactionService) FailedTransactionDetails(httpCtx context.Context, transactionID string) ([]map[string]any, error) {
	if transactionID == "" {
		return nil, NewValidationError("transaction_id", "required")
	}
	rows, err := s.ledger.Select(httpCtx, `SELECT * FROM alerts WHERE transaction_id = $1`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load failed transaction details: %w", err)
	}
	return rows, nil
}

// HandleGrafanaWebhook analyzes the failing transaction named in an alerting
// webhook. States other than "alerting" are acknowledged and ignored. The
// analyst call is bounded; on timeout a fixed fallback analysis is used so
// the alert is always answered and recorded.
func (s *TransactionService) HandleGrafanaWebhook(httpCtx context.Context, req models.GrafanaWebhookRequest) (*WebhookResult, error) {
	if req.State != "alerting" {
		return &WebhookResult{
			Status: "ignored",
			Reason: fmt.Sprintf("State was '%s'", req.State),
		}, nil
	}

	transactionID := strings.TrimSpace(req.Message)
	if transactionID == "" {
		return nil, NewValidationError("message", "'transaction_id' tag not found in Grafana alert")
	}

	details, err := s.ledger.Select(httpCtx,
		`SELECT * FROM transactions WHERE transaction_id = $1 ORDER BY timestamp::timestamptz ASC`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction details: %w", err)
	}

	analysis, err := bound.Run(httpCtx, s.agentTimeout, "Failed transaction retry analysis", func(ctx context.Context) (*models.RetryAnalysis, error) {
		return s.retryAnalyst.AnalyzeFailure(ctx, agent.BuildRetryContext(details))
	})
	if err != nil {
		if !bound.IsTimeout(err) {
			return nil, fmt.Errorf("retry analysis failed: %w", err)
		}
		analysis = &models.RetryAnalysis{
			Summary:        "I'm here to help with your payment and transaction questions. Could you please rephrase your question?",
			KeyInsights:    []string{"Response generation timed out"},
			Recommendation: "Please try asking your question again or be more specific.",
		}
	}

	ctx, cancel := context.WithTimeout(httpCtx, persistTimeout)
	defer cancel()
	if err := s.analyses.SaveAlertAnalysis(ctx, transactionID, analysis.Summary); err != nil {
		return nil, fmt.Errorf("failed to persist alert analysis: %w", err)
	}

	return &WebhookResult{Status: "analyzed", Analysis: analysis}, nil
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
