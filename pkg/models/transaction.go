package models

// TransactionSummary aggregates outcome counts across the ledger, derived
// from the latest event per transaction.
type TransactionSummary struct {
	TotalTransactions      int64   `json:"total_transactions"`
	SuccessfulTransactions int64   `json:"successful_transactions"`
	FailedTransactions     int64   `json:"failed_transactions"`
	SuccessRate            float64 `json:"success_rate"`
}

// GrafanaWebhookRequest is the alert payload posted by Grafana.
// Message carries the transaction ID tag for the failing transaction.
type GrafanaWebhookRequest struct {
	Title       string `json:"title"`
	State       string `json:"state"`
	Message     string `json:"message"`
	RuleID      int64  `json:"ruleId"`
	RuleName    string `json:"ruleName"`
	RuleURL     string `json:"ruleUrl"`
	OrgID       int64  `json:"orgId"`
	DashboardID int64  `json:"dashboardId"`
	PanelID     int64  `json:"panelId"`
}

// RetryAnalysis is the retry-analyst agent's assessment of a failed
// transaction surfaced by a webhook alert.
type RetryAnalysis struct {
	Summary        string   `json:"summary"`
	KeyInsights    []string `json:"key_insights"`
	Recommendation string   `json:"recommendation,omitempty"`
}
