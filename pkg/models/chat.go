// Package models contains request/response models and business domain types.
package models

import "time"

// Transaction status values reported by the summarization agent.
const (
	TransactionStatusSuccessful = "SUCCESSFUL"
	TransactionStatusFailed     = "FAILED"
)

// Chat request kinds.
const (
	ChatTypeNew      = "new"
	ChatTypeExisting = "existing"
)

// ChatQueryRequest starts or continues a chat turn. ChatType "new" opens a
// fresh session; "existing" requires ChatID.
type ChatQueryRequest struct {
	Query    string `json:"query" binding:"required"`
	ChatType string `json:"chat_type"`
	ChatID   string `json:"chat_id"`
}

// SQLGenerationResult is the output of the SQL resolution stage. The repair
// engine mutates SQLQuery in place; nothing else writes to it.
type SQLGenerationResult struct {
	SQLQuery string `json:"sql_query"`
}

// DataSummary is the structured narrative produced by the summarization stage.
type DataSummary struct {
	Summary           string   `json:"summary"`
	KeyInsights       []string `json:"key_insights"`
	Recommendation    string   `json:"recommendation,omitempty"`
	TransactionStatus string   `json:"transaction_status,omitempty"`
}

// BarChartAnalysis reports whether an answer is chartable and, when it is,
// either the chart rows or the error that prevented fetching them.
// ChartData and ChartDataError are mutually exclusive.
type BarChartAnalysis struct {
	ChartPossible  bool             `json:"chart_possible"`
	ModifiedSQL    string           `json:"modified_sql,omitempty"`
	ChartData      []map[string]any `json:"chart_data,omitempty"`
	ChartDataError string           `json:"chart_data_error,omitempty"`
}

// ChatResponse is the final artifact of one chat turn.
//
// Invariants: RecordCount == len(Data); Success == false implies Data is
// empty and SQLQuery is "".
type ChatResponse struct {
	Success         bool              `json:"success"`
	ChatID          string            `json:"chat_id"`
	Query           string            `json:"query"`
	SQLQuery        string            `json:"sql_query"`
	Data            []map[string]any  `json:"data"`
	Summary         string            `json:"summary"`
	Insights        []string          `json:"insights"`
	Recommendation  string            `json:"recommendation,omitempty"`
	ResponseSummary string            `json:"response_summary,omitempty"`
	ExecutionTimeMs float64           `json:"execution_time_ms"`
	RecordCount     int               `json:"record_count"`
	BarChart        *BarChartAnalysis `json:"bar_chart,omitempty"`
}

// ChatQueryRecord is one stored query row for the chat listing endpoints.
type ChatQueryRecord struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatTurnRecord is one stored turn (query + response) in a chat's history.
type ChatTurnRecord struct {
	ID              string         `json:"id"`
	ChatID          string         `json:"chat_id"`
	Query           string         `json:"query"`
	QueryType       string         `json:"query_type"`
	Response        map[string]any `json:"response,omitempty"`
	ResponseSummary string         `json:"response_summary,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}
