// Package agent defines the language-model collaborator interfaces used by
// the query-resolution pipeline, and an OpenAI-backed implementation.
//
// Agents are opaque capability providers: each takes a prompt plus optional
// conversation history and returns a structured result. Calls that thread
// history also return the replacement message list for the next turn; the
// pipeline never mutates a history in place.
package agent

import (
	"context"
	"fmt"

	"github.com/paymentops/ledgerchat/pkg/models"
)

// Message roles in a conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in a conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Query classification outcomes.
const (
	QueryTypeSimple = "simple"
	QueryTypeSQL    = "sql"
)

// ClassificationResult reports whether a question needs SQL or can be
// answered conversationally.
type ClassificationResult struct {
	QueryType string `json:"query_type"`
}

// ChartDecision is the chart analyst's verdict on an answered question.
type ChartDecision struct {
	ChartPossible bool   `json:"chart_possible"`
	ModifiedSQL   string `json:"modified_sql,omitempty"`
}

// CompactionResult is the short cross-stage narrative stored as
// conversational memory.
type CompactionResult struct {
	Summary  string         `json:"summary"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Classifier decides whether a question needs data analysis.
type Classifier interface {
	Classify(ctx context.Context, query string, history []Message) (*ClassificationResult, []Message, error)
}

// SQLGenerator produces a PostgreSQL query from an augmented prompt.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, prompt string, history []Message) (*models.SQLGenerationResult, []Message, error)
}

// Summarizer turns query results (or their absence) into a structured
// narrative.
type Summarizer interface {
	Summarize(ctx context.Context, dataContext string, history []Message) (*models.DataSummary, []Message, error)
}

// ChartAnalyst judges whether an answer is chartable and supplies the
// modified query for the chart.
type ChartAnalyst interface {
	AnalyzeChart(ctx context.Context, chartContext string) (*ChartDecision, error)
}

// ResponseCompactor produces the turn's compacted response summary.
type ResponseCompactor interface {
	Compact(ctx context.Context, responseContext string) (*CompactionResult, error)
}

// RetryAnalyst assesses a failed transaction surfaced by a webhook alert.
type RetryAnalyst interface {
	AnalyzeFailure(ctx context.Context, failureContext string) (*models.RetryAnalysis, error)
}

// Error wraps a failure of a named agent.
type Error struct {
	Agent string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s agent failed: %v", e.Agent, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
