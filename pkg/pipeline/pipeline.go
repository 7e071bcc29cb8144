// Package pipeline implements the query-resolution sequence: classify a
// question, resolve SQL for it, execute under bounded resources, summarize
// the result, optionally derive a chart, and compact the turn into
// conversational memory.
//
// Every agent call and database call is bounded by a timeout. Each stage has
// a documented fallback for its own timeout; only SQL generation has none,
// because SQL cannot be skipped once a question is classified as needing
// data. Any failure outside the stage fallbacks degrades to a structured
// success=false response rather than an error to the caller.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/paymentops/ledgerchat/pkg/agent"
	"github.com/paymentops/ledgerchat/pkg/bound"
	"github.com/paymentops/ledgerchat/pkg/database"
	"github.com/paymentops/ledgerchat/pkg/models"
	"github.com/paymentops/ledgerchat/pkg/sqlrepair"
)

// summaryContextRows caps how many result rows are serialized into the
// summarization prompt. The total row count is always reported alongside.
const summaryContextRows = 50

// Executor runs generated SQL against the transactions ledger.
type Executor interface {
	Execute(ctx context.Context, sqlQuery string) ([]map[string]any, error)
}

// Agents bundles the capability providers the pipeline sequences.
type Agents struct {
	Classifier   agent.Classifier
	SQLGenerator agent.SQLGenerator
	Summarizer   agent.Summarizer
	ChartAnalyst agent.ChartAnalyst
	Compactor    agent.ResponseCompactor
}

// Pipeline orchestrates one chat turn. It holds no per-turn state, so a
// single Pipeline is safe for concurrent turns on distinct sessions.
type Pipeline struct {
	agents       Agents
	db           Executor
	agentTimeout time.Duration
	columns      []string
}

// New creates a Pipeline. columns is the enumerated ledger schema embedded
// into SQL-generation prompts.
func New(agents Agents, db Executor, agentTimeout time.Duration, columns []string) *Pipeline {
	return &Pipeline{
		agents:       agents,
		db:           db,
		agentTimeout: agentTimeout,
		columns:      columns,
	}
}

// Run processes one turn and returns the response plus the replacement
// conversation history for the session. It always returns a structured
// response; turn-level failures are reported through Success=false, never
// as an error.
func (p *Pipeline) Run(ctx context.Context, chatID, query string, history []agent.Message) (*models.ChatResponse, []agent.Message) {
	start := time.Now()
	log := slog.With("chat_id", chatID)

	queryType := p.classify(ctx, log, query, history)

	var (
		resp       *models.ChatResponse
		newHistory []agent.Message
	)
	if queryType == agent.QueryTypeSimple {
		resp, newHistory = p.runSimple(ctx, log, chatID, query, history, start)
	} else {
		resp, newHistory = p.runSQL(ctx, log, chatID, query, history, start)
	}

	if resp.Success {
		p.compact(ctx, log, resp, queryType)
	}
	return resp, newHistory
}

// classify decides the turn's path. Its messages never enter the
// conversation; downstream stages always see the pre-turn history.
// Timeouts and agent failures both default to the SQL path: misclassifying
// a conversational question costs one extra query round trip, while
// skipping data analysis would silently answer from nothing.
func (p *Pipeline) classify(ctx context.Context, log *slog.Logger, query string, history []agent.Message) string {
	result, err := bound.Run(ctx, p.agentTimeout, "Query classification", func(ctx context.Context) (*agent.ClassificationResult, error) {
		result, _, err := p.agents.Classifier.Classify(ctx, query, history)
		return result, err
	})
	if err != nil {
		log.Warn("Classification failed, defaulting to sql path", "error", err)
		return agent.QueryTypeSQL
	}
	return result.QueryType
}

// runSimple answers a conversational question without touching the ledger.
func (p *Pipeline) runSimple(ctx context.Context, log *slog.Logger, chatID, query string, history []agent.Message, start time.Time) (*models.ChatResponse, []agent.Message) {
	summary, newHistory, err := p.summarizeBounded(ctx, agent.BuildSimpleContext(query), history)
	if err != nil {
		if bound.IsTimeout(err) {
			log.Warn("Simple response timed out, using fallback", "error", err)
			summary = &models.DataSummary{
				Summary: "The response took too long to generate. Please try again.",
			}
			newHistory = history
		} else {
			log.Error("Simple response failed", "error", err)
			return p.failureResponse(chatID, query, "Failed to process your question. Please try again.", start), history
		}
	}

	return &models.ChatResponse{
		Success:         true,
		ChatID:          chatID,
		Query:           query,
		SQLQuery:        "",
		Data:            []map[string]any{},
		Summary:         summary.Summary,
		Insights:        insightsOrEmpty(summary.KeyInsights),
		Recommendation:  summary.Recommendation,
		ExecutionTimeMs: elapsedMs(start),
		RecordCount:     0,
	}, newHistory
}

// runSQL is the data-analysis path: resolve SQL, execute, summarize, and
// attach a chart when one makes sense.
func (p *Pipeline) runSQL(ctx context.Context, log *slog.Logger, chatID, query string, history []agent.Message, start time.Time) (*models.ChatResponse, []agent.Message) {
	sqlQuery, rows, newHistory, err := p.resolveAndExecute(ctx, log, query, history)
	if err != nil {
		if bound.IsTimeout(err) {
			return p.failureResponse(chatID, query,
				"The query took too long to generate. Please try a simpler question.", start), history
		}
		log.Error("Query resolution failed", "error", err)
		return p.failureResponse(chatID, query,
			"Query execution failed. Please try rephrasing your question.", start), history
	}

	summary, newHistory, err := p.summarize(ctx, log, query, rows, newHistory)
	if err != nil {
		log.Error("Summarization failed", "error", err)
		return p.failureResponse(chatID, query,
			"Failed to analyze query results. Please try again.", start), history
	}

	resp := &models.ChatResponse{
		Success:         true,
		ChatID:          chatID,
		Query:           query,
		SQLQuery:        sqlQuery,
		Data:            rows,
		Summary:         summary.Summary,
		Insights:        insightsOrEmpty(summary.KeyInsights),
		Recommendation:  summary.Recommendation,
		ExecutionTimeMs: elapsedMs(start),
		RecordCount:     len(rows),
	}
	resp.BarChart = p.deriveChart(ctx, log, query, sqlQuery)
	return resp, newHistory
}

// resolveAndExecute generates SQL, repairs it, and runs it. When execution
// fails because the query referenced a computed column carried over from a
// previous answer, it regenerates exactly once from the original prompt
// without conversation history, so the fresh query cannot re-anchor on the
// same stale assumption. A second stale-column failure propagates.
func (p *Pipeline) resolveAndExecute(ctx context.Context, log *slog.Logger, query string, history []agent.Message) (string, []map[string]any, []agent.Message, error) {
	prompt := agent.BuildSQLPrompt(query, p.columns)

	sqlQuery, newHistory, err := p.generateSQLBounded(ctx, prompt, history)
	if err != nil {
		return "", nil, nil, err
	}
	sqlQuery = sqlrepair.Repair(sqlQuery)

	rows, err := p.db.Execute(ctx, sqlQuery)
	if err == nil {
		return sqlQuery, rows, newHistory, nil
	}
	if !database.IsStaleColumn(err) {
		return "", nil, nil, err
	}

	log.Warn("Query referenced stale computed column, regenerating without history", "error", err)
	sqlQuery, newHistory, err = p.generateSQLBounded(ctx, prompt, nil)
	if err != nil {
		return "", nil, nil, err
	}
	sqlQuery = sqlrepair.Repair(sqlQuery)

	rows, err = p.db.Execute(ctx, sqlQuery)
	if err != nil {
		return "", nil, nil, err
	}
	return sqlQuery, rows, newHistory, nil
}

func (p *Pipeline) generateSQLBounded(ctx context.Context, prompt string, history []agent.Message) (string, []agent.Message, error) {
	type outcome struct {
		result  *models.SQLGenerationResult
		history []agent.Message
	}
	out, err := bound.Run(ctx, p.agentTimeout, "SQL generation", func(ctx context.Context) (outcome, error) {
		result, newHistory, err := p.agents.SQLGenerator.GenerateSQL(ctx, prompt, history)
		return outcome{result, newHistory}, err
	})
	if err != nil {
		return "", nil, err
	}
	return out.result.SQLQuery, out.history, nil
}

// summarize narrates the execution result. With rows present, at most
// summaryContextRows of them enter the prompt. With no rows, the summary is
// synthesized locally and a lighter agent call still runs so the
// conversation history stays consistent for the next turn. A timeout never
// fails the turn once data has been retrieved; it degrades to a row-count
// report. Any other agent failure propagates.
func (p *Pipeline) summarize(ctx context.Context, log *slog.Logger, query string, rows []map[string]any, history []agent.Message) (*models.DataSummary, []agent.Message, error) {
	if len(rows) == 0 {
		local := &models.DataSummary{
			Summary:     "No data found for the given query.",
			KeyInsights: []string{"No matching records in the ledger"},
		}
		_, newHistory, err := p.summarizeBounded(ctx, agent.BuildDataContext(query, rows, summaryContextRows), history)
		if err != nil {
			log.Warn("Continuity summarization failed", "error", err)
			return local, history, nil
		}
		return local, newHistory, nil
	}

	summary, newHistory, err := p.summarizeBounded(ctx, agent.BuildDataContext(query, rows, summaryContextRows), history)
	if err != nil {
		if !bound.IsTimeout(err) {
			return nil, nil, err
		}
		log.Warn("Summarization timed out, using fallback", "error", err)
		return &models.DataSummary{
			Summary: fmt.Sprintf("Query returned %d rows. Detailed analysis timed out.", len(rows)),
		}, history, nil
	}
	return summary, newHistory, nil
}

func (p *Pipeline) summarizeBounded(ctx context.Context, dataContext string, history []agent.Message) (*models.DataSummary, []agent.Message, error) {
	type outcome struct {
		result  *models.DataSummary
		history []agent.Message
	}
	out, err := bound.Run(ctx, p.agentTimeout, "Data summarization", func(ctx context.Context) (outcome, error) {
		result, newHistory, err := p.agents.Summarizer.Summarize(ctx, dataContext, history)
		return outcome{result, newHistory}, err
	})
	if err != nil {
		return nil, nil, err
	}
	return out.result, out.history, nil
}

// deriveChart is best-effort and never fails the turn. When the analyst
// deems the answer chartable, the modified query goes through the same
// repair and bounded execution path as the main query; a chart-query
// failure is attached as chart_data_error rather than chart rows.
func (p *Pipeline) deriveChart(ctx context.Context, log *slog.Logger, query, sqlQuery string) *models.BarChartAnalysis {
	decision, err := bound.Run(ctx, p.agentTimeout, "Chart analysis", func(ctx context.Context) (*agent.ChartDecision, error) {
		return p.agents.ChartAnalyst.AnalyzeChart(ctx, agent.BuildChartContext(query, sqlQuery))
	})
	if err != nil {
		log.Warn("Chart analysis failed, skipping chart", "error", err)
		return nil
	}

	analysis := &models.BarChartAnalysis{
		ChartPossible: decision.ChartPossible,
		ModifiedSQL:   decision.ModifiedSQL,
	}
	if !decision.ChartPossible || decision.ModifiedSQL == "" {
		return analysis
	}

	analysis.ModifiedSQL = sqlrepair.Repair(decision.ModifiedSQL)
	chartRows, err := p.db.Execute(ctx, analysis.ModifiedSQL)
	if err != nil {
		log.Warn("Chart query failed", "error", err)
		analysis.ChartDataError = fmt.Sprintf("failed to fetch chart data: %v", err)
		return analysis
	}
	analysis.ChartData = chartRows
	return analysis
}

// compact writes the turn's short cross-stage narrative into
// resp.ResponseSummary. Timeout degrades to a truncated excerpt of the
// primary summary; any other failure to an explicit notice. Either way the
// turn stays successful.
func (p *Pipeline) compact(ctx context.Context, log *slog.Logger, resp *models.ChatResponse, queryType string) {
	responseContext := agent.BuildResponseContext(agent.ResponseContext{
		Query:           resp.Query,
		QueryType:       queryType,
		SQLQuery:        resp.SQLQuery,
		Summary:         resp.Summary,
		Insights:        resp.Insights,
		Recommendation:  resp.Recommendation,
		RecordCount:     resp.RecordCount,
		ExecutionTimeMs: resp.ExecutionTimeMs,
		Success:         resp.Success,
	})

	result, err := bound.Run(ctx, p.agentTimeout, "Response summary generation", func(ctx context.Context) (*agent.CompactionResult, error) {
		return p.agents.Compactor.Compact(ctx, responseContext)
	})
	switch {
	case err == nil:
		resp.ResponseSummary = result.Summary
	case bound.IsTimeout(err):
		log.Warn("Response compaction timed out", "error", err)
		resp.ResponseSummary = truncate(resp.Summary, 100) + " (summary generation timed out)"
	default:
		log.Warn("Response compaction failed", "error", err)
		resp.ResponseSummary = "Response summary generation failed."
	}
}

// failureResponse is the terminal success=false artifact. It carries no
// data and no SQL, with metrics limited to elapsed time.
func (p *Pipeline) failureResponse(chatID, query, summary string, start time.Time) *models.ChatResponse {
	return &models.ChatResponse{
		Success:         false,
		ChatID:          chatID,
		Query:           query,
		SQLQuery:        "",
		Data:            []map[string]any{},
		Summary:         summary,
		Insights:        []string{},
		ResponseSummary: "Failed to process query.",
		ExecutionTimeMs: elapsedMs(start),
		RecordCount:     0,
	}
}

func insightsOrEmpty(insights []string) []string {
	if insights == nil {
		return []string{}
	}
	return insights
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// truncate cuts s to at most n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
