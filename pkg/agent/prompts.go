package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildSQLPrompt combines the raw question with the enumerated ledger
// columns so the generation agent only references columns that exist.
func BuildSQLPrompt(query string, columns []string) string {
	columnsJSON, _ := json.MarshalIndent(columns, "", "  ")
	return fmt.Sprintf(`User Query: %s
Available Dataset Columns: %s
Please generate a PostgreSQL query to answer this question.`, query, columnsJSON)
}

// BuildDataContext serializes at most maxRows rows of the result into the
// summarization prompt, alongside the total row count.
func BuildDataContext(query string, rows []map[string]any, maxRows int) string {
	shown := rows
	truncated := ""
	if len(rows) > maxRows {
		shown = rows[:maxRows]
		truncated = "\n... (additional rows truncated for analysis)"
	}
	rowsJSON, _ := json.MarshalIndent(shown, "", "  ")

	return fmt.Sprintf(`Original Query: %s
Retrieved Data (%d rows, showing first %d):
%s%s
Total rows: %d`, query, len(rows), len(shown), rowsJSON, truncated, len(rows))
}

// BuildChartContext describes the answered question for the chart analyst.
func BuildChartContext(query, sqlQuery string) string {
	return fmt.Sprintf("User Query: %s\nSQL Query: %s", query, sqlQuery)
}

// BuildSimpleContext frames a conversational question that needs no data
// analysis.
func BuildSimpleContext(query string) string {
	return fmt.Sprintf(`User Query: %s

This is a simple conversational query that doesn't require database analysis.
Provide a helpful, informative response based on general knowledge about
financial transactions, payment processing, or answer the user's question directly.`, query)
}

// ResponseContext carries the fields of a finished turn for compaction.
type ResponseContext struct {
	Query           string
	QueryType       string
	SQLQuery        string
	Summary         string
	Insights        []string
	Recommendation  string
	RecordCount     int
	ExecutionTimeMs float64
	Success         bool
}

// BuildResponseContext renders the turn for the response compactor.
func BuildResponseContext(rc ResponseContext) string {
	recommendation := rc.Recommendation
	if recommendation == "" {
		recommendation = "None"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "User Query: %s\n", rc.Query)
	if rc.QueryType == QueryTypeSimple {
		sb.WriteString("Query Type: Simple conversational query (no SQL needed)\n")
	} else {
		fmt.Fprintf(&sb, "SQL Query: %s\n", rc.SQLQuery)
	}
	fmt.Fprintf(&sb, "Data Summary: %s\n", rc.Summary)
	fmt.Fprintf(&sb, "Key Insights: %s\n", strings.Join(rc.Insights, ", "))
	fmt.Fprintf(&sb, "Recommendation: %s\n", recommendation)
	if rc.QueryType != QueryTypeSimple {
		fmt.Fprintf(&sb, "Records Found: %d\n", rc.RecordCount)
	}
	fmt.Fprintf(&sb, "Execution Time: %.0fms\n", rc.ExecutionTimeMs)
	fmt.Fprintf(&sb, "Success: %t", rc.Success)
	return sb.String()
}

// BuildRetryContext frames a failed transaction's event rows for the retry
// analyst.
func BuildRetryContext(details []map[string]any) string {
	detailsJSON, _ := json.MarshalIndent(details, "", "  ")
	return fmt.Sprintf("User Query: Summary of the transaction\nTransaction Details: %s", detailsJSON)
}
