// Package sqlrepair rewrites known-bad SQL produced by the generation agent.
//
// When a query is regenerated from conversation history, the model tends to
// reuse column names that only ever existed as derived expressions in a
// previous answer (final_status, success_rate, a bare count) or to reference
// the synthetic transaction_summary table. Repair rewrites those references
// back into real expressions against the transactions table, and casts bare
// timestamp comparisons because the underlying column is stored as text.
//
// The rewriting is best-effort regex substitution, not SQL parsing: only
// exact, unambiguous patterns are touched, matching is case-insensitive, and
// an input with no matching pattern is returned unchanged. Repair is
// idempotent: repairing an already-repaired query is a no-op.
package sqlrepair

import (
	"regexp"
	"strings"
)

const finalStatusExpr = "CASE WHEN event_type = 'SettlementConfirmed' THEN 'SUCCESSFUL' ELSE 'FAILED' END"

// latestEventCountSubquery replaces references to the non-existent
// transaction_summary table with an inline latest-event-per-transaction count.
const latestEventCountSubquery = "(WITH latest_events AS (" +
	"SELECT *, ROW_NUMBER() OVER (PARTITION BY transaction_id ORDER BY timestamp::timestamptz DESC) as rn FROM transactions" +
	") SELECT COUNT(*) as total_transactions FROM latest_events WHERE rn = 1) as transaction_summary"

type rewrite struct {
	pattern     *regexp.Regexp
	replacement string
}

// columnRewrites fix references to computed columns that don't exist in the
// table. Order matters: the success_rate rewrite introduces a
// transaction_summary reference that the table rewrite then inlines.
var columnRewrites = []rewrite{
	{
		pattern:     regexp.MustCompile(`(?i)SELECT\s+([^,]*,\s*)?final_status\b`),
		replacement: "SELECT ${1}" + finalStatusExpr + " as final_status",
	},
	{
		pattern:     regexp.MustCompile(`(?i)WHERE\s+final_status\s*=\s*['"](\w+)['"]`),
		replacement: "WHERE (" + finalStatusExpr + ") = '${1}'",
	},
	{
		pattern:     regexp.MustCompile(`(?i)ORDER BY\s+final_status\b`),
		replacement: "ORDER BY (" + finalStatusExpr + ")",
	},
	{
		pattern:     regexp.MustCompile(`(?i)WHERE\s+success_rate\s*([><=]+)`),
		replacement: "WHERE (SELECT success_rate FROM transaction_summary) ${1}",
	},
	{
		pattern:     regexp.MustCompile(`(?i)WHERE\s+count\s*([><=]+)`),
		replacement: "WHERE transaction_count ${1}",
	},
	{
		pattern:     regexp.MustCompile(`(?i)FROM\s+transaction_summary\b`),
		replacement: "FROM " + latestEventCountSubquery,
	},
}

// timestampComparison matches a bare timestamp column compared to a value.
// The value token excludes ':' so already-cast references never re-match.
var timestampComparison = regexp.MustCompile(`(?i)\btimestamp\s*([><=]+)\s*([^:\s;)]+)`)

// timestampClause matches timestamp in ORDER BY / GROUP BY, capturing a
// trailing cast marker so existing casts are left alone.
var timestampClause = regexp.MustCompile(`(?i)((?:ORDER|GROUP)\s+BY\s+)timestamp\b(::)?`)

// Repair applies the known rewrites to sql and returns the result. Pure,
// deterministic, and idempotent; returns the input unchanged when nothing
// matches.
func Repair(sql string) string {
	fixed := sql

	for _, rw := range columnRewrites {
		fixed = rw.pattern.ReplaceAllString(fixed, rw.replacement)
	}

	fixed = timestampComparison.ReplaceAllString(fixed, "timestamp::timestamptz ${1} ${2}")

	fixed = timestampClause.ReplaceAllStringFunc(fixed, func(m string) string {
		if strings.HasSuffix(m, "::") {
			return m
		}
		sub := timestampClause.FindStringSubmatch(m)
		return sub[1] + "timestamp::timestamptz"
	})

	return fixed
}
