package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paymentops/ledgerchat/pkg/bound"
)

// computedColumns are names that exist only as derived expressions in
// previously generated queries. An undefined-column failure naming one of
// them is classified as StaleColumnError rather than a plain execution error.
var computedColumns = []string{"final_status", "success_rate", "count"}

// pgUndefinedColumn is the PostgreSQL error code for undefined_column.
const pgUndefinedColumn = "42703"

// Executor runs queries against the transactions ledger with a fixed timeout
// and a row-count cap. Every call acquires a pooled connection and releases
// it on all exit paths, including timeout.
type Executor struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	maxRows int
}

// NewExecutor creates an Executor over the ledger pool.
func NewExecutor(pool *pgxpool.Pool, timeout time.Duration, maxRows int) *Executor {
	return &Executor{pool: pool, timeout: timeout, maxRows: maxRows}
}

// Execute runs a generated (non-parameterized) query. A LIMIT clause is
// appended when the statement has none and is not a count-style aggregate.
func (e *Executor) Execute(ctx context.Context, sqlQuery string) ([]map[string]any, error) {
	return e.run(ctx, applyRowLimit(sqlQuery, e.maxRows))
}

// Select runs a parameterized query without limit injection. Used by the
// service layer for its fixed statements.
func (e *Executor) Select(ctx context.Context, sqlQuery string, args ...any) ([]map[string]any, error) {
	return e.run(ctx, sqlQuery, args...)
}

// Exec runs a parameterized statement that returns no rows.
func (e *Executor) Exec(ctx context.Context, sqlQuery string, args ...any) error {
	_, err := bound.Run(ctx, e.timeout, "Database statement execution", func(ctx context.Context) (struct{}, error) {
		conn, err := e.pool.Acquire(ctx)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to acquire connection: %w", err)
		}
		defer conn.Release()

		_, err = conn.Exec(ctx, sqlQuery, args...)
		return struct{}{}, err
	})
	if err != nil {
		return classifyQueryError(err)
	}
	return nil
}

func (e *Executor) run(ctx context.Context, sqlQuery string, args ...any) ([]map[string]any, error) {
	result, err := bound.Run(ctx, e.timeout, "Database query execution", func(ctx context.Context) ([]map[string]any, error) {
		conn, err := e.pool.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire connection: %w", err)
		}
		// Released on success, failure, and timeout alike: the bounded
		// context cancels the in-flight query, Query/Next return, and this
		// defer runs even after the caller has abandoned the operation.
		defer conn.Release()

		rows, err := conn.Query(ctx, sqlQuery, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		return mapRows(rows)
	})
	if err != nil {
		return nil, classifyQueryError(err)
	}
	return result, nil
}

// mapRows converts pgx rows into the uniform field→value shape the pipeline
// and API work with.
func mapRows(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	result := make([]map[string]any, 0)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[string(fd.Name)] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// applyRowLimit appends a LIMIT clause unless the statement already has one
// or is a count-style aggregate (where a limit would be meaningless).
func applyRowLimit(sqlQuery string, maxRows int) string {
	upper := strings.ToUpper(sqlQuery)
	if strings.Contains(upper, "LIMIT") || strings.Contains(upper, "COUNT") {
		return sqlQuery
	}
	return fmt.Sprintf("%s LIMIT %d;", strings.TrimRight(strings.TrimSpace(sqlQuery), ";"), maxRows)
}

// classifyQueryError converts raw query failures into the pipeline's error
// taxonomy. Timeouts pass through unchanged; undefined-column errors naming
// a known computed column become StaleColumnError; everything else becomes
// ExecutionError.
func classifyQueryError(err error) error {
	if bound.IsTimeout(err) {
		return err
	}

	if col, ok := staleColumn(err); ok {
		return &StaleColumnError{Column: col, Err: err}
	}
	return &ExecutionError{Err: err}
}

// staleColumn reports whether err is an undefined-column failure citing one
// of the known computed column names.
func staleColumn(err error) (string, bool) {
	msg := strings.ToLower(err.Error())

	var pgErr *pgconn.PgError
	undefined := errors.As(err, &pgErr) && pgErr.Code == pgUndefinedColumn
	if !undefined {
		// Fall back to message matching for drivers and fakes that don't
		// surface a structured code.
		undefined = strings.Contains(msg, "column") && strings.Contains(msg, "does not exist")
	}
	if !undefined {
		return "", false
	}

	for _, col := range computedColumns {
		if strings.Contains(msg, col) {
			return col, true
		}
	}
	return "", false
}
