package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/ledgerchat/pkg/bound"
	"github.com/paymentops/ledgerchat/test/util"
)

func setupLedger(t *testing.T) *Executor {
	pool := util.SetupTestDatabase(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		CREATE TABLE transactions (
			transaction_id TEXT,
			user_id        TEXT,
			event_type     TEXT,
			tx_status      TEXT,
			fiat_amount    NUMERIC,
			fiat_currency  TEXT,
			crypto_amount  NUMERIC,
			crypto_token   TEXT,
			timestamp      TEXT
		)`)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := pool.Exec(ctx, `
			INSERT INTO transactions (transaction_id, user_id, event_type, tx_status, fiat_amount, fiat_currency, timestamp)
			VALUES ($1, 'U1', 'SettlementConfirmed', 'SETTLED', 100, 'EUR', $2)`,
			"tx-"+string(rune('a'+i)), time.Now().Format(time.RFC3339))
		require.NoError(t, err)
	}

	return NewExecutor(pool, 5*time.Second, 5)
}

func TestExecutor_Execute(t *testing.T) {
	e := setupLedger(t)
	ctx := context.Background()

	t.Run("row limit is injected", func(t *testing.T) {
		rows, err := e.Execute(ctx, "SELECT * FROM transactions")
		require.NoError(t, err)
		assert.Len(t, rows, 5)
	})

	t.Run("count queries bypass the limit", func(t *testing.T) {
		rows, err := e.Execute(ctx, "SELECT COUNT(*) AS transaction_count FROM transactions")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.EqualValues(t, 20, rows[0]["transaction_count"])
	})

	t.Run("stale computed column is classified", func(t *testing.T) {
		_, err := e.Execute(ctx, "SELECT * FROM transactions WHERE final_status = 'FAILED' LIMIT 3")
		require.Error(t, err)
		assert.True(t, IsStaleColumn(err))
	})

	t.Run("unknown real column is a plain execution error", func(t *testing.T) {
		_, err := e.Execute(ctx, "SELECT nonexistent_field FROM transactions LIMIT 1")
		require.Error(t, err)
		assert.False(t, IsStaleColumn(err))
		var execErr *ExecutionError
		assert.ErrorAs(t, err, &execErr)
	})
}

func TestExecutor_TimeoutReleasesConnection(t *testing.T) {
	pool := util.SetupTestDatabase(t)
	// Pool of default size; a leaked connection would strand pg_sleep workers.
	e := NewExecutor(pool, 100*time.Millisecond, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := e.Execute(ctx, "SELECT pg_sleep(5)")
		require.Error(t, err)
		assert.True(t, bound.IsTimeout(err))
	}

	// All timed-out connections must be back in the pool: a fresh query
	// succeeds promptly.
	done := make(chan error, 1)
	go func() {
		_, err := e.Execute(ctx, "SELECT 1 AS ok")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("pool exhausted after timeouts, connection leaked")
	}
}
