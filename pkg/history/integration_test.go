package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/ledgerchat/pkg/agent"
	"github.com/paymentops/ledgerchat/pkg/models"
	"github.com/paymentops/ledgerchat/test/util"
)

func TestStore_SessionLifecycle(t *testing.T) {
	pool := util.SetupTestDatabase(t)
	store := NewStore(pool)
	ctx := context.Background()

	chatID, err := store.CreateChat(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, chatID)

	exists, err := store.Exists(ctx, chatID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, "never-created")
	require.NoError(t, err)
	assert.False(t, exists)

	// Fresh session starts with an empty conversation
	conversation, err := store.LoadConversation(ctx, chatID)
	require.NoError(t, err)
	assert.Empty(t, conversation)

	turn := []agent.Message{
		{Role: agent.RoleUser, Content: "how many transactions failed?"},
		{Role: agent.RoleAssistant, Content: "12 failed"},
	}
	resp := &models.ChatResponse{
		Success:     true,
		ChatID:      chatID,
		Query:       "how many transactions failed?",
		SQLQuery:    "SELECT COUNT(*) FROM transactions",
		Data:        []map[string]any{{"transaction_count": 12}},
		Summary:     "12 transactions failed.",
		RecordCount: 1,
	}
	require.NoError(t, store.SaveTurn(ctx, chatID, turn, resp.Query, resp, "user asked about failures"))

	conversation, err = store.LoadConversation(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, turn, conversation)

	// Second turn replaces the conversation wholesale
	turn2 := append(turn, agent.Message{Role: agent.RoleUser, Content: "and last week?"})
	require.NoError(t, store.SaveTurn(ctx, chatID, turn2, "and last week?", resp, "follow-up"))

	conversation, err = store.LoadConversation(ctx, chatID)
	require.NoError(t, err)
	assert.Len(t, conversation, 3)

	records, err := store.History(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "how many transactions failed?", records[0].Query)
	assert.Equal(t, "user asked about failures", records[0].ResponseSummary)
	assert.Equal(t, "12 transactions failed.", records[0].Response["summary"])

	queries, err := store.ListQueries(ctx)
	require.NoError(t, err)
	assert.Len(t, queries, 2)

	require.NoError(t, store.RecordQuery(ctx, chatID, "[TITLE_UPDATE]: Failures", "title_update"))
	records, err = store.History(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "title_update", records[2].QueryType)

	deleted, err := store.DeleteChat(ctx, chatID)
	require.NoError(t, err)
	assert.True(t, deleted)

	// Cache must not report a deleted chat as alive
	exists, err = store.Exists(ctx, chatID)
	require.NoError(t, err)
	assert.False(t, exists)

	deleted, err = store.DeleteChat(ctx, chatID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestStore_ExistsReadThrough(t *testing.T) {
	pool := util.SetupTestDatabase(t)
	ctx := context.Background()

	writer := NewStore(pool)
	chatID, err := writer.CreateChat(ctx)
	require.NoError(t, err)

	// A second store with a cold cache must find the chat in the database
	// and serve subsequent checks from its cache.
	reader := NewStore(pool)
	exists, err := reader.Exists(ctx, chatID)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, reader.known.has(chatID))
}

func TestStore_SaveAlertAnalysis(t *testing.T) {
	pool := util.SetupTestDatabase(t)
	store := NewStore(pool)
	ctx := context.Background()

	require.NoError(t, store.SaveAlertAnalysis(ctx, "tx-42", "settlement failed twice"))

	var summary string
	err := pool.QueryRow(ctx, `SELECT summary FROM alert_analyses WHERE transaction_id = $1`, "tx-42").Scan(&summary)
	require.NoError(t, err)
	assert.Equal(t, "settlement failed twice", summary)
}
