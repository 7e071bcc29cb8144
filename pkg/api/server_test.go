package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/ledgerchat/pkg/agent"
	"github.com/paymentops/ledgerchat/pkg/models"
	"github.com/paymentops/ledgerchat/pkg/services"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

// In-memory history store for handler tests.
type memStore struct {
	chats map[string][]agent.Message
}

func newMemStore() *memStore {
	return &memStore{chats: make(map[string][]agent.Message)}
}

func (m *memStore) CreateChat(context.Context) (string, error) {
	m.chats["chat-1"] = nil
	return "chat-1", nil
}

func (m *memStore) Exists(_ context.Context, chatID string) (bool, error) {
	_, ok := m.chats[chatID]
	return ok, nil
}

func (m *memStore) LoadConversation(_ context.Context, chatID string) ([]agent.Message, error) {
	return m.chats[chatID], nil
}

func (m *memStore) SaveTurn(_ context.Context, chatID string, conversation []agent.Message, _ string, _ *models.ChatResponse, _ string) error {
	m.chats[chatID] = conversation
	return nil
}

func (m *memStore) RecordQuery(context.Context, string, string, string) error { return nil }

func (m *memStore) ListQueries(context.Context) ([]models.ChatQueryRecord, error) {
	return []models.ChatQueryRecord{{ID: "q1", ChatID: "chat-1", Query: "hello", Timestamp: time.Now()}}, nil
}

func (m *memStore) History(_ context.Context, chatID string) ([]models.ChatTurnRecord, error) {
	if _, ok := m.chats[chatID]; !ok {
		return nil, nil
	}
	return []models.ChatTurnRecord{{ID: "q1", ChatID: chatID, Query: "hello", QueryType: "chat", Timestamp: time.Now()}}, nil
}

func (m *memStore) DeleteChat(_ context.Context, chatID string) (bool, error) {
	if _, ok := m.chats[chatID]; !ok {
		return false, nil
	}
	delete(m.chats, chatID)
	return true, nil
}

type echoRunner struct{}

func (echoRunner) Run(_ context.Context, chatID, query string, history []agent.Message) (*models.ChatResponse, []agent.Message) {
	return &models.ChatResponse{
		Success:     true,
		ChatID:      chatID,
		Query:       query,
		Data:        []map[string]any{},
		Summary:     "echo",
		Insights:    []string{},
		RecordCount: 0,
	}, history
}

type stubLedger struct {
	rows []map[string]any
}

func (s *stubLedger) Select(context.Context, string, ...any) ([]map[string]any, error) {
	return s.rows, nil
}

func (s *stubLedger) Exec(context.Context, string, ...any) error { return nil }

type stubAnalyses struct{}

func (stubAnalyses) SaveAlertAnalysis(context.Context, string, string) error { return nil }

type stubAnalyst struct{}

func (stubAnalyst) AnalyzeFailure(context.Context, string) (*models.RetryAnalysis, error) {
	return &models.RetryAnalysis{Summary: "retry looks safe"}, nil
}

func newTestServer(store *memStore, ledger *stubLedger) *gin.Engine {
	chats := services.NewChatService(store, echoRunner{})
	transactions := services.NewTransactionService(ledger, stubAnalyses{}, stubAnalyst{}, time.Second)
	return NewServer(chats, transactions, nil, nil, nil).Routes()
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleChatQuery(t *testing.T) {
	t.Run("new chat turn", func(t *testing.T) {
		r := newTestServer(newMemStore(), &stubLedger{})

		w := doJSON(t, r, http.MethodPost, "/api/chat/query", models.ChatQueryRequest{Query: "hello", ChatType: "new"})

		require.Equal(t, http.StatusOK, w.Code)
		var resp models.ChatResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "chat-1", resp.ChatID)
	})

	t.Run("missing query is a 400", func(t *testing.T) {
		r := newTestServer(newMemStore(), &stubLedger{})
		w := doJSON(t, r, http.MethodPost, "/api/chat/query", gin.H{"chat_type": "new"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown existing chat is a 404", func(t *testing.T) {
		r := newTestServer(newMemStore(), &stubLedger{})
		w := doJSON(t, r, http.MethodPost, "/api/chat/query", models.ChatQueryRequest{
			Query: "hello", ChatType: "existing", ChatID: "missing",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleSimpleQuery(t *testing.T) {
	r := newTestServer(newMemStore(), &stubLedger{})

	w := doJSON(t, r, http.MethodPost, "/api/chat/query-simple", QueryRequest{Query: "what do you do?"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestChatManagementEndpoints(t *testing.T) {
	store := newMemStore()
	store.chats["chat-1"] = nil
	r := newTestServer(store, &stubLedger{})

	t.Run("list chats", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/chat/chats", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp ApiResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
	})

	t.Run("history of unknown chat is a 404", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/chat/chats/missing/history", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("title update without title is a 400", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPut, "/api/chat/chats/chat-1/title", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete then delete again", func(t *testing.T) {
		w := doJSON(t, r, http.MethodDelete, "/api/chat/chats/chat-1", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, r, http.MethodDelete, "/api/chat/chats/chat-1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestTransactionEndpoints(t *testing.T) {
	t.Run("summary", func(t *testing.T) {
		ledger := &stubLedger{rows: []map[string]any{{
			"total_transactions":      int64(10),
			"successful_transactions": int64(9),
			"failed_transactions":     int64(1),
			"success_rate":            90.0,
		}}}
		r := newTestServer(newMemStore(), ledger)

		w := doJSON(t, r, http.MethodGet, "/api/transactions/summary", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var resp ApiResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
	})

	t.Run("invalid limit is a 400", func(t *testing.T) {
		r := newTestServer(newMemStore(), &stubLedger{})
		w := doJSON(t, r, http.MethodGet, "/api/transactions/users/U1/transactions?limit=abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("limit above cap is a 400", func(t *testing.T) {
		r := newTestServer(newMemStore(), &stubLedger{})
		w := doJSON(t, r, http.MethodGet, "/api/transactions/users/U1/transactions?limit=500", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("webhook ignores non-alerting states", func(t *testing.T) {
		r := newTestServer(newMemStore(), &stubLedger{})

		w := doJSON(t, r, http.MethodPost, "/api/transactions/webhook", models.GrafanaWebhookRequest{State: "ok", Message: "tx-1"})

		require.Equal(t, http.StatusOK, w.Code)
		var resp ApiResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
	})

	t.Run("webhook analyzes alerting transaction", func(t *testing.T) {
		ledger := &stubLedger{rows: []map[string]any{{"transaction_id": "tx-1"}}}
		r := newTestServer(newMemStore(), ledger)

		w := doJSON(t, r, http.MethodPost, "/api/transactions/webhook", models.GrafanaWebhookRequest{State: "alerting", Message: "tx-1"})

		require.Equal(t, http.StatusOK, w.Code)
	})
}
