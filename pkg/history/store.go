// Package history persists chat sessions: conversation context, turn
// records, and session lifecycle.
package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paymentops/ledgerchat/pkg/agent"
	"github.com/paymentops/ledgerchat/pkg/models"
)

// Store is the session store over the application database. Session
// existence is served through a read-through cache invalidated on delete,
// so repeat turns on a chat don't pay a DB round trip.
type Store struct {
	pool  *pgxpool.Pool
	known *existenceCache
}

// NewStore creates a Store over the application database pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, known: newExistenceCache()}
}

// CreateChat creates a new session with an empty conversation and returns
// its ID.
func (s *Store) CreateChat(ctx context.Context) (string, error) {
	chatID := uuid.New().String()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `INSERT INTO chats (chat_id) VALUES ($1)`, chatID); err != nil {
		return "", fmt.Errorf("failed to create chat: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO chat_messages (chat_id, conversation) VALUES ($1, '[]'::jsonb)`, chatID); err != nil {
		return "", fmt.Errorf("failed to initialize conversation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit chat creation: %w", err)
	}

	s.known.add(chatID)
	return chatID, nil
}

// Exists reports whether the chat is known, via the read-through cache.
func (s *Store) Exists(ctx context.Context, chatID string) (bool, error) {
	if s.known.has(chatID) {
		return true, nil
	}

	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM chats WHERE chat_id = $1`, chatID).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check chat existence: %w", err)
	}

	s.known.add(chatID)
	return true, nil
}

// LoadConversation returns the chat's stored conversation context.
func (s *Store) LoadConversation(ctx context.Context, chatID string) ([]agent.Message, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT conversation FROM chat_messages WHERE chat_id = $1`, chatID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var messages []agent.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return messages, nil
}

// SaveTurn replaces the chat's conversation in full and appends the turn
// record, in one transaction. The conversation discipline is
// read-then-replace: no partial writes, so a reader never observes a
// half-updated history.
func (s *Store) SaveTurn(ctx context.Context, chatID string, conversation []agent.Message, query string, response *models.ChatResponse, responseSummary string) error {
	conversationJSON, err := json.Marshal(conversation)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO chat_messages (chat_id, conversation, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (chat_id) DO UPDATE SET conversation = EXCLUDED.conversation, updated_at = NOW()`,
		chatID, conversationJSON); err != nil {
		return fmt.Errorf("failed to replace conversation: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO chat_queries (id, chat_id, query, query_type, response, response_summary)
		VALUES ($1, $2, $3, 'chat', $4, $5)`,
		uuid.New().String(), chatID, query, responseJSON, responseSummary); err != nil {
		return fmt.Errorf("failed to record turn: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE chats SET updated_at = NOW() WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}
	return nil
}

// RecordQuery appends a bare query row without touching the conversation.
// Used for title updates.
func (s *Store) RecordQuery(ctx context.Context, chatID, query, queryType string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_queries (id, chat_id, query, query_type)
		VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), chatID, query, queryType)
	if err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}
	return nil
}

// ListQueries returns all stored query rows, newest first.
func (s *Store) ListQueries(ctx context.Context) ([]models.ChatQueryRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_id, query, timestamp FROM chat_queries ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat queries: %w", err)
	}
	defer rows.Close()

	var records []models.ChatQueryRecord
	for rows.Next() {
		var r models.ChatQueryRecord
		if err := rows.Scan(&r.ID, &r.ChatID, &r.Query, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat query: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat queries: %w", err)
	}
	return records, nil
}

// History returns the chat's turn records in chronological order.
func (s *Store) History(ctx context.Context, chatID string) ([]models.ChatTurnRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_id, query, query_type, response, response_summary, timestamp
		FROM chat_queries WHERE chat_id = $1 ORDER BY timestamp ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	defer rows.Close()

	var records []models.ChatTurnRecord
	for rows.Next() {
		var (
			r           models.ChatTurnRecord
			responseRaw []byte
			summary     *string
		)
		if err := rows.Scan(&r.ID, &r.ChatID, &r.Query, &r.QueryType, &responseRaw, &summary, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn record: %w", err)
		}
		if len(responseRaw) > 0 {
			if err := json.Unmarshal(responseRaw, &r.Response); err != nil {
				return nil, fmt.Errorf("failed to decode turn response: %w", err)
			}
		}
		if summary != nil {
			r.ResponseSummary = *summary
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}
	return records, nil
}

// DeleteChat removes the session and all its rows. The existence cache is
// invalidated before the delete commits so no reader can observe a cached
// hit for a vanished chat.
func (s *Store) DeleteChat(ctx context.Context, chatID string) (bool, error) {
	s.known.invalidate(chatID)

	tag, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE chat_id = $1`, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to delete chat: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SaveAlertAnalysis persists the retry analyst's summary for a failed
// transaction surfaced by a webhook alert.
func (s *Store) SaveAlertAnalysis(ctx context.Context, transactionID, summary string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO alert_analyses (id, transaction_id, summary)
		VALUES ($1, $2, $3)`,
		uuid.New().String(), transactionID, summary)
	if err != nil {
		return fmt.Errorf("failed to save alert analysis: %w", err)
	}
	return nil
}
