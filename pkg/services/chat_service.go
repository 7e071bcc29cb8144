// Package services contains business logic service layer implementations.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paymentops/ledgerchat/pkg/agent"
	"github.com/paymentops/ledgerchat/pkg/models"
)

// persistTimeout bounds the session-store calls around a turn.
const persistTimeout = 5 * time.Second

// HistoryStore is the session persistence the chat service depends on.
type HistoryStore interface {
	CreateChat(ctx context.Context) (string, error)
	Exists(ctx context.Context, chatID string) (bool, error)
	LoadConversation(ctx context.Context, chatID string) ([]agent.Message, error)
	SaveTurn(ctx context.Context, chatID string, conversation []agent.Message, query string, response *models.ChatResponse, responseSummary string) error
	RecordQuery(ctx context.Context, chatID, query, queryType string) error
	ListQueries(ctx context.Context) ([]models.ChatQueryRecord, error)
	History(ctx context.Context, chatID string) ([]models.ChatTurnRecord, error)
	DeleteChat(ctx context.Context, chatID string) (bool, error)
}

// TurnRunner processes one turn of a chat conversation.
type TurnRunner interface {
	Run(ctx context.Context, chatID, query string, history []agent.Message) (*models.ChatResponse, []agent.Message)
}

// ChatService manages chat sessions and runs turns through the
// query-resolution pipeline.
type ChatService struct {
	store  HistoryStore
	runner TurnRunner
}

// NewChatService creates a new ChatService
func NewChatService(store HistoryStore, runner TurnRunner) *ChatService {
	return &ChatService{store: store, runner: runner}
}

// ProcessQuery runs one turn. A "new" request opens a session; an "existing"
// request loads the session's conversation first. The turn itself always
// yields a structured response; persistence failures after the turn are
// logged but do not fail it, since the user already has their answer.
func (s *ChatService) ProcessQuery(httpCtx context.Context, req models.ChatQueryRequest) (*models.ChatResponse, error) {
	if req.Query == "" {
		return nil, NewValidationError("query", "required")
	}

	var (
		chatID  string
		history []agent.Message
	)
	if req.ChatType == models.ChatTypeNew || req.ChatID == "" {
		ctx, cancel := context.WithTimeout(httpCtx, persistTimeout)
		defer cancel()

		id, err := s.store.CreateChat(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat: %w", err)
		}
		chatID = id
	} else {
		chatID = req.ChatID

		ctx, cancel := context.WithTimeout(httpCtx, persistTimeout)
		defer cancel()

		exists, err := s.store.Exists(ctx, chatID)
		if err != nil {
			return nil, fmt.Errorf("failed to verify chat existence: %w", err)
		}
		if !exists {
			return nil, ErrNotFound
		}

		history, err = s.store.LoadConversation(ctx, chatID)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
	}

	resp, newHistory := s.runner.Run(httpCtx, chatID, req.Query, history)

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(httpCtx), persistTimeout)
	defer cancel()
	if err := s.store.SaveTurn(saveCtx, chatID, newHistory, req.Query, resp, resp.ResponseSummary); err != nil {
		slog.Error("Failed to persist chat turn", "chat_id", chatID, "error", err)
	}

	return resp, nil
}

// ListChats returns every stored query row across all sessions, newest first.
func (s *ChatService) ListChats(httpCtx context.Context) ([]models.ChatQueryRecord, error) {
	ctx, cancel := context.WithTimeout(httpCtx, persistTimeout)
	defer cancel()

	records, err := s.store.ListQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return records, nil
}

// GetHistory returns a chat's turn records in chronological order.
func (s *ChatService) GetHistory(httpCtx context.Context, chatID string) ([]models.ChatTurnRecord, error) {
	if chatID == "" {
		return nil, NewValidationError("chat_id", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, persistTimeout)
	defer cancel()

	records, err := s.store.History(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// DeleteChat removes a session and all its records.
func (s *ChatService) DeleteChat(httpCtx context.Context, chatID string) error {
	if chatID == "" {
		return NewValidationError("chat_id", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, persistTimeout)
	defer cancel()

	deleted, err := s.store.DeleteChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// UpdateTitle records a title change as a title_update query row on the chat.
func (s *ChatService) UpdateTitle(httpCtx context.Context, chatID, title string) error {
	if chatID == "" {
		return NewValidationError("chat_id", "required")
	}
	if title == "" {
		return NewValidationError("title", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, persistTimeout)
	defer cancel()

	exists, err := s.store.Exists(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to verify chat existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	if err := s.store.RecordQuery(ctx, chatID, fmt.Sprintf("[TITLE_UPDATE]: %s", title), "title_update"); err != nil {
		return fmt.Errorf("failed to update chat title: %w", err)
	}
	return nil
}
