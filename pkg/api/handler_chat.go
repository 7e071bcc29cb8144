package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paymentops/ledgerchat/pkg/models"
)

// HandleChatQuery handles POST /api/chat/query. The response body is the
// turn's ChatResponse itself, not the envelope: turn-level failures are
// reported inside it with success=false and still return 200.
func (s *Server) HandleChatQuery(c *gin.Context) {
	var req models.ChatQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request body", err.Error()))
		return
	}

	resp, err := s.chats.ProcessQuery(c.Request.Context(), req)
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse("Failed to process query", msg))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSimpleQuery handles POST /api/chat/query-simple: a one-off question
// with no session to continue, processed as a fresh chat.
func (s *Server) HandleSimpleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request body", err.Error()))
		return
	}

	resp, err := s.chats.ProcessQuery(c.Request.Context(), models.ChatQueryRequest{
		Query:    req.Query,
		ChatType: models.ChatTypeNew,
	})
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse("Failed to process query", msg))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListChats handles GET /api/chat/chats.
func (s *Server) ListChats(c *gin.Context) {
	records, err := s.chats.ListChats(c.Request.Context())
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse("Failed to get chat records", msg))
		return
	}
	c.JSON(http.StatusOK, okResponse(
		fmt.Sprintf("Retrieved %d chat records", len(records)),
		gin.H{"chats": records, "count": len(records)},
	))
}

// GetChatHistory handles GET /api/chat/chats/:chat_id/history.
func (s *Server) GetChatHistory(c *gin.Context) {
	chatID := c.Param("chat_id")

	records, err := s.chats.GetHistory(c.Request.Context(), chatID)
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse(fmt.Sprintf("Failed to get chat history for %s", chatID), msg))
		return
	}

	c.JSON(http.StatusOK, okResponse(
		fmt.Sprintf("Retrieved history for chat %s", chatID),
		gin.H{
			"chat_id":    chatID,
			"messages":   records,
			"created_at": records[0].Timestamp,
			"updated_at": records[len(records)-1].Timestamp,
		},
	))
}

// DeleteChat handles DELETE /api/chat/chats/:chat_id.
func (s *Server) DeleteChat(c *gin.Context) {
	chatID := c.Param("chat_id")

	if err := s.chats.DeleteChat(c.Request.Context(), chatID); err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse(fmt.Sprintf("Failed to delete chat %s", chatID), msg))
		return
	}
	c.JSON(http.StatusOK, okResponse(
		fmt.Sprintf("Chat %s deleted successfully", chatID),
		gin.H{"deleted_chat_id": chatID},
	))
}

// UpdateChatTitle handles PUT /api/chat/chats/:chat_id/title?title=...
func (s *Server) UpdateChatTitle(c *gin.Context) {
	chatID := c.Param("chat_id")
	title := c.Query("title")

	if err := s.chats.UpdateTitle(c.Request.Context(), chatID, title); err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse(fmt.Sprintf("Failed to update chat title for %s", chatID), msg))
		return
	}
	c.JSON(http.StatusOK, okResponse("Chat title updated successfully", gin.H{
		"chat_id":    chatID,
		"new_title":  title,
		"updated_at": time.Now(),
	}))
}
