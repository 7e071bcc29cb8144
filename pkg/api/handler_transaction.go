package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/paymentops/ledgerchat/pkg/models"
)

// GetTransactionSummary handles GET /api/transactions/summary.
func (s *Server) GetTransactionSummary(c *gin.Context) {
	summary, err := s.transactions.Summary(c.Request.Context())
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse("Failed to get transaction summary", msg))
		return
	}
	c.JSON(http.StatusOK, okResponse("Transaction summary retrieved", summary))
}

// GetUserTransactions handles GET /api/transactions/users/:user_id/transactions.
func (s *Server) GetUserTransactions(c *gin.Context) {
	userID := c.Param("user_id")

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Invalid limit parameter", err.Error()))
			return
		}
		limit = n
	}

	rows, err := s.transactions.UserTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse(fmt.Sprintf("Failed to get transactions for user %s", userID), msg))
		return
	}
	c.JSON(http.StatusOK, okResponse(
		fmt.Sprintf("Retrieved %d transactions for user %s", len(rows), userID),
		gin.H{"user_id": userID, "transactions": rows, "count": len(rows)},
	))
}

// GetAlerts handles GET /api/transactions/alerts.
func (s *Server) GetAlerts(c *gin.Context) {
	rows, err := s.transactions.Alerts(c.Request.Context())
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse("Failed to get alerts", msg))
		return
	}
	c.JSON(http.StatusOK, okResponse("Alerts retrieved", rows))
}

// UpdateAlert handles POST /api/transactions/alerts/:alert_id.
func (s *Server) UpdateAlert(c *gin.Context) {
	if err := s.transactions.MarkAlertSeen(c.Request.Context(), c.Param("alert_id")); err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse("Failed to update alert", msg))
		return
	}
	c.JSON(http.StatusOK, okResponse("Alert updated", nil))
}

// GrafanaWebhook handles POST /api/transactions/webhook.
func (s *Server) GrafanaWebhook(c *gin.Context) {
	var req models.GrafanaWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid webhook payload", err.Error()))
		return
	}

	result, err := s.transactions.HandleGrafanaWebhook(c.Request.Context(), req)
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse("Failed to process alert", msg))
		return
	}
	c.JSON(http.StatusOK, okResponse("Alert processed and analyzed.", result))
}

// GetFailedTransactionDetails handles GET /api/transactions/failed-transactions/:transaction_id.
func (s *Server) GetFailedTransactionDetails(c *gin.Context) {
	transactionID := c.Param("transaction_id")

	rows, err := s.transactions.FailedTransactionDetails(c.Request.Context(), transactionID)
	if err != nil {
		status, msg := mapServiceError(err)
		c.JSON(status, errorResponse(fmt.Sprintf("Failed to get details for failed transaction %s", transactionID), msg))
		return
	}
	c.JSON(http.StatusOK, okResponse(
		fmt.Sprintf("Retrieved details for failed transaction %s", transactionID),
		rows,
	))
}
