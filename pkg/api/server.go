// Package api exposes the HTTP surface: chat turns, fixed transaction
// queries, dashboards, and health.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paymentops/ledgerchat/pkg/database"
	"github.com/paymentops/ledgerchat/pkg/services"
)

// Server represents the API server
type Server struct {
	chats        *services.ChatService
	transactions *services.TransactionService
	dashboards   *services.DashboardService
	chatDB       *database.Client
	ledgerDB     *database.Client
}

// NewServer creates a new API server
func NewServer(chats *services.ChatService, transactions *services.TransactionService, dashboards *services.DashboardService, chatDB, ledgerDB *database.Client) *Server {
	return &Server{
		chats:        chats,
		transactions: transactions,
		dashboards:   dashboards,
		chatDB:       chatDB,
		ledgerDB:     ledgerDB,
	}
}

// Routes builds the gin engine with all endpoints registered.
func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), securityHeaders())

	r.GET("/health", s.Health)

	chat := r.Group("/api/chat")
	{
		chat.POST("/query", s.HandleChatQuery)
		chat.POST("/query-simple", s.HandleSimpleQuery)
		chat.GET("/chats", s.ListChats)
		chat.GET("/chats/:chat_id/history", s.GetChatHistory)
		chat.DELETE("/chats/:chat_id", s.DeleteChat)
		chat.PUT("/chats/:chat_id/title", s.UpdateChatTitle)
	}

	transactions := r.Group("/api/transactions")
	{
		transactions.GET("/summary", s.GetTransactionSummary)
		transactions.GET("/users/:user_id/transactions", s.GetUserTransactions)
		transactions.GET("/alerts", s.GetAlerts)
		transactions.POST("/alerts/:alert_id", s.UpdateAlert)
		transactions.POST("/webhook", s.GrafanaWebhook)
		transactions.GET("/failed-transactions/:transaction_id", s.GetFailedTransactionDetails)
	}

	dashboards := r.Group("/api/dashboards")
	{
		dashboards.POST("/create", s.CreateDashboard)
		dashboards.POST("/add-chart", s.AddChartToDashboard)
		dashboards.GET("", s.ListDashboards)
		dashboards.GET("/:dashboard_id/charts", s.GetDashboardCharts)
	}

	return r
}

// Health reports the status of both database pools.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	chatHealth, chatErr := database.Health(ctx, s.chatDB.Pool())
	ledgerHealth, ledgerErr := database.Health(ctx, s.ledgerDB.Pool())

	body := gin.H{
		"status":    "healthy",
		"chat_db":   chatHealth,
		"ledger_db": ledgerHealth,
	}
	if chatErr != nil || ledgerErr != nil {
		body["status"] = "unhealthy"
		if chatErr != nil {
			body["chat_db_error"] = chatErr.Error()
		}
		if ledgerErr != nil {
			body["ledger_db_error"] = ledgerErr.Error()
		}
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}
