// Ledgerchat server: answers natural-language questions about a payment
// transaction ledger through an LLM-driven query-resolution pipeline, and
// serves the fixed transaction, alert, and dashboard endpoints.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/paymentops/ledgerchat/pkg/agent"
	"github.com/paymentops/ledgerchat/pkg/api"
	"github.com/paymentops/ledgerchat/pkg/config"
	"github.com/paymentops/ledgerchat/pkg/database"
	"github.com/paymentops/ledgerchat/pkg/history"
	"github.com/paymentops/ledgerchat/pkg/pipeline"
	"github.com/paymentops/ledgerchat/pkg/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.OpenAIAPIKey == "" {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	slog.Info("Starting ledgerchat", "http_port", cfg.HTTPPort, "model", cfg.OpenAIModel)

	ctx := context.Background()

	// Application database: sessions, dashboards, alert analyses. Owned by
	// this service, so migrations run at startup.
	chatDBConfig, err := database.LoadConfigFromEnv("CHAT_DB")
	if err != nil {
		slog.Error("Failed to load chat database config", "error", err)
		os.Exit(1)
	}
	if err := database.MigrateUp(chatDBConfig); err != nil {
		slog.Error("Failed to apply chat database migrations", "error", err)
		os.Exit(1)
	}
	chatDB, err := database.NewClient(ctx, chatDBConfig)
	if err != nil {
		slog.Error("Failed to connect to chat database", "error", err)
		os.Exit(1)
	}
	defer chatDB.Close()

	// Transactions ledger: external, read-mostly, never migrated here.
	ledgerDBConfig, err := database.LoadConfigFromEnv("LEDGER_DB")
	if err != nil {
		slog.Error("Failed to load ledger database config", "error", err)
		os.Exit(1)
	}
	ledgerDB, err := database.NewClient(ctx, ledgerDBConfig)
	if err != nil {
		slog.Error("Failed to connect to ledger database", "error", err)
		os.Exit(1)
	}
	defer ledgerDB.Close()
	slog.Info("Connected to PostgreSQL databases")

	executor := database.NewExecutor(ledgerDB.Pool(), cfg.DatabaseTimeout, cfg.MaxQueryResults)
	agents := agent.NewOpenAIAgents(cfg.OpenAIAPIKey, cfg.OpenAIModel)

	pipe := pipeline.New(pipeline.Agents{
		Classifier:   agents,
		SQLGenerator: agents,
		Summarizer:   agents,
		ChartAnalyst: agents,
		Compactor:    agents,
	}, executor, cfg.AgentTimeout, config.TransactionColumns)

	store := history.NewStore(chatDB.Pool())
	chatService := services.NewChatService(store, pipe)
	transactionService := services.NewTransactionService(executor, store, agents, cfg.AgentTimeout)
	dashboardService := services.NewDashboardService(chatDB.Pool())
	slog.Info("Services initialized")

	server := api.NewServer(chatService, transactionService, dashboardService, chatDB, ledgerDB)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
