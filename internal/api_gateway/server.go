package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/household-ledger/internal/api_gateway/handler"
	"github.com/household-ledger/internal/api_gateway/service"
	"github.com/household-ledger/internal/config"
)

// Services bundles the application services exposed over HTTP
type Services struct {
	Accounts     service.AccountService
	Balances     service.BalanceService
	Transactions service.TransactionService
	Imports      service.ImportService
}

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger          *slog.Logger // For structured logging
	httpServer      *http.Server // Underlying HTTP server
	httpRouter      *gin.Engine  // Gin router instance
	shutdownTimeout time.Duration
}

// NewServer creates and configures a new HTTP server with the given services.
// checks are the dependencies reported by /health.
func NewServer(log *slog.Logger, cfg *config.Config, services Services, checks map[string]Pinger) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	setupRouter(log, httpRouter, handlers{
		account:     handler.NewAccountHandler(log, services.Accounts),
		balance:     handler.NewBalanceHandler(log, services.Balances),
		transaction: handler.NewTransactionHandler(log, services.Transactions),
		imports:     handler.NewImportHandler(log, services.Imports, cfg.Import.MaxUploadBytes),
	}, checks)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:          log,
		httpServer:      httpServer,
		httpRouter:      httpRouter,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}

// Handler exposes the configured router
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting at most the configured shutdown timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}

	return nil
}
