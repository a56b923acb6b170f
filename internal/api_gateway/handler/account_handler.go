package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/household-ledger/internal/api_gateway/middleware"
	"github.com/household-ledger/internal/api_gateway/service"
	"github.com/household-ledger/internal/domain/account"
)

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// Create handles creation of a new account for the calling user
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	acc, err := h.accountService.CreateAccount(c.Request.Context(), middleware.GetUserID(c), service.AccountParams{
		Name:           req.Name,
		Type:           account.Type(req.Type),
		OpeningBalance: req.OpeningBalance,
		CreditLimit:    req.CreditLimit,
		APR:            req.APR,
		MinPayment:     req.MinPayment,
		DueDay:         req.DueDay,
	})
	if err != nil {
		respondServiceError(c, h.logger, "create account", err)
		return
	}

	RespondCreated(c, mapAccountToResponse(acc))
}

// GetByID retrieves an account by its ID, returning 404 if not found
func (h *AccountHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "account")
	if !ok {
		return
	}

	acc, err := h.accountService.GetAccountByID(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondServiceError(c, h.logger, "get account", err)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// List returns every account of the calling user
func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.accountService.ListAccounts(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondServiceError(c, h.logger, "list accounts", err)
		return
	}

	response := make([]AccountResponse, 0, len(accounts))
	for _, acc := range accounts {
		response = append(response, mapAccountToResponse(acc))
	}
	RespondOK(c, response)
}

// parseIDParam reads the :id path parameter, responding 400 when it is not a UUID
func parseIDParam(c *gin.Context, logger *slog.Logger, resource string) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		logger.Warn("Invalid "+resource+" ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid "+resource+" ID")
		return uuid.Nil, false
	}
	return id, true
}
