package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/household-ledger/internal/api_gateway/middleware"
	"github.com/household-ledger/internal/api_gateway/service"
	"github.com/household-ledger/internal/domain/ledger"
)

// TransactionHandler handles HTTP requests for stored ledger transactions
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// GetByID retrieves transaction details by its ID, returns 404 if not found
func (h *TransactionHandler) GetByID(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "transaction")
	if !ok {
		return
	}

	txn, err := h.transactionService.GetTransaction(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondServiceError(c, h.logger, "get transaction", err)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// Update edits date, amount, description or category. A collision with another transaction
// of the same user is a 409.
func (h *TransactionHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "transaction")
	if !ok {
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	patch := service.TransactionPatch{
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
	}
	if req.Date != nil {
		date, err := ledger.ParseDate(*req.Date)
		if err != nil {
			RespondBadRequest(c, "date must be a YYYY-MM-DD date")
			return
		}
		patch.Date = &date
	}

	txn, err := h.transactionService.UpdateTransaction(c.Request.Context(), middleware.GetUserID(c), id, patch)
	if err != nil {
		respondServiceError(c, h.logger, "update transaction", err)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// Delete removes a transaction
func (h *TransactionHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "transaction")
	if !ok {
		return
	}

	if err := h.transactionService.DeleteTransaction(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondServiceError(c, h.logger, "delete transaction", err)
		return
	}

	RespondNoContent(c)
}

