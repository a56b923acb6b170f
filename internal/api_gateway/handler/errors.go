package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/household-ledger/internal/api_gateway/service"
	"github.com/household-ledger/internal/domain/account"
	"github.com/household-ledger/internal/domain/importjob"
	"github.com/household-ledger/internal/domain/ledger"
	"github.com/household-ledger/internal/importer"
)

// respondServiceError maps domain errors to HTTP responses and logs everything else as an
// internal failure of op
func respondServiceError(c *gin.Context, logger *slog.Logger, op string, err error) {
	var unknown importer.ErrUnknownAccounts
	switch {
	case errors.Is(err, account.ErrAccountNotFound{}):
		RespondNotFound(c, "Account not found")
	case errors.Is(err, ledger.ErrTransactionNotFound{}):
		RespondNotFound(c, "Transaction not found")
	case errors.Is(err, importjob.ErrJobNotFound{}):
		RespondNotFound(c, "Import job not found")
	case errors.Is(err, ledger.ErrDuplicateKey{}):
		RespondConflict(c, "Another transaction with the same date, amount and description already exists")
	case errors.As(err, &unknown):
		RespondUnprocessable(c, "UNKNOWN_ACCOUNTS", err.Error())
	case errors.Is(err, importer.ErrNoDataRows):
		RespondWithError(c, http.StatusBadRequest, "NO_DATA_ROWS", err.Error())
	case errors.Is(err, importer.ErrNoValidRows):
		RespondWithError(c, http.StatusBadRequest, "NO_VALID_ROWS", err.Error())
	case errors.Is(err, service.ErrAsyncImportsDisabled):
		RespondWithError(c, http.StatusNotImplemented, "NOT_IMPLEMENTED", err.Error())
	case isValidationError(err):
		RespondBadRequest(c, err.Error())
	default:
		logger.Error("Failed to "+op, "error", err)
		RespondInternalError(c)
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		account.ErrEmptyName,
		account.ErrEmptyUserID,
		account.ErrInvalidType,
		account.ErrInvalidDueDay,
		importjob.ErrEmptyCSV,
		importjob.ErrEmptyUserID,
		service.ErrEmptyPatch,
		service.ErrNegativeAmount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
