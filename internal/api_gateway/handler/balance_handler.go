package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/household-ledger/internal/api_gateway/middleware"
	"github.com/household-ledger/internal/api_gateway/service"
	"github.com/household-ledger/internal/domain/ledger"
)

// BalanceHandler serves balances derived by replaying the ledger
type BalanceHandler struct {
	balanceService service.BalanceService
	logger         *slog.Logger
}

// NewBalanceHandler creates a new balance handler
func NewBalanceHandler(logger *slog.Logger, balanceService service.BalanceService) *BalanceHandler {
	return &BalanceHandler{
		balanceService: balanceService,
		logger:         logger,
	}
}

// GetAccountBalance returns the balance of one account, optionally as of a date
func (h *BalanceHandler) GetAccountBalance(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "account")
	if !ok {
		return
	}
	asOf, ok := h.parseAsOf(c)
	if !ok {
		return
	}

	bal, err := h.balanceService.GetBalance(c.Request.Context(), middleware.GetUserID(c), id, asOf)
	if err != nil {
		respondServiceError(c, h.logger, "get balance", err)
		return
	}

	RespondOK(c, BalanceResponse{
		AccountID: id.String(),
		Balance:   money(bal),
		AsOf:      formatAsOf(asOf),
	})
}

// GetBalances returns the balances of the requested accounts, or of every account of the
// user when none is given. account_id may repeat or hold a comma separated list.
func (h *BalanceHandler) GetBalances(c *gin.Context) {
	var ids []uuid.UUID
	for _, raw := range c.QueryArray("account_id") {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				RespondBadRequest(c, "Invalid account ID: "+part)
				return
			}
			ids = append(ids, id)
		}
	}
	asOf, ok := h.parseAsOf(c)
	if !ok {
		return
	}

	balances, err := h.balanceService.GetBalances(c.Request.Context(), middleware.GetUserID(c), ids, asOf)
	if err != nil {
		respondServiceError(c, h.logger, "get balances", err)
		return
	}

	response := BalancesResponse{Balances: make(map[string]string, len(balances)), AsOf: formatAsOf(asOf)}
	for id, bal := range balances {
		response.Balances[id.String()] = money(bal)
	}
	RespondOK(c, response)
}

// GetLedger returns a page of the account's transactions with the running balance after each
func (h *BalanceHandler) GetLedger(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "account")
	if !ok {
		return
	}
	asOf, ok := h.parseAsOf(c)
	if !ok {
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Warn("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	_, points, err := h.balanceService.History(c.Request.Context(), middleware.GetUserID(c), id, asOf)
	if err != nil {
		respondServiceError(c, h.logger, "get ledger", err)
		return
	}

	start, end := pageBounds(pagination.Page, pagination.PerPage, len(points))
	RespondWithPaginatedData(c, http.StatusOK, mapPointsToResponse(points[start:end]), pagination.Page, pagination.PerPage, len(points))
}

// pageBounds returns the slice bounds of page within total items. Pages past the end are empty.
func pageBounds(page, perPage, total int) (int, int) {
	if page > total/perPage+1 {
		return total, total
	}
	start := min((page-1)*perPage, total)
	return start, min(start+perPage, total)
}

func (h *BalanceHandler) parseAsOf(c *gin.Context) (*time.Time, bool) {
	raw := c.Query("as_of")
	if raw == "" {
		return nil, true
	}

	asOf, err := ledger.ParseDate(raw)
	if err != nil {
		h.logger.Warn("Invalid as_of date", "as_of", raw, "error", err)
		RespondBadRequest(c, "as_of must be a YYYY-MM-DD date")
		return nil, false
	}
	return &asOf, true
}

func formatAsOf(asOf *time.Time) string {
	if asOf == nil {
		return ""
	}
	return ledger.FormatDate(*asOf)
}
