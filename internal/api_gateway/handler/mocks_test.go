package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/household-ledger/internal/api_gateway/middleware"
	"github.com/household-ledger/internal/api_gateway/service"
	"github.com/household-ledger/internal/balance"
	"github.com/household-ledger/internal/domain/account"
	"github.com/household-ledger/internal/domain/importjob"
	"github.com/household-ledger/internal/domain/ledger"
	"github.com/household-ledger/internal/importer"
)

const testUserID = "user-1"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID(), middleware.UserID())
	return r
}

func doRequest(router *gin.Engine, method, target, contentType string, body io.Reader) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, target, body)
	req.Header.Set(middleware.UserIDHeader, testUserID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return serve(router, req)
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) CreateAccount(ctx context.Context, userID string, params service.AccountParams) (*account.Account, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountService) GetAccountByID(ctx context.Context, userID string, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountService) ListAccounts(ctx context.Context, userID string) ([]*account.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.Account), args.Error(1)
}

type MockBalanceService struct {
	mock.Mock
}

func (m *MockBalanceService) GetBalance(ctx context.Context, userID string, accountID uuid.UUID, asOf *time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, accountID, asOf)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockBalanceService) GetBalances(ctx context.Context, userID string, accountIDs []uuid.UUID, asOf *time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	args := m.Called(ctx, userID, accountIDs, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]decimal.Decimal), args.Error(1)
}

func (m *MockBalanceService) History(ctx context.Context, userID string, accountID uuid.UUID, asOf *time.Time) (*account.Account, []balance.Point, error) {
	args := m.Called(ctx, userID, accountID, asOf)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*account.Account), args.Get(1).([]balance.Point), args.Error(2)
}

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) GetTransaction(ctx context.Context, userID string, id uuid.UUID) (*ledger.Transaction, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockTransactionService) UpdateTransaction(ctx context.Context, userID string, id uuid.UUID, patch service.TransactionPatch) (*ledger.Transaction, error) {
	args := m.Called(ctx, userID, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockTransactionService) DeleteTransaction(ctx context.Context, userID string, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

type MockImportService struct {
	mock.Mock
}

func (m *MockImportService) Import(ctx context.Context, userID string, csv []byte, target *uuid.UUID) (*importer.Result, error) {
	args := m.Called(ctx, userID, csv, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importer.Result), args.Error(1)
}

func (m *MockImportService) SubmitImport(ctx context.Context, userID string, csv []byte, target *uuid.UUID, correlationID string) (*importjob.Job, error) {
	args := m.Called(ctx, userID, csv, target, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importjob.Job), args.Error(1)
}

func (m *MockImportService) GetImportJob(ctx context.Context, userID string, id uuid.UUID) (*importjob.Job, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importjob.Job), args.Error(1)
}
