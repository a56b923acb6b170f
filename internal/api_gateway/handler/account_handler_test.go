package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/household-ledger/internal/api_gateway/service"
	"github.com/household-ledger/internal/domain/account"
)

type testResponse struct {
	Data          json.RawMessage `json:"data"`
	Error         *ErrorInfo      `json:"error"`
	CorrelationID string          `json:"correlation_id"`
	Meta          *MetaInfo       `json:"meta"`
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder, data interface{}) testResponse {
	t.Helper()
	var resp testResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

func TestAccountHandler_Create(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(logger, mockService)

		limit := decimal.RequireFromString("5000")
		dueDay := 12
		now := time.Now().UTC()
		expected := &account.Account{
			ID:             uuid.New(),
			UserID:         testUserID,
			Name:           "Visa",
			Type:           account.TypeCredit,
			OpeningBalance: decimal.RequireFromString("250.5"),
			CreditLimit:    &limit,
			DueDay:         &dueDay,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		mockService.On("CreateAccount", mock.Anything, testUserID, mock.MatchedBy(func(p service.AccountParams) bool {
			return p.Name == "Visa" &&
				p.Type == account.TypeCredit &&
				p.OpeningBalance.Equal(decimal.RequireFromString("250.5")) &&
				p.CreditLimit != nil && p.CreditLimit.Equal(limit) &&
				p.DueDay != nil && *p.DueDay == 12
		})).Return(expected, nil).Once()

		router := setupTestRouter()
		router.POST("/accounts", handler.Create)

		rr := doRequest(router, http.MethodPost, "/accounts", "application/json",
			jsonBody(`{"name":"Visa","type":"credit","opening_balance":"250.5","credit_limit":5000,"due_day":12}`))

		assert.Equal(t, http.StatusCreated, rr.Code)
		var data AccountResponse
		resp := decodeResponse(t, rr, &data)
		assert.NotEmpty(t, resp.CorrelationID)
		assert.Equal(t, expected.ID.String(), data.ID)
		assert.Equal(t, "250.50", data.OpeningBalance)
		assert.Equal(t, "liability", data.Class)
		require.NotNil(t, data.CreditLimit)
		assert.Equal(t, "5000.00", *data.CreditLimit)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		mockService := new(MockAccountService)
		router := setupTestRouter()
		router.POST("/accounts", NewAccountHandler(logger, mockService).Create)

		rr := doRequest(router, http.MethodPost, "/accounts", "application/json", jsonBody(`{"type":"credit"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ValidationError", func(t *testing.T) {
		mockService := new(MockAccountService)
		router := setupTestRouter()
		router.POST("/accounts", NewAccountHandler(logger, mockService).Create)
		mockService.On("CreateAccount", mock.Anything, testUserID, mock.Anything).Return(nil, account.ErrInvalidType).Once()

		rr := doRequest(router, http.MethodPost, "/accounts", "application/json", jsonBody(`{"name":"Brokerage","type":"brokerage"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeResponse(t, rr, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
		assert.Equal(t, account.ErrInvalidType.Error(), resp.Error.Message)
	})
}

func TestAccountHandler_GetByID(t *testing.T) {
	logger := newTestLogger()
	accountID := uuid.New()

	tests := []struct {
		name       string
		path       string
		setup      func(m *MockAccountService)
		wantStatus int
	}{
		{
			name: "Success",
			path: "/accounts/" + accountID.String(),
			setup: func(m *MockAccountService) {
				m.On("GetAccountByID", mock.Anything, testUserID, accountID).
					Return(&account.Account{ID: accountID, Name: "Checking", Type: account.TypeChecking}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "InvalidID",
			path:       "/accounts/not-a-uuid",
			setup:      func(m *MockAccountService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "NotFound",
			path: "/accounts/" + accountID.String(),
			setup: func(m *MockAccountService) {
				m.On("GetAccountByID", mock.Anything, testUserID, accountID).
					Return(nil, account.ErrAccountNotFound{AccountID: accountID}).Once()
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "InternalError",
			path: "/accounts/" + accountID.String(),
			setup: func(m *MockAccountService) {
				m.On("GetAccountByID", mock.Anything, testUserID, accountID).
					Return(nil, errors.New("db down")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockAccountService)
			tt.setup(mockService)
			router := setupTestRouter()
			router.GET("/accounts/:id", NewAccountHandler(logger, mockService).GetByID)

			rr := doRequest(router, http.MethodGet, tt.path, "", nil)

			assert.Equal(t, tt.wantStatus, rr.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestAccountHandler_List(t *testing.T) {
	mockService := new(MockAccountService)
	router := setupTestRouter()
	router.GET("/accounts", NewAccountHandler(newTestLogger(), mockService).List)

	mockService.On("ListAccounts", mock.Anything, testUserID).Return([]*account.Account{
		{ID: uuid.New(), Name: "Checking", Type: account.TypeChecking, OpeningBalance: decimal.NewFromInt(10)},
		{ID: uuid.New(), Name: "Car loan", Type: account.TypeLoan, OpeningBalance: decimal.NewFromInt(9000)},
	}, nil).Once()

	rr := doRequest(router, http.MethodGet, "/accounts", "", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var data []AccountResponse
	decodeResponse(t, rr, &data)
	require.Len(t, data, 2)
	assert.Equal(t, "asset", data[0].Class)
	assert.Equal(t, "9000.00", data[1].OpeningBalance)
}
