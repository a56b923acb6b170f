package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/household-ledger/internal/domain/account"
	"github.com/household-ledger/internal/domain/importjob"
	"github.com/household-ledger/internal/domain/ledger"
	"github.com/household-ledger/internal/importer"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByIDs(ctx context.Context, userID string, ids []uuid.UUID) ([]*account.Account, error) {
	args := m.Called(ctx, userID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.Account), args.Error(1)
}

func (m *MockAccountRepository) ListByUser(ctx context.Context, userID string) ([]*account.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.Account), args.Error(1)
}

func (m *MockAccountRepository) IncrementOpeningBalance(ctx context.Context, id uuid.UUID, userID string, delta decimal.Decimal) error {
	args := m.Called(ctx, id, userID, delta)
	return args.Error(0)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Find(ctx context.Context, userID string, filter ledger.Filter) ([]*ledger.Transaction, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepository) InsertMany(ctx context.Context, txns []*ledger.Transaction) (*ledger.InsertResult, error) {
	args := m.Called(ctx, txns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.InsertResult), args.Error(1)
}

func (m *MockLedgerRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*ledger.Transaction, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepository) Update(ctx context.Context, txn *ledger.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockLedgerRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

type MockImporter struct {
	mock.Mock
}

func (m *MockImporter) Import(ctx context.Context, userID string, csv []byte, target *uuid.UUID) (*importer.Result, error) {
	args := m.Called(ctx, userID, csv, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importer.Result), args.Error(1)
}

type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Create(ctx context.Context, job *importjob.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*importjob.Job, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importjob.Job), args.Error(1)
}

func (m *MockJobRepository) Complete(ctx context.Context, id uuid.UUID, outcome importjob.Outcome) error {
	args := m.Called(ctx, id, outcome)
	return args.Error(0)
}

func (m *MockJobRepository) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
