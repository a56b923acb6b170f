package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/household-ledger/internal/balance"
	"github.com/household-ledger/internal/data/memory"
	"github.com/household-ledger/internal/domain/account"
	"github.com/household-ledger/internal/domain/ledger"
)

const userID = "user-1"

var testLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

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
	return m.Called(ctx, txn).Error(0)
}

func (m *MockLedgerRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

type fixture struct {
	accounts *memory.AccountRepository
	ledger   *memory.LedgerRepository
	service  *Service
	checking *account.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	accounts := memory.NewAccountRepository()
	ledgerRepo := memory.NewLedgerRepository()

	checking, err := account.NewAccount(userID, "Checking", account.TypeChecking, decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	require.NoError(t, accounts.Create(context.Background(), checking))

	return &fixture{
		accounts: accounts,
		ledger:   ledgerRepo,
		service:  NewService(testLogger, accounts, ledgerRepo),
		checking: checking,
	}
}

func (f *fixture) openingBalance(t *testing.T) decimal.Decimal {
	t.Helper()
	acc, err := f.accounts.GetByID(context.Background(), userID, f.checking.ID)
	require.NoError(t, err)
	return acc.OpeningBalance
}

const bankStatement = `Date,Description,Amount,Running Bal.
01/02/2024,ONLINE BANKING PAYMENT,-55.00,945.00
01/03/2024,DIR DEP PAYROLL,1200.00,2145.00
01/04/2024,UNKNOWN MERCHANT,75.00,2220.00
01/05/2024,Coffee,-4.50,2215.50
`

func TestImport_ReimportSkipsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.Import(ctx, userID, []byte(bankStatement), &f.checking.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Attempted)
	assert.Equal(t, 4, first.Imported)
	assert.Zero(t, first.DuplicatesSkipped)
	assert.True(t, first.AccountAdjusted)
	require.NotNil(t, first.BalanceDelta)
	assert.Equal(t, "1215.50", first.BalanceDelta.StringFixed(2))
	assert.Equal(t, "1315.50", f.openingBalance(t).StringFixed(2))

	second, err := f.service.Import(ctx, userID, []byte(bankStatement), &f.checking.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, second.Attempted)
	assert.Zero(t, second.Imported)
	assert.Equal(t, 4, second.DuplicatesSkipped)
	assert.False(t, second.AccountAdjusted)
	assert.Equal(t, "1315.50", f.openingBalance(t).StringFixed(2), "reimport leaves the balance alone")
	assert.Equal(t, 4, f.ledger.Len())
}

func TestImport_AssignsTargetAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	savings, err := account.NewAccount(userID, "Savings", account.TypeSavings, decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, f.accounts.Create(ctx, savings))

	csv := strings.Join([]string{
		"date,type,amount,description,category,fromAccountId,toAccountId,metadata",
		"2024-01-15,expense,-42.50,Coffee,dining,,,",
		"2024-01-16,income,10,Refund,,,,",
		"2024-01-17,transfer,-25,To savings,,," + savings.ID.String() + ",",
		"2024-01-18,adjustment,0,Zero,,,,",
	}, "\n")

	res, err := f.service.Import(ctx, userID, []byte(csv), &f.checking.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Imported)

	txns, err := f.ledger.Find(ctx, userID, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, txns, 4)

	assert.Equal(t, &f.checking.ID, txns[0].FromAccountID)
	assert.Nil(t, txns[0].ToAccountID)
	assert.Equal(t, "42.5", txns[0].Amount.String(), "stored amount is a magnitude")
	assert.Equal(t, "dining", txns[0].Category)
	assert.Equal(t, res.BatchID.String(), txns[0].Metadata[ledger.MetaImportBatchID])
	assert.Equal(t, ledger.TransactionKey(userID, "2024-01-15", decimal.RequireFromString("42.50"), "coffee"), txns[0].TransactionKey)

	assert.Equal(t, &f.checking.ID, txns[1].ToAccountID)
	assert.Nil(t, txns[1].FromAccountID)

	assert.Nil(t, txns[2].FromAccountID, "explicit side is left untouched")
	assert.Equal(t, &savings.ID, txns[2].ToAccountID)

	assert.Nil(t, txns[3].FromAccountID)
	assert.Nil(t, txns[3].ToAccountID)

	assert.Equal(t, "-57.50", res.BalanceDelta.StringFixed(2))
	assert.Equal(t, "42.50", f.openingBalance(t).StringFixed(2))
}

func TestImport_WithoutTarget(t *testing.T) {
	f := newFixture(t)
	res, err := f.service.Import(context.Background(), userID, []byte(bankStatement), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Imported)
	assert.False(t, res.AccountAdjusted)
	assert.Nil(t, res.BalanceDelta)
	assert.Equal(t, "100.00", f.openingBalance(t).StringFixed(2))
}

func TestImport_DuplicateRowsInOneFile(t *testing.T) {
	f := newFixture(t)
	csv := "date,type,amount,description\n2024-02-01,expense,5,Lunch\n2024-02-01,expense,5.00, LUNCH \n2024-02-02,expense,5,Lunch\n"

	res, err := f.service.Import(context.Background(), userID, []byte(csv), &f.checking.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.DuplicatesSkipped)
	assert.Equal(t, "110.00", f.openingBalance(t).StringFixed(2))
}

func TestImport_MirroredSameDayRowsCollide(t *testing.T) {
	f := newFixture(t)
	csv := "date,amount,description\n2024-01-05,-20,ATM\n2024-01-05,20,ATM\n"

	res, err := f.service.Import(context.Background(), userID, []byte(csv), &f.checking.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempted)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.DuplicatesSkipped, "keys hash the magnitude, so the refund looks like a repeat")
	assert.Equal(t, "-20.00", res.BalanceDelta.StringFixed(2))
	assert.Equal(t, "80.00", f.openingBalance(t).StringFixed(2))
}

func TestImport_RejectsInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("HeaderOnly", func(t *testing.T) {
		_, err := f.service.Import(ctx, userID, []byte("date,type,amount,description\n"), nil)
		assert.ErrorIs(t, err, ErrNoDataRows)
		assert.True(t, IsRejection(err))
	})

	t.Run("NoValidRows", func(t *testing.T) {
		_, err := f.service.Import(ctx, userID, []byte("date,type,amount\nnot-a-date,expense,5\n2024-01-01,expense,abc\n"), nil)
		assert.ErrorIs(t, err, ErrNoValidRows)
	})

	t.Run("MissingAmountColumn", func(t *testing.T) {
		_, err := f.service.Import(ctx, userID, []byte("date,type\n2024-01-01,expense\n"), nil)
		assert.ErrorIs(t, err, ErrNoValidRows)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := f.service.Import(ctx, userID, nil, nil)
		assert.ErrorIs(t, err, ErrNoValidRows)
	})

	assert.Zero(t, f.ledger.Len(), "nothing is written for rejected files")
}

func TestImport_UnknownAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := account.NewAccount("user-2", "Not mine", account.TypeChecking, decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, f.accounts.Create(ctx, other))
	ghost := uuid.New()

	csv := strings.Join([]string{
		"date,type,amount,description,fromAccountId,toAccountId",
		"2024-01-01,transfer,5,a," + f.checking.ID.String() + "," + other.ID.String(),
		"2024-01-02,transfer,5,b,bogus," + f.checking.ID.String(),
		"2024-01-03,expense,5,c,bogus,",
	}, "\n")

	_, err = f.service.Import(ctx, userID, []byte(csv), &ghost)
	require.Error(t, err)

	var unknown ErrUnknownAccounts
	require.ErrorAs(t, err, &unknown)
	want := []string{other.ID.String(), ghost.String(), "bogus"}
	assert.ElementsMatch(t, want, unknown.IDs)
	assert.True(t, isSorted(unknown.IDs))
	assert.ErrorIs(t, err, ErrUnknownAccounts{})
	assert.True(t, IsRejection(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsRejection(errors.New("connection refused")))
	assert.Zero(t, f.ledger.Len(), "validation failure inserts nothing")
}

func TestImport_PartialInsert(t *testing.T) {
	accounts := memory.NewAccountRepository()
	checking, err := account.NewAccount(userID, "Checking", account.TypeChecking, decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, accounts.Create(context.Background(), checking))

	mockLedger := new(MockLedgerRepository)
	svc := NewService(testLogger, accounts, mockLedger)

	var firstID uuid.UUID
	inserted := &ledger.InsertResult{}
	mockLedger.On("Find", mock.Anything, userID, mock.MatchedBy(func(f ledger.Filter) bool {
		return len(f.DateIn) == 2 && len(f.AmountIn) == 2
	})).Return([]*ledger.Transaction{}, nil).Once()
	mockLedger.On("InsertMany", mock.Anything, mock.AnythingOfType("[]*ledger.Transaction")).
		Run(func(args mock.Arguments) {
			// the second row loses a duplicate key race
			firstID = args.Get(1).([]*ledger.Transaction)[0].ID
			inserted.InsertedCount = 1
			inserted.InsertedIDs = []uuid.UUID{firstID}
			inserted.FailedCount = 1
		}).
		Return(inserted, nil).Once()

	csv := "date,type,amount,description\n2024-01-01,income,30,a\n2024-01-02,expense,-7,b\n"
	res, err := svc.Import(context.Background(), userID, []byte(csv), &checking.ID)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, firstID)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "30.00", res.BalanceDelta.StringFixed(2), "only persisted rows move the balance")

	acc, err := accounts.GetByID(context.Background(), userID, checking.ID)
	require.NoError(t, err)
	assert.Equal(t, "30.00", acc.OpeningBalance.StringFixed(2))
	mockLedger.AssertExpectations(t)
}

func TestImport_StoreErrors(t *testing.T) {
	accounts := memory.NewAccountRepository()
	csv := []byte("date,type,amount\n2024-01-01,expense,1\n")

	t.Run("FindFails", func(t *testing.T) {
		mockLedger := new(MockLedgerRepository)
		mockLedger.On("Find", mock.Anything, userID, mock.Anything).Return(nil, errors.New("boom")).Once()

		_, err := NewService(testLogger, accounts, mockLedger).Import(context.Background(), userID, csv, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to look up existing transactions")
		mockLedger.AssertNotCalled(t, "InsertMany", mock.Anything, mock.Anything)
	})

	t.Run("InsertFails", func(t *testing.T) {
		mockLedger := new(MockLedgerRepository)
		mockLedger.On("Find", mock.Anything, userID, mock.Anything).Return(nil, nil).Once()
		mockLedger.On("InsertMany", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

		_, err := NewService(testLogger, accounts, mockLedger).Import(context.Background(), userID, csv, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert imported transactions")
		mockLedger.AssertExpectations(t)
	})
}

// flakyAccounts fails the first failIncrements balance increments
type flakyAccounts struct {
	*memory.AccountRepository
	mu             sync.Mutex
	failIncrements int
}

func (r *flakyAccounts) IncrementOpeningBalance(ctx context.Context, id uuid.UUID, userID string, delta decimal.Decimal) error {
	r.mu.Lock()
	fail := r.failIncrements > 0
	if fail {
		r.failIncrements--
	}
	r.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return r.AccountRepository.IncrementOpeningBalance(ctx, id, userID, delta)
}

func TestImport_FailedAdjustmentIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accounts := &flakyAccounts{AccountRepository: f.accounts, failIncrements: 1}
	svc := NewService(testLogger, accounts, f.ledger)
	csv := []byte("date,amount,description\n2024-01-05,-40,ATM\n")

	_, err := svc.Import(ctx, userID, csv, &f.checking.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Zero(t, f.ledger.Len(), "rows of a failed adjustment are removed")
	assert.Equal(t, "100.00", f.openingBalance(t).StringFixed(2))

	retry, err := svc.Import(ctx, userID, csv, &f.checking.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.Imported)
	assert.Zero(t, retry.DuplicatesSkipped)
	assert.True(t, retry.AccountAdjusted)
	assert.Equal(t, "-40.00", retry.BalanceDelta.StringFixed(2))
	assert.Equal(t, "60.00", f.openingBalance(t).StringFixed(2))
	assert.Equal(t, 1, f.ledger.Len())
}

func TestImport_FailedAdjustmentRollbackErrors(t *testing.T) {
	accounts := &flakyAccounts{AccountRepository: memory.NewAccountRepository(), failIncrements: 1}
	checking, err := account.NewAccount(userID, "Checking", account.TypeChecking, decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, accounts.Create(context.Background(), checking))

	mockLedger := new(MockLedgerRepository)
	mockLedger.On("Find", mock.Anything, userID, mock.Anything).Return([]*ledger.Transaction{}, nil).Once()
	var insertedID uuid.UUID
	result := &ledger.InsertResult{InsertedCount: 1}
	mockLedger.On("InsertMany", mock.Anything, mock.AnythingOfType("[]*ledger.Transaction")).
		Run(func(args mock.Arguments) {
			insertedID = args.Get(1).([]*ledger.Transaction)[0].ID
			result.InsertedIDs = []uuid.UUID{insertedID}
		}).
		Return(result, nil).Once()
	mockLedger.On("Delete", mock.Anything, userID, mock.AnythingOfType("uuid.UUID")).Return(errors.New("boom")).Once()

	csv := []byte("date,amount,description\n2024-01-05,-40,ATM\n")
	_, err = NewService(testLogger, accounts, mockLedger).Import(context.Background(), userID, csv, &checking.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to adjust opening balance")
	mockLedger.AssertCalled(t, "Delete", mock.Anything, userID, insertedID)
	mockLedger.AssertExpectations(t)
}

func TestImport_ConcurrentImportsIntoOneAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	expected := f.checking.OpeningBalance
	for w := 0; w < workers; w++ {
		var lines []string
		lines = append(lines, "date,type,amount,description")
		for i := 0; i < 5; i++ {
			amount := decimal.NewFromInt(int64(w*10 + i)).Sub(decimal.NewFromInt(20))
			expected = expected.Add(amount)
			lines = append(lines, fmt.Sprintf("2024-03-%02d,expense,%s,worker %d row %d", i+1, amount.String(), w, i))
		}
		csv := []byte(strings.Join(lines, "\n"))

		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.service.Import(ctx, userID, csv, &f.checking.ID)
			if err == nil && res.Imported != 5 {
				err = fmt.Errorf("imported %d rows, want 5", res.Imported)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, expected.StringFixed(2), f.openingBalance(t).StringFixed(2))
	assert.Equal(t, workers*5, f.ledger.Len())
}

// Imported history plus the adjusted opening balance replays consistently.
func TestImport_ReplayAfterImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Import(ctx, userID, []byte(bankStatement), &f.checking.ID)
	require.NoError(t, err)

	acc, err := f.accounts.GetByID(ctx, userID, f.checking.ID)
	require.NoError(t, err)
	txns, err := f.ledger.Find(ctx, userID, ledger.Filter{AccountIDs: []uuid.UUID{acc.ID}})
	require.NoError(t, err)

	// opening 1315.50, then -55 +1200 +75 -4.50
	assert.Equal(t, "2531.00", balance.Compute(acc, txns, nil).StringFixed(2))
}

func isSorted(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}
