package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abkawan/backoffice-ledger/internal/db"
	"github.com/abkawan/backoffice-ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedAccount(t *testing.T, store AccountStore, id, number, balance string, status models.AccountStatus) *models.Account {
	t.Helper()
	account := &models.Account{
		ID:         id,
		Number:     number,
		CustomerID: "cust-" + id,
		Type:       models.Checking,
		Balance:    dec(balance),
		Status:     status,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.CreateAccount(context.Background(), account))
	return account
}

func balanceOf(t *testing.T, store AccountStore, id string) string {
	t.Helper()
	account, err := store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return account.Balance.StringFixed(2)
}

func transactionCount(t *testing.T, store TransactionStore) int {
	t.Helper()
	_, total, err := store.ListTransactions(context.Background(), models.TransactionFilter{})
	require.NoError(t, err)
	return total
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event *models.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// flakyAccounts fails balance adjustments for one account.
type flakyAccounts struct {
	*db.Memory
	failID string
	err    error
}

func (f *flakyAccounts) AdjustBalance(ctx context.Context, adj models.BalanceAdjustment) (*models.Account, error) {
	if adj.AccountID == f.failID {
		return nil, f.err
	}
	return f.Memory.AdjustBalance(ctx, adj)
}

// flakyTransactions fails writes to the transaction store.
type flakyTransactions struct {
	*db.Memory
	createErr error
	deleteErr error
}

func (f *flakyTransactions) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.Memory.CreateTransaction(ctx, tx)
}

func (f *flakyTransactions) DeleteTransaction(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Memory.DeleteTransaction(ctx, id)
}

// cancellingAccounts cancels the request context once a balance has moved.
type cancellingAccounts struct {
	*db.Memory
	cancel context.CancelFunc
}

func (c *cancellingAccounts) AdjustBalance(ctx context.Context, adj models.BalanceAdjustment) (*models.Account, error) {
	account, err := c.Memory.AdjustBalance(ctx, adj)
	c.cancel()
	return account, err
}

// contextTransactions refuses writes under a cancelled context.
type contextTransactions struct {
	*db.Memory
}

func (c *contextTransactions) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Memory.CreateTransaction(ctx, tx)
}

func newTestLedger(t *testing.T) (*Ledger, *db.Memory, *recordingPublisher) {
	store := db.NewMemory()
	events := &recordingPublisher{}
	return NewLedger(store, store, events, zaptest.NewLogger(t)), store, events
}

func TestExecuteDeposit(t *testing.T) {
	ledger, store, events := newTestLedger(t)
	seedAccount(t, store, "A", "100000001111", "100.00", models.Active)

	tx, err := ledger.Execute(context.Background(), &models.TransactionRequest{
		AccountID:   "A",
		Type:        models.Deposit,
		Amount:      dec("50.00"),
		Description: "cash deposit",
	})
	require.NoError(t, err)

	assert.Equal(t, "150.00", balanceOf(t, store, "A"))
	assert.Equal(t, models.Deposit, tx.Type)
	assert.Equal(t, "50.00", tx.Amount.StringFixed(2))
	assert.Equal(t, models.Completed, tx.Status)
	assert.NotEmpty(t, tx.ID)
	assert.False(t, tx.Timestamp.IsZero())

	stored, err := store.GetTransactionByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", stored.AccountID)
	assert.Equal(t, []models.EventType{models.EventTransactionExecuted}, events.types())
}

func TestExecuteAppliesSignedDelta(t *testing.T) {
	tests := []struct {
		typ  models.TransactionType
		want string
	}{
		{models.Deposit, "112.50"},
		{models.Withdrawal, "87.50"},
		{models.Fee, "87.50"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			ledger, store, _ := newTestLedger(t)
			seedAccount(t, store, "A", "100000001111", "100.00", models.Active)

			_, err := ledger.Execute(context.Background(), &models.TransactionRequest{
				AccountID:   "A",
				Type:        tt.typ,
				Amount:      dec("12.50"),
				Description: "test",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, balanceOf(t, store, "A"))
		})
	}
}

func TestExecuteWithdrawalInsufficientFunds(t *testing.T) {
	ledger, store, events := newTestLedger(t)
	seedAccount(t, store, "A", "100000001111", "100.00", models.Active)

	_, err := ledger.Execute(context.Background(), &models.TransactionRequest{
		AccountID:   "A",
		Type:        models.Withdrawal,
		Amount:      dec("150.00"),
		Description: "atm",
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, CodeInsufficientFunds, CodeOf(err))
	assert.Equal(t, "100.00", balanceOf(t, store, "A"))
	assert.Zero(t, transactionCount(t, store))
	assert.Empty(t, events.types())
}

func TestExecuteTransfer(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	a := seedAccount(t, store, "A", "100000001111", "200.00", models.Active)
	b := seedAccount(t, store, "B", "100000002222", "50.00", models.Active)

	tx, err := ledger.Execute(context.Background(), &models.TransactionRequest{
		AccountID:   "A",
		Type:        models.Transfer,
		Amount:      dec("75.00"),
		Description: "rent",
		ToAccountID: "B",
	})
	require.NoError(t, err)

	assert.Equal(t, "125.00", balanceOf(t, store, "A"))
	assert.Equal(t, "125.00", balanceOf(t, store, "B"))
	assert.Equal(t, "A", tx.AccountID)
	assert.Equal(t, models.Transfer, tx.Type)
	assert.Equal(t, a.MaskedNumber(), tx.FromAccount)
	assert.Equal(t, b.MaskedNumber(), tx.ToAccount)
	assert.Equal(t, "B", tx.ToAccountID)
	assert.Equal(t, 1, transactionCount(t, store))

	reversal, err := ledger.Reverse(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.True(t, reversal.SourceReversed)
	assert.True(t, reversal.DestinationReversed)
	assert.Equal(t, "200.00", balanceOf(t, store, "A"))
	assert.Equal(t, "50.00", balanceOf(t, store, "B"))
	assert.Zero(t, transactionCount(t, store))
}

func TestExecuteValidation(t *testing.T) {
	tests := []struct {
		name string
		req  models.TransactionRequest
		want error
	}{
		{"zero amount", models.TransactionRequest{AccountID: "A", Type: models.Deposit, Amount: dec("0"), Description: "x"}, ErrInvalidAmount},
		{"negative amount", models.TransactionRequest{AccountID: "A", Type: models.Deposit, Amount: dec("-5"), Description: "x"}, ErrInvalidAmount},
		{"sub-cent amount", models.TransactionRequest{AccountID: "A", Type: models.Withdrawal, Amount: dec("0.004"), Description: "x"}, ErrInvalidAmount},
		{"sub-cent deposit", models.TransactionRequest{AccountID: "A", Type: models.Deposit, Amount: dec("0.005"), Description: "x"}, ErrInvalidAmount},
		{"oversized amount", models.TransactionRequest{AccountID: "A", Type: models.Deposit, Amount: dec("1000000000000000000000000000000000000"), Description: "x"}, ErrInvalidAmount},
		{"unknown type", models.TransactionRequest{AccountID: "A", Type: "refund", Amount: dec("5"), Description: "x"}, ErrInvalidRequest},
		{"blank description", models.TransactionRequest{AccountID: "A", Type: models.Deposit, Amount: dec("5"), Description: "  "}, ErrInvalidRequest},
		{"missing account", models.TransactionRequest{AccountID: "nope", Type: models.Deposit, Amount: dec("5"), Description: "x"}, ErrAccountNotFound},
		{"frozen account", models.TransactionRequest{AccountID: "F", Type: models.Deposit, Amount: dec("5"), Description: "x"}, ErrAccountNotActive},
		{"closed account", models.TransactionRequest{AccountID: "C", Type: models.Deposit, Amount: dec("5"), Description: "x"}, ErrAccountNotActive},
		{"fee over balance", models.TransactionRequest{AccountID: "A", Type: models.Fee, Amount: dec("100.01"), Description: "x"}, ErrInsufficientFunds},
		{"transfer without destination", models.TransactionRequest{AccountID: "A", Type: models.Transfer, Amount: dec("5"), Description: "x"}, ErrDestinationRequired},
		{"transfer to self", models.TransactionRequest{AccountID: "A", Type: models.Transfer, Amount: dec("5"), Description: "x", ToAccountID: "A"}, ErrSameAccount},
		{"transfer to missing", models.TransactionRequest{AccountID: "A", Type: models.Transfer, Amount: dec("5"), Description: "x", ToAccountID: "nope"}, ErrDestinationNotFound},
		{"transfer to frozen", models.TransactionRequest{AccountID: "A", Type: models.Transfer, Amount: dec("5"), Description: "x", ToAccountID: "F"}, ErrDestinationNotActive},
		{"transfer over balance", models.TransactionRequest{AccountID: "A", Type: models.Transfer, Amount: dec("500"), Description: "x", ToAccountID: "B"}, ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, store, _ := newTestLedger(t)
			seedAccount(t, store, "A", "100000001111", "100.00", models.Active)
			seedAccount(t, store, "B", "100000002222", "10.00", models.Active)
			seedAccount(t, store, "F", "100000003333", "10.00", models.Frozen)
			seedAccount(t, store, "C", "100000004444", "10.00", models.Closed)

			req := tt.req
			_, err := ledger.Execute(context.Background(), &req)
			assert.ErrorIs(t, err, tt.want)

			assert.Equal(t, "100.00", balanceOf(t, store, "A"))
			assert.Equal(t, "10.00", balanceOf(t, store, "B"))
			assert.Zero(t, transactionCount(t, store))
		})
	}
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(dec("0.01")))
	assert.NoError(t, ValidateAmount(dec("12.50")))
	assert.NoError(t, ValidateAmount(dec("12.500")))
	assert.ErrorIs(t, ValidateAmount(dec("12.505")), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateAmount(dec("0")), ErrInvalidAmount)
}

func TestConcurrentWithdrawalsSerialize(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	seedAccount(t, store, "A", "100000001111", "100.00", models.Active)

	var (
		wg      sync.WaitGroup
		results = make([]error, 2)
	)
	wg.Add(2)
	for i := range results {
		go func(i int) {
			defer wg.Done()
			_, results[i] = ledger.Execute(context.Background(), &models.TransactionRequest{
				AccountID:   "A",
				Type:        models.Withdrawal,
				Amount:      dec("60.00"),
				Description: "atm",
			})
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, "40.00", balanceOf(t, store, "A"))
	assert.Equal(t, 1, transactionCount(t, store))
}

func TestConcurrentTransfersConserveMoney(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	seedAccount(t, store, "A", "100000001111", "500.00", models.Active)
	seedAccount(t, store, "B", "100000002222", "500.00", models.Active)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := "A", "B"
			if i%2 == 1 {
				from, to = "B", "A"
			}
			_, _ = ledger.Execute(context.Background(), &models.TransactionRequest{
				AccountID:   from,
				Type:        models.Transfer,
				Amount:      dec("37.50"),
				Description: "shuffle",
				ToAccountID: to,
			})
		}(i)
	}
	wg.Wait()

	a, err := store.GetAccount(context.Background(), "A")
	require.NoError(t, err)
	b, err := store.GetAccount(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, "1000.00", a.Balance.Add(b.Balance).StringFixed(2))
	assert.False(t, a.Balance.IsNegative())
	assert.False(t, b.Balance.IsNegative())
}

func TestExecuteCompensatesWhenRecordWriteFails(t *testing.T) {
	store := db.NewMemory()
	txs := &flakyTransactions{Memory: store, createErr: errors.New("disk full")}
	events := &recordingPublisher{}
	ledger := NewLedger(store, txs, events, zaptest.NewLogger(t))
	seedAccount(t, store, "A", "100000001111", "200.00", models.Active)
	seedAccount(t, store, "B", "100000002222", "50.00", models.Active)

	_, err := ledger.Execute(context.Background(), &models.TransactionRequest{
		AccountID:   "A",
		Type:        models.Transfer,
		Amount:      dec("75.00"),
		Description: "rent",
		ToAccountID: "B",
	})
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.Equal(t, "200.00", balanceOf(t, store, "A"))
	assert.Equal(t, "50.00", balanceOf(t, store, "B"))
	assert.Zero(t, transactionCount(t, store))
	assert.Empty(t, events.types())
}

func TestExecuteRecordsAfterRequestCancelled(t *testing.T) {
	store := db.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ledger := NewLedger(&cancellingAccounts{Memory: store, cancel: cancel}, &contextTransactions{Memory: store}, nil, zaptest.NewLogger(t))
	seedAccount(t, store, "A", "100000001111", "100.00", models.Active)

	tx, err := ledger.Execute(ctx, &models.TransactionRequest{
		AccountID:   "A",
		Type:        models.Withdrawal,
		Amount:      dec("40.00"),
		Description: "atm",
	})
	require.NoError(t, err)
	assert.Equal(t, "60.00", balanceOf(t, store, "A"))

	stored, err := store.GetTransactionByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(dec("40.00")))
}

func TestExecuteCompensatesWhenDestinationLegFails(t *testing.T) {
	store := db.NewMemory()
	accounts := &flakyAccounts{Memory: store, failID: "B", err: errors.New("connection reset")}
	ledger := NewLedger(accounts, store, nil, zaptest.NewLogger(t))
	seedAccount(t, store, "A", "100000001111", "200.00", models.Active)
	seedAccount(t, store, "B", "100000002222", "50.00", models.Active)

	_, err := ledger.Execute(context.Background(), &models.TransactionRequest{
		AccountID:   "A",
		Type:        models.Transfer,
		Amount:      dec("75.00"),
		Description: "rent",
		ToAccountID: "B",
	})
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.Equal(t, "200.00", balanceOf(t, store, "A"))
	assert.Equal(t, "50.00", balanceOf(t, store, "B"))
	assert.Zero(t, transactionCount(t, store))
}

func TestExecuteDestinationDeletedMidTransfer(t *testing.T) {
	store := db.NewMemory()
	accounts := &flakyAccounts{Memory: store, failID: "B", err: db.ErrNotFound}
	ledger := NewLedger(accounts, store, nil, zaptest.NewLogger(t))
	seedAccount(t, store, "A", "100000001111", "200.00", models.Active)
	seedAccount(t, store, "B", "100000002222", "50.00", models.Active)

	_, err := ledger.Execute(context.Background(), &models.TransactionRequest{
		AccountID:   "A",
		Type:        models.Transfer,
		Amount:      dec("75.00"),
		Description: "rent",
		ToAccountID: "B",
	})
	assert.ErrorIs(t, err, ErrDestinationNotFound)
	assert.Equal(t, "200.00", balanceOf(t, store, "A"))
}

func TestExecuteIgnoresPublishFailure(t *testing.T) {
	store := db.NewMemory()
	events := &recordingPublisher{err: errors.New("broker down")}
	ledger := NewLedger(store, store, events, zaptest.NewLogger(t))
	seedAccount(t, store, "A", "100000001111", "10.00", models.Active)

	_, err := ledger.Execute(context.Background(), &models.TransactionRequest{
		AccountID:   "A",
		Type:        models.Deposit,
		Amount:      dec("1.00"),
		Description: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "11.00", balanceOf(t, store, "A"))
}

func TestReverseRoundTrip(t *testing.T) {
	for _, typ := range []models.TransactionType{models.Deposit, models.Withdrawal, models.Fee} {
		t.Run(string(typ), func(t *testing.T) {
			ledger, store, events := newTestLedger(t)
			seedAccount(t, store, "A", "100000001111", "100.00", models.Active)

			tx, err := ledger.Execute(context.Background(), &models.TransactionRequest{
				AccountID:   "A",
				Type:        typ,
				Amount:      dec("33.33"),
				Description: "round trip",
			})
			require.NoError(t, err)

			_, err = ledger.Reverse(context.Background(), tx.ID)
			require.NoError(t, err)
			assert.Equal(t, "100.00", balanceOf(t, store, "A"))
			assert.Equal(t, []models.EventType{models.EventTransactionExecuted, models.EventTransactionReversed}, events.types())
		})
	}
}

func TestReverseDepositAfterBalanceSpent(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	seedAccount(t, store, "A", "100000001111", "0.00", models.Active)

	deposit, err := ledger.Execute(context.Background(), &models.TransactionRequest{
		AccountID: "A", Type: models.Deposit, Amount: dec("50.00"), Description: "in",
	})
	require.NoError(t, err)
	_, err = ledger.Execute(context.Background(), &models.TransactionRequest{
		AccountID: "A", Type: models.Withdrawal, Amount: dec("40.00"), Description: "out",
	})
	require.NoError(t, err)

	_, err = ledger.Reverse(context.Background(), deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, "-40.00", balanceOf(t, store, "A"))
}

func TestReverseUnknownTransaction(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.Reverse(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestReverseTwice(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	seedAccount(t, store, "A", "100000001111", "100.00", models.Active)

	tx, err := ledger.Execute(context.Background(), &models.TransactionRequest{
		AccountID: "A", Type: models.Deposit, Amount: dec("25.00"), Description: "x",
	})
	require.NoError(t, err)

	_, err = ledger.Reverse(context.Background(), tx.ID)
	require.NoError(t, err)
	_, err = ledger.Reverse(context.Background(), tx.ID)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	assert.Equal(t, "100.00", balanceOf(t, store, "A"))
}

func TestConcurrentReversalsApplyOnce(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	seedAccount(t, store, "A", "100000001111", "100.00", models.Active)
	seedAccount(t, store, "B", "100000002222", "0.00", models.Active)

	tx, err := ledger.Execute(context.Background(), &models.TransactionRequest{
		AccountID: "A", Type: models.Transfer, Amount: dec("30.00"), Description: "x", ToAccountID: "B",
	})
	require.NoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reversed int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := ledger.Reverse(context.Background(), tx.ID); err == nil {
				mu.Lock()
				reversed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, reversed)
	assert.Equal(t, "100.00", balanceOf(t, store, "A"))
	assert.Equal(t, "0.00", balanceOf(t, store, "B"))
}

func TestReverseSkipsDeletedSource(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	seedAccount(t, store, "A", "100000001111", "100.00", models.Active)

	tx, err := ledger.Execute(context.Background(), &models.TransactionRequest{
		AccountID: "A", Type: models.Deposit, Amount: dec("25.00"), Description: "x",
	})
	require.NoError(t, err)
	require.NoError(t, store.DeleteAccount(context.Background(), "A"))

	reversal, err := ledger.Reverse(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.False(t, reversal.SourceReversed)

	_, err = store.GetTransactionByID(context.Background(), tx.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestReverseLegacyTransferByMaskedNumber(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	a := seedAccount(t, store, "A", "100000001111", "125.00", models.Active)
	b := seedAccount(t, store, "B", "100000002222", "125.00", models.Active)

	legacy := &models.Transaction{
		ID:          "legacy-1",
		AccountID:   "A",
		Type:        models.Transfer,
		Amount:      dec("75.00"),
		Description: "imported",
		Status:      models.Completed,
		Timestamp:   time.Now().UTC(),
		FromAccount: a.MaskedNumber(),
		ToAccount:   b.MaskedNumber(),
	}
	require.NoError(t, store.CreateTransaction(context.Background(), legacy))

	reversal, err := ledger.Reverse(context.Background(), legacy.ID)
	require.NoError(t, err)
	assert.True(t, reversal.DestinationReversed)
	assert.Equal(t, "200.00", balanceOf(t, store, "A"))
	assert.Equal(t, "50.00", balanceOf(t, store, "B"))
}

func TestReverseLegacyTransferAmbiguousDestination(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	seedAccount(t, store, "A", "100000001111", "125.00", models.Active)
	seedAccount(t, store, "B", "100000002222", "125.00", models.Active)
	seedAccount(t, store, "B2", "900000002222", "10.00", models.Closed)

	legacy := &models.Transaction{
		ID:          "legacy-2",
		AccountID:   "A",
		Type:        models.Transfer,
		Amount:      dec("75.00"),
		Description: "imported",
		Status:      models.Completed,
		Timestamp:   time.Now().UTC(),
		ToAccount:   "****2222",
	}
	require.NoError(t, store.CreateTransaction(context.Background(), legacy))

	reversal, err := ledger.Reverse(context.Background(), legacy.ID)
	require.NoError(t, err)
	assert.True(t, reversal.SourceReversed)
	assert.False(t, reversal.DestinationReversed)
	assert.Equal(t, "200.00", balanceOf(t, store, "A"))
	assert.Equal(t, "125.00", balanceOf(t, store, "B"))
	assert.Equal(t, "10.00", balanceOf(t, store, "B2"))
}

func TestReverseRestoresBalancesWhenRemovalFails(t *testing.T) {
	store := db.NewMemory()
	txs := &flakyTransactions{Memory: store}
	ledger := NewLedger(store, txs, nil, zaptest.NewLogger(t))
	seedAccount(t, store, "A", "100000001111", "200.00", models.Active)
	seedAccount(t, store, "B", "100000002222", "50.00", models.Active)

	tx, err := ledger.Execute(context.Background(), &models.TransactionRequest{
		AccountID: "A", Type: models.Transfer, Amount: dec("75.00"), Description: "x", ToAccountID: "B",
	})
	require.NoError(t, err)

	txs.deleteErr = errors.New("write conflict")
	_, err = ledger.Reverse(context.Background(), tx.ID)
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.Equal(t, "125.00", balanceOf(t, store, "A"))
	assert.Equal(t, "125.00", balanceOf(t, store, "B"))

	_, err = store.GetTransactionByID(context.Background(), tx.ID)
	assert.NoError(t, err)
}

func TestErrorMatchesByCode(t *testing.T) {
	err := persistenceError("failed to record transaction", errors.New("boom"))

	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.NotErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, CodePersistenceFailure, CodeOf(err))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Contains(t, err.Error(), "boom")
}
