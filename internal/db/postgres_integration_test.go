//go:build integration

package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abkawan/backoffice-ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a disposable PostgreSQL container with the schema applied.
func setupPostgres(t *testing.T) *Postgres {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewPostgres(connStr)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.InitSchema(ctx))
	return store
}

func TestIntegration_Postgres_Accounts(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, newAccount("a1", "100000001234", "250.10")))
	assert.ErrorIs(t, store.CreateAccount(ctx, newAccount("a2", "100000001234", "0")), ErrDuplicate)
	require.NoError(t, store.CreateAccount(ctx, newAccount("a3", "200000005678", "0")))
	require.NoError(t, store.CreateAccount(ctx, newAccount("a4", "300000005678", "0")))

	got, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "250.1", got.Balance.String())
	assert.Nil(t, got.InterestRate)

	_, err = store.FindAccountByMaskedNumber(ctx, "****5678")
	assert.ErrorIs(t, err, ErrAmbiguous)
	found, err := store.FindAccountByMaskedNumber(ctx, "****1234")
	require.NoError(t, err)
	assert.Equal(t, "a1", found.ID)

	closed := models.Closed
	rate := decimal.RequireFromString("0.015")
	updated, err := store.UpdateAccountFields(ctx, "a1", models.AccountUpdate{Status: &closed, InterestRate: &rate})
	require.NoError(t, err)
	assert.Equal(t, models.Closed, updated.Status)
	require.NotNil(t, updated.InterestRate)
	assert.Equal(t, "0.015", updated.InterestRate.String())

	open, err := store.ListAccounts(ctx, models.AccountFilter{Status: models.Active})
	require.NoError(t, err)
	assert.Len(t, open, 2)

	require.NoError(t, store.DeleteAccount(ctx, "a1"))
	assert.ErrorIs(t, store.DeleteAccount(ctx, "a1"), ErrNotFound)
}

func TestIntegration_Postgres_ConcurrentDebits(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, newAccount("a1", "100000001234", "100.00")))

	const workers = 2
	var (
		wg      sync.WaitGroup
		results = make([]error, workers)
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			_, results[i] = store.AdjustBalance(ctx, models.BalanceAdjustment{AccountID: "a1", Delta: decimal.NewFromInt(-60)})
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range results {
		if err != nil {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	got, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "40.00", got.Balance.StringFixed(2))
}
