package service

import (
	"context"

	"github.com/abkawan/backoffice-ledger/internal/models"
)

// AccountStore holds account records. AdjustBalance must be an atomic
// read-modify-write: concurrent adjustments of the same account never lose
// updates, and a guarded debit that would go negative fails with
// db.ErrInsufficientFunds without changing anything.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	FindAccountByMaskedNumber(ctx context.Context, masked string) (*models.Account, error)
	ListAccounts(ctx context.Context, filter models.AccountFilter) ([]*models.Account, error)
	AdjustBalance(ctx context.Context, adj models.BalanceAdjustment) (*models.Account, error)
	UpdateAccountFields(ctx context.Context, id string, update models.AccountUpdate) (*models.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// TransactionStore holds transaction records. DeleteTransaction of a
// missing id returns db.ErrNotFound.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*models.Transaction, error)
	GetTransactionsByAccountID(ctx context.Context, accountID string) ([]*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, int, error)
	UpdateTransactionStatus(ctx context.Context, id string, status models.TransactionStatus) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// EventPublisher announces committed ledger changes.
type EventPublisher interface {
	Publish(ctx context.Context, event *models.LedgerEvent) error
}
