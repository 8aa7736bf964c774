package service

import (
	"context"
	"errors"
	"time"

	"github.com/abkawan/backoffice-ledger/internal/db"
	"github.com/abkawan/backoffice-ledger/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// TransactionService serves transaction reads and administrative status
// corrections. Balance-changing operations go through Ledger.
type TransactionService struct {
	transactions TransactionStore
	accounts     AccountStore
	events       EventPublisher
	logger       *zap.Logger
}

// creates a new TransactionService
func NewTransactionService(transactions TransactionStore, accounts AccountStore, events EventPublisher, logger *zap.Logger) *TransactionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionService{
		transactions: transactions,
		accounts:     accounts,
		events:       events,
		logger:       logger,
	}
}

// GetTransaction retrieves a transaction by ID
func (s *TransactionService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := s.transactions.GetTransactionByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, persistenceError("failed to get transaction", err)
	}
	return tx, nil
}

// ListTransactions returns one page of transactions matching filter. A zero
// limit selects DefaultPageSize and larger limits are capped at MaxPageSize.
func (s *TransactionService) ListTransactions(ctx context.Context, filter models.TransactionFilter) (*models.TransactionPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, newError(CodeInvalidRequest, "unknown transaction type "+string(filter.Type))
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, newError(CodeInvalidRequest, "unknown transaction status "+string(filter.Status))
	}

	txs, total, err := s.transactions.ListTransactions(ctx, filter)
	if err != nil {
		return nil, persistenceError("failed to list transactions", err)
	}
	return &models.TransactionPage{
		Transactions: txs,
		Total:        total,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}, nil
}

// retrieves transactions for an account
func (s *TransactionService) GetTransactionsByAccountID(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, persistenceError("failed to get account", err)
	}

	txs, err := s.transactions.GetTransactionsByAccountID(ctx, accountID)
	if err != nil {
		return nil, persistenceError("failed to get transactions", err)
	}
	return txs, nil
}

// UpdateStatus corrects the status of a recorded transaction. Balances are
// not affected.
func (s *TransactionService) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) (*models.Transaction, error) {
	if !status.Valid() {
		return nil, newError(CodeInvalidRequest, "unknown transaction status "+string(status))
	}

	tx, err := s.transactions.UpdateTransactionStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, persistenceError("failed to update transaction status", err)
	}

	s.logger.Info("transaction status updated", zap.String("transaction_id", id), zap.String("status", string(status)))

	if s.events != nil {
		event := &models.LedgerEvent{
			ID:          uuid.New().String(),
			Type:        models.EventTransactionStatusUpdated,
			Transaction: tx,
			OccurredAt:  time.Now().UTC(),
		}
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish ledger event", zap.String("transaction_id", id), zap.Error(err))
		}
	}
	return tx, nil
}
