package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/abkawan/backoffice-ledger/internal/db"
	"github.com/abkawan/backoffice-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	accountNumberDigits  = 12
	accountNumberRetries = 5
)

// handles account operations
type AccountService struct {
	accounts AccountStore
	logger   *zap.Logger
}

// creates a new Account Service
func NewAccountService(accounts AccountStore, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		accounts: accounts,
		logger:   logger,
	}
}

func newAccountNumber() string {
	// first digit is never zero so the number always has full length
	n := rand.Int63n(9e11) + 1e11
	return fmt.Sprintf("%0*d", accountNumberDigits, n)
}

// creates a new account
func (s *AccountService) CreateAccount(ctx context.Context, req *models.CreateAccountRequest) (*models.Account, error) {
	balance := decimal.Zero
	if req.InitialBalance != nil {
		balance = *req.InitialBalance
	}
	if balance.IsNegative() {
		return nil, newError(CodeInvalidAmount, "initial balance cannot be negative")
	}
	if !centPrecision(balance) {
		return nil, newError(CodeInvalidAmount, "initial balance must be a whole number of cents")
	}
	if err := validateInterestRate(req.AccountType, req.InterestRate); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := &models.Account{
		ID:           uuid.New().String(),
		CustomerID:   req.CustomerID,
		Type:         req.AccountType,
		Balance:      balance,
		Status:       models.Active,
		InterestRate: req.InterestRate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// account numbers are random; retry on the rare collision
	var err error
	for attempt := 0; attempt < accountNumberRetries; attempt++ {
		account.Number = newAccountNumber()
		err = s.accounts.CreateAccount(ctx, account)
		if !errors.Is(err, db.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, persistenceError("failed to create account", err)
	}

	s.logger.Info("account created",
		zap.String("account_id", account.ID),
		zap.String("customer_id", account.CustomerID),
		zap.String("account_type", string(account.Type)),
	)
	return account, nil
}

func validateInterestRate(accountType models.AccountType, rate *decimal.Decimal) error {
	if rate == nil {
		return nil
	}
	if accountType != models.Savings {
		return newError(CodeInvalidRequest, "interest rate is only allowed on savings accounts")
	}
	if rate.IsNegative() {
		return newError(CodeInvalidRequest, "interest rate cannot be negative")
	}
	return nil
}

// retrieves an account by ID
func (s *AccountService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.accounts.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, persistenceError("failed to get account", err)
	}
	return account, nil
}

// ListAccounts returns the accounts matching filter.
func (s *AccountService) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]*models.Account, error) {
	accounts, err := s.accounts.ListAccounts(ctx, filter)
	if err != nil {
		return nil, persistenceError("failed to list accounts", err)
	}
	return accounts, nil
}

// UpdateAccount applies an administrative edit. Only status and interest
// rate can change; the balance is never touched here.
func (s *AccountService) UpdateAccount(ctx context.Context, id string, req *models.UpdateAccountRequest) (*models.Account, error) {
	update := models.AccountUpdate{Status: req.Status, InterestRate: req.InterestRate}
	if update.Empty() {
		return nil, newError(CodeInvalidRequest, "no updatable fields supplied")
	}

	if update.InterestRate != nil {
		current, err := s.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := validateInterestRate(current.Type, update.InterestRate); err != nil {
			return nil, err
		}
	}

	account, err := s.accounts.UpdateAccountFields(ctx, id, update)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, persistenceError("failed to update account", err)
	}

	s.logger.Info("account updated", zap.String("account_id", id), zap.String("status", string(account.Status)))
	return account, nil
}

// DeleteAccount removes an account record. Its transactions are kept.
func (s *AccountService) DeleteAccount(ctx context.Context, id string) error {
	if err := s.accounts.DeleteAccount(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrAccountNotFound
		}
		return persistenceError("failed to delete account", err)
	}
	s.logger.Info("account deleted", zap.String("account_id", id))
	return nil
}

// GetBalance returns the current balance view of an account.
func (s *AccountService) GetBalance(ctx context.Context, id string) (*models.BalanceResponse, error) {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.BalanceResponse{
		AccountID:     account.ID,
		AccountNumber: account.MaskedNumber(),
		Balance:       account.Balance,
		AccountType:   account.Type,
	}, nil
}
