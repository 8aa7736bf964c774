package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/abkawan/backoffice-ledger/internal/db"
	"github.com/abkawan/backoffice-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the only component allowed to change account balances. It turns
// transaction requests into balance adjustments plus a transaction record and
// undoes both on reversal.
//
// The stores give no multi-record atomicity, so every failure after the first
// adjustment is repaired by compensating adjustments before the error is
// returned.
type Ledger struct {
	accounts     AccountStore
	transactions TransactionStore
	events       EventPublisher
	logger       *zap.Logger
	now          func() time.Time
}

// NewLedger creates a ledger. events may be nil.
func NewLedger(accounts AccountStore, transactions TransactionStore, events EventPublisher, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		accounts:     accounts,
		transactions: transactions,
		events:       events,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Reversal describes what Reverse undid. A side is false when its account
// could not be resolved and the balance change was skipped.
type Reversal struct {
	Transaction         *models.Transaction `json:"transaction"`
	SourceReversed      bool                `json:"sourceReversed"`
	DestinationReversed bool                `json:"destinationReversed"`
}

// Money amounts carry at most two decimal places and stay below maxAmount,
// which matches the DECIMAL(20,2) balance column.
const amountScale = 2

var maxAmount = decimal.New(1, 18)

// recordTimeout bounds the transaction record write after the legs are applied.
const recordTimeout = 5 * time.Second

func centPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(amountScale)) && d.Abs().LessThan(maxAmount)
}

// ValidateAmount returns ErrInvalidAmount unless amount is a positive number
// of whole cents.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !centPrecision(amount) {
		return ErrInvalidAmount
	}
	return nil
}

type leg struct {
	accountID string
	delta     decimal.Decimal
}

// Execute validates req against current account state, applies its balance
// effect and records it as a completed transaction.
func (l *Ledger) Execute(ctx context.Context, req *models.TransactionRequest) (*models.Transaction, error) {
	if err := ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, newError(CodeInvalidRequest, "unknown transaction type "+string(req.Type))
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, newError(CodeInvalidRequest, "description is required")
	}

	source, err := l.accounts.GetAccount(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, persistenceError("failed to load account", err)
	}
	if source.Status != models.Active {
		return nil, ErrAccountNotActive
	}

	legs := []leg{{accountID: source.ID, delta: req.Type.SourceDelta(req.Amount)}}
	tx := &models.Transaction{
		ID:          uuid.New().String(),
		AccountID:   source.ID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		Status:      models.Completed,
	}

	switch req.Type {
	case models.Withdrawal, models.Fee:
		if source.Balance.LessThan(req.Amount) {
			return nil, ErrInsufficientFunds
		}
	case models.Transfer:
		dest, err := l.destination(ctx, source, req.ToAccountID)
		if err != nil {
			return nil, err
		}
		if source.Balance.LessThan(req.Amount) {
			return nil, ErrInsufficientFunds
		}
		legs = append(legs, leg{accountID: dest.ID, delta: req.Amount})
		tx.FromAccount = source.MaskedNumber()
		tx.ToAccount = dest.MaskedNumber()
		tx.ToAccountID = dest.ID
	}

	if err := l.apply(ctx, legs); err != nil {
		return nil, err
	}

	// money has moved: the record write outlives the caller's cancellation
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	tx.Timestamp = l.now()
	if err := l.transactions.CreateTransaction(recordCtx, tx); err != nil {
		perr := persistenceError("failed to record transaction", err)
		if cerr := l.compensate(ctx, legs); cerr != nil {
			perr.Err = errors.Join(err, cerr)
		}
		return nil, perr
	}

	l.logger.Info("transaction executed",
		zap.String("transaction_id", tx.ID),
		zap.String("account_id", tx.AccountID),
		zap.String("type", string(tx.Type)),
		zap.String("amount", tx.Amount.String()),
	)
	l.publish(ctx, models.EventTransactionExecuted, tx)
	return tx, nil
}

func (l *Ledger) destination(ctx context.Context, source *models.Account, toAccountID string) (*models.Account, error) {
	toAccountID = strings.TrimSpace(toAccountID)
	if toAccountID == "" {
		return nil, ErrDestinationRequired
	}
	if toAccountID == source.ID {
		return nil, ErrSameAccount
	}

	dest, err := l.accounts.GetAccount(ctx, toAccountID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrDestinationNotFound
		}
		return nil, persistenceError("failed to load destination account", err)
	}
	if dest.Status != models.Active {
		return nil, ErrDestinationNotActive
	}
	return dest, nil
}

// apply adjusts each leg in order. When a leg fails the legs already applied
// are compensated and the failure is returned as a ledger error.
func (l *Ledger) apply(ctx context.Context, legs []leg) error {
	for i, lg := range legs {
		_, err := l.accounts.AdjustBalance(ctx, models.BalanceAdjustment{
			AccountID: lg.accountID,
			Delta:     lg.delta,
		})
		if err == nil {
			continue
		}

		var lerr *Error
		switch {
		case errors.Is(err, db.ErrInsufficientFunds):
			lerr = ErrInsufficientFunds
		case errors.Is(err, db.ErrNotFound) && i == 0:
			lerr = ErrAccountNotFound
		case errors.Is(err, db.ErrNotFound):
			lerr = ErrDestinationNotFound
		default:
			lerr = persistenceError("failed to adjust balance", err)
		}
		if cerr := l.compensate(ctx, legs[:i]); cerr != nil {
			return persistenceError(lerr.Message, errors.Join(err, cerr))
		}
		return lerr
	}
	return nil
}

// compensate undoes legs in reverse order. It runs even when ctx has been
// cancelled and never refuses an overdraft, since it restores a prior state.
func (l *Ledger) compensate(ctx context.Context, legs []leg) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(legs) - 1; i >= 0; i-- {
		_, err := l.accounts.AdjustBalance(ctx, models.BalanceAdjustment{
			AccountID:      legs[i].accountID,
			Delta:          legs[i].delta.Neg(),
			AllowOverdraft: true,
		})
		if err != nil {
			l.logger.Error("compensating adjustment failed",
				zap.String("account_id", legs[i].accountID),
				zap.String("delta", legs[i].delta.Neg().String()),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reverse undoes the balance effect of a transaction and removes its record.
//
// A source account that no longer exists is skipped. A transfer's
// destination is resolved by its stored id; older records without one fall
// back to the masked account number, and the destination side is skipped when
// that number matches no account or more than one.
func (l *Ledger) Reverse(ctx context.Context, id string) (*Reversal, error) {
	tx, err := l.transactions.GetTransactionByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, persistenceError("failed to load transaction", err)
	}

	result := &Reversal{Transaction: tx}
	var applied []leg

	sourceLeg := leg{accountID: tx.AccountID, delta: tx.Type.SourceDelta(tx.Amount).Neg()}
	ok, err := l.reverseLeg(ctx, sourceLeg)
	if err != nil {
		return nil, err
	}
	if ok {
		applied = append(applied, sourceLeg)
		result.SourceReversed = true
	} else {
		l.logger.Warn("source account missing, skipping source reversal",
			zap.String("transaction_id", tx.ID),
			zap.String("account_id", tx.AccountID),
		)
	}

	if tx.Type == models.Transfer {
		destID, err := l.resolveDestination(ctx, tx)
		if err != nil {
			return nil, l.abortReversal(ctx, applied, err)
		}
		if destID != "" {
			destLeg := leg{accountID: destID, delta: tx.Amount.Neg()}
			ok, err := l.reverseLeg(ctx, destLeg)
			if err != nil {
				return nil, l.abortReversal(ctx, applied, err)
			}
			if ok {
				applied = append(applied, destLeg)
				result.DestinationReversed = true
			}
		}
		if !result.DestinationReversed {
			l.logger.Warn("destination account unresolved, skipping destination reversal",
				zap.String("transaction_id", tx.ID),
				zap.String("to_account_id", tx.ToAccountID),
				zap.String("to_account", tx.ToAccount),
			)
		}
	}

	if err := l.transactions.DeleteTransaction(ctx, tx.ID); err != nil {
		// ErrNotFound here means a concurrent reversal removed the record first
		// and already undid its effect.
		lerr := persistenceError("failed to remove transaction", err)
		if errors.Is(err, db.ErrNotFound) {
			lerr = ErrTransactionNotFound
		}
		return nil, l.abortReversal(ctx, applied, lerr)
	}

	l.logger.Info("transaction reversed",
		zap.String("transaction_id", tx.ID),
		zap.Bool("source_reversed", result.SourceReversed),
		zap.Bool("destination_reversed", result.DestinationReversed),
	)
	l.publish(ctx, models.EventTransactionReversed, tx)
	return result, nil
}

// reverseLeg applies one reversal adjustment. It reports false when the
// account does not exist.
func (l *Ledger) reverseLeg(ctx context.Context, lg leg) (bool, error) {
	_, err := l.accounts.AdjustBalance(ctx, models.BalanceAdjustment{
		AccountID:      lg.accountID,
		Delta:          lg.delta,
		AllowOverdraft: true,
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, db.ErrNotFound):
		return false, nil
	default:
		return false, persistenceError("failed to reverse balance", err)
	}
}

func (l *Ledger) resolveDestination(ctx context.Context, tx *models.Transaction) (string, error) {
	if tx.ToAccountID != "" {
		return tx.ToAccountID, nil
	}
	if tx.ToAccount == "" {
		return "", nil
	}

	dest, err := l.accounts.FindAccountByMaskedNumber(ctx, tx.ToAccount)
	switch {
	case err == nil:
		return dest.ID, nil
	case errors.Is(err, db.ErrNotFound), errors.Is(err, db.ErrAmbiguous):
		return "", nil
	default:
		return "", persistenceError("failed to resolve destination account", err)
	}
}

func (l *Ledger) abortReversal(ctx context.Context, applied []leg, err error) error {
	if cerr := l.compensate(ctx, applied); cerr != nil {
		return persistenceError("reversal aborted", errors.Join(err, cerr))
	}
	return err
}

func (l *Ledger) publish(ctx context.Context, eventType models.EventType, tx *models.Transaction) {
	if l.events == nil {
		return
	}
	event := &models.LedgerEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Transaction: tx,
		OccurredAt:  l.now(),
	}
	if err := l.events.Publish(ctx, event); err != nil {
		l.logger.Warn("failed to publish ledger event",
			zap.String("event_type", string(eventType)),
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
	}
}
