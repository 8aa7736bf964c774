package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	// Deposit credits the account.
	Deposit TransactionType = "deposit"

	// Withdrawal debits the account.
	Withdrawal TransactionType = "withdrawal"

	// Transfer debits the account and credits a destination account.
	Transfer TransactionType = "transfer"

	// Fee debits the account for a bank charge.
	Fee TransactionType = "fee"
)

// TransactionTypes lists every transaction type in report order.
var TransactionTypes = []TransactionType{Deposit, Withdrawal, Transfer, Fee}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case Deposit, Withdrawal, Transfer, Fee:
		return true
	}
	return false
}

// Debits reports whether the type takes money out of the owning account.
func (t TransactionType) Debits() bool {
	return t == Withdrawal || t == Fee || t == Transfer
}

// SourceDelta is the signed balance change applied to the owning account.
func (t TransactionType) SourceDelta(amount decimal.Decimal) decimal.Decimal {
	if t.Debits() {
		return amount.Neg()
	}
	return amount
}

type TransactionStatus string

const (
	// Pending indicates the transaction is awaiting manual confirmation.
	Pending TransactionStatus = "pending"

	// Completed indicates the transaction was applied to the ledger.
	Completed TransactionStatus = "completed"

	// Failed marks a transaction an operator flagged as failed.
	Failed TransactionStatus = "failed"
)

// TransactionStatuses lists every status in report order.
var TransactionStatuses = []TransactionStatus{Completed, Pending, Failed}

// Valid reports whether s is a known transaction status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case Pending, Completed, Failed:
		return true
	}
	return false
}

// Transaction is a ledger record. Everything but Status is immutable once
// written. FromAccount and ToAccount carry masked account numbers for
// display; ToAccountID is the authoritative destination for transfers and is
// empty on records written before it existed.
type Transaction struct {
	ID          string            `json:"id" bson:"_id"`
	AccountID   string            `json:"accountId" bson:"account_id"`
	Type        TransactionType   `json:"type" bson:"type"`
	Amount      decimal.Decimal   `json:"amount" bson:"amount"`
	Description string            `json:"description" bson:"description"`
	Status      TransactionStatus `json:"status" bson:"status"`
	Timestamp   time.Time         `json:"timestamp" bson:"timestamp"`
	FromAccount string            `json:"fromAccount,omitempty" bson:"from_account,omitempty"`
	ToAccount   string            `json:"toAccount,omitempty" bson:"to_account,omitempty"`
	ToAccountID string            `json:"toAccountId,omitempty" bson:"to_account_id,omitempty"`
}

// TransactionFilter narrows transaction listings. Zero values match
// everything; Limit 0 means no limit.
type TransactionFilter struct {
	AccountID string
	Type      TransactionType
	Status    TransactionStatus
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// Matches reports whether tx satisfies every criterion except paging.
func (f TransactionFilter) Matches(tx *Transaction) bool {
	if f.AccountID != "" && tx.AccountID != f.AccountID {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if f.StartDate != nil && tx.Timestamp.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && tx.Timestamp.After(*f.EndDate) {
		return false
	}
	return true
}

// TransactionRequest is the input to the ledger engine.
type TransactionRequest struct {
	AccountID   string          `json:"accountId" validate:"required"`
	Type        TransactionType `json:"type" validate:"required,oneof=deposit withdrawal transfer fee"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"required"`
	ToAccountID string          `json:"toAccountId,omitempty"`
}

type UpdateStatusRequest struct {
	Status TransactionStatus `json:"status" validate:"required,oneof=completed pending failed"`
}

// TransactionPage is one page of a filtered listing.
type TransactionPage struct {
	Transactions []*Transaction `json:"transactions"`
	Total        int            `json:"totalItems"`
	Limit        int            `json:"itemsPerPage"`
	Offset       int            `json:"offset"`
}
