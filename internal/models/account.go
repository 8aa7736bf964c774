package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	Checking AccountType = "checking"
	Savings  AccountType = "savings"
	Business AccountType = "business"
)

// AccountTypes lists every account type in report order.
var AccountTypes = []AccountType{Checking, Savings, Business}

type AccountStatus string

const (
	// Active accounts can send and receive money.
	Active AccountStatus = "active"

	// Closed accounts are kept for history only.
	Closed AccountStatus = "closed"

	// Frozen accounts are temporarily blocked by an administrator.
	Frozen AccountStatus = "frozen"
)

// AccountStatuses lists every account status in report order.
var AccountStatuses = []AccountStatus{Active, Closed, Frozen}

// Account is a customer account. Balance is only ever changed through the
// ledger's atomic adjustment, never by a field update.
type Account struct {
	ID           string           `json:"id" bson:"_id"`
	Number       string           `json:"-" bson:"number"`
	CustomerID   string           `json:"customerId" bson:"customer_id"`
	Type         AccountType      `json:"accountType" bson:"account_type"`
	Balance      decimal.Decimal  `json:"balance" bson:"balance"`
	Status       AccountStatus    `json:"status" bson:"status"`
	InterestRate *decimal.Decimal `json:"interestRate,omitempty" bson:"interest_rate,omitempty"`
	CreatedAt    time.Time        `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time        `json:"updatedAt" bson:"updated_at"`
}

// MaskedNumber returns the display-safe account number, e.g. ****1234.
func (a *Account) MaskedNumber() string {
	return MaskAccountNumber(a.Number)
}

// MaskAccountNumber hides everything but the last four digits.
func MaskAccountNumber(number string) string {
	if len(number) <= 4 {
		return "****" + number
	}
	return "****" + number[len(number)-4:]
}

// AccountUpdate holds the only account fields an administrator may change.
// Nil fields are left untouched.
type AccountUpdate struct {
	Status       *AccountStatus
	InterestRate *decimal.Decimal
}

// Empty reports whether the update changes nothing.
func (u AccountUpdate) Empty() bool {
	return u.Status == nil && u.InterestRate == nil
}

// BalanceAdjustment is a signed change to one account's balance. Without
// AllowOverdraft a debit that would leave the balance negative is refused.
type BalanceAdjustment struct {
	AccountID      string
	Delta          decimal.Decimal
	AllowOverdraft bool
}

// AccountFilter narrows account listings. Zero values match everything.
type AccountFilter struct {
	CustomerID string
	Type       AccountType
	Status     AccountStatus
}

// Matches reports whether a satisfies the filter.
func (f AccountFilter) Matches(a *Account) bool {
	if f.CustomerID != "" && a.CustomerID != f.CustomerID {
		return false
	}
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

type CreateAccountRequest struct {
	CustomerID     string           `json:"customerId" validate:"required"`
	AccountType    AccountType      `json:"accountType" validate:"required,oneof=checking savings business"`
	InitialBalance *decimal.Decimal `json:"balance,omitempty"`
	InterestRate   *decimal.Decimal `json:"interestRate,omitempty"`
}

type UpdateAccountRequest struct {
	Status       *AccountStatus   `json:"status,omitempty" validate:"omitempty,oneof=active closed frozen"`
	InterestRate *decimal.Decimal `json:"interestRate,omitempty"`
}

type AccountResponse struct {
	ID            string           `json:"id"`
	AccountNumber string           `json:"accountNumber"`
	CustomerID    string           `json:"customerId"`
	AccountType   AccountType      `json:"accountType"`
	Balance       decimal.Decimal  `json:"balance"`
	Status        AccountStatus    `json:"status"`
	InterestRate  *decimal.Decimal `json:"interestRate,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// NewAccountResponse renders an account for API callers with its number masked.
func NewAccountResponse(a *Account) AccountResponse {
	return AccountResponse{
		ID:            a.ID,
		AccountNumber: a.MaskedNumber(),
		CustomerID:    a.CustomerID,
		AccountType:   a.Type,
		Balance:       a.Balance,
		Status:        a.Status,
		InterestRate:  a.InterestRate,
		CreatedAt:     a.CreatedAt,
	}
}

type BalanceResponse struct {
	AccountID     string          `json:"accountId"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	AccountType   AccountType     `json:"accountType"`
}
