package db

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientFunds is returned when a guarded debit would leave the
	// balance negative. The balance is unchanged.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAmbiguous is returned when a masked account number matches more
	// than one account.
	ErrAmbiguous = errors.New("masked account number is ambiguous")

	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
)
