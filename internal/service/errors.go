package service

import (
	"errors"
	"fmt"
)

// Error codes reported to callers.
const (
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
	CodeAccountNotActive     = "ACCOUNT_NOT_ACTIVE"
	CodeInsufficientFunds    = "INSUFFICIENT_FUNDS"
	CodeDestinationRequired  = "DESTINATION_REQUIRED"
	CodeDestinationNotFound  = "DESTINATION_NOT_FOUND"
	CodeDestinationNotActive = "DESTINATION_NOT_ACTIVE"
	CodeSameAccount          = "SAME_ACCOUNT"
	CodeTransactionNotFound  = "TRANSACTION_NOT_FOUND"
	CodePersistenceFailure   = "PERSISTENCE_FAILURE"
)

// Error is a typed ledger error. Two errors match under errors.Is when their
// codes are equal, so callers compare against the sentinels below.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidAmount        = &Error{Code: CodeInvalidAmount, Message: "amount must be greater than zero"}
	ErrInvalidRequest       = &Error{Code: CodeInvalidRequest, Message: "invalid request"}
	ErrAccountNotFound      = &Error{Code: CodeAccountNotFound, Message: "account not found"}
	ErrAccountNotActive     = &Error{Code: CodeAccountNotActive, Message: "account is not active"}
	ErrInsufficientFunds    = &Error{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrDestinationRequired  = &Error{Code: CodeDestinationRequired, Message: "destination account is required for transfers"}
	ErrDestinationNotFound  = &Error{Code: CodeDestinationNotFound, Message: "destination account not found"}
	ErrDestinationNotActive = &Error{Code: CodeDestinationNotActive, Message: "destination account is not active"}
	ErrSameAccount          = &Error{Code: CodeSameAccount, Message: "cannot transfer to the same account"}
	ErrTransactionNotFound  = &Error{Code: CodeTransactionNotFound, Message: "transaction not found"}
	ErrPersistenceFailure   = &Error{Code: CodePersistenceFailure, Message: "persistence failure"}
)

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func persistenceError(message string, err error) *Error {
	return &Error{Code: CodePersistenceFailure, Message: message, Err: err}
}

// CodeOf returns the ledger error code carried by err, or "" if there is none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
