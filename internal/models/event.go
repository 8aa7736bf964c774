package models

import "time"

type EventType string

const (
	EventTransactionExecuted      EventType = "transaction.executed"
	EventTransactionReversed      EventType = "transaction.reversed"
	EventTransactionStatusUpdated EventType = "transaction.status_updated"
)

// LedgerEvent is published after a ledger change has been committed.
type LedgerEvent struct {
	ID          string       `json:"id" bson:"_id"`
	Type        EventType    `json:"type" bson:"type"`
	Transaction *Transaction `json:"transaction" bson:"transaction"`
	OccurredAt  time.Time    `json:"occurred_at" bson:"occurred_at"`
	RecordedAt  time.Time    `json:"recorded_at,omitempty" bson:"recorded_at,omitempty"`
}
