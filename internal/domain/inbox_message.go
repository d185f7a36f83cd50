package domain

import "time"

type InboxMessageStatus string

const (
	InboxStatusProcessing InboxMessageStatus = "PROCESSING"
	InboxStatusProcessed  InboxMessageStatus = "PROCESSED"
	InboxStatusFailed     InboxMessageStatus = "FAILED"
)

// InboxMessage records that a handler has seen an idempotency key.
type InboxMessage struct {
	ID             string
	HandlerName    string
	IdempotencyKey string
	Status         InboxMessageStatus
	Attempts       int
	LastError      string
	ReceivedAt     time.Time
	ProcessedAt    *time.Time
}
