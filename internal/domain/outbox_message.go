package domain

import "time"

type OutboxMessageStatus string

const (
	OutboxStatusPending OutboxMessageStatus = "PENDING"
	OutboxStatusSent    OutboxMessageStatus = "SENT"
	OutboxStatusFailed  OutboxMessageStatus = "FAILED"
)

// OutboxMessage is a message waiting to be published to Kafka.
type OutboxMessage struct {
	ID             string
	MessageType    MessageType
	Topic          string
	IdempotencyKey string
	RouteKey       string
	Payload        []byte
	Status         OutboxMessageStatus
	CreatedAt      time.Time
	SentAt         *time.Time
}
