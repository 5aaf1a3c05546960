package core

import "time"

type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	}
	return false
}

// ExpenseEvent announces a successful mutation of an expense.
type ExpenseEvent struct {
	Type      EventType `json:"type"`
	ExpenseID string    `json:"expenseId"`
	Owner     string    `json:"owner"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditEntry is a recorded ExpenseEvent.
type AuditEntry struct {
	ID         int64     `json:"id"`
	EventType  EventType `json:"eventType"`
	ExpenseID  string    `json:"expenseId"`
	Owner      string    `json:"owner"`
	OccurredAt time.Time `json:"occurredAt"`
	RecordedAt time.Time `json:"recordedAt"`
}
