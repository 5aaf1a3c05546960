package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expenses/internal/core"
)

// ExpenseEventMessage is the wire form of a core.ExpenseEvent. It carries
// identifiers only; consumers that need the record read it from the store.
type ExpenseEventMessage struct {
	Type      core.EventType `json:"type"`
	ExpenseID string         `json:"expenseId"`
	Owner     string         `json:"owner"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewExpenseEventMessage wraps ev, stamping it with the current time when it
// has none.
func NewExpenseEventMessage(ev core.ExpenseEvent) *ExpenseEventMessage {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &ExpenseEventMessage{
		Type:      ev.Type,
		ExpenseID: ev.ExpenseID,
		Owner:     ev.Owner,
		Timestamp: ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *ExpenseEventMessage) Event() core.ExpenseEvent {
	return core.ExpenseEvent{
		Type:      m.Type,
		ExpenseID: m.ExpenseID,
		Owner:     m.Owner,
		Timestamp: m.Timestamp,
	}
}

// ExpenseEventMessageFromJSON decodes and checks a message body.
func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.ExpenseID == "" {
		return nil, fmt.Errorf("missing expense id")
	}
	return &msg, nil
}
