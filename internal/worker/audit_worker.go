package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/store"
)

// AuditWorker records every consumed expense event in the audit log.
type AuditWorker struct {
	recorder store.AuditRecorder
	now      func() time.Time
}

func NewAuditWorker(recorder store.AuditRecorder) *AuditWorker {
	return &AuditWorker{recorder: recorder, now: time.Now}
}

// HandleEventMessage processes a single expense event from AMQP. A returned
// error makes the consumer requeue the message.
func (w *AuditWorker) HandleEventMessage(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	slog.InfoContext(ctx, "Recording expense event",
		applog.FieldEventType, msg.Type,
		applog.FieldExpenseID, msg.ExpenseID,
		applog.FieldUserID, msg.Owner)

	entry := core.AuditEntry{
		EventType:  msg.Type,
		ExpenseID:  msg.ExpenseID,
		Owner:      msg.Owner,
		OccurredAt: msg.Timestamp.UTC(),
		RecordedAt: w.now().UTC(),
	}
	if err := w.recorder.RecordEvent(ctx, entry); err != nil {
		return fmt.Errorf("record expense event: %w", err)
	}
	return nil
}
