package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/store/memory"
)

type failingRecorder struct{}

func (failingRecorder) RecordEvent(context.Context, core.AuditEntry) error {
	return errors.New("disk full")
}

func (failingRecorder) ListEvents(context.Context, string) ([]core.AuditEntry, error) {
	return nil, nil
}

func TestAuditWorkerRecordsEvent(t *testing.T) {
	ctx := context.Background()
	rec := memory.New()
	w := NewAuditWorker(rec)
	fixed := time.Date(2024, 10, 1, 12, 0, 5, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	id := core.NewID()
	occurred := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	err := w.HandleEventMessage(ctx, &amqp.ExpenseEventMessage{
		Type: core.EventCreated, ExpenseID: id, Owner: "owner", Timestamp: occurred,
	})
	require.NoError(t, err)

	events, err := rec.ListEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.EventCreated, events[0].EventType)
	assert.Equal(t, "owner", events[0].Owner)
	assert.Equal(t, occurred, events[0].OccurredAt)
	assert.Equal(t, fixed, events[0].RecordedAt)
}

func TestAuditWorkerPropagatesStoreErrors(t *testing.T) {
	w := NewAuditWorker(failingRecorder{})
	err := w.HandleEventMessage(context.Background(), &amqp.ExpenseEventMessage{
		Type: core.EventDeleted, ExpenseID: "x",
	})
	assert.ErrorContains(t, err, "record expense event")
}
