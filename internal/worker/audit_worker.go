// Package worker consumes the finance event stream into the persistent
// audit trail.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/amqp"
	applog "bilancio/internal/log"
)

// AuditSink records consumed events durably.
type AuditSink interface {
	RecordAuditEvent(ctx context.Context, owner, eventType string, entityID int64, monthKey string, occurredAt time.Time) error
}

// AuditWorker turns finance events into audit rows.
type AuditWorker struct {
	sink AuditSink
}

func NewAuditWorker(sink AuditSink) *AuditWorker {
	return &AuditWorker{sink: sink}
}

// HandleEvent processes a single finance event. Returning an error requeues
// the event.
func (w *AuditWorker) HandleEvent(ctx context.Context, ev *amqp.FinanceEvent) error {
	if ev.Type == "" || ev.OwnerID == "" {
		// Malformed events are recorded nowhere; dropping them is the
		// caller's decision via the returned error.
		return fmt.Errorf("event missing type or owner")
	}

	occurred := ev.Timestamp
	if occurred.IsZero() {
		occurred = time.Now()
	}

	if err := w.sink.RecordAuditEvent(ctx, ev.OwnerID, ev.Type, ev.EntityID, ev.MonthKey, occurred); err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}

	slog.InfoContext(ctx, "Audit event recorded",
		"type", ev.Type,
		applog.FieldOwner, ev.OwnerID,
		"entity_id", ev.EntityID,
		applog.FieldMonth, ev.MonthKey)
	return nil
}
