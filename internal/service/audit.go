package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/mfi-api/internal/domain/access"
	"github.com/Strob0t/mfi-api/internal/domain/audit"
	"github.com/Strob0t/mfi-api/internal/logger"
	auditport "github.com/Strob0t/mfi-api/internal/port/audit"
	"github.com/Strob0t/mfi-api/internal/port/database"
	"github.com/Strob0t/mfi-api/internal/port/messagequeue"
)

// AuditTrail stamps audit events with the request's actor and hands them to a
// Recorder. Recording failures are logged and never fail the request.
type AuditTrail struct {
	rec auditport.Recorder
	now func() time.Time
}

// NewAuditTrail creates an AuditTrail. A nil recorder discards every event.
func NewAuditTrail(rec auditport.Recorder) *AuditTrail {
	return &AuditTrail{rec: rec, now: time.Now}
}

// Track records event about subject.
func (t *AuditTrail) Track(ctx context.Context, event, subject, message string, diff map[string]any) {
	if t == nil || t.rec == nil {
		return
	}
	e := &audit.Event{
		ID:        uuid.NewString(),
		Event:     event,
		Actor:     access.ActorFrom(ctx),
		Subject:   subject,
		Message:   message,
		Diff:      diff,
		RequestID: logger.RequestID(ctx),
		CreatedAt: t.now().UTC(),
	}
	if err := t.rec.Record(context.WithoutCancel(ctx), e); err != nil {
		slog.ErrorContext(ctx, "audit record failed", "event", event, "subject", subject, "error", err)
	}
}

// StoreRecorder writes audit events directly to the database.
type StoreRecorder struct {
	store database.Store
}

// NewStoreRecorder creates a StoreRecorder.
func NewStoreRecorder(store database.Store) *StoreRecorder {
	return &StoreRecorder{store: store}
}

// Record inserts e.
func (r *StoreRecorder) Record(ctx context.Context, e *audit.Event) error {
	return r.store.InsertAuditEvent(ctx, e)
}

// QueueRecorder publishes audit events for an audit sink to persist.
type QueueRecorder struct {
	queue messagequeue.Queue
}

// NewQueueRecorder creates a QueueRecorder.
func NewQueueRecorder(q messagequeue.Queue) *QueueRecorder {
	return &QueueRecorder{queue: q}
}

// Record publishes e on the audit subject.
func (r *QueueRecorder) Record(ctx context.Context, e *audit.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return r.queue.Publish(ctx, auditport.SubjectEvents, data)
}

// StartAuditSink subscribes to published audit events and persists them.
// Inserts are idempotent on the event id, so redeliveries are harmless.
func StartAuditSink(ctx context.Context, q messagequeue.Queue, store database.Store) (cancel func(), err error) {
	return q.Subscribe(ctx, "audit-sink", auditport.SubjectEvents, func(ctx context.Context, _ string, data []byte) error {
		var e audit.Event
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("decode audit event: %w", err)
		}
		if err := store.InsertAuditEvent(ctx, &e); err != nil {
			return fmt.Errorf("persist audit event %s: %w", e.ID, err)
		}
		return nil
	})
}
