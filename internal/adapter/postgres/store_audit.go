package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/mfi-api/internal/domain/audit"
)

func (s *Store) InsertAuditEvent(ctx context.Context, e *audit.Event) error {
	var diff []byte
	if len(e.Diff) > 0 {
		var err error
		if diff, err = json.Marshal(e.Diff); err != nil {
			return fmt.Errorf("marshal audit diff: %w", err)
		}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_logs (id, event, actor, subject, message, diff, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Event, e.Actor, e.Subject, e.Message, diff, e.RequestID, e.CreatedAt,
	)
	if err != nil {
		return wrapErr(err, "insert audit event %s", e.Event)
	}
	return nil
}
