// Package audit defines the port for emitting audit events.
package audit

import (
	"context"

	"github.com/Strob0t/mfi-api/internal/domain/audit"
)

// Recorder accepts audit events. Implementations may deliver asynchronously.
type Recorder interface {
	Record(ctx context.Context, e *audit.Event) error
}

// SubjectEvents is the message queue subject audit events are published on.
const SubjectEvents = "audit.events"
