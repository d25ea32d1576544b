package logger

import (
	"context"
	"log/slog"

	"github.com/Strob0t/mfi-api/internal/domain/access"
)

type requestIDKey struct{}

// WithRequestID stores the request ID in ctx. It survives the hop through
// the audit queue, so consumer logs carry the originating request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestAttrs returns the request-scoped attributes of ctx: the request ID
// and the acting user.
func requestAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if id := RequestID(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if actor := access.ActorFrom(ctx); actor != "" {
		attrs = append(attrs, slog.String("user_id", actor))
	}
	return attrs
}
