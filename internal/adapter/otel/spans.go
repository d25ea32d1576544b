package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "mfi-api"

// StartTxSpan starts a span for a multi-record store transaction.
func StartTxSpan(ctx context.Context, op, subject string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tx."+op,
		trace.WithAttributes(
			attribute.String("mfi.operation", op),
			attribute.String("mfi.subject", subject),
		),
	)
}

// StartUploadSpan starts a span for a logo upload.
func StartUploadSpan(ctx context.Context, object string, size int64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "logo.upload",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("blob.object", object),
			attribute.Int64("blob.size", size),
		),
	)
}
