package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/danmuck/imagedb"

// Tracer returns the ITP tracer from the global provider. Without a
// configured SDK this is a no-op tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartExchange opens a span covering one ITP connection.
func StartExchange(ctx context.Context, node, connID, remote string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "itp.exchange",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("itp.node", node),
			attribute.String("itp.conn_id", connID),
			attribute.String("net.peer.addr", remote),
		),
	)
}

// EndExchange records the outcome and closes span.
func EndExchange(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("itp.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
