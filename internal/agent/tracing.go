package agent

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceScopeRefine = "sceneforge.refine"

	traceSpanRefineTurn      = "sceneforge.refine.turn"
	traceSpanRefineIteration = "sceneforge.refine.iteration"

	traceAttrSessionID = "sceneforge.session_id"
	traceAttrIteration = "sceneforge.iteration"
	traceAttrTools     = "sceneforge.tools"
	traceAttrStatus    = "sceneforge.status"
)

func startRefineSpan(ctx context.Context, spanName, sessionID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	spanAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	if sessionID != "" {
		spanAttrs = append(spanAttrs, attribute.String(traceAttrSessionID, sessionID))
	}
	spanAttrs = append(spanAttrs, attrs...)
	return otel.Tracer(traceScopeRefine).Start(ctx, spanName, trace.WithAttributes(spanAttrs...))
}

func markSpanOutcome(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(traceAttrStatus, "error"))
		return
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(traceAttrStatus, "success"))
}
