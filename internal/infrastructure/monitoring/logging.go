package monitoring

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type contextKey string

const operatorKey contextKey = "operator"

// WithOperator stores the authenticated operator subject
func WithOperator(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, operatorKey, subject)
}

// OperatorFromContext returns the authenticated operator subject, or ""
func OperatorFromContext(ctx context.Context) string {
	if subject, ok := ctx.Value(operatorKey).(string); ok {
		return subject
	}
	return ""
}

// ContextFields returns the correlation fields carried by ctx
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if requestID := middleware.GetReqID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
		fields = append(fields, zap.String("span_id", SpanIDFromContext(ctx)))
	}
	if operator := OperatorFromContext(ctx); operator != "" {
		fields = append(fields, zap.String("operator", operator))
	}
	return fields
}

// WithContext returns logger annotated with the correlation fields of ctx
func WithContext(logger *zap.Logger, ctx context.Context) *zap.Logger {
	return logger.With(ContextFields(ctx)...)
}
