package evaluatecredit

import (
	"context"

	"github.com/google/uuid"
)

type evaluationIDKey struct{}

// WithEvaluationID stores the correlation id logged for an evaluation.
func WithEvaluationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, evaluationIDKey{}, id)
}

// EvaluationID returns the correlation id carried by ctx, or a new one.
func EvaluationID(ctx context.Context) string {
	if id, ok := ctx.Value(evaluationIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
