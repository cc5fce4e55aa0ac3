package models

import (
	"context"

	"go.uber.org/zap"
)

type operationContextKey struct{}

// OperationContext carries the identity of the running operation through
// context so clients and stores can tag logs and records without extra
// parameters.
type OperationContext struct {
	OperationId string
	Direction   Direction
	Stage       Status
	Burner      string
}

// WithOperationContext attaches operation data to a context.
func WithOperationContext(ctx context.Context, oc *OperationContext) context.Context {
	return context.WithValue(ctx, operationContextKey{}, oc)
}

// GetOperationContext retrieves operation data from context, or nil if absent.
func GetOperationContext(ctx context.Context) *OperationContext {
	oc, _ := ctx.Value(operationContextKey{}).(*OperationContext)
	return oc
}

// LogFields renders the operation context as zap fields.
func LogFields(ctx context.Context) []zap.Field {
	oc := GetOperationContext(ctx)
	if oc == nil {
		return nil
	}
	return []zap.Field{
		zap.String("operation_id", oc.OperationId),
		zap.String("direction", oc.Direction.String()),
		zap.String("stage", string(oc.Stage)),
		zap.String("burner", oc.Burner),
	}
}
