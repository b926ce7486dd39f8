package dashboard

import "context"

type correlationKey struct{}

// ContextWithCorrelation stores a correlation id on the context. Commands
// dispatched with such a context and no id of their own inherit it.
func ContextWithCorrelation(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, correlationKey{}, correlationID)
}

// CorrelationFromContext returns the correlation id stored on the context.
func CorrelationFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok && id != ""
}
