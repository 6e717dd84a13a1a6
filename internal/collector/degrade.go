package collector

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Degrade runs fn and returns its value. Errors and panics collapse to the zero value
// and are logged as warnings, for enrichments the caller can live without.
func Degrade[T any](ctx context.Context, logger *zap.Logger, name string, fn func(context.Context) (T, error)) (out T) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("enrichment panicked", zap.String("step", name), zap.String("panic", fmt.Sprint(r)))
			var zero T
			out = zero
		}
	}()
	v, err := fn(ctx)
	if err != nil {
		logger.Warn("enrichment failed", zap.String("step", name), zap.Error(err))
		var zero T
		return zero
	}
	return v
}
