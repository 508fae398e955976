package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pricofy/csv-translation/internal/warmup"
)

// Handler is the raw Lambda entry point registered with lambda.Start.
type Handler func(ctx context.Context, raw json.RawMessage) (any, error)

// Handle answers warmup events with w and decodes every other event into T
// before calling next.
func Handle[T, R any](w *warmup.Warmer, next func(context.Context, T) (R, error)) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		if event, ok := warmup.Detect(raw); ok {
			return w.Handle(ctx, event), nil
		}

		var in T
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		return next(ctx, in)
	}
}
