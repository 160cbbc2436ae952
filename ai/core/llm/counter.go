package llm

import (
	"context"
	"sync/atomic"
)

type callCounterKey struct{}

// WithCallCounter returns a context under which every Chat call is tallied.
// The orchestrator installs one per turn to report llm_calls in metrics.
func WithCallCounter(ctx context.Context) (context.Context, *atomic.Int64) {
	counter := &atomic.Int64{}
	return context.WithValue(ctx, callCounterKey{}, counter), counter
}

// CountCall tallies one model call against the counter installed by
// WithCallCounter, if any. Every Service implementation calls it at the top
// of Chat.
func CountCall(ctx context.Context) {
	if v, ok := ctx.Value(callCounterKey{}).(*atomic.Int64); ok {
		v.Add(1)
	}
}
