package planning

import (
	"context"
	"fmt"
)

// Outcome is the result of one collaborator call: either a value or
// "unavailable" with the cause.
type Outcome[T any] struct {
	Value T
	Err   error
}

// OK reports whether the collaborator answered.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Or returns the value, or fallback when the call failed.
func (o Outcome[T]) Or(fallback T) T {
	if o.Err != nil {
		return fallback
	}
	return o.Value
}

// fetch runs a collaborator call, turning errors and panics into an
// unavailable outcome.
func fetch[T any](ctx context.Context, fn func(context.Context) (T, error)) (out Outcome[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			out = Outcome[T]{Value: zero, Err: fmt.Errorf("collaborator panic: %v", rec)}
		}
	}()
	if err := ctx.Err(); err != nil {
		return Outcome[T]{Err: err}
	}
	v, err := fn(ctx)
	return Outcome[T]{Value: v, Err: err}
}
