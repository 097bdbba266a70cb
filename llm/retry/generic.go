package retry

import "context"

// DoWithResult is a typed wrapper around Retryer.Do.
// Only the value from the successful attempt is returned.
//
// Usage:
//
//	payload, state, err := retry.DoWithResult(ctx, r, func(ctx context.Context, s retry.AttemptState) ([]byte, error) {
//	    return fetch(ctx)
//	})
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context, state AttemptState) (T, error)) (T, AttemptState, error) {
	var result T
	state, err := r.Do(ctx, func(ctx context.Context, s AttemptState) error {
		v, err := fn(ctx, s)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, state, err
	}
	return result, state, nil
}
