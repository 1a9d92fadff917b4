package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running,
// which usually means a leak.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Lister is implemented by anything that can enumerate a non-empty catalog.
type Lister[T any] interface {
	List(ctx context.Context) ([]T, error)
}

// NonEmptyCheck fails when l errors or returns no entries.
func NonEmptyCheck[T any](l Lister[T]) CheckFunc {
	return func(ctx context.Context) error {
		items, err := l.List(ctx)
		if err != nil {
			return errors.Wrap(err, "list")
		}
		if len(items) == 0 {
			return errors.New("empty")
		}
		return nil
	}
}
