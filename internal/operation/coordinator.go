package operation

import (
	"context"

	"github.com/slok/reviewdata/internal/coordinator"
)

// Executor runs operations, satisfied by Dispatcher.
type Executor interface {
	Execute(ctx context.Context, op Op) (any, error)
}

// Callbacks are the optional observers of a queued operation.
type Callbacks struct {
	OnRetry   func(attempt, maxRetries int)
	OnSuccess func(result any)
	OnError   func(err error)
}

// ToCoordinator returns the coordinator operation that runs op with the executor.
func ToCoordinator(op Op, exec Executor, cb Callbacks) coordinator.Operation {
	return coordinator.Operation{
		Type:     op.Type(),
		Key:      op.Key(),
		Priority: op.Priority(),
		Execute: func(ctx context.Context) (any, error) {
			return exec.Execute(ctx, op)
		},
		OnRetry:   cb.OnRetry,
		OnSuccess: cb.OnSuccess,
		OnError:   cb.OnError,
	}
}

// Enqueuer is the part of the coordinator used to submit operations.
type Enqueuer interface {
	Enqueue(op coordinator.Operation) (*coordinator.Future, error)
}

// Submit queues op on the coordinator and waits for its result.
func Submit(ctx context.Context, c Enqueuer, exec Executor, op Op, cb Callbacks) (any, error) {
	f, err := c.Enqueue(ToCoordinator(op, exec, cb))
	if err != nil {
		return nil, err
	}

	return f.Wait(ctx)
}
