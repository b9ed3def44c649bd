package coordinator

import "context"

// Future is the pending result of an enqueued operation.
type Future struct {
	id     string
	done   chan struct{}
	result any
	err    error
}

func newFuture(id string) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

// ID returns the ID the coordinator assigned to the operation.
func (f *Future) ID() string { return f.id }

// Done is closed once the operation has completed or permanently failed.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the operation settles or the context is done. Cancelling
// the context doesn't cancel the operation.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) settle(result any, err error) {
	f.result = result
	f.err = err
	close(f.done)
}
