package interview

import "context"

// Task is the pending result of an asynchronous session operation.
// Dropping a Task is safe: the operation's own context decides whether it commits.
type Task[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func runTask[T any](fn func() (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.val, t.err = fn()
	}()
	return t
}

// Done is closed once the operation has finished.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Wait blocks until the operation finishes or ctx is done.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.val, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
