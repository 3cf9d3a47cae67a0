package interview

import (
	"context"
	"fmt"
)

// Provider makes one attempt against a generation service.
// Retry, timeout and logging are the Client's job.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Result, error)
}

// StatusError carries the service status code of a failed attempt.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Transient reports whether the status is worth one more attempt.
func (e *StatusError) Transient() bool {
	return e.Code >= 500 || e.Code == 429
}
