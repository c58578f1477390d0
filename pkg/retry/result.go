package retry

import "github.com/kraklabs/reconcrawl/pkg/failure"

// Result is the outcome of a Retry call: the produced value (zero on
// failure), the terminal error (nil on success), and how many attempts were
// made before returning.
type Result[T any] struct {
	value    T
	err      failure.ClassifiedError
	attempts int
}

// NewSuccessResult wraps a successful attempt.
func NewSuccessResult[T any](value T, attempts int) Result[T] {
	return Result[T]{value: value, attempts: attempts}
}

func (r Result[T]) Value() T {
	return r.value
}

func (r Result[T]) Err() failure.ClassifiedError {
	return r.err
}

func (r Result[T]) Attempts() int {
	return r.attempts
}

// IsSuccess reports whether the retried call returned without error.
func (r Result[T]) IsSuccess() bool {
	return r.err == nil
}

// IsFailure reports whether the retried call ended with an error.
func (r Result[T]) IsFailure() bool {
	return r.err != nil
}
