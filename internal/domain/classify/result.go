package classify

// Result is a tagged outcome for expected non-success cases such as no_match or not_found.
// Programming errors still travel as plain errors.
type Result[T any] struct {
	value T
	err   *Error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

func Err[T any](code ErrorCode, message string) Result[T] {
	return Result[T]{err: &Error{Code: code, Message: message}}
}

// ErrWith keeps the partial value alongside the failure, e.g. empty tag sets on no_match.
func ErrWith[T any](v T, code ErrorCode, message string) Result[T] {
	return Result[T]{value: v, err: &Error{Code: code, Message: message}}
}

func (r Result[T]) IsOk() bool { return r.err == nil }

func (r Result[T]) Value() T { return r.value }

func (r Result[T]) Code() ErrorCode {
	if r.err == nil {
		return ""
	}
	return r.err.Code
}

func (r Result[T]) Message() string {
	if r.err == nil {
		return ""
	}
	return r.err.Message
}

// Err returns the failure as an error, or nil when the result is Ok.
func (r Result[T]) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}
