// Package fn holds the small functional toolkit the pipelines are composed
// from: a value-or-error Result, context-aware stages, retry and ordered
// bounded parallelism.
package fn

// Result carries either a value or an error.
type Result[T any] struct {
	val T
	err error
}

// Ok creates a successful Result.
func Ok[T any](v T) Result[T] {
	return Result[T]{val: v}
}

// Err creates a failed Result. A nil error is treated as success with the
// zero value.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// FromPair creates a Result from a (value, error) pair.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

func (r Result[T]) IsOk() bool  { return r.err == nil }
func (r Result[T]) IsErr() bool { return r.err != nil }

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// Error returns the failure, or nil.
func (r Result[T]) Error() error { return r.err }

// UnwrapOr returns the value or a fallback on error.
func (r Result[T]) UnwrapOr(fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.val
}

// MapResult transforms Result[T] to Result[U].
func MapResult[T, U any](r Result[T], f func(T) U) Result[U] {
	if r.err != nil {
		return Err[U](r.err)
	}
	return Ok(f(r.val))
}

// Partition splits results into their values and errors, keeping the input
// index of each entry.
func Partition[T any](results []Result[T]) (oks map[int]T, errs map[int]error) {
	oks = make(map[int]T, len(results))
	errs = make(map[int]error)
	for i, r := range results {
		if r.err != nil {
			errs[i] = r.err
			continue
		}
		oks[i] = r.val
	}
	return oks, errs
}
