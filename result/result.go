// Package result carries a value-or-error pair through channels that cannot
// return two values.
package result

type Of[T any] struct {
	v   *T
	err error
}

func Ok[T any](v *T) Of[T] {
	return Of[T]{v: v, err: nil}
}

func Err[T any](err error) Of[T] {
	return Of[T]{v: nil, err: err}
}

func (r Of[T]) Err() error {
	return r.err
}

// Unwrap returns the value and panics on an error result. Check Err first.
func (r Of[T]) Unwrap() *T {
	if nil != r.err {
		panic("unwrap of error result: " + r.err.Error())
	}

	return r.v
}
