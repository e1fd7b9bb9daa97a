package fetch

import "fmt"

// Kind tags why a per-item operation produced no value.
type Kind int

const (
	KindOK Kind = iota
	KindFetchFailed
	KindParseFailed
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindFetchFailed:
		return "fetch_failed"
	case KindParseFailed:
		return "parse_failed"
	case KindNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result carries either a value or a tagged failure, so batch callers can
// branch on Kind instead of inspecting error chains.
type Result[T any] struct {
	val  T
	err  error
	kind Kind
}

// Ok creates a successful Result.
func Ok[T any](v T) Result[T] {
	return Result[T]{val: v, kind: KindOK}
}

// Fail creates a failed Result. A nil err is replaced with a generic one.
func Fail[T any](kind Kind, err error) Result[T] {
	if kind == KindOK {
		kind = KindParseFailed
	}
	if err == nil {
		err = fmt.Errorf("%s", kind)
	}
	return Result[T]{err: err, kind: kind}
}

// Classify wraps err into a failed Result, tagging fetch errors as
// KindFetchFailed and anything else with fallback.
func Classify[T any](err error, fallback Kind) Result[T] {
	if IsFetchError(err) {
		return Fail[T](KindFetchFailed, err)
	}
	return Fail[T](fallback, err)
}

func (r Result[T]) IsOk() bool { return r.kind == KindOK }

func (r Result[T]) Kind() Kind { return r.kind }

func (r Result[T]) Err() error { return r.err }

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }
