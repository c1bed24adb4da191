package forecastapi

import "context"

// Failure is the tagged error value returned by Try. It marshals to
// {"error": "..."} for views that render inline.
type Failure struct {
	Error string `json:"error"`
	Kind  Kind   `json:"-"`
}

// Canceled reports whether the failure is a canceled request, which views
// should ignore rather than render.
func (f *Failure) Canceled() bool {
	return f != nil && f.Kind == KindCanceled
}

// Result is the outcome of a non-throwing call: either Data or Failure.
type Result[T any] struct {
	Data    T
	Failure *Failure
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Failure == nil
}

// Try performs req and never returns an error; failures are folded into
// Result.Failure.
func Try[T any](ctx context.Context, c Caller, req Request) Result[T] {
	var out T
	if err := c.Call(ctx, req, &out); err != nil {
		return Result[T]{Failure: FailureOf(err)}
	}
	return Result[T]{Data: out}
}

// FailureOf converts any error into a Failure. Errors from outside this
// package keep their message.
func FailureOf(err error) *Failure {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	if kind == 0 && IsCanceled(err) {
		kind = KindCanceled
	}
	return &Failure{Error: err.Error(), Kind: kind}
}
