// Package outcome carries collaborator results that are always usable.
//
// A collaborator that fails internally still hands back data: it returns
// Degraded with its fallback value and the cause, so callers never branch on
// failure to keep going.
package outcome

// Result is the value produced by a collaborator call.
type Result[T any] struct {
	Value    T
	Degraded bool
	Cause    error
}

// Ok wraps a value produced by the real backend.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Degraded wraps a fallback value together with the reason the real backend
// could not be used. cause may be nil when the backend is simply not configured.
func Degraded[T any](fallback T, cause error) Result[T] {
	return Result[T]{Value: fallback, Degraded: true, Cause: cause}
}

// Status returns "ok" or "degraded", the label used for metrics and spans.
func (r Result[T]) Status() string {
	if r.Degraded {
		return "degraded"
	}
	return "ok"
}
