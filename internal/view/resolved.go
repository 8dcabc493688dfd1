// Package view joins the record tables into denormalized per-auction
// views with explicit join-completeness tracking.
package view

// ResolveState distinguishes "not arrived yet" from "known not to
// apply" when joining across feeds.
type ResolveState uint8

const (
	// StatePending means the referenced record has not arrived on its
	// feed yet; the join should be retried on the next table change.
	StatePending ResolveState = iota
	// StateFound means the record resolved.
	StateFound
	// StateAbsent means the record cannot apply to this view at all,
	// so its absence never blocks completeness.
	StateAbsent
)

// Resolved is the outcome of resolving one cross-feed reference.
type Resolved[T any] struct {
	state ResolveState
	value T
}

func Found[T any](v T) Resolved[T] {
	return Resolved[T]{state: StateFound, value: v}
}

func Pending[T any]() Resolved[T] {
	return Resolved[T]{state: StatePending}
}

func Absent[T any]() Resolved[T] {
	return Resolved[T]{state: StateAbsent}
}

func (r Resolved[T]) State() ResolveState {
	return r.state
}

func (r Resolved[T]) IsFound() bool {
	return r.state == StateFound
}

// Get returns the resolved value and whether one is present.
func (r Resolved[T]) Get() (T, bool) {
	return r.value, r.state == StateFound
}

// MustGet returns the resolved value; callers check IsFound first.
func (r Resolved[T]) MustGet() T {
	return r.value
}
