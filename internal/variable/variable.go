package variable

import (
	"fmt"
	"reflect"
)

// Handle is the untyped view of a variable used by the engine's trigger
// index. Every Variable[T] is a Handle.
type Handle interface {
	// Name is a display identifier. It is not used for lookup.
	Name() string

	// UpdateTriggers lists the event types that cause re-evaluation.
	// An empty list means the variable is only evaluated by a dependent
	// or a direct call.
	UpdateTriggers() []TriggerKey

	// OnUpdated fires once per successful evaluation.
	OnUpdated() *Notifier

	// EvaluateAny evaluates the variable and reports whether the changed
	// notification fired.
	EvaluateAny() (value any, changed bool, err error)
}

// Variable is a named value of type T recomputed on demand.
type Variable[T any] interface {
	Handle

	// Evaluate recomputes the value, updates LastValue and fires the
	// notifications. A failed computation changes nothing and returns the
	// error.
	Evaluate() (T, error)

	// OnChanged fires with the new value when it differs from LastValue.
	OnChanged() *Signal[T]

	// LastValue returns the value stored by the last successful evaluation.
	LastValue() T
}

// Option configures a Base.
type Option[T any] func(*Base[T])

// WithEqual replaces the equality contract used for change detection.
// eq receives the stored value first and the new value second.
func WithEqual[T any](eq func(old, new T) bool) Option[T] {
	return func(b *Base[T]) {
		b.equal = eq
	}
}

// WithInitial sets the baseline the first evaluation is compared against.
// Without it the baseline is the zero value of T.
func WithInitial[T any](v T) Option[T] {
	return func(b *Base[T]) {
		b.last = v
	}
}

// Base implements the evaluate/compare/notify cycle shared by all variables.
// Concrete variables embed *Base and supply the compute step; they override
// UpdateTriggers when they declare triggers.
type Base[T any] struct {
	name    string
	compute func() (T, error)
	equal   func(old, new T) bool
	last    T
	changed Signal[T]
	updated Notifier
}

// NewBase creates a Base that computes its value with compute.
// Panics if compute is nil.
func NewBase[T any](name string, compute func() (T, error), opts ...Option[T]) *Base[T] {
	if compute == nil {
		panic(fmt.Sprintf("variable %q: nil compute", name))
	}
	b := &Base[T]{
		name:    name,
		compute: compute,
		equal:   deepEqual[T],
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func deepEqual[T any](old, new T) bool {
	return reflect.DeepEqual(old, new)
}

// Name returns the display name.
func (b *Base[T]) Name() string {
	return b.name
}

// UpdateTriggers returns no triggers. Variants with triggers override it.
func (b *Base[T]) UpdateTriggers() []TriggerKey {
	return nil
}

// OnChanged returns the changed notification.
func (b *Base[T]) OnChanged() *Signal[T] {
	return &b.changed
}

// OnUpdated returns the updated notification.
func (b *Base[T]) OnUpdated() *Notifier {
	return &b.updated
}

// LastValue returns the value stored by the last successful evaluation.
func (b *Base[T]) LastValue() T {
	return b.last
}

// Evaluate recomputes the value and fires the notifications.
func (b *Base[T]) Evaluate() (T, error) {
	v, _, err := b.evaluate()
	return v, err
}

// EvaluateAny is Evaluate for callers that only hold a Handle.
func (b *Base[T]) EvaluateAny() (any, bool, error) {
	v, changed, err := b.evaluate()
	if err != nil {
		return nil, false, err
	}
	return v, changed, nil
}

func (b *Base[T]) evaluate() (T, bool, error) {
	v, err := b.compute()
	if err != nil {
		var zero T
		return zero, false, err
	}

	changed := !b.equal(b.last, v)
	b.last = v

	if changed {
		b.changed.Emit(v)
	}
	b.updated.Emit()

	return v, changed, nil
}
