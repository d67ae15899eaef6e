package variable

// Constant always evaluates to the same value and declares no triggers.
// It is never dispatched by the engine; it is evaluated directly or as an
// operand of a Condition.
type Constant[T any] struct {
	*Base[T]
	value T
}

// NewConstant creates a constant variable.
func NewConstant[T any](name string, value T, opts ...Option[T]) *Constant[T] {
	c := &Constant[T]{value: value}
	c.Base = NewBase(name, func() (T, error) { return c.value, nil }, opts...)
	return c
}

// Value returns the fixed value without evaluating.
func (c *Constant[T]) Value() T {
	return c.value
}
