package variable

import "slices"

// Func is a variable computed by a closure with a fixed trigger list.
type Func[T any] struct {
	*Base[T]
	triggers []TriggerKey
}

// NewFunc creates a variable that runs compute on every evaluation and is
// re-evaluated by the engine when any of triggers is polled.
func NewFunc[T any](name string, compute func() (T, error), triggers []TriggerKey, opts ...Option[T]) *Func[T] {
	return &Func[T]{
		Base:     NewBase(name, compute, opts...),
		triggers: slices.Clone(triggers),
	}
}

// UpdateTriggers returns the triggers given at construction.
func (f *Func[T]) UpdateTriggers() []TriggerKey {
	return slices.Clone(f.triggers)
}

// Count is the value type of a Counter.
type Count interface {
	~int | ~int64 | ~float64
}

// Counter evaluates to the number of times it has been evaluated.
// Useful for counting trigger occurrences.
type Counter[N Count] struct {
	*Base[N]
	n        N
	triggers []TriggerKey
}

// NewCounter creates a counter re-evaluated on each of triggers.
func NewCounter[N Count](name string, triggers ...TriggerKey) *Counter[N] {
	c := &Counter[N]{triggers: slices.Clone(triggers)}
	c.Base = NewBase(name, func() (N, error) {
		c.n++
		return c.n, nil
	})
	return c
}

// UpdateTriggers returns the triggers given at construction.
func (c *Counter[N]) UpdateTriggers() []TriggerKey {
	return slices.Clone(c.triggers)
}
