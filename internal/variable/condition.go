package variable

import (
	"cmp"
	"fmt"
)

// Comparator is a three-way comparison: negative when a < b, zero when
// equal, positive when a > b.
type Comparator[T any] interface {
	Compare(a, b T) int
}

// CompareFunc adapts a function to a Comparator.
type CompareFunc[T any] func(a, b T) int

// Compare calls f(a, b).
func (f CompareFunc[T]) Compare(a, b T) int {
	return f(a, b)
}

// Ordered returns the natural ordering of T.
func Ordered[T cmp.Ordered]() Comparator[T] {
	return CompareFunc[T](cmp.Compare[T])
}

// Bools orders false before true.
func Bools() Comparator[bool] {
	return CompareFunc[bool](func(a, b bool) int {
		switch {
		case a == b:
			return 0
		case !a:
			return -1
		default:
			return 1
		}
	})
}

// Predicate maps the result of a three-way comparison to a boolean.
type Predicate func(ordering int) bool

// Predicates for the usual comparison operators.
var (
	EqualTo        Predicate = func(c int) bool { return c == 0 }
	NotEqualTo     Predicate = func(c int) bool { return c != 0 }
	LessThan       Predicate = func(c int) bool { return c < 0 }
	LessOrEqual    Predicate = func(c int) bool { return c <= 0 }
	GreaterThan    Predicate = func(c int) bool { return c > 0 }
	GreaterOrEqual Predicate = func(c int) bool { return c >= 0 }
)

// Operator names accepted by ParsePredicate.
const (
	OpEqual          = "eq"
	OpNotEqual       = "ne"
	OpLess           = "lt"
	OpLessOrEqual    = "le"
	OpGreater        = "gt"
	OpGreaterOrEqual = "ge"
)

// Operators lists the operator names in a stable order.
var Operators = []string{OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual}

// ParsePredicate returns the predicate for an operator name.
func ParsePredicate(op string) (Predicate, error) {
	switch op {
	case OpEqual:
		return EqualTo, nil
	case OpNotEqual:
		return NotEqualTo, nil
	case OpLess:
		return LessThan, nil
	case OpLessOrEqual:
		return LessOrEqual, nil
	case OpGreater:
		return GreaterThan, nil
	case OpGreaterOrEqual:
		return GreaterOrEqual, nil
	default:
		return nil, fmt.Errorf("unknown comparison operator %q", op)
	}
}

// Condition is a boolean variable comparing two variables of type T.
//
// Each evaluation evaluates LHS and then RHS (both, always), compares the
// results and maps the ordering through the predicate. An error from LHS
// stops before RHS is evaluated.
type Condition[T any] struct {
	*Base[bool]
	lhs        Variable[T]
	rhs        Variable[T]
	comparator Comparator[T]
	predicate  Predicate
}

// NewCondition creates a condition. Panics if any argument is nil.
func NewCondition[T any](name string, lhs, rhs Variable[T], comparator Comparator[T], predicate Predicate, opts ...Option[bool]) *Condition[T] {
	if lhs == nil || rhs == nil || comparator == nil || predicate == nil {
		panic(fmt.Sprintf("condition %q: nil operand, comparator or predicate", name))
	}
	c := &Condition[T]{
		lhs:        lhs,
		rhs:        rhs,
		comparator: comparator,
		predicate:  predicate,
	}
	c.Base = NewBase(name, c.compute, opts...)
	return c
}

// Compare creates a condition over naturally ordered operands.
func Compare[T cmp.Ordered](name string, lhs, rhs Variable[T], predicate Predicate) *Condition[T] {
	return NewCondition(name, lhs, rhs, Ordered[T](), predicate)
}

// LHS returns the left operand.
func (c *Condition[T]) LHS() Variable[T] {
	return c.lhs
}

// RHS returns the right operand.
func (c *Condition[T]) RHS() Variable[T] {
	return c.rhs
}

// UpdateTriggers returns the LHS triggers followed by the RHS triggers.
// Duplicates are kept.
func (c *Condition[T]) UpdateTriggers() []TriggerKey {
	lt := c.lhs.UpdateTriggers()
	rt := c.rhs.UpdateTriggers()
	out := make([]TriggerKey, 0, len(lt)+len(rt))
	out = append(out, lt...)
	return append(out, rt...)
}

func (c *Condition[T]) compute() (bool, error) {
	a, err := c.lhs.Evaluate()
	if err != nil {
		return false, fmt.Errorf("condition %s: lhs %s: %w", c.Name(), c.lhs.Name(), err)
	}
	b, err := c.rhs.Evaluate()
	if err != nil {
		return false, fmt.Errorf("condition %s: rhs %s: %w", c.Name(), c.rhs.Name(), err)
	}
	return c.predicate(c.comparator.Compare(a, b)), nil
}
