// Package script provides variables computed by JavaScript expressions.
//
// An Expr binds other variables as named globals, evaluates them in
// declaration order, then runs a precompiled goja program and exports its
// completion value. Each evaluation gets a fresh runtime, so no state
// leaks between evaluations.
package script

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dop251/goja"

	"github.com/roach88/varsys/internal/variable"
)

// DefaultTimeout bounds one evaluation of an expression.
const DefaultTimeout = 100 * time.Millisecond

// ErrTimeout is returned when an expression runs past its timeout.
var ErrTimeout = errors.New("script timeout")

// Input binds a variable to a global name inside the expression.
type Input struct {
	Name string
	Var  variable.Handle
}

// Option configures an Expr.
type Option func(*Expr)

// WithTimeout bounds each evaluation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Expr) {
		e.timeout = d
	}
}

// Expr is a variable whose value is the result of a JavaScript expression.
//
// Numbers are exported as float64, whatever their JavaScript
// representation, so results compare equal across evaluations.
type Expr struct {
	*variable.Base[any]
	source   string
	program  *goja.Program
	inputs   []Input
	triggers []variable.TriggerKey
	timeout  time.Duration
}

// New compiles source. The expression is re-evaluated on each of triggers
// and on every trigger of its inputs.
func New(name, source string, inputs []Input, triggers []variable.TriggerKey, opts ...Option) (*Expr, error) {
	program, err := goja.Compile(name, source, true)
	if err != nil {
		return nil, fmt.Errorf("script %s: compile: %w", name, err)
	}

	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if in.Var == nil {
			return nil, fmt.Errorf("script %s: input %s: nil variable", name, in.Name)
		}
		if seen[in.Name] {
			return nil, fmt.Errorf("script %s: duplicate input %s", name, in.Name)
		}
		seen[in.Name] = true
	}

	e := &Expr{
		source:   source,
		program:  program,
		inputs:   slices.Clone(inputs),
		triggers: slices.Clone(triggers),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Base = variable.NewBase(name, e.run)
	return e, nil
}

// UpdateTriggers returns the declared triggers followed by each input's.
func (e *Expr) UpdateTriggers() []variable.TriggerKey {
	out := slices.Clone(e.triggers)
	for _, in := range e.inputs {
		out = append(out, in.Var.UpdateTriggers()...)
	}
	return out
}

// Source returns the expression text.
func (e *Expr) Source() string {
	return e.source
}

// Inputs returns the bound inputs in evaluation order.
func (e *Expr) Inputs() []Input {
	return slices.Clone(e.inputs)
}

func (e *Expr) run() (any, error) {
	vm := goja.New()
	for _, in := range e.inputs {
		v, _, err := in.Var.EvaluateAny()
		if err != nil {
			return nil, fmt.Errorf("script %s: input %s: %w", e.Name(), in.Name, err)
		}
		if err := vm.Set(in.Name, v); err != nil {
			return nil, fmt.Errorf("script %s: bind %s: %w", e.Name(), in.Name, err)
		}
	}

	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() {
			vm.Interrupt(ErrTimeout)
		})
		defer timer.Stop()
	}

	res, err := vm.RunProgram(e.program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("script %s: %w after %s", e.Name(), ErrTimeout, e.timeout)
		}
		return nil, fmt.Errorf("script %s: %w", e.Name(), err)
	}
	return export(res), nil
}

func export(v goja.Value) any {
	if v == nil {
		return nil
	}
	switch x := v.Export().(type) {
	case int64:
		return float64(x)
	default:
		return x
	}
}
