package engine

import (
	"fmt"

	"github.com/roach88/varsys/internal/variable"
)

// Wirer populates a variable's externally resolved dependencies before it
// takes part in evaluation. AddVariable calls Wire exactly once per call.
type Wirer interface {
	Wire(h variable.Handle) error
}

// WirerFunc adapts a function to a Wirer.
type WirerFunc func(h variable.Handle) error

// Wire calls f(h).
func (f WirerFunc) Wire(h variable.Handle) error {
	return f(h)
}

// NopWirer wires nothing.
type NopWirer struct{}

// Wire returns nil.
func (NopWirer) Wire(variable.Handle) error {
	return nil
}

// Wireable is implemented by variables that resolve services at
// registration.
type Wireable interface {
	Wire(s *Services) error
}

// Services is a named service container. As a Wirer it hands itself to
// every Wireable variable; other variables pass through untouched.
type Services struct {
	byName map[string]any
}

// NewServices creates an empty container.
func NewServices() *Services {
	return &Services{byName: make(map[string]any)}
}

// Provide registers svc under name, replacing any previous entry.
func (s *Services) Provide(name string, svc any) {
	s.byName[name] = svc
}

// Resolve returns the service registered under name.
func (s *Services) Resolve(name string) (any, bool) {
	svc, ok := s.byName[name]
	return svc, ok
}

// Wire implements Wirer.
func (s *Services) Wire(h variable.Handle) error {
	w, ok := h.(Wireable)
	if !ok {
		return nil
	}
	return w.Wire(s)
}

// Lookup resolves name and asserts it to T.
func Lookup[T any](s *Services, name string) (T, error) {
	var zero T
	svc, ok := s.Resolve(name)
	if !ok {
		return zero, fmt.Errorf("service %q not provided", name)
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("service %q is %T, not %T", name, svc, zero)
	}
	return typed, nil
}
