package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/varsys/internal/ir"
)

// CompileSource compiles a CUE graph definition held in memory.
// filename is only used in error positions.
func CompileSource(filename string, src []byte) (*ir.GraphSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return CompileGraph(v)
}

// CompileGraph parses a CUE value into a GraphSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value is the whole graph file:
//
//	variables: {
//	    limit: {kind: "constant", value: 5}
//	    temp:  {kind: "sample", source: "temp"}
//	    hot:   {kind: "condition", op: "gt", lhs: "temp", rhs: "limit"}
//	}
//	channels: {
//	    clock: {kind: "cron", schedules: {minute: "* * * * *"}}
//	}
//
// Declaration order of variables, channels and schedules is preserved.
// Compilation is structural; semantic checks belong to Validate.
func CompileGraph(v cue.Value) (*ir.GraphSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.GraphSpec{
		Variables: []ir.VariableSpec{},
		Channels:  []ir.ChannelSpec{},
	}

	varsVal := v.LookupPath(cue.ParsePath("variables"))
	if !varsVal.Exists() {
		return nil, &CompileError{
			Field:   "variables",
			Message: "variables is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := varsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		vs, err := parseVariable(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Variables = append(spec.Variables, vs)
	}

	chansVal := v.LookupPath(cue.ParsePath("channels"))
	if chansVal.Exists() {
		iter, err := chansVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			cs, err := parseChannel(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			spec.Channels = append(spec.Channels, cs)
		}
	}

	return spec, nil
}

// parseVariable extracts one variable declaration.
func parseVariable(name string, v cue.Value) (ir.VariableSpec, error) {
	vs := ir.VariableSpec{Name: name}
	field := "variables." + name

	kind, err := requiredString(v, "kind", field)
	if err != nil {
		return vs, err
	}
	vs.Kind = kind

	if val := v.LookupPath(cue.ParsePath("value")); val.Exists() {
		vs.Value, err = extractValue(val, field+".value")
		if err != nil {
			return vs, err
		}
	}

	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"source", &vs.Source},
		{"op", &vs.Op},
		{"lhs", &vs.LHS},
		{"rhs", &vs.RHS},
	} {
		if *f.dst, err = optionalString(v, f.name, field); err != nil {
			return vs, err
		}
	}

	if vs.Inputs, err = stringList(v, "inputs", field); err != nil {
		return vs, err
	}
	if vs.Triggers, err = stringList(v, "triggers", field); err != nil {
		return vs, err
	}
	return vs, nil
}

// parseChannel extracts one channel declaration.
func parseChannel(name string, v cue.Value) (ir.ChannelSpec, error) {
	cs := ir.ChannelSpec{Name: name}
	field := "channels." + name

	kind, err := requiredString(v, "kind", field)
	if err != nil {
		return cs, err
	}
	cs.Kind = kind

	if cs.Addr, err = optionalString(v, "addr", field); err != nil {
		return cs, err
	}
	if cs.Topics, err = stringList(v, "topics", field); err != nil {
		return cs, err
	}

	if qosVal := v.LookupPath(cue.ParsePath("qos")); qosVal.Exists() {
		qos, err := qosVal.Int64()
		if err != nil {
			return cs, formatCUEError(err)
		}
		cs.QoS = int(qos)
	}

	if schedVal := v.LookupPath(cue.ParsePath("schedules")); schedVal.Exists() {
		iter, err := schedVal.Fields()
		if err != nil {
			return cs, formatCUEError(err)
		}
		for iter.Next() {
			expr, err := iter.Value().String()
			if err != nil {
				return cs, formatCUEError(err)
			}
			cs.Schedules = append(cs.Schedules, ir.ScheduleSpec{Name: iter.Label(), Expr: expr})
		}
	}
	return cs, nil
}

// extractValue converts a concrete CUE scalar to a graph value.
// Numbers of either CUE kind become float64.
func extractValue(v cue.Value, field string) (any, error) {
	switch v.Kind() {
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return f, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("value must be a concrete number, bool or string, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func requiredString(v cue.Value, name, field string) (string, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return "", &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, name, field string) (string, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value, name, field string) ([]string, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.List()
	if err != nil {
		return nil, &CompileError{
			Field:   field + "." + name,
			Message: "must be a list of strings",
			Pos:     val.Pos(),
		}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
