package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gorhill/cronexpr"

	"github.com/roach88/varsys/internal/ir"
	"github.com/roach88/varsys/internal/variable"
)

// Validation error codes (E200-E229)
const (
	// Variable errors (E200-E209)
	ErrEmptyName         = "E200" // variable or channel name is empty
	ErrDuplicateName     = "E201" // name declared twice
	ErrUnknownKind       = "E202" // unknown variable kind
	ErrMissingField      = "E203" // a field the kind requires is absent
	ErrUnknownReference  = "E204" // operand or input names no variable
	ErrUnknownOperator   = "E205" // condition op is not a comparison
	ErrUnknownTrigger    = "E206" // trigger names no event kind
	ErrTypeMismatch      = "E207" // condition operands are not comparable
	ErrReferenceCycle    = "E208" // variables read each other
	ErrUnexpectedTrigger = "E209" // kind evaluates only through its operands

	// Channel errors (E220-E229)
	ErrUnknownChannelKind = "E220" // unknown channel kind
	ErrChannelConfig      = "E221" // address, topics or schedules missing
	ErrInvalidSchedule    = "E222" // cron expression does not parse
	ErrInvalidQoS         = "E223" // MQTT QoS outside 0-2
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled graph against the semantic rules.
// eventKinds lists the trigger names the runtime can decode.
// Returns all errors found (does not fail-fast).
func Validate(spec *ir.GraphSpec, eventKinds []string) []ValidationError {
	v := &validator{
		spec:   spec,
		kinds:  eventKinds,
		byName: make(map[string]ir.VariableSpec, len(spec.Variables)),
		types:  make(map[string]string),
	}
	v.variables()
	v.references()
	v.channels()
	return v.errs
}

type validator struct {
	spec   *ir.GraphSpec
	kinds  []string
	byName map[string]ir.VariableSpec
	types  map[string]string
	errs   []ValidationError
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) variables() {
	for i, vs := range v.spec.Variables {
		field := fmt.Sprintf("variables[%d]", i)

		// E200
		if strings.TrimSpace(vs.Name) == "" {
			v.add(field+".name", ErrEmptyName, "variable name is required")
		}
		// E201
		if _, dup := v.byName[vs.Name]; dup {
			v.add(field+".name", ErrDuplicateName, "duplicate variable name: %q", vs.Name)
		} else {
			v.byName[vs.Name] = vs
		}

		switch vs.Kind {
		case ir.KindConstant:
			if vs.Value == nil {
				v.add(field+".value", ErrMissingField, "constant %q requires a value", vs.Name)
			} else if ir.ValueType(vs.Value) == "" {
				v.add(field+".value", ErrTypeMismatch, "constant %q has unsupported value type %T", vs.Name, vs.Value)
			}
			v.noTriggers(field, vs)
		case ir.KindSample:
			if vs.Source == "" {
				v.add(field+".source", ErrMissingField, "sample %q requires a source", vs.Name)
			}
			v.noTriggers(field, vs)
		case ir.KindCondition:
			if vs.LHS == "" || vs.RHS == "" {
				v.add(field, ErrMissingField, "condition %q requires lhs and rhs", vs.Name)
			}
			// E205
			if _, err := variable.ParsePredicate(vs.Op); err != nil {
				v.add(field+".op", ErrUnknownOperator, "condition %q: unknown op %q (want one of %s)",
					vs.Name, vs.Op, strings.Join(variable.Operators, ", "))
			}
			v.noTriggers(field, vs)
		case ir.KindCounter:
			if len(vs.Triggers) == 0 {
				v.add(field+".triggers", ErrMissingField, "counter %q requires at least one trigger", vs.Name)
			}
			v.triggers(field, vs)
		case ir.KindScript:
			if strings.TrimSpace(vs.Source) == "" {
				v.add(field+".source", ErrMissingField, "script %q requires a source", vs.Name)
			}
			v.triggers(field, vs)
		default:
			// E202
			v.add(field+".kind", ErrUnknownKind, "unknown variable kind %q (want one of %s)",
				vs.Kind, strings.Join(ir.VariableKinds, ", "))
		}
	}
}

// noTriggers rejects triggers on kinds that derive them from operands or
// have none.
func (v *validator) noTriggers(field string, vs ir.VariableSpec) {
	if len(vs.Triggers) > 0 {
		v.add(field+".triggers", ErrUnexpectedTrigger, "%s %q does not take triggers", vs.Kind, vs.Name)
	}
}

func (v *validator) triggers(field string, vs ir.VariableSpec) {
	for j, trig := range vs.Triggers {
		// E206
		if !slices.Contains(v.kinds, trig) {
			v.add(fmt.Sprintf("%s.triggers[%d]", field, j), ErrUnknownTrigger,
				"unknown event kind %q (want one of %s)", trig, strings.Join(v.kinds, ", "))
		}
	}
}

func (v *validator) references() {
	for i, vs := range v.spec.Variables {
		field := fmt.Sprintf("variables[%d]", i)
		for _, ref := range vs.References() {
			if ref == "" {
				continue
			}
			// E204
			if _, ok := v.byName[ref]; !ok {
				v.add(field, ErrUnknownReference, "%s %q references undeclared variable %q", vs.Kind, vs.Name, ref)
			}
		}
	}

	// E208
	cycles := AnalyzeReferences(v.spec)
	for _, c := range cycles {
		v.add("variables", ErrReferenceCycle, "%s", c.Message)
	}
	if len(cycles) > 0 {
		return
	}

	// E207: typing needs an acyclic graph.
	for i, vs := range v.spec.Variables {
		if vs.Kind != ir.KindCondition {
			continue
		}
		lt, rt := v.typeOf(vs.LHS), v.typeOf(vs.RHS)
		if lt == "" || rt == "" {
			continue // already reported
		}
		field := fmt.Sprintf("variables[%d]", i)
		switch {
		case lt == ir.TypeAny || rt == ir.TypeAny:
			v.add(field, ErrTypeMismatch, "condition %q: script results cannot be compared", vs.Name)
		case lt != rt:
			v.add(field, ErrTypeMismatch, "condition %q compares %s with %s", vs.Name, lt, rt)
		}
	}
}

// typeOf infers the value type of a declared variable, "" if unknown.
func (v *validator) typeOf(name string) string {
	if t, ok := v.types[name]; ok {
		return t
	}
	vs, ok := v.byName[name]
	if !ok {
		return ""
	}
	var t string
	switch vs.Kind {
	case ir.KindConstant:
		t = ir.ValueType(vs.Value)
	case ir.KindSample, ir.KindCounter:
		t = ir.TypeNumber
	case ir.KindCondition:
		t = ir.TypeBool
	case ir.KindScript:
		t = ir.TypeAny
	}
	v.types[name] = t
	return t
}

func (v *validator) channels() {
	seen := make(map[string]bool, len(v.spec.Channels))
	for i, cs := range v.spec.Channels {
		field := fmt.Sprintf("channels[%d]", i)

		if strings.TrimSpace(cs.Name) == "" {
			v.add(field+".name", ErrEmptyName, "channel name is required")
		}
		if seen[cs.Name] {
			v.add(field+".name", ErrDuplicateName, "duplicate channel name: %q", cs.Name)
		}
		seen[cs.Name] = true

		switch cs.Kind {
		case ir.ChannelRedis, ir.ChannelMQTT:
			if cs.Addr == "" {
				v.add(field+".addr", ErrChannelConfig, "%s channel %q requires addr", cs.Kind, cs.Name)
			}
			if len(cs.Topics) == 0 {
				v.add(field+".topics", ErrChannelConfig, "%s channel %q requires at least one topic", cs.Kind, cs.Name)
			}
			if cs.Kind == ir.ChannelMQTT && (cs.QoS < 0 || cs.QoS > 2) {
				v.add(field+".qos", ErrInvalidQoS, "qos must be 0, 1 or 2, got %d", cs.QoS)
			}
		case ir.ChannelWebSocket:
			if !strings.HasPrefix(cs.Addr, "ws://") && !strings.HasPrefix(cs.Addr, "wss://") {
				v.add(field+".addr", ErrChannelConfig, "websocket channel %q requires a ws:// or wss:// addr", cs.Name)
			}
		case ir.ChannelCron:
			if len(cs.Schedules) == 0 {
				v.add(field+".schedules", ErrChannelConfig, "cron channel %q requires at least one schedule", cs.Name)
			}
			for _, s := range cs.Schedules {
				// E222
				if _, err := cronexpr.Parse(s.Expr); err != nil {
					v.add(field+".schedules."+s.Name, ErrInvalidSchedule, "%v", err)
				}
			}
		default:
			v.add(field+".kind", ErrUnknownChannelKind, "unknown channel kind %q (want one of %s)",
				cs.Kind, strings.Join(ir.ChannelKinds, ", "))
		}
	}
}
