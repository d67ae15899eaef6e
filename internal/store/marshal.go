package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/varsys/internal/event"
	"github.com/roach88/varsys/internal/ir"
)

// marshalValue converts a variable value to canonical JSON TEXT.
// Values that only encoding/json understands (script objects, structs) are
// round-tripped through it first.
func marshalValue(v any) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		data, err = ir.MarshalCanonicalStruct(v)
	}
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses canonical JSON TEXT. Numbers come back as float64,
// the type number variables hold.
func unmarshalValue(data string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// marshalEvent returns the registered kind and canonical payload of ev.
func marshalEvent(reg *event.Registry, ev any) (kind, payload string, err error) {
	kind, ok := reg.KindOf(ev)
	if !ok {
		return "", "", fmt.Errorf("marshal event: unregistered event type %T", ev)
	}
	data, err := ir.MarshalCanonicalStruct(ev)
	if err != nil {
		return "", "", fmt.Errorf("marshal %s event: %w", kind, err)
	}
	return kind, string(data), nil
}
