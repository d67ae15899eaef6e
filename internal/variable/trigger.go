package variable

import "reflect"

// TriggerKey identifies one runtime event type.
//
// Keys are comparable and only meant to be used as map keys; two keys are
// equal iff they wrap the same Go type.
type TriggerKey struct {
	t reflect.Type
}

// TriggerFor returns the key for event type E.
//
// E should be a concrete type. Events are keyed by their dynamic type at
// dispatch, so a key built from an interface type never matches.
func TriggerFor[E any]() TriggerKey {
	return TriggerKey{t: reflect.TypeFor[E]()}
}

// TriggerForType returns the key for t. A nil t yields the zero key.
func TriggerForType(t reflect.Type) TriggerKey {
	return TriggerKey{t: t}
}

// TriggerOf returns the key for the dynamic type of ev.
// A nil event yields the zero key.
func TriggerOf(ev any) TriggerKey {
	return TriggerKey{t: reflect.TypeOf(ev)}
}

// Type returns the wrapped type, or nil for the zero key.
func (k TriggerKey) Type() reflect.Type {
	return k.t
}

// IsZero reports whether k identifies no type.
func (k TriggerKey) IsZero() bool {
	return k.t == nil
}

func (k TriggerKey) String() string {
	if k.t == nil {
		return "<nil>"
	}
	return k.t.String()
}
