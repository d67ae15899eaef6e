package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/roach88/varsys/internal/variable"
)

// Envelope is the wire shape of an event.
type Envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type decoder func(payload json.RawMessage) (any, error)

type entry struct {
	typ    reflect.Type
	decode decoder
}

// Registry maps kind names to event types.
//
// Thread-safety: safe for concurrent use. Transports decode from their
// receive goroutines.
type Registry struct {
	mu     sync.RWMutex
	byKind map[string]entry
	byType map[reflect.Type]string
}

// NewRegistry returns a registry holding the built-in kinds.
func NewRegistry() *Registry {
	r := &Registry{
		byKind: make(map[string]entry),
		byType: make(map[reflect.Type]string),
	}
	Register[Sample](r, KindSample)
	Register[Signal](r, KindSignal)
	Register[CronFired](r, KindCron)
	return r
}

// Register binds kind to event type E, replacing any earlier binding for
// either the kind or the type. Decoded events are values of E, never
// pointers, so they match TriggerFor[E].
//
// Register panics if E is an interface type: events are dispatched by
// their dynamic type, so an interface kind could never trigger anything.
func Register[E any](r *Registry, kind string) {
	typ := reflect.TypeFor[E]()
	if typ.Kind() == reflect.Interface {
		panic(fmt.Sprintf("event: kind %q registered with interface type %s", kind, typ))
	}
	dec := func(payload json.RawMessage) (any, error) {
		var ev E
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &ev); err != nil {
				return nil, err
			}
		}
		return ev, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byKind[kind]; ok {
		delete(r.byType, old.typ)
	}
	if oldKind, ok := r.byType[typ]; ok {
		delete(r.byKind, oldKind)
	}
	r.byKind[kind] = entry{typ: typ, decode: dec}
	r.byType[typ] = kind
}

// Decode builds an event of the type registered for kind from a JSON
// payload. An empty payload yields the zero event.
func (r *Registry) Decode(kind string, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	e, ok := r.byKind[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	ev, err := e.decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s event: %w", kind, err)
	}
	return ev, nil
}

// DecodeEnvelope parses an Envelope and decodes its payload.
func (r *Registry) DecodeEnvelope(data []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("parse envelope: missing kind")
	}
	return r.Decode(env.Kind, env.Payload)
}

// Encode wraps ev in an Envelope under its registered kind.
func (r *Registry) Encode(ev any) ([]byte, error) {
	kind, ok := r.KindOf(ev)
	if !ok {
		return nil, fmt.Errorf("unregistered event type %T", ev)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", kind, err)
	}
	return json.Marshal(Envelope{Kind: kind, Payload: payload})
}

// KindOf returns the kind name registered for the dynamic type of ev.
func (r *Registry) KindOf(ev any) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.byType[reflect.TypeOf(ev)]
	return kind, ok
}

// Trigger returns the trigger key for kind.
func (r *Registry) Trigger(kind string) (variable.TriggerKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byKind[kind]
	if !ok {
		return variable.TriggerKey{}, false
	}
	return variable.TriggerForType(e.typ), true
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.byKind))
	for k := range r.byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
