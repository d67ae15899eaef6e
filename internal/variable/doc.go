// Package variable defines reactive variables: named, typed values that are
// recomputed on demand and announce every evaluation.
//
// Every variable exposes two notifications:
//   - OnUpdated fires once per successful Evaluate, whether or not the value moved.
//   - OnChanged fires only when the new value differs from the stored one
//     under the variable's equality contract, and carries the new value.
//
// The stored value is replaced before either notification fires, so a
// subscriber reading LastValue from inside a callback sees the new value.
//
// # Triggers
//
// A variable declares the event types that should cause its re-evaluation
// via UpdateTriggers. A TriggerKey is the identity of a Go type; the engine
// indexes variables by these keys and evaluates them when a polled event of
// exactly that dynamic type arrives. Pointer and value types are different
// keys.
//
// Triggers are read once at registration, so they must not change for the
// lifetime of a variable.
//
// # First evaluation
//
// Change detection compares against the zero value of T on the first call
// (or the value given with WithInitial). A first computed value equal to
// that baseline does not fire OnChanged.
//
// # Composition
//
// Condition compares two variables of the same type and is itself a
// Variable[bool], so conditions nest. Dependencies are explicit: a
// Condition's triggers are its operands' triggers, concatenated.
package variable
