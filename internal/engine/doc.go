// Package engine implements the variable system: the tick-driven dispatcher
// that turns polled events into variable evaluations.
//
// ARCHITECTURE:
//
// Single-Threaded Tick Loop:
// One goroutine calls System.Tick once per frame. The trigger index and the
// channel list are plain containers with no locking. This ensures:
// - Evaluation order follows registration order
// - A trace of one run is reproducible from the same event batches
// - Variables never observe concurrent evaluation
//
// Tick Flow:
// 1. Every registered channel is polled in registration order
// 2. Each polled event is keyed by its dynamic Go type
// 3. Every variable in that key's bucket is evaluated, in bucket order
// 4. Events whose type has no bucket are dropped
//
// Evaluations are not deduplicated within a tick. A variable reached
// through two events, or directly and as a Condition operand, is evaluated
// each time.
//
// Failure Model:
// By default the first polling or evaluation error aborts the rest of the
// tick and is returned as a *RuntimeError. WithIsolation switches to
// log-and-continue: the remaining channels and variables still run and the
// failures are returned joined at the end of the tick.
//
// Registration:
// AddVariable passes the variable through the configured Wirer exactly once,
// then appends it to one bucket per declared trigger. Triggers are read once;
// the index is never refreshed.
//
// Scheduling:
// Loop is the frame scheduler. Systems declare a preferred Phase; the
// variable system runs in PhaseEarly so values are fresh before the rest of
// the frame reads them.
package engine
