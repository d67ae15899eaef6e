// Package event defines the event kinds that flow through channels and the
// registry that decodes them from the wire.
//
// Inside the engine an event is any Go value; the variable system keys on
// its dynamic type. On the wire an event is an Envelope: a kind name plus a
// JSON payload. The Registry maps kind names to Go types in both directions
// so transports can decode envelopes into the typed values variables
// trigger on.
//
// Built-in kinds:
//
//	sample  Sample{Source, Value}   a numeric reading from a named source
//	signal  Signal{Name}            a bare named notification
//	cron    CronFired{Name, At}     a schedule firing
//
// The Board keeps the most recent event per type and source. The runtime
// records each event on its Board just before dispatching it, which is how
// sampled variables see the reading that triggered them.
package event
