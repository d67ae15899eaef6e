// Package graph turns a compiled graph definition into a running variable
// system.
//
// Build creates every declared variable in dependency order, registers them
// with a fresh System in declaration order, and opens the declared
// channels. Each polled event is recorded on the runtime's event board just
// before it is dispatched, and the board is provided to sampled variables
// as a service.
package graph
