// Package ir provides the intermediate representation of variable graphs.
//
// A graph definition is compiled from CUE into a GraphSpec: an ordered list
// of variable declarations plus the channels that feed them. The IR is plain
// data with JSON tags so it can be printed by the CLI, hashed, and rebuilt
// into live variables by the graph package.
//
// All other internal packages may import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Declaration order is significant and preserved everywhere
//   - Numbers are float64; graph values are number, bool or string
//   - All JSON tags use snake_case
package ir
