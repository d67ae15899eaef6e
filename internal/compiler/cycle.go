package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/varsys/internal/ir"
)

// ReferenceCycle is a set of variables that read each other.
//
// Unlike trigger fan-out, a reference cycle can never be evaluated: the
// first evaluation of any member would recurse forever.
type ReferenceCycle struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeReferences finds reference cycles between variables.
//
// The algorithm:
//  1. Build variable → referenced variable edges (condition operands, script inputs)
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-reference as a cycle
//
// References to undeclared names are ignored here; Validate reports them.
// An acyclic graph returns an empty list.
func AnalyzeReferences(spec *ir.GraphSpec) []ReferenceCycle {
	g := buildReferenceGraph(spec)

	cycles := []ReferenceCycle{}
	for _, scc := range tarjanSCC(g) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], g)) {
			cycles = append(cycles, sccToCycle(scc, g))
		}
	}
	return cycles
}

// DependencyOrder returns variable names ordered so that every variable
// comes after the variables it references. Independent variables keep
// declaration order. Fails on the first reference cycle.
func DependencyOrder(spec *ir.GraphSpec) ([]string, error) {
	if cycles := AnalyzeReferences(spec); len(cycles) > 0 {
		return nil, fmt.Errorf("%s", cycles[0].Message)
	}

	g := buildReferenceGraph(spec)
	order := make([]string, 0, len(g.nodes))
	for _, scc := range tarjanSCC(g) {
		order = append(order, scc...)
	}
	return order, nil
}

// referenceGraph maps variable name → referenced names, with nodes kept in
// declaration order so traversal is deterministic.
type referenceGraph struct {
	nodes []string
	edges map[string][]string
}

func buildReferenceGraph(spec *ir.GraphSpec) referenceGraph {
	g := referenceGraph{edges: make(map[string][]string)}
	declared := make(map[string]bool, len(spec.Variables))
	for _, v := range spec.Variables {
		if !declared[v.Name] {
			declared[v.Name] = true
			g.nodes = append(g.nodes, v.Name)
		}
	}
	for _, v := range spec.Variables {
		for _, ref := range v.References() {
			if declared[ref] {
				g.edges[v.Name] = append(g.edges[v.Name], ref)
			}
		}
	}
	return g
}

func hasSelfLoop(node string, g referenceGraph) bool {
	for _, neighbor := range g.edges[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// SCCs are emitted in reverse topological order of the edges: every
// component comes after the components it references.
func tarjanSCC(g referenceGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// sccToCycle converts an SCC to a ReferenceCycle with a traversal path.
func sccToCycle(scc []string, g referenceGraph) ReferenceCycle {
	if len(scc) == 1 {
		name := scc[0]
		return ReferenceCycle{
			Path:    []string{name, name},
			Message: fmt.Sprintf("variable references itself: %s → %s", name, name),
		}
	}

	path := reconstructCyclePath(scc, g)
	return ReferenceCycle{
		Path:    path,
		Message: fmt.Sprintf("reference cycle: %s", strings.Join(path, " → ")),
	}
}

// reconstructCyclePath follows edges inside the SCC from its root
// until it returns there.
func reconstructCyclePath(scc []string, g referenceGraph) []string {
	inSCC := make(map[string]bool, len(scc))
	for _, node := range scc {
		inSCC[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range g.edges[current] {
			if inSCC[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
