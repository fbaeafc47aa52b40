// Package dag validates an agent dependency graph and partitions it into
// topologically ordered execution layers.
package dag

import "fmt"

// color marks a node's DFS state for cycle detection.
type color int

const (
	white color = iota // unvisited
	grey               // on the current DFS stack
	black              // fully explored
)

// CircularDependencyError names the cycle found during validation.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("dag: circular dependency: %v", e.Cycle)
}

// MissingDependencyError names a dependency referenced but never defined.
type MissingDependencyError struct {
	Agent      string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("dag: agent %q depends on undefined agent %q", e.Agent, e.Dependency)
}

// Plan is the validated, layered execution order: Layers[0] has no
// dependencies, Layers[1] depends only on agents in Layers[0], and so on.
type Plan struct {
	Layers [][]string
}

// Resolve validates the dependency graph and returns its layered plan.
// graph maps an agent name to the names of the agents it depends on.
func Resolve(graph map[string][]string) (*Plan, error) {
	if err := checkMissingDependencies(graph); err != nil {
		return nil, err
	}
	if err := checkCycles(graph); err != nil {
		return nil, err
	}

	layers, err := layer(graph)
	if err != nil {
		return nil, err
	}

	return &Plan{Layers: layers}, nil
}

func checkMissingDependencies(graph map[string][]string) error {
	for agent, deps := range graph {
		for _, dep := range deps {
			if _, ok := graph[dep]; !ok {
				return &MissingDependencyError{Agent: agent, Dependency: dep}
			}
		}
	}
	return nil
}

// checkCycles runs a depth-first search with three-color marking; a back
// edge to a grey node is a cycle.
func checkCycles(graph map[string][]string) error {
	colors := make(map[string]color, len(graph))
	for agent := range graph {
		colors[agent] = white
	}

	var stack []string
	var visit func(agent string) error
	visit = func(agent string) error {
		colors[agent] = grey
		stack = append(stack, agent)

		for _, dep := range graph[agent] {
			switch colors[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case grey:
				cycle := append([]string{}, stack...)
				cycle = append(cycle, dep)
				return &CircularDependencyError{Cycle: cycle}
			}
		}

		colors[agent] = black
		stack = stack[:len(stack)-1]
		return nil
	}

	for agent := range graph {
		if colors[agent] == white {
			if err := visit(agent); err != nil {
				return err
			}
		}
	}
	return nil
}

// layer repeatedly extracts the set of agents whose dependencies are all
// already resolved, emitting each set as one layer (Kahn's algorithm).
func layer(graph map[string][]string) ([][]string, error) {
	remaining := make(map[string][]string, len(graph))
	for agent, deps := range graph {
		remaining[agent] = append([]string{}, deps...)
	}

	var layers [][]string
	resolved := make(map[string]bool, len(graph))

	for len(remaining) > 0 {
		var ready []string
		for agent, deps := range remaining {
			if allResolved(deps, resolved) {
				ready = append(ready, agent)
			}
		}

		if len(ready) == 0 {
			// checkCycles should have already caught this; defensive guard.
			return nil, fmt.Errorf("dag: unable to make progress, %d agents unresolved", len(remaining))
		}

		for _, agent := range ready {
			delete(remaining, agent)
			resolved[agent] = true
		}
		layers = append(layers, sortedCopy(ready))
	}

	return layers, nil
}

func allResolved(deps []string, resolved map[string]bool) bool {
	for _, dep := range deps {
		if !resolved[dep] {
			return false
		}
	}
	return true
}

// sortedCopy returns a deterministically ordered copy so layer membership
// is stable across runs (agent dispatch order within a layer is otherwise
// concurrent and doesn't need determinism, but tests benefit from it).
func sortedCopy(agents []string) []string {
	out := append([]string{}, agents...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
