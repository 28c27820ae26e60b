// Package dag builds and topologically orders the dependency graph between
// model definitions, and computes forward closures for change propagation.
package dag

import (
	"container/heap"
	"sort"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
)

// Graph is a directed dependency graph over model names: edges point from a
// model to the models it depends on (its refs).
type Graph struct {
	nodes map[string]bool
	deps  map[string][]string // node -> its dependencies
	rdeps map[string][]string // node -> nodes that depend on it
}

// New constructs an empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]bool),
		deps:  make(map[string][]string),
		rdeps: make(map[string][]string),
	}
}

// AddNode registers a model name with no dependencies, if not already present.
func (g *Graph) AddNode(name string) {
	if !g.nodes[name] {
		g.nodes[name] = true
	}
}

// AddEdge records that `from` depends on `to` (to must be built first).
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.deps[from] = append(g.deps[from], to)
	g.rdeps[to] = append(g.rdeps[to], from)
}

// stringHeap is a min-heap of strings, used to pick the lexicographically
// smallest ready node at each step of Kahn's algorithm so topological order
// is fully deterministic regardless of map iteration order.
type stringHeap []string

func (h stringHeap) Len() int            { return len(h) }
func (h stringHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h stringHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *stringHeap) Push(x interface{}) { *h = append(*h, x.(string)) }
func (h *stringHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TopoSort returns model names in dependency order (a model's dependencies
// always precede it), breaking ties deterministically by canonical name.
// Returns a DagCycle ServiceError naming the unresolved remainder if the
// graph contains a cycle.
func (g *Graph) TopoSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for n := range g.nodes {
		inDegree[n] = len(g.deps[n])
	}

	ready := &stringHeap{}
	for n, deg := range inDegree {
		if deg == 0 {
			heap.Push(ready, n)
		}
	}
	heap.Init(ready)

	order := make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(string)
		order = append(order, n)

		dependents := append([]string(nil), g.rdeps[n]...)
		sort.Strings(dependents)
		for _, dependent := range dependents {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				heap.Push(ready, dependent)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var remaining []string
		for n, deg := range inDegree {
			if deg > 0 {
				remaining = append(remaining, n)
			}
		}
		sort.Strings(remaining)
		return nil, ironerrors.DagCycle(remaining)
	}

	return order, nil
}

// ForwardClosure returns every node reachable by following dependent edges
// forward from the given changed nodes (inclusive), i.e. every model that
// transitively depends on a changed model. The result is sorted.
func (g *Graph) ForwardClosure(changed []string) []string {
	visited := make(map[string]bool)
	var stack []string
	for _, n := range changed {
		if !visited[n] {
			visited[n] = true
			stack = append(stack, n)
		}
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dependent := range g.rdeps[n] {
			if !visited[dependent] {
				visited[dependent] = true
				stack = append(stack, dependent)
			}
		}
	}

	result := make([]string, 0, len(visited))
	for n := range visited {
		result = append(result, n)
	}
	sort.Strings(result)
	return result
}

// Dependencies returns the direct dependencies of a node, sorted.
func (g *Graph) Dependencies(name string) []string {
	deps := append([]string(nil), g.deps[name]...)
	sort.Strings(deps)
	return deps
}

// Nodes returns every node name in the graph, sorted.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
