package graph

import (
	"fmt"
	"maps"
	"slices"
)

// BFS runs a breadth-first search from start and returns the parent of every
// vertex reached. The start vertex itself and unreachable vertices are absent
// from the result.
func (a adjacency[V, E]) BFS(start V) (map[V]V, error) {
	if !a.HasVertex(start) {
		return nil, fmt.Errorf("bfs from %v: %w", start, ErrVertexNotFound)
	}
	parent := make(map[V]V)
	seen := map[V]bool{start: true}
	queue := []V{start}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, x := range a.out[v] {
			if seen[x.Vertex] {
				continue
			}
			seen[x.Vertex] = true
			parent[x.Vertex] = v
			queue = append(queue, x.Vertex)
		}
	}
	return parent, nil
}

// Reachable returns every vertex reachable from start (excluding start unless
// it lies on a cycle) in breadth-first discovery order.
func (a adjacency[V, E]) Reachable(start V) ([]V, error) {
	if !a.HasVertex(start) {
		return nil, fmt.Errorf("reachable from %v: %w", start, ErrVertexNotFound)
	}
	var order []V
	seen := make(map[V]bool)
	queue := []V{start}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, x := range a.out[v] {
			if seen[x.Vertex] {
				continue
			}
			seen[x.Vertex] = true
			order = append(order, x.Vertex)
			queue = append(queue, x.Vertex)
		}
	}
	return order, nil
}

// ClosestVertex returns the target with the smallest hop count from start.
// Ties go to the target discovered first. If start is itself a target it is
// returned immediately.
func (a adjacency[V, E]) ClosestVertex(start V, targets []V) (V, error) {
	var zero V
	if !a.HasVertex(start) {
		return zero, fmt.Errorf("closest vertex from %v: %w", start, ErrVertexNotFound)
	}
	want := make(map[V]bool, len(targets))
	for _, t := range targets {
		want[t] = true
	}
	if want[start] {
		return start, nil
	}

	seen := map[V]bool{start: true}
	queue := []V{start}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, x := range a.out[v] {
			if seen[x.Vertex] {
				continue
			}
			if want[x.Vertex] {
				return x.Vertex, nil
			}
			seen[x.Vertex] = true
			queue = append(queue, x.Vertex)
		}
	}
	return zero, fmt.Errorf("closest vertex from %v: %w", start, ErrNoPathFound)
}

// DFSOptions configures [Graph.DFS].
type DFSOptions[V comparable] struct {
	// Vertices restricts the roots of the search. Nil means every vertex in
	// insertion order.
	Vertices []V

	// RaiseIfCyclic aborts the search with a *CycleError on the first back
	// edge. Otherwise back edges are recorded in DFSResult.BackEdges.
	RaiseIfCyclic bool

	// OnEnter and OnLeave fire exactly once per visited vertex, in pre-order
	// and post-order respectively.
	OnEnter func(V)
	OnLeave func(V)
}

// DFSResult holds the timestamps and tree produced by a depth-first search.
// Discovery and finish times share one clock, as in the textbook algorithm.
type DFSResult[V comparable] struct {
	Discovery map[V]int
	Finish    map[V]int
	Parent    map[V]V
	BackEdges [][2]V
}

// DFS runs a white/gray/black depth-first search. Children are visited in
// adjacency insertion order and roots in the order given by opts.Vertices
// (or insertion order), so the result is deterministic.
func (a adjacency[V, E]) DFS(opts DFSOptions[V]) (DFSResult[V], error) {
	const (
		white = iota
		gray
		black
	)

	res := DFSResult[V]{
		Discovery: make(map[V]int),
		Finish:    make(map[V]int),
		Parent:    make(map[V]V),
	}
	roots := opts.Vertices
	if roots == nil {
		roots = a.order
	}
	for _, v := range roots {
		if !a.HasVertex(v) {
			return res, fmt.Errorf("dfs from %v: %w", v, ErrVertexNotFound)
		}
	}

	color := make(map[V]int, len(a.order))
	clock := 0

	var visit func(v V) error
	visit = func(v V) error {
		color[v] = gray
		res.Discovery[v] = clock
		clock++
		if opts.OnEnter != nil {
			opts.OnEnter(v)
		}
		for _, x := range a.out[v] {
			switch color[x.Vertex] {
			case white:
				res.Parent[x.Vertex] = v
				if err := visit(x.Vertex); err != nil {
					return err
				}
			case gray:
				if opts.RaiseIfCyclic {
					return &CycleError[V]{From: v, To: x.Vertex}
				}
				res.BackEdges = append(res.BackEdges, [2]V{v, x.Vertex})
			}
		}
		color[v] = black
		res.Finish[v] = clock
		clock++
		if opts.OnLeave != nil {
			opts.OnLeave(v)
		}
		return nil
	}

	for _, v := range roots {
		if color[v] != white {
			continue
		}
		if err := visit(v); err != nil {
			return res, err
		}
	}
	return res, nil
}

// TopologicalSort orders the vertices reachable from the given roots (every
// vertex if none are given) so that each edge points forward. It returns a
// *CycleError if the reachable part of the graph is cyclic.
func (a adjacency[V, E]) TopologicalSort(vertices ...V) ([]V, error) {
	opts := DFSOptions[V]{RaiseIfCyclic: true}
	if len(vertices) > 0 {
		opts.Vertices = vertices
	}
	res, err := a.DFS(opts)
	if err != nil {
		return nil, err
	}
	order := slices.Collect(maps.Keys(res.Finish))
	slices.SortFunc(order, func(x, y V) int { return res.Finish[y] - res.Finish[x] })
	return order, nil
}

// IsAcyclic reports whether the graph contains no directed cycle.
func (a adjacency[V, E]) IsAcyclic() bool {
	_, err := a.DFS(DFSOptions[V]{RaiseIfCyclic: true})
	return err == nil
}
