package graph

import (
	"errors"
	"fmt"
)

// Subgraph returns the subgraph induced by vertices: the listed vertices and
// every edge whose endpoints are both listed. Edge identifiers are preserved.
func (g *Graph[V, E]) Subgraph(vertices []V) (*Graph[V, E], error) {
	sub := New[V, E]()
	for _, v := range vertices {
		if !g.HasVertex(v) {
			return nil, fmt.Errorf("subgraph: %v: %w", v, ErrVertexNotFound)
		}
		sub.AddVertex(v)
	}
	for _, v := range sub.order {
		for _, a := range g.out[v] {
			if sub.HasVertex(a.Vertex) {
				sub.AddEdge(v, a.Vertex, a.ID)
			}
		}
	}
	return sub, nil
}

// ConnectionsToSubgraph returns the edges of g that enter sub from outside.
// sub is expected to be a vertex-induced subgraph of g.
func (g *Graph[V, E]) ConnectionsToSubgraph(sub *Graph[V, E]) []Edge[V, E] {
	var cut []Edge[V, E]
	for _, v := range sub.order {
		for _, a := range g.in[v] {
			if !sub.HasVertex(a.Vertex) {
				cut = append(cut, Edge[V, E]{From: a.Vertex, To: v, ID: a.ID})
			}
		}
	}
	return cut
}

// ConnectionsFromSubgraph returns the edges of g that leave sub.
// sub is expected to be a vertex-induced subgraph of g.
func (g *Graph[V, E]) ConnectionsFromSubgraph(sub *Graph[V, E]) []Edge[V, E] {
	var cut []Edge[V, E]
	for _, v := range sub.order {
		for _, a := range g.out[v] {
			if !sub.HasVertex(a.Vertex) {
				cut = append(cut, Edge[V, E]{From: v, To: a.Vertex, ID: a.ID})
			}
		}
	}
	return cut
}

// TopologicallyContractible reports whether collapsing sub into a single
// vertex, with every cut edge rewired to that vertex, leaves g acyclic. This
// is the test for whether a selection of pipeline modules may be grouped into
// one abstraction.
func (g *Graph[V, E]) TopologicallyContractible(sub *Graph[V, E]) bool {
	// Vertices outside sub are numbered from 1; 0 is the merged vertex.
	index := make(map[V]int, len(g.order))
	c := New[int, E]()
	c.AddVertex(0)
	next := 1
	for _, v := range g.order {
		if sub.HasVertex(v) {
			index[v] = 0
			continue
		}
		index[v] = next
		c.AddVertex(next)
		next++
	}
	for _, v := range g.order {
		for _, a := range g.out[v] {
			if sub.HasVertex(v) && sub.HasVertex(a.Vertex) {
				continue
			}
			c.AddEdge(index[v], index[a.Vertex], a.ID)
		}
	}

	_, err := c.TopologicalSort()
	return !errors.Is(err, ErrCycleDetected)
}
