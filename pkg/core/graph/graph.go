package graph

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

var (
	// ErrVertexNotFound is returned when an operation names a vertex that is
	// not part of the graph.
	ErrVertexNotFound = errors.New("vertex not found")

	// ErrVertexAlreadyExists is returned by [Graph.RenameVertex] when the new
	// identifier is already in use.
	ErrVertexAlreadyExists = errors.New("vertex already exists")

	// ErrEdgeNotFound is returned when no edge matches the given endpoints
	// (and identifier, where one is given).
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrNoPathFound is returned by [Graph.ClosestVertex] when none of the
	// targets is reachable from the start vertex.
	ErrNoPathFound = errors.New("no path found")

	// ErrCycleDetected is the sentinel wrapped by [CycleError]. Use errors.Is
	// to test for it without knowing the vertex type.
	ErrCycleDetected = errors.New("cycle detected")
)

// CycleError reports the back edge that closed a cycle during a depth-first
// search requested with RaiseIfCyclic.
type CycleError[V comparable] struct {
	From V
	To   V
}

// Error implements the error interface.
func (e *CycleError[V]) Error() string {
	return fmt.Sprintf("%v: back edge %v -> %v", ErrCycleDetected, e.From, e.To)
}

// Unwrap returns ErrCycleDetected.
func (e *CycleError[V]) Unwrap() error { return ErrCycleDetected }

// NoID is the edge identifier type for graphs that do not track edges
// individually, such as class hierarchies.
type NoID = struct{}

// Arc is one entry of an adjacency list: the vertex at the other end of an
// edge and the edge's identifier.
type Arc[V, E comparable] struct {
	Vertex V
	ID     E
}

// Edge is a fully qualified directed edge.
type Edge[V, E comparable] struct {
	From V
	To   V
	ID   E
}

// Graph is a mutable directed multigraph with caller-chosen vertex and edge
// identifiers. Parallel edges and self loops are allowed; parallel edges are
// told apart by their identifiers.
//
// Every vertex keeps two ordered lists: the edges leaving it and the edges
// entering it. Both lists are in insertion order and every mutation preserves
// that order, which keeps traversals (and anything derived from them, such as
// topological orders and pipeline signatures) deterministic.
//
// The zero value is not usable - use New. Graph is not safe for concurrent use.
type Graph[V, E comparable] struct {
	adjacency[V, E]
}

// New creates an empty graph.
func New[V, E comparable]() *Graph[V, E] {
	return &Graph[V, E]{adjacency: newAdjacency[V, E]()}
}

// AddVertex inserts v with empty adjacency lists. It is a no-op if v is
// already present.
func (g *Graph[V, E]) AddVertex(v V) {
	if g.HasVertex(v) {
		return
	}
	g.order = append(g.order, v)
	g.out[v] = nil
	g.in[v] = nil
}

// AddEdge appends the edge from→to with the given identifier, adding either
// endpoint that is not yet present. Adding the same (from, to, id) twice
// creates two distinct entries.
func (g *Graph[V, E]) AddEdge(from, to V, id E) {
	g.AddVertex(from)
	g.AddVertex(to)
	g.out[from] = append(g.out[from], Arc[V, E]{Vertex: to, ID: id})
	g.in[to] = append(g.in[to], Arc[V, E]{Vertex: from, ID: id})
}

// DeleteVertex removes v and every edge incident to it.
func (g *Graph[V, E]) DeleteVertex(v V) error {
	if !g.HasVertex(v) {
		return fmt.Errorf("delete %v: %w", v, ErrVertexNotFound)
	}

	outgoing := slices.Clone(g.out[v])
	incoming := slices.Clone(g.in[v])
	for _, a := range outgoing {
		g.in[a.Vertex] = removeArc(g.in[a.Vertex], Arc[V, E]{Vertex: v, ID: a.ID})
	}
	for _, a := range incoming {
		g.out[a.Vertex] = removeArc(g.out[a.Vertex], Arc[V, E]{Vertex: v, ID: a.ID})
	}

	delete(g.out, v)
	delete(g.in, v)
	if i := slices.Index(g.order, v); i >= 0 {
		g.order = slices.Delete(g.order, i, i+1)
	}
	return nil
}

// DeleteEdge removes the first edge from→to in insertion order, whatever its
// identifier.
func (g *Graph[V, E]) DeleteEdge(from, to V) error {
	if !g.HasVertex(from) {
		return fmt.Errorf("delete edge %v -> %v: %w", from, to, ErrVertexNotFound)
	}
	i := slices.IndexFunc(g.out[from], func(a Arc[V, E]) bool { return a.Vertex == to })
	if i < 0 {
		return fmt.Errorf("delete edge %v -> %v: %w", from, to, ErrEdgeNotFound)
	}
	return g.deleteEdgeAt(from, i)
}

// DeleteEdgeByID removes the first edge from→to carrying id.
func (g *Graph[V, E]) DeleteEdgeByID(from, to V, id E) error {
	if !g.HasVertex(from) {
		return fmt.Errorf("delete edge %v -> %v: %w", from, to, ErrVertexNotFound)
	}
	i := slices.Index(g.out[from], Arc[V, E]{Vertex: to, ID: id})
	if i < 0 {
		return fmt.Errorf("delete edge %v -> %v (%v): %w", from, to, id, ErrEdgeNotFound)
	}
	return g.deleteEdgeAt(from, i)
}

func (g *Graph[V, E]) deleteEdgeAt(from V, i int) error {
	a := g.out[from][i]
	g.out[from] = slices.Delete(g.out[from], i, i+1)
	g.in[a.Vertex] = removeArc(g.in[a.Vertex], Arc[V, E]{Vertex: from, ID: a.ID})
	return nil
}

// ChangeEdge retargets the first edge from→oldTo so that it points at newTo.
// The edge keeps its identifier and its position among from's outgoing edges.
func (g *Graph[V, E]) ChangeEdge(from, oldTo, newTo V) error {
	if !g.HasVertex(from) {
		return fmt.Errorf("change edge %v -> %v: %w", from, oldTo, ErrVertexNotFound)
	}
	i := slices.IndexFunc(g.out[from], func(a Arc[V, E]) bool { return a.Vertex == oldTo })
	if i < 0 {
		return fmt.Errorf("change edge %v -> %v: %w", from, oldTo, ErrEdgeNotFound)
	}
	id := g.out[from][i].ID
	return g.ChangeEdgeByID(from, oldTo, newTo, id, id)
}

// ChangeEdgeByID retargets the edge from→oldTo identified by oldID so that it
// points at newTo and carries newID. The edge is relabelled in place in from's
// outgoing list; newTo must already be a vertex of the graph.
func (g *Graph[V, E]) ChangeEdgeByID(from, oldTo, newTo V, oldID, newID E) error {
	if !g.HasVertex(from) {
		return fmt.Errorf("change edge %v -> %v: %w", from, oldTo, ErrVertexNotFound)
	}
	if !g.HasVertex(newTo) {
		return fmt.Errorf("change edge %v -> %v: target %v: %w", from, oldTo, newTo, ErrVertexNotFound)
	}
	i := slices.Index(g.out[from], Arc[V, E]{Vertex: oldTo, ID: oldID})
	if i < 0 {
		return fmt.Errorf("change edge %v -> %v (%v): %w", from, oldTo, oldID, ErrEdgeNotFound)
	}

	g.out[from][i] = Arc[V, E]{Vertex: newTo, ID: newID}
	g.in[oldTo] = removeArc(g.in[oldTo], Arc[V, E]{Vertex: from, ID: oldID})
	g.in[newTo] = append(g.in[newTo], Arc[V, E]{Vertex: from, ID: newID})
	return nil
}

// RenameVertex gives vertex oldID the identifier newID. Every incident edge
// is retargeted in place, so edge identifiers and the positions of edges in
// the other endpoints' adjacency lists are preserved.
func (g *Graph[V, E]) RenameVertex(oldID, newID V) error {
	if !g.HasVertex(oldID) {
		return fmt.Errorf("rename %v: %w", oldID, ErrVertexNotFound)
	}
	if g.HasVertex(newID) {
		return fmt.Errorf("rename %v to %v: %w", oldID, newID, ErrVertexAlreadyExists)
	}

	// Edges leaving oldID: relabel the source recorded at each target.
	for _, a := range g.out[oldID] {
		list := g.in[a.Vertex]
		if j := slices.Index(list, Arc[V, E]{Vertex: oldID, ID: a.ID}); j >= 0 {
			list[j].Vertex = newID
		}
	}
	g.out[newID] = g.out[oldID]
	g.in[newID] = nil
	delete(g.out, oldID)
	g.order[slices.Index(g.order, oldID)] = newID

	// Edges entering oldID: replay ChangeEdgeByID over a snapshot, the live
	// list shrinks while we go.
	incoming := slices.Clone(g.in[oldID])
	for _, a := range incoming {
		if err := g.ChangeEdgeByID(a.Vertex, oldID, newID, a.ID, a.ID); err != nil {
			return err
		}
	}
	delete(g.in, oldID)
	return nil
}

// Clone returns a copy of the graph. Adjacency lists are copied; vertex and
// edge identifier values are copied by assignment.
func (g *Graph[V, E]) Clone() *Graph[V, E] {
	return &Graph[V, E]{adjacency: g.adjacency.clone()}
}

// Inverse returns a copy of the graph with every edge reversed.
func (g *Graph[V, E]) Inverse() *Graph[V, E] {
	c := g.adjacency.clone()
	c.out, c.in = c.in, c.out
	return &Graph[V, E]{adjacency: c}
}

// Equal reports whether g and other have the same vertex set and the same
// edges, identifiers included. Vertex identities must match literally; this
// is not an isomorphism test.
func (g *Graph[V, E]) Equal(other *Graph[V, E]) bool {
	if other == nil || g.VertexCount() != other.VertexCount() {
		return false
	}
	for _, v := range g.order {
		if !other.HasVertex(v) {
			return false
		}
		if !sameArcs(g.out[v], other.out[v]) {
			return false
		}
	}
	return true
}

func sameArcs[V, E comparable](a, b []Arc[V, E]) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[Arc[V, E]]int, len(a))
	for _, x := range a {
		counts[x]++
	}
	for _, x := range b {
		if counts[x] == 0 {
			return false
		}
		counts[x]--
	}
	return true
}

// MapVertices returns a new graph with every vertex passed through vertexMap
// and every edge identifier through edgeMap. Identifiers missing from a map
// (or a nil map) are kept unchanged. Vertex insertion order and adjacency
// order follow g.
func MapVertices[V, E comparable](g *Graph[V, E], vertexMap map[V]V, edgeMap map[E]E) *Graph[V, E] {
	mv := func(v V) V {
		if m, ok := vertexMap[v]; ok {
			return m
		}
		return v
	}
	me := func(e E) E {
		if m, ok := edgeMap[e]; ok {
			return m
		}
		return e
	}

	out := New[V, E]()
	for _, v := range g.order {
		out.AddVertex(mv(v))
	}
	for _, v := range g.order {
		for _, a := range g.out[v] {
			out.AddEdge(mv(v), mv(a.Vertex), me(a.ID))
		}
	}
	return out
}

func removeArc[V, E comparable](list []Arc[V, E], a Arc[V, E]) []Arc[V, E] {
	if i := slices.Index(list, a); i >= 0 {
		return slices.Delete(list, i, i+1)
	}
	return list
}

// adjacency holds the dual index shared by Graph and View. Its methods are
// read-only; mutation lives on Graph.
type adjacency[V, E comparable] struct {
	order []V
	out   map[V][]Arc[V, E]
	in    map[V][]Arc[V, E]
}

func newAdjacency[V, E comparable]() adjacency[V, E] {
	return adjacency[V, E]{
		out: make(map[V][]Arc[V, E]),
		in:  make(map[V][]Arc[V, E]),
	}
}

func (a adjacency[V, E]) clone() adjacency[V, E] {
	c := adjacency[V, E]{
		order: slices.Clone(a.order),
		out:   make(map[V][]Arc[V, E], len(a.out)),
		in:    make(map[V][]Arc[V, E], len(a.in)),
	}
	for v, l := range a.out {
		c.out[v] = slices.Clone(l)
	}
	for v, l := range a.in {
		c.in[v] = slices.Clone(l)
	}
	return c
}

// HasVertex reports whether v is in the graph.
func (a adjacency[V, E]) HasVertex(v V) bool {
	_, ok := a.out[v]
	return ok
}

// Vertices returns all vertices in insertion order.
func (a adjacency[V, E]) Vertices() []V { return slices.Clone(a.order) }

// VertexCount returns the number of vertices.
func (a adjacency[V, E]) VertexCount() int { return len(a.order) }

// EdgeCount returns the number of edges.
func (a adjacency[V, E]) EdgeCount() int {
	n := 0
	for _, l := range a.out {
		n += len(l)
	}
	return n
}

// OutDegree returns the number of edges leaving v, or 0 if v is absent.
func (a adjacency[V, E]) OutDegree(v V) int { return len(a.out[v]) }

// InDegree returns the number of edges entering v, or 0 if v is absent.
func (a adjacency[V, E]) InDegree(v V) int { return len(a.in[v]) }

// EdgesFrom returns a copy of the edges leaving v in insertion order.
func (a adjacency[V, E]) EdgesFrom(v V) []Arc[V, E] { return slices.Clone(a.out[v]) }

// EdgesTo returns a copy of the edges entering v in insertion order. Each
// arc's Vertex is the edge's source.
func (a adjacency[V, E]) EdgesTo(v V) []Arc[V, E] { return slices.Clone(a.in[v]) }

// GetEdge returns the identifier of the first edge from→to.
func (a adjacency[V, E]) GetEdge(from, to V) (E, bool) {
	for _, x := range a.out[from] {
		if x.Vertex == to {
			return x.ID, true
		}
	}
	var zero E
	return zero, false
}

// HasEdge reports whether at least one edge from→to exists.
func (a adjacency[V, E]) HasEdge(from, to V) bool {
	_, ok := a.GetEdge(from, to)
	return ok
}

// Sources returns the vertices with no incoming edges, in insertion order.
func (a adjacency[V, E]) Sources() []V {
	var out []V
	for _, v := range a.order {
		if len(a.in[v]) == 0 {
			out = append(out, v)
		}
	}
	return out
}

// Sinks returns the vertices with no outgoing edges, in insertion order.
func (a adjacency[V, E]) Sinks() []V {
	var out []V
	for _, v := range a.order {
		if len(a.out[v]) == 0 {
			out = append(out, v)
		}
	}
	return out
}

// Edges returns every edge, grouped by source vertex in insertion order.
func (a adjacency[V, E]) Edges() []Edge[V, E] {
	return slices.Collect(a.AllEdges())
}

// AllEdges iterates over every edge in the same order as Edges.
func (a adjacency[V, E]) AllEdges() iter.Seq[Edge[V, E]] {
	return func(yield func(Edge[V, E]) bool) {
		for _, v := range a.order {
			for _, x := range a.out[v] {
				if !yield(Edge[V, E]{From: v, To: x.Vertex, ID: x.ID}) {
					return
				}
			}
		}
	}
}
