package graph

import "slices"

// View is a read-only window onto a graph. It offers the query and traversal
// methods of Graph but no way to mutate it.
//
// A view returned by [Graph.InverseView] aliases the graph's adjacency lists:
// it is only valid until the next mutation of the graph it came from.
type View[V, E comparable] struct {
	adjacency[V, E]
}

// InverseView returns a view with every edge reversed, sharing storage with g.
func (g *Graph[V, E]) InverseView() View[V, E] {
	return View[V, E]{adjacency: adjacency[V, E]{
		order: g.order,
		out:   g.in,
		in:    g.out,
	}}
}

// UndirectedView returns a view in which every vertex's neighbours are the
// union of its outgoing and incoming edges. The union lists are built when
// the view is created, so the view does not observe later mutations of g.
func (g *Graph[V, E]) UndirectedView() View[V, E] {
	both := make(map[V][]Arc[V, E], len(g.out))
	for _, v := range g.order {
		both[v] = slices.Concat(g.out[v], g.in[v])
	}
	return View[V, E]{adjacency: adjacency[V, E]{
		order: slices.Clone(g.order),
		out:   both,
		in:    both,
	}}
}

// View returns a read-only view of g that shares its storage.
func (g *Graph[V, E]) View() View[V, E] {
	return View[V, E]{adjacency: g.adjacency}
}

// Clone copies the viewed graph into a new, independent Graph.
func (w View[V, E]) Clone() *Graph[V, E] {
	return &Graph[V, E]{adjacency: w.adjacency.clone()}
}

// WeakComponents returns the weakly connected components of g, each in
// breadth-first order from its earliest-inserted vertex.
func (g *Graph[V, E]) WeakComponents() [][]V {
	u := g.UndirectedView()
	seen := make(map[V]bool, len(g.order))
	var comps [][]V
	for _, v := range g.order {
		if seen[v] {
			continue
		}
		comp := []V{v}
		seen[v] = true
		reach, _ := u.Reachable(v)
		for _, w := range reach {
			if !seen[w] {
				seen[w] = true
				comp = append(comp, w)
			}
		}
		comps = append(comps, comp)
	}
	return comps
}
