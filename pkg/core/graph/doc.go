// Package graph provides a generic directed multigraph used to represent
// pipelines and module class hierarchies.
//
// # Overview
//
// A [Graph] is parameterised by its vertex identifier type V and its edge
// identifier type E. Both are opaque to the package; they only need to be
// comparable. Graphs that never address edges individually use [NoID]:
//
//	classes := graph.New[string, graph.NoID]()
//	classes.AddEdge("basic:Integer", "basic:Constant", graph.NoID{})
//
// Pipelines use real identifiers so that parallel connections between the same
// two modules stay distinct:
//
//	g := graph.New[string, string]()
//	g.AddEdge("reader", "filter", "c1")
//	g.AddEdge("reader", "filter", "c2")
//
// # Dual Index
//
// Every vertex owns an ordered list of outgoing edges and an ordered list of
// incoming edges. The two lists mirror each other: (to, e) is in the outgoing
// list of v exactly when (v, e) is in the incoming list of to. All mutations
// keep that invariant and keep insertion order. [Graph.ChangeEdge] and
// [Graph.RenameVertex] relabel edges in place rather than deleting and
// re-adding them, so the position of an edge never moves.
//
// # Traversal
//
// [Graph.BFS] and [Graph.ClosestVertex] answer reachability questions.
// [Graph.DFS] is the textbook white/gray/black search with discovery and
// finish times; back edges are either recorded or, with RaiseIfCyclic,
// reported as a [CycleError]. [Graph.TopologicalSort] orders vertices by
// descending finish time.
//
// # Views
//
// [Graph.InverseView] and [Graph.UndirectedView] return a [View], a read-only
// type with the query methods of Graph and no mutators. The inverse view
// shares storage with the graph and becomes stale after the graph changes.
// [Graph.Inverse] returns an independent reversed copy instead.
//
// # Contraction
//
// [Graph.TopologicallyContractible] decides whether a vertex-induced subgraph
// can be collapsed into one vertex without creating a cycle. Pipelines use it
// to decide whether a selection of modules may become a single grouped module.
//
// # Concurrency
//
// Graph is not safe for concurrent use. A single owner (usually one pipeline)
// is expected to mutate it.
package graph
