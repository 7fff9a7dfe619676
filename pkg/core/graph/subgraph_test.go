package graph

import (
	"errors"
	"slices"
	"testing"
)

func TestSubgraph(t *testing.T) {
	g := chain(5)
	g.AddEdge(1, 3, 7)

	sub, err := g.Subgraph([]int{1, 2, 3})
	if err != nil {
		t.Fatalf("Subgraph: %v", err)
	}
	want := []Edge[int, int]{{1, 2, 101}, {1, 3, 7}, {2, 3, 102}}
	if got := sub.Edges(); !slices.Equal(got, want) {
		t.Errorf("Subgraph edges = %v, want %v", got, want)
	}

	if _, err := g.Subgraph([]int{1, 9}); !errors.Is(err, ErrVertexNotFound) {
		t.Errorf("Subgraph with missing vertex = %v, want ErrVertexNotFound", err)
	}
}

func TestCutEdges(t *testing.T) {
	g := chain(5)
	sub, _ := g.Subgraph([]int{1, 2})

	in := g.ConnectionsToSubgraph(sub)
	if want := []Edge[int, int]{{0, 1, 100}}; !slices.Equal(in, want) {
		t.Errorf("ConnectionsToSubgraph = %v, want %v", in, want)
	}
	out := g.ConnectionsFromSubgraph(sub)
	if want := []Edge[int, int]{{2, 3, 102}}; !slices.Equal(out, want) {
		t.Errorf("ConnectionsFromSubgraph = %v, want %v", out, want)
	}
}

func TestTopologicallyContractible(t *testing.T) {
	tests := []struct {
		name string
		sub  []int
		want bool
	}{
		{name: "contiguous", sub: []int{1, 2}, want: true},
		{name: "gap on only path", sub: []int{1, 3}, want: false},
		{name: "single vertex", sub: []int{4}, want: true},
		{name: "everything", sub: []int{0, 1, 2, 3, 4}, want: true},
	}
	g := chain(5)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := g.Subgraph(tt.sub)
			if err != nil {
				t.Fatalf("Subgraph: %v", err)
			}
			if got := g.TopologicallyContractible(sub); got != tt.want {
				t.Errorf("TopologicallyContractible(%v) = %v, want %v", tt.sub, got, tt.want)
			}
		})
	}
}

func TestContractibleWithBypass(t *testing.T) {
	// 0→1→2 plus a bypass 0→2: grouping {0, 2} would sandwich 1.
	g := New[int, string]()
	g.AddEdge(0, 1, "a")
	g.AddEdge(1, 2, "b")
	g.AddEdge(0, 2, "c")

	sub, _ := g.Subgraph([]int{0, 2})
	if g.TopologicallyContractible(sub) {
		t.Error("{0, 2} should not be contractible around 1")
	}
	sub, _ = g.Subgraph([]int{0, 1})
	if !g.TopologicallyContractible(sub) {
		t.Error("{0, 1} should be contractible")
	}
}

func TestContractibleStringVertices(t *testing.T) {
	// read→filter→plot with a side branch filter→stats→plot.
	g := New[string, string]()
	g.AddEdge("read", "filter", "c1")
	g.AddEdge("filter", "plot", "c2")
	g.AddEdge("filter", "stats", "c3")
	g.AddEdge("stats", "plot", "c4")

	tests := []struct {
		sub  []string
		want bool
	}{
		{sub: []string{"read", "filter"}, want: true},
		{sub: []string{"filter", "plot"}, want: false},
		{sub: []string{"filter", "stats", "plot"}, want: true},
		{sub: []string{"read"}, want: true},
		{sub: []string{"read", "plot"}, want: false},
	}
	for _, tt := range tests {
		sub, err := g.Subgraph(tt.sub)
		if err != nil {
			t.Fatalf("Subgraph(%v): %v", tt.sub, err)
		}
		if got := g.TopologicallyContractible(sub); got != tt.want {
			t.Errorf("TopologicallyContractible(%v) = %v, want %v", tt.sub, got, tt.want)
		}
	}
}
