package signature

import (
	"errors"
	"testing"
	"time"

	"github.com/matzehuels/provgraph/pkg/core/graph"
	"github.com/matzehuels/provgraph/pkg/observability"
)

type fakeSource struct {
	g       *graph.Graph[string, string]
	modules map[string]Content
	conns   map[string]Content
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		g:       graph.New[string, string](),
		modules: make(map[string]Content),
		conns:   make(map[string]Content),
	}
}

func (f *fakeSource) module(id string, content ...any) {
	f.g.AddVertex(id)
	f.modules[id] = content
}

func (f *fakeSource) connect(from, to, id, port string) {
	f.g.AddEdge(from, to, id)
	f.conns[id] = Content{port}
}

func (f *fakeSource) EdgesTo(v string) []graph.Arc[string, string] { return f.g.EdgesTo(v) }

func (f *fakeSource) ModuleContent(v string) (Content, error) {
	c, ok := f.modules[v]
	if !ok {
		return nil, graph.ErrVertexNotFound
	}
	return c, nil
}

func (f *fakeSource) ConnectionContent(e string) (Content, error) {
	c, ok := f.conns[e]
	if !ok {
		return nil, graph.ErrEdgeNotFound
	}
	return c, nil
}

func (f *fakeSource) ConnectionEndpoints(e string) (string, string, error) {
	for edge := range f.g.AllEdges() {
		if edge.ID == e {
			return edge.From, edge.To, nil
		}
	}
	return "", "", graph.ErrEdgeNotFound
}

// diamond builds reader → {filter, stats} → plot with the given id prefix.
func diamond(prefix string) *fakeSource {
	f := newFakeSource()
	f.module(prefix+"reader", "io.Reader", "path", "/data.csv")
	f.module(prefix+"filter", "basic.Filter", "expr", "x > 0")
	f.module(prefix+"stats", "basic.Stats")
	f.module(prefix+"plot", "viz.Plot", "title", "result")
	f.connect(prefix+"reader", prefix+"filter", prefix+"c1", "table")
	f.connect(prefix+"reader", prefix+"stats", prefix+"c2", "table")
	f.connect(prefix+"filter", prefix+"plot", prefix+"c3", "series")
	f.connect(prefix+"stats", prefix+"plot", prefix+"c4", "summary")
	return f
}

func mustSub(t *testing.T, c *Cache[string, string], v string) Signature {
	t.Helper()
	s, err := c.SubpipelineSignature(v)
	if err != nil {
		t.Fatalf("SubpipelineSignature(%s): %v", v, err)
	}
	return s
}

func TestStructurallyEquivalentPipelines(t *testing.T) {
	a := New[string, string](diamond("a."))
	b := New[string, string](diamond("b."))

	if sa, sb := mustSub(t, a, "a.plot"), mustSub(t, b, "b.plot"); sa != sb {
		t.Errorf("sub-pipeline signatures differ across ids: %s vs %s", sa.Short(), sb.Short())
	}
	ca, err := a.ConnectionSignature("a.c3")
	if err != nil {
		t.Fatalf("ConnectionSignature: %v", err)
	}
	cb, _ := b.ConnectionSignature("b.c3")
	if ca != cb {
		t.Errorf("connection signatures differ across ids")
	}
}

func TestSubpipelineOrderIndependent(t *testing.T) {
	build := func(order []int) *fakeSource {
		f := newFakeSource()
		f.module("x", "src.X")
		f.module("y", "src.Y")
		f.module("sink", "out.Sink")
		edges := [][3]string{{"x", "sink", "left"}, {"y", "sink", "right"}}
		for _, i := range order {
			e := edges[i]
			f.connect(e[0], e[1], e[2]+"-id", e[2])
		}
		return f
	}
	s1 := mustSub(t, New[string, string](build([]int{0, 1})), "sink")
	s2 := mustSub(t, New[string, string](build([]int{1, 0})), "sink")
	if s1 != s2 {
		t.Errorf("connection order changed the signature: %s vs %s", s1.Short(), s2.Short())
	}
}

func TestModuleSignatureIgnoresPosition(t *testing.T) {
	f := diamond("")
	f.module("lonely", "basic.Stats")
	c := New[string, string](f)

	m1, _ := c.ModuleSignature("stats")
	m2, _ := c.ModuleSignature("lonely")
	if m1 != m2 {
		t.Error("identical content should give identical module signatures")
	}
	if mustSub(t, c, "stats") == mustSub(t, c, "lonely") {
		t.Error("different upstream should give different sub-pipeline signatures")
	}

	f.module("other", "basic.Stats", "extra")
	m3, _ := c.ModuleSignature("other")
	if m3 == m1 {
		t.Error("different content should give a different module signature")
	}
}

func TestChangePropagatesDownstream(t *testing.T) {
	f := diamond("")
	c := New[string, string](f)

	before := mustSub(t, c, "plot")
	beforeStats := mustSub(t, c, "stats")
	conn, _ := c.ConnectionSignature("c3")

	f.modules["filter"] = Content{"basic.Filter", "expr", "x > 1"}
	c.ChangeModule("filter", "filter")

	if _, err := c.SubpipelineIDFromSignature(before); !errors.Is(err, ErrSignatureNotFound) {
		t.Errorf("stale downstream signature still resolvable: %v", err)
	}
	if _, err := c.ConnectionIDFromSignature(conn); !errors.Is(err, ErrSignatureNotFound) {
		t.Errorf("stale connection signature still resolvable: %v", err)
	}
	if got, err := c.SubpipelineIDFromSignature(beforeStats); err != nil || got != "stats" {
		t.Errorf("unrelated branch was purged: %q, %v", got, err)
	}

	after := mustSub(t, c, "plot")
	if after == before {
		t.Error("parameter change upstream did not change the downstream signature")
	}
	if got := mustSub(t, c, "stats"); got != beforeStats {
		t.Error("sibling branch signature changed")
	}
}

func TestDeleteConnection(t *testing.T) {
	f := newFakeSource()
	f.module("a", "A")
	f.module("b", "B")
	f.connect("a", "b", "ab", "out")
	c := New[string, string](f)

	before := mustSub(t, c, "b")
	if _, err := c.ConnectionSignature("ab"); err != nil {
		t.Fatalf("ConnectionSignature: %v", err)
	}

	c.DeleteConnection("ab")
	if err := f.g.DeleteEdgeByID("a", "b", "ab"); err != nil {
		t.Fatal(err)
	}
	delete(f.conns, "ab")

	if st := c.Stats(); st.Connections != 0 || st.Subpipelines != 1 {
		t.Errorf("Stats after delete = %+v, want 0 connections and only a's sub-pipeline", st)
	}
	if mustSub(t, c, "b") == before {
		t.Error("removing the only input did not change the signature")
	}
}

func TestReverseLookup(t *testing.T) {
	f := diamond("")
	c := New[string, string](f)

	s, err := Hash(LayerModule, "io.Reader", "path", "/data.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ModuleIDFromSignature(s); !errors.Is(err, ErrSignatureNotFound) {
		t.Errorf("lookup before compute = %v, want ErrSignatureNotFound", err)
	}

	got, _ := c.ModuleSignature("reader")
	if got != s {
		t.Fatalf("ModuleSignature = %s, want %s", got.Short(), s.Short())
	}
	if id, err := c.ModuleIDFromSignature(s); err != nil || id != "reader" {
		t.Errorf("ModuleIDFromSignature = %q, %v", id, err)
	}

	c.DeleteModule("reader")
	if _, err := c.ModuleIDFromSignature(s); !errors.Is(err, ErrSignatureNotFound) {
		t.Errorf("lookup after delete = %v, want ErrSignatureNotFound", err)
	}
}

func TestInverseKeepsNewerClaimant(t *testing.T) {
	f := newFakeSource()
	f.module("m1", "same")
	f.module("m2", "same")
	c := New[string, string](f)

	s, _ := c.ModuleSignature("m1")
	c.ModuleSignature("m2")

	c.DeleteModule("m1")
	if id, err := c.ModuleIDFromSignature(s); err != nil || id != "m2" {
		t.Errorf("deleting m1 broke the inverse entry owned by m2: %q, %v", id, err)
	}
	c.DeleteModule("m2")
	if _, err := c.ModuleIDFromSignature(s); !errors.Is(err, ErrSignatureNotFound) {
		t.Errorf("lookup after deleting both = %v", err)
	}
}

func TestInverseFallsBackToOlderClaimant(t *testing.T) {
	f := newFakeSource()
	f.module("m1", "same")
	f.module("m2", "same")
	f.module("m3", "same")
	c := New[string, string](f)

	s, _ := c.ModuleSignature("m1")
	c.ModuleSignature("m2")
	c.ModuleSignature("m3")

	steps := []struct {
		del  string
		want string
	}{
		{del: "m3", want: "m2"},
		{del: "m2", want: "m1"},
	}
	for _, st := range steps {
		c.DeleteModule(st.del)
		if id, err := c.ModuleIDFromSignature(s); err != nil || id != st.want {
			t.Errorf("after deleting %s: ModuleIDFromSignature = %q, %v, want %q", st.del, id, err, st.want)
		}
	}
	c.DeleteModule("m1")
	if _, err := c.ModuleIDFromSignature(s); !errors.Is(err, ErrSignatureNotFound) {
		t.Errorf("lookup after deleting all = %v", err)
	}
}

func TestInverseTracksSubpipelineClaimants(t *testing.T) {
	f := newFakeSource()
	f.module("a", "same")
	f.module("b", "same")
	c := New[string, string](f)

	s, _ := c.SubpipelineSignature("a")
	c.SubpipelineSignature("b")
	c.DeleteModule("b")
	if id, err := c.SubpipelineIDFromSignature(s); err != nil || id != "a" {
		t.Errorf("SubpipelineIDFromSignature after deleting b = %q, %v, want a", id, err)
	}
}

func TestSubpipelineCycle(t *testing.T) {
	f := newFakeSource()
	f.module("a", "A")
	f.module("b", "B")
	f.connect("a", "b", "ab", "x")
	f.connect("b", "a", "ba", "y")
	c := New[string, string](f)

	if _, err := c.SubpipelineSignature("a"); !errors.Is(err, graph.ErrCycleDetected) {
		t.Errorf("SubpipelineSignature on a cycle = %v, want ErrCycleDetected", err)
	}
}

func TestMissingModule(t *testing.T) {
	c := New[string, string](newFakeSource())
	if _, err := c.ModuleSignature("ghost"); !errors.Is(err, graph.ErrVertexNotFound) {
		t.Errorf("ModuleSignature(ghost) = %v, want ErrVertexNotFound", err)
	}
}

func TestComputeAndRefresh(t *testing.T) {
	f := diamond("")
	c := New[string, string](f)

	vertices := f.g.Vertices()
	edges := []string{"c1", "c2", "c3", "c4"}
	if err := c.ComputeSignatures(vertices, edges); err != nil {
		t.Fatalf("ComputeSignatures: %v", err)
	}
	want := Stats{Modules: 4, Subpipelines: 4, Connections: 4}
	if got := c.Stats(); got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}

	plot := mustSub(t, c, "plot")
	f.modules["reader"] = Content{"io.Reader", "path", "/other.csv"}
	if err := c.RefreshSignatures(vertices, edges); err != nil {
		t.Fatalf("RefreshSignatures: %v", err)
	}
	if mustSub(t, c, "plot") == plot {
		t.Error("RefreshSignatures kept a stale value")
	}
}

type countingHooks struct {
	observability.NoopSignatureHooks
	computes map[string]int
	hits     map[string]int
	purges   map[string]int
}

func (h *countingHooks) OnCompute(layer string, _ time.Duration) { h.computes[layer]++ }
func (h *countingHooks) OnHit(layer string)                      { h.hits[layer]++ }
func (h *countingHooks) OnPurge(layer string, n int)             { h.purges[layer] += n }

func TestHooks(t *testing.T) {
	h := &countingHooks{computes: map[string]int{}, hits: map[string]int{}, purges: map[string]int{}}
	observability.SetSignatureHooks(h)
	t.Cleanup(observability.Reset)

	f := newFakeSource()
	f.module("a", "A")
	f.module("b", "B")
	f.module("c", "C")
	f.connect("a", "b", "ab", "x")
	f.connect("b", "c", "bc", "x")
	c := New[string, string](f)

	mustSub(t, c, "c")
	mustSub(t, c, "c")
	if h.computes[LayerSubpipeline] != 3 || h.hits[LayerSubpipeline] != 1 {
		t.Errorf("subpipeline computes=%d hits=%d, want 3 and 1",
			h.computes[LayerSubpipeline], h.hits[LayerSubpipeline])
	}
	c.ConnectionSignature("ab")
	c.ConnectionSignature("bc")

	c.DeleteModule("a")
	if h.purges[LayerModule] != 1 || h.purges[LayerSubpipeline] != 3 || h.purges[LayerConnection] != 2 {
		t.Errorf("purges = %v, want module:1 subpipeline:3 connection:2", h.purges)
	}
}

func TestInvalidateSubpipelineKeepsModule(t *testing.T) {
	f := newFakeSource()
	f.module("a", "A")
	f.module("b", "B")
	c := New[string, string](f)

	mustSub(t, c, "a")
	before := mustSub(t, c, "b")
	f.connect("a", "b", "ab", "x")
	c.InvalidateSubpipeline("b")

	if st := c.Stats(); st.Modules != 2 || st.Subpipelines != 1 {
		t.Errorf("Stats = %+v, want both module signatures and only a's sub-pipeline", st)
	}
	if mustSub(t, c, "b") == before {
		t.Error("new input did not change the sub-pipeline signature")
	}
}
