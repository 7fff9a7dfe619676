package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/provgraph/pkg/cache"
	perrors "github.com/matzehuels/provgraph/pkg/errors"
	"github.com/matzehuels/provgraph/pkg/pipeline"
	"github.com/matzehuels/provgraph/pkg/registry"
)

const demoHCL = `
package "demo" {
  version = "1.2.0"

  type "Integer" { parents = ["Constant"] }
  type "Data" {}
  type "Table" { parents = ["Data"] }

  module "Reader" {
    input "path" { type = "Integer" }
    output "table" { type = "Table" }
  }

  module "Plot" {
    input "data" { type = "Data" }
    input "width" { type = "Integer" }
    output "image" { type = "Data" }
  }
}
`

var quiet = log.New(io.Discard)

func loadRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "demo.hcl"), []byte(demoHCL), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := registry.Load(quiet, dir)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func newServer(t *testing.T) *Server {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(Config{Registry: loadRegistry(t), Cache: c, Logger: quiet})
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	case []byte:
		r = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) perrors.Code {
	t.Helper()
	var body errorBody
	decodeInto(t, rec, &body)
	return body.Error.Code
}

// readPlot builds reader -> plot with the given id prefix.
func readPlot(prefix string) pipelineBody {
	id := func(s string) pipeline.ModuleID { return pipeline.ModuleID(prefix + s) }
	return pipelineBody{
		Modules: []pipeline.Module{
			{ID: id("read"), Name: "Reader", Package: "demo", Version: "1.0.0"},
			{ID: id("plot"), Name: "Plot", Package: "demo", Functions: []pipeline.Function{
				{Name: "width", Params: []pipeline.Parameter{{Value: "640"}}},
			}},
		},
		Connections: []pipeline.Connection{{
			ID:          pipeline.ConnectionID(prefix + "c"),
			Source:      pipeline.PortRef{Module: id("read"), Port: "table"},
			Destination: pipeline.PortRef{Module: id("plot"), Port: "data"},
		}},
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	decodeInto(t, rec, &body)
	if body["status"] != "ok" || body["packages"] != float64(1) {
		t.Errorf("body = %v", body)
	}
}

func TestSignatures(t *testing.T) {
	s := newServer(t)

	var a, b pipeline.Report
	rec := do(t, s, http.MethodPost, "/v1/signatures", readPlot("a-"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	decodeInto(t, rec, &a)
	decodeInto(t, do(t, s, http.MethodPost, "/v1/signatures", readPlot("b-")), &b)

	if a.Pipeline == "" || a.Pipeline != b.Pipeline {
		t.Errorf("pipeline signatures %q and %q should match", a.Pipeline, b.Pipeline)
	}
	if len(a.Modules) != 2 || a.Modules[0].ID != "a-read" || a.Modules[1].ID != "a-plot" {
		t.Fatalf("modules = %+v, want topological order", a.Modules)
	}
	if a.Modules[1].Subpipeline != b.Modules[1].Subpipeline {
		t.Error("sub-pipeline signatures should not depend on ids")
	}
	if len(a.Connections) != 1 || a.Connections[0].Signature != b.Connections[0].Signature {
		t.Errorf("connections = %+v / %+v", a.Connections, b.Connections)
	}
}

func TestSignaturesErrors(t *testing.T) {
	s := newServer(t)

	unknown := readPlot("")
	unknown.Modules[0].Name = "Ghost"

	mismatch := readPlot("")
	mismatch.Connections[0].Destination.Port = "width"

	cycle := pipelineBody{
		Modules: []pipeline.Module{{ID: "p1", Name: "Plot"}, {ID: "p2", Name: "Plot"}},
		Connections: []pipeline.Connection{
			{ID: "c1", Source: pipeline.PortRef{Module: "p1", Port: "image"}, Destination: pipeline.PortRef{Module: "p2", Port: "data"}},
			{ID: "c2", Source: pipeline.PortRef{Module: "p2", Port: "image"}, Destination: pipeline.PortRef{Module: "p1", Port: "data"}},
		},
	}

	tests := []struct {
		name   string
		body   any
		status int
		code   perrors.Code
	}{
		{"malformed", `{"modules": [`, http.StatusBadRequest, perrors.ErrCodeInvalidInput},
		{"unknown field", `{"modules": [{"id": "a", "name": "Plot"}], "extra": 1}`, http.StatusBadRequest, perrors.ErrCodeInvalidInput},
		{"no modules", `{"modules": []}`, http.StatusBadRequest, perrors.ErrCodeInvalidInput},
		{"unknown class", unknown, http.StatusNotFound, perrors.ErrCodeClassNotFound},
		{"port mismatch", mismatch, http.StatusUnprocessableEntity, perrors.ErrCodePortMismatch},
		{"cycle", cycle, http.StatusUnprocessableEntity, perrors.ErrCodeCycleDetected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/v1/signatures", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Errorf("code = %s, want %s", code, tt.code)
			}
		})
	}
}

func TestPlanAndResults(t *testing.T) {
	s := newServer(t)

	var sigs pipeline.Report
	decodeInto(t, do(t, s, http.MethodPost, "/v1/signatures", readPlot("")), &sigs)
	plotSig := string(sigs.Modules[1].Subpipeline)

	rec := do(t, s, http.MethodGet, "/v1/results/"+plotSig, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET before PUT = %d", rec.Code)
	}

	rec = do(t, s, http.MethodPut, "/v1/results/"+plotSig+"?ttl=1h", []byte("png bytes"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("PUT = %d: %s", rec.Code, rec.Body)
	}
	rec = do(t, s, http.MethodGet, "/v1/results/"+plotSig, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "png bytes" {
		t.Errorf("GET = %d %q", rec.Code, rec.Body)
	}

	// Results are keyed by content, so renamed modules still hit.
	var plan pipeline.Plan
	rec = do(t, s, http.MethodPost, "/v1/plan", readPlot("other-"))
	if rec.Code != http.StatusOK {
		t.Fatalf("plan = %d: %s", rec.Code, rec.Body)
	}
	decodeInto(t, rec, &plan)
	if plan.Stats.Hits != 1 || plan.Stats.Misses != 1 {
		t.Errorf("stats = %+v", plan.Stats)
	}
	if !plan.Steps[1].Hit || plan.Steps[1].Module != "other-plot" {
		t.Errorf("steps = %+v", plan.Steps)
	}

	for _, bad := range []string{"nothex", strings.Repeat("A", 64)} {
		if rec := do(t, s, http.MethodGet, "/v1/results/"+bad, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", bad, rec.Code)
		}
	}
	if rec := do(t, s, http.MethodPut, "/v1/results/"+plotSig+"?ttl=soon", []byte("x")); rec.Code != http.StatusBadRequest {
		t.Errorf("bad ttl = %d, want 400", rec.Code)
	}
}

func TestCheck(t *testing.T) {
	s := newServer(t)
	body := readPlot("")
	body.Modules[0].Version = "2.0.0"

	var resp checkResponse
	rec := do(t, s, http.MethodPost, "/v1/check", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	decodeInto(t, rec, &resp)
	if resp.Valid || len(resp.Problems) != 1 || resp.Problems[0].Module != "read" {
		t.Errorf("check = %+v", resp)
	}
	if resp.Components != 1 {
		t.Errorf("components = %d", resp.Components)
	}
}

func TestContractible(t *testing.T) {
	s := newServer(t)
	body := pipelineBody{
		Modules: []pipeline.Module{{ID: "a", Name: "Plot"}, {ID: "b", Name: "Plot"}, {ID: "c", Name: "Plot"}},
		Connections: []pipeline.Connection{
			{ID: "ab", Source: pipeline.PortRef{Module: "a", Port: "image"}, Destination: pipeline.PortRef{Module: "b", Port: "data"}},
			{ID: "bc", Source: pipeline.PortRef{Module: "b", Port: "image"}, Destination: pipeline.PortRef{Module: "c", Port: "data"}},
		},
	}
	tests := []struct {
		modules []pipeline.ModuleID
		want    bool
	}{
		{[]pipeline.ModuleID{"a", "b"}, true},
		{[]pipeline.ModuleID{"a", "c"}, false},
	}
	for _, tt := range tests {
		var resp map[string]bool
		rec := do(t, s, http.MethodPost, "/v1/contractible", contractRequest{Pipeline: body, Modules: tt.modules})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		decodeInto(t, rec, &resp)
		if resp["contractible"] != tt.want {
			t.Errorf("contractible(%v) = %v, want %v", tt.modules, resp["contractible"], tt.want)
		}
	}

	rec := do(t, s, http.MethodPost, "/v1/contractible", contractRequest{Pipeline: body, Modules: []pipeline.ModuleID{"a", "zz"}})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown module = %d, want 404", rec.Code)
	}
}

func TestConnectable(t *testing.T) {
	s := newServer(t)
	tests := []struct {
		src, dst portQuery
		want     bool
	}{
		{portQuery{"Reader", "table"}, portQuery{"Plot", "data"}, true},
		{portQuery{"Plot", "image"}, portQuery{"Plot", "width"}, false},
	}
	for _, tt := range tests {
		var resp connectableResponse
		rec := do(t, s, http.MethodPost, "/v1/connectable", connectableRequest{Source: tt.src, Destination: tt.dst})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		decodeInto(t, rec, &resp)
		if resp.Connectable != tt.want {
			t.Errorf("%v -> %v = %v, want %v", tt.src, tt.dst, resp.Connectable, tt.want)
		}
	}

	rec := do(t, s, http.MethodPost, "/v1/connectable", connectableRequest{Source: portQuery{"Reader", "nope"}, Destination: portQuery{"Plot", "data"}})
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != perrors.ErrCodePortNotFound {
		t.Errorf("unknown port = %d", rec.Code)
	}
	rec = do(t, s, http.MethodPost, "/v1/connectable", `{"source": {"class": "Reader"}, "destination": {"class": "Plot", "port": "data"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing port = %d, want 400", rec.Code)
	}
}

func TestClassesAndPorts(t *testing.T) {
	s := newServer(t)

	var classes []classInfo
	decodeInto(t, do(t, s, http.MethodGet, "/v1/classes", nil), &classes)
	var plot *classInfo
	for i := range classes {
		if classes[i].Name == "Plot" {
			plot = &classes[i]
		}
	}
	if plot == nil || !plot.Module || plot.Package != "demo" {
		t.Fatalf("Plot = %+v", plot)
	}

	var resp portsResponse
	rec := do(t, s, http.MethodGet, "/v1/classes/Plot/ports", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	decodeInto(t, rec, &resp)
	if len(resp.Destinations) != 2 || len(resp.Sources) != 1 {
		t.Errorf("ports = %+v", resp)
	}
	if len(resp.Methods) != 1 || resp.Methods[0].Name != "width" {
		t.Errorf("methods = %+v", resp.Methods)
	}
	if resp.PortSet == "" {
		t.Error("missing port set signature")
	}

	if rec := do(t, s, http.MethodGet, "/v1/classes/Ghost/ports", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown class = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/v1/classes/bad%20name/ports", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid class name = %d", rec.Code)
	}
}

func TestRenderCachesDiagrams(t *testing.T) {
	s := newServer(t)
	req := renderRequest{Pipeline: readPlot(""), Format: "dot"}

	first := do(t, s, http.MethodPost, "/v1/render", req)
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", first.Code, first.Body)
	}
	if got := first.Header().Get("X-Cache"); got != "miss" {
		t.Errorf("first X-Cache = %q", got)
	}
	if !strings.Contains(first.Body.String(), `"read" -> "plot"`) {
		t.Errorf("body = %s", first.Body)
	}
	if got := do(t, s, http.MethodPost, "/v1/render", req).Header().Get("X-Cache"); got != "hit" {
		t.Errorf("second X-Cache = %q", got)
	}

	req.Format = "gif"
	if rec := do(t, s, http.MethodPost, "/v1/render", req); rec.Code != http.StatusBadRequest {
		t.Errorf("bad format = %d", rec.Code)
	}
}

func TestWithoutRegistry(t *testing.T) {
	s := New(Config{Logger: quiet})

	if rec := do(t, s, http.MethodGet, "/v1/classes", nil); rec.Code != http.StatusNotImplemented {
		t.Errorf("classes = %d, want 501", rec.Code)
	}
	// Without a registry any class is accepted and ports are unchecked.
	body := readPlot("")
	body.Modules[0].Name = "Anything"
	if rec := do(t, s, http.MethodPost, "/v1/signatures", body); rec.Code != http.StatusOK {
		t.Errorf("signatures = %d: %s", rec.Code, rec.Body)
	}

	s.SetRegistry(loadRegistry(t))
	if rec := do(t, s, http.MethodGet, "/v1/classes", nil); rec.Code != http.StatusOK {
		t.Errorf("classes after SetRegistry = %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "# metrics\n")
	})
	s := New(Config{Logger: quiet, Metrics: metrics})
	rec := do(t, s, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "# metrics\n" {
		t.Errorf("GET /metrics = %d %q", rec.Code, rec.Body)
	}
	if rec := do(t, New(Config{Logger: quiet}), http.MethodGet, "/metrics", nil); rec.Code != http.StatusNotFound {
		t.Errorf("metrics without handler = %d, want 404", rec.Code)
	}
}
