package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	perrors "github.com/matzehuels/provgraph/pkg/errors"
	"github.com/matzehuels/provgraph/pkg/pipeline"
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
    input "width" {
      type    = "Integer"
      default = "640"
    }
    output "image" { type = "Data" }
  }
}
`

const demoPipeline = `{
  "modules": [
    {"id": "read", "name": "Reader", "package": "demo", "version": "1.0.0"},
    {"id": "plot", "name": "Plot", "package": "demo",
     "functions": [{"name": "width", "params": [{"value": "800"}]}]}
  ],
  "connections": [
    {"id": "c1", "source": {"module": "read", "port": "table"},
     "destination": {"module": "plot", "port": "data"}}
  ]
}`

// workspace points the XDG directories at a temp dir and writes a registry
// and a pipeline into it.
func workspace(t *testing.T) (dir, registryDir, pipelinePath string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))

	registryDir = filepath.Join(dir, "registry")
	if err := os.MkdirAll(registryDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(registryDir, "demo.hcl"), demoHCL)
	pipelinePath = filepath.Join(dir, "pipeline.json")
	writeFile(t, pipelinePath, demoPipeline)
	return dir, registryDir, pipelinePath
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// execute runs one command line on a fresh CLI and returns what it wrote to
// its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := New(io.Discard, LogInfo).RootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func wantCode(t *testing.T, err error, code perrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("err = nil, want %s", code)
	}
	if got := perrors.GetCode(err); got != code {
		t.Fatalf("code = %s, want %s (%v)", got, code, err)
	}
}

func report(t *testing.T, args ...string) pipeline.Report {
	t.Helper()
	out, err := execute(t, append([]string{"signatures", "--json"}, args...)...)
	if err != nil {
		t.Fatal(err)
	}
	var r pipeline.Report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return r
}

func TestSignaturesCommand(t *testing.T) {
	_, reg, p := workspace(t)

	r := report(t, "-r", reg, p)
	if len(r.Modules) != 2 || len(r.Connections) != 1 {
		t.Fatalf("report = %+v", r)
	}
	if r.Modules[0].ID != "read" {
		t.Errorf("first module = %s, want read", r.Modules[0].ID)
	}
	if len(r.Pipeline) != 64 {
		t.Errorf("pipeline signature = %q", r.Pipeline)
	}

	// Without a registry ports are not checked but signatures are the same.
	if bare := report(t, p); bare.Pipeline != r.Pipeline {
		t.Errorf("signature depends on the registry: %s vs %s", bare.Pipeline, r.Pipeline)
	}

	out, err := execute(t, "signatures", "-r", reg, p)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"read", "Reader", "plot", "c1", r.Modules[0].Module.Short()} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestSignaturesErrors(t *testing.T) {
	dir, reg, _ := workspace(t)

	_, err := execute(t, "signatures", filepath.Join(dir, "missing.json"))
	wantCode(t, err, perrors.ErrCodeFileNotFound)

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"modules": [`)
	_, err = execute(t, "signatures", bad)
	wantCode(t, err, perrors.ErrCodeInvalidFormat)

	unknown := filepath.Join(dir, "unknown.json")
	writeFile(t, unknown, `{"modules": [{"id": "x", "name": "Nope"}]}`)
	_, err = execute(t, "signatures", "-r", reg, unknown)
	wantCode(t, err, perrors.ErrCodeClassNotFound)
}

func TestCheckCommand(t *testing.T) {
	dir, reg, p := workspace(t)

	if _, err := execute(t, "check", "-r", reg, p); err != nil {
		t.Fatalf("check: %v", err)
	}

	_, err := execute(t, "check", p)
	wantCode(t, err, perrors.ErrCodeInvalidInput)

	tooNew := filepath.Join(dir, "too-new.json")
	writeFile(t, tooNew, strings.Replace(demoPipeline, `"version": "1.0.0"`, `"version": "2.0.0"`, 1))
	_, err = execute(t, "check", "-r", reg, tooNew)
	wantCode(t, err, perrors.ErrCodeInvalidPipeline)
}

func TestPlanAndResult(t *testing.T) {
	dir, reg, p := workspace(t)

	plan := func() pipeline.Plan {
		t.Helper()
		out, err := execute(t, "plan", "--json", "-r", reg, p)
		if err != nil {
			t.Fatal(err)
		}
		var pl pipeline.Plan
		if err := json.Unmarshal([]byte(out), &pl); err != nil {
			t.Fatalf("decode %q: %v", out, err)
		}
		return pl
	}

	before := plan()
	if before.Stats.Modules != 2 || before.Stats.Hits != 0 {
		t.Fatalf("stats = %+v", before.Stats)
	}
	sig := string(before.Steps[0].Signature)

	data := filepath.Join(dir, "table.csv")
	writeFile(t, data, "a,b\n1,2\n")
	if _, err := execute(t, "result", "put", sig, data); err != nil {
		t.Fatalf("put: %v", err)
	}

	after := plan()
	if !after.Steps[0].Hit || after.Steps[1].Hit || after.Stats.Hits != 1 {
		t.Errorf("steps after put = %+v", after.Steps)
	}

	out, err := execute(t, "result", "get", sig)
	if err != nil {
		t.Fatal(err)
	}
	if out != "a,b\n1,2\n" {
		t.Errorf("get = %q", out)
	}

	_, err = execute(t, "result", "get", sig, "--port", "table")
	wantCode(t, err, perrors.ErrCodeSignatureNotFound)

	_, err = execute(t, "result", "get", "abc")
	wantCode(t, err, perrors.ErrCodeInvalidInput)

	// --cache none never remembers anything.
	if _, err := execute(t, "--cache", "none", "result", "put", sig, data); err != nil {
		t.Fatal(err)
	}
	if out, err := execute(t, "--cache", "none", "plan", "--json", p); err != nil || strings.Contains(out, `"hit": true`) {
		t.Errorf("plan with --cache none = %q, %v", out, err)
	}
}

func TestContractCommand(t *testing.T) {
	_, reg, p := workspace(t)

	if _, err := execute(t, "contract", "-r", reg, p, "read", "plot"); err != nil {
		t.Fatalf("contract: %v", err)
	}
	if _, err := execute(t, "contract", p, "read"); err == nil {
		t.Error("contract with one module should fail argument validation")
	}
	if _, err := execute(t, "contract", p, "read", "missing"); err == nil {
		t.Error("contract with an unknown module should fail")
	}
}

func TestClassesAndPorts(t *testing.T) {
	_, reg, _ := workspace(t)

	out, err := execute(t, "classes", "-r", reg)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Reader", "Plot", "Table", "demo", "module", "type"} {
		if !strings.Contains(out, want) {
			t.Errorf("classes output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "classes", "--modules", "-r", reg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "Table") {
		t.Errorf("--modules listed a type:\n%s", out)
	}

	out, err = execute(t, "ports", "-r", reg, "Plot")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"width", "parameter", "640", "image", "output"} {
		if !strings.Contains(out, want) {
			t.Errorf("ports output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "ports", "--json", "-r", reg, "Reader")
	if err != nil {
		t.Fatal(err)
	}
	var sides map[string][]json.RawMessage
	if err := json.Unmarshal([]byte(out), &sides); err != nil {
		t.Fatal(err)
	}
	if len(sides["inputs"]) != 1 || len(sides["outputs"]) != 1 {
		t.Errorf("Reader ports = %s", out)
	}

	out, err = execute(t, "ports", "-r", reg, "Reader", "Plot")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Reader.table") || !strings.Contains(out, "Plot.data") {
		t.Errorf("connectable output:\n%s", out)
	}

	_, err = execute(t, "ports", "-r", reg, "Missing")
	wantCode(t, err, perrors.ErrCodeClassNotFound)

	_, err = execute(t, "ports", "-r", reg, "not a class")
	wantCode(t, err, perrors.ErrCodeInvalidName)
}

func TestRenderCommand(t *testing.T) {
	dir, reg, p := workspace(t)

	out, err := execute(t, "render", "-r", reg, p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "digraph") || !strings.Contains(out, "Reader") {
		t.Errorf("dot output:\n%s", out)
	}

	base := filepath.Join(dir, "diagram")
	if _, err := execute(t, "render", "-f", "dot", "-o", base+".dot", "--rankdir", "LR", p); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(base + ".dot")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "rankdir=LR") {
		t.Errorf("rankdir not applied:\n%s", data)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"unknown format", []string{"render", "-f", "gif", p}},
		{"binary to stdout", []string{"render", "-f", "svg", p}},
		{"bad rankdir", []string{"render", "--rankdir", "UP", p}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			wantCode(t, err, perrors.ErrCodeInvalidInput)
		})
	}
}

func TestConvertCommand(t *testing.T) {
	dir, reg, p := workspace(t)

	yml := filepath.Join(dir, "pipeline.yaml")
	if _, err := execute(t, "convert", "-r", reg, p, yml); err != nil {
		t.Fatal(err)
	}
	if a, b := report(t, p), report(t, yml); a.Pipeline != b.Pipeline {
		t.Errorf("signature changed by conversion: %s vs %s", a.Pipeline, b.Pipeline)
	}

	_, err := execute(t, "convert", p, filepath.Join(dir, "pipeline.txt"))
	wantCode(t, err, perrors.ErrCodeInvalidFormat)
}

func TestConfigCommand(t *testing.T) {
	dir, _, _ := workspace(t)

	out, err := execute(t, "config", "path")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "config", appName, configFile)
	if strings.TrimSpace(out) != want {
		t.Errorf("config path = %q, want %q", out, want)
	}

	if _, err := execute(t, "config", "init"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("config init wrote nothing: %v", err)
	}
	_, err = execute(t, "config", "init")
	wantCode(t, err, perrors.ErrCodeInvalidPath)
	if _, err := execute(t, "config", "init", "--force"); err != nil {
		t.Fatal(err)
	}

	out, err = execute(t, "--cache", "redis", "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `backend = "redis"`) {
		t.Errorf("config show does not reflect flags:\n%s", out)
	}
}

func TestConfigFileIsApplied(t *testing.T) {
	dir, reg, p := workspace(t)

	cfgPath := filepath.Join(dir, "provgraph.toml")
	writeFile(t, cfgPath, "registry = [\"registry\"]\n")
	if _, err := execute(t, "--config", cfgPath, "check", p); err != nil {
		t.Fatalf("registry from config not used: %v", err)
	}

	writeFile(t, cfgPath, "registry = [\""+reg+"\"]\nlog_level = \"loud\"\n")
	_, err := execute(t, "--config", cfgPath, "check", p)
	wantCode(t, err, perrors.ErrCodeInvalidInput)
}

func TestCacheCommand(t *testing.T) {
	dir, reg, p := workspace(t)

	out, err := execute(t, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	cacheRoot := filepath.Join(dir, "cache", appName)
	if strings.TrimSpace(out) != cacheRoot {
		t.Errorf("cache path = %q, want %q", out, cacheRoot)
	}

	// Rendering stores a diagram that clear removes.
	if _, err := execute(t, "render", "-r", reg, p); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(cacheRoot)
	if len(entries) == 0 {
		t.Fatal("render stored nothing")
	}
	if _, err := execute(t, "cache", "clear"); err != nil {
		t.Fatal(err)
	}
	if entries, _ := os.ReadDir(cacheRoot); len(entries) != 0 {
		t.Errorf("cache not cleared: %d entries left", len(entries))
	}
}

func TestCompletionCommand(t *testing.T) {
	workspace(t)
	out, err := execute(t, "completion", "bash")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, appName) {
		t.Error("bash completion does not mention the binary")
	}
	if _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("unknown shell accepted")
	}
}
