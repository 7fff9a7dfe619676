package nodelink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	perrors "github.com/matzehuels/provgraph/pkg/errors"
	"github.com/matzehuels/provgraph/pkg/pipeline"
	"github.com/matzehuels/provgraph/pkg/render"
)

// Output formats understood by [Render].
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPNG = "png"
	FormatPDF = "pdf"
)

// Formats lists every supported output format.
var Formats = []string{FormatDOT, FormatSVG, FormatPNG, FormatPDF}

// ValidateFormat reports an error for an unsupported output format.
func ValidateFormat(format string) error {
	for _, f := range Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q (want one of %s)", format, strings.Join(Formats, ", "))
}

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds parameters and the short sub-pipeline signature to
	// each module label.
	Detailed bool

	// RankDir is the Graphviz rank direction. Empty means "TB".
	RankDir string

	// Hits marks modules with cached results.
	Hits map[pipeline.ModuleID]bool

	// Shared marks modules whose result is shared with an earlier module.
	Shared map[pipeline.ModuleID]bool

	// Scale is the PNG scale factor. Zero means 2.
	Scale float64
}

// FromPlan fills the Hits and Shared sets from a plan.
func (o Options) FromPlan(plan *pipeline.Plan) Options {
	o.Hits = make(map[pipeline.ModuleID]bool)
	o.Shared = make(map[pipeline.ModuleID]bool)
	for _, s := range plan.Steps {
		if s.Hit {
			o.Hits[s.Module] = true
		}
		if s.SameAs != "" {
			o.Shared[s.Module] = true
		}
	}
	return o
}

// ToDOT converts a pipeline to Graphviz DOT. Modules are emitted in
// topological order so the output is stable for a given pipeline.
func ToDOT(p *pipeline.Pipeline, opts Options) (string, error) {
	order, err := p.TopologicalOrder()
	if err != nil {
		return "", err
	}
	rankdir := opts.RankDir
	if rankdir == "" {
		rankdir = "TB"
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [fontsize=10];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, id := range order {
		m, err := p.Module(id)
		if err != nil {
			return "", err
		}
		label, err := fmtLabel(p, m, opts.Detailed)
		if err != nil {
			return "", err
		}
		attrs := fmtAttrs(label, opts.Hits[id], opts.Shared[id])
		fmt.Fprintf(&buf, "  %q [%s];\n", string(id), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, id := range order {
		for _, c := range p.ConnectionsTo(id) {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n",
				string(c.Source.Module), string(c.Destination.Module), c.Source.Port+" → "+c.Destination.Port)
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func fmtLabel(p *pipeline.Pipeline, m pipeline.Module, detailed bool) (string, error) {
	head := fmt.Sprintf("%s\n%s", m.ID, m.Class())
	if !detailed {
		return head, nil
	}

	parts := []string{head}
	if m.Package != "" {
		pkg := m.Package
		if m.Version != "" {
			pkg += "@" + m.Version
		}
		parts = append(parts, pkg)
	}
	for _, f := range m.Functions {
		vals := make([]string, len(f.Params))
		for i, prm := range f.Params {
			vals[i] = prm.Value
		}
		parts = append(parts, fmt.Sprintf("%s(%s)", f.Name, strings.Join(vals, ", ")))
	}
	sig, err := p.SubpipelineSignature(m.ID)
	if err != nil {
		return "", err
	}
	parts = append(parts, "#"+sig.Short())
	return strings.Join(parts, "\n"), nil
}

func fmtAttrs(label string, hit, shared bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if hit {
		attrs = append(attrs, "fillcolor=palegreen")
	}
	if shared {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"")
	}
	return attrs
}

// Render produces the diagram in the given format.
func Render(p *pipeline.Pipeline, format string, opts Options) ([]byte, error) {
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}
	dot, err := ToDOT(p, opts)
	if err != nil {
		return nil, err
	}
	var data []byte
	switch format {
	case FormatDOT:
		return []byte(dot), nil
	case FormatSVG:
		return RenderSVG(dot)
	case FormatPDF:
		data, err = RenderPDF(dot)
	default:
		scale := opts.Scale
		if scale == 0 {
			scale = 2
		}
		data, err = RenderPNG(dot, scale)
	}
	if errors.Is(err, render.ErrConverterMissing) {
		return nil, perrors.Wrap(perrors.ErrCodeUnsupported, err, "%s output is not available on this host", format)
	}
	return data, err
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPDF(dot string) ([]byte, error) {
	svg, err := RenderSVG(dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion at the given scale.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPNG(dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(svg, scale)
}
