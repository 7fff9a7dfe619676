// Package nodelink renders pipelines as node-link diagrams.
//
// Modules appear as boxes labelled with their id and class; connections are
// arrows labelled with the ports they join. In detailed mode each box also
// shows the module's parameters and the short form of its sub-pipeline
// signature, which makes structurally identical branches easy to spot.
//
// # Usage
//
//	dot, err := nodelink.ToDOT(p, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(dot)
//
// [Render] dispatches on an output format:
//
//	data, err := nodelink.Render(p, nodelink.FormatPNG, opts)
//
// # Cache Status
//
// Options.Hits marks modules whose results are already cached, typically
// taken from a [pipeline.Plan]. They are filled green; modules sharing a
// result with an earlier module are drawn dashed.
//
// # Dependencies
//
// SVG is produced in-process by [github.com/goccy/go-graphviz]. PDF and PNG
// go through [render.ToPDF] and [render.ToPNG], which need librsvg.
//
// [pipeline.Plan]: github.com/matzehuels/provgraph/pkg/pipeline.Plan
// [render.ToPDF]: github.com/matzehuels/provgraph/pkg/render.ToPDF
// [render.ToPNG]: github.com/matzehuels/provgraph/pkg/render.ToPNG
package nodelink
