package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	perrors "github.com/matzehuels/provgraph/pkg/errors"
	"github.com/matzehuels/provgraph/pkg/pipeline"
	"github.com/matzehuels/provgraph/pkg/render/nodelink"
)

// renderOpts holds the flags of the render command.
type renderOpts struct {
	formats  []string
	output   string
	rankDir  string
	detailed bool
	plan     bool
	noCache  bool
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{}
	cmd := &cobra.Command{
		Use:   "render <pipeline>",
		Short: "Draw a pipeline as a node-link diagram",
		Long: `Render draws a pipeline with Graphviz. DOT output goes to stdout unless -o is
set; the other formats need an output path. With several formats, -o is the
base name and each file gets its format as extension.

--plan colours modules that already have cached results and marks modules
that repeat the work of an earlier one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringSliceVarP(&opts.formats, "format", "f", []string{nodelink.FormatDOT}, "output formats: "+strings.Join(nodelink.Formats, ", "))
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file, or base name with several formats")
	cmd.Flags().StringVar(&opts.rankDir, "rankdir", "TB", "graph direction: TB, LR, BT, RL")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show parameters and signatures on each module")
	cmd.Flags().BoolVar(&opts.plan, "plan", false, "mark cached and shared modules")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "neither read nor store rendered diagrams")
	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, path string, opts renderOpts) error {
	for _, f := range opts.formats {
		if err := nodelink.ValidateFormat(f); err != nil {
			return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "render")
		}
	}
	switch opts.rankDir {
	case "TB", "LR", "BT", "RL":
	default:
		return perrors.New(perrors.ErrCodeInvalidInput, "unknown rank direction %q", opts.rankDir)
	}
	if opts.output == "" && (len(opts.formats) > 1 || opts.formats[0] != nodelink.FormatDOT) {
		return perrors.New(perrors.ErrCodeInvalidInput, "--output is required for %s", strings.Join(opts.formats, ", "))
	}

	reg, err := c.loadRegistry(false)
	if err != nil {
		return err
	}
	p, err := c.loadPipeline(path, reg)
	if err != nil {
		return err
	}
	defer p.Close()

	planner, cc, err := c.newPlanner(cmd.Context(), opts.noCache)
	if err != nil {
		return err
	}
	defer cc.Close()

	nopts := nodelink.Options{RankDir: opts.rankDir, Detailed: opts.detailed}
	if opts.plan {
		plan, err := planner.Plan(cmd.Context(), p)
		if err != nil {
			return pipeline.Coded(err)
		}
		nopts = nopts.FromPlan(plan)
	}

	for _, format := range opts.formats {
		prog := newProgress(c.Logger)
		data, hit, err := nodelink.RenderCached(cmd.Context(), cc, planner.Keyer, p, format, nopts)
		if err != nil {
			return pipeline.Coded(err)
		}
		if opts.output == "" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		out := outputPath(opts.output, format, len(opts.formats) > 1)
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return perrors.Wrap(perrors.ErrCodeInvalidPath, err, "write %s", out)
		}
		c.Logger.Debug("rendered", "format", format, "cached", hit, "bytes", len(data))
		prog.done("Rendered " + format)
		printFile(out)
	}
	return nil
}

// outputPath names the file for one format. With several formats the base
// name gets the format as extension.
func outputPath(base, format string, multi bool) string {
	if !multi {
		return base
	}
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base + "." + format
}
