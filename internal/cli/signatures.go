package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/provgraph/pkg/core/signature"
	"github.com/matzehuels/provgraph/pkg/pipeline"
)

// signaturesCommand creates the signatures command.
func (c *CLI) signaturesCommand() *cobra.Command {
	var asJSON, full bool
	cmd := &cobra.Command{
		Use:   "signatures <pipeline>",
		Short: "Print the content signatures of a pipeline",
		Long: `Signatures prints, for every module in execution order, the signature of the
module itself and of its sub-pipeline (the module and everything upstream of
it), followed by the connection signatures and the pipeline signature.

Signatures never depend on ids: two pipelines that do the same work have the
same signatures however their modules are named.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSignatures(cmd.OutOrStdout(), args[0], asJSON, full)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&full, "full", false, "print full signatures instead of short prefixes")
	return cmd
}

func (c *CLI) runSignatures(w io.Writer, path string, asJSON, full bool) error {
	reg, err := c.loadRegistry(false)
	if err != nil {
		return err
	}
	p, err := c.loadPipeline(path, reg)
	if err != nil {
		return err
	}
	defer p.Close()

	report, err := p.Report()
	if err != nil {
		return pipeline.Coded(err)
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	short := func(s signature.Signature) string {
		if full {
			return string(s)
		}
		return s.Short()
	}
	modules := newTable("MODULE", "CLASS", "SIGNATURE", "SUB-PIPELINE")
	for _, m := range report.Modules {
		modules.Row(string(m.ID), m.Class, short(m.Module), short(m.Subpipeline))
	}
	fmt.Fprintln(w, modules.String())

	if len(report.Connections) > 0 {
		conns := newTable("CONNECTION", "FROM", "TO", "SIGNATURE")
		for _, cr := range report.Connections {
			conns.Row(string(cr.ID), cr.Source.String(), cr.Destination.String(), short(cr.Signature))
		}
		fmt.Fprintln(w, conns.String())
	}
	printKeyValue("pipeline", short(report.Pipeline))
	return nil
}

// planCommand creates the plan command.
func (c *CLI) planCommand() *cobra.Command {
	var asJSON, noCache bool
	cmd := &cobra.Command{
		Use:   "plan <pipeline>",
		Short: "Show which modules already have cached results",
		Long: `Plan looks up every module's sub-pipeline signature in the artifact cache and
reports which modules have a stored result, which must run, and which repeat
the work of an earlier module in the same pipeline.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlan(cmd, args[0], asJSON, noCache)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "plan without consulting the cache")
	return cmd
}

func (c *CLI) runPlan(cmd *cobra.Command, path string, asJSON, noCache bool) error {
	reg, err := c.loadRegistry(false)
	if err != nil {
		return err
	}
	p, err := c.loadPipeline(path, reg)
	if err != nil {
		return err
	}
	defer p.Close()

	planner, cc, err := c.newPlanner(cmd.Context(), noCache)
	if err != nil {
		return err
	}
	defer cc.Close()

	plan, err := planner.Plan(cmd.Context(), p)
	if err != nil {
		return pipeline.Coded(err)
	}

	w := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}

	t := newTable("MODULE", "CLASS", "SUB-PIPELINE", "STATUS")
	for _, s := range plan.Steps {
		t.Row(string(s.Module), s.Class, s.Signature.Short(), stepStatus(s))
	}
	fmt.Fprintln(w, t.String())
	printStats(p.ModuleCount(), p.ConnectionCount(), &plan.Stats)
	return nil
}

func stepStatus(s pipeline.Step) string {
	switch {
	case s.Hit:
		return styleCached.Render(iconCached)
	case s.SameAs != "":
		return styleShared.Render(fmt.Sprintf("%s with %s", iconShared, s.SameAs))
	default:
		return styleComputed.Render(iconFresh)
	}
}
