package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/provgraph/pkg/pipeline"
)

// contractCommand creates the contract command.
func (c *CLI) contractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "contract <pipeline> <module> <module>...",
		Short: "Check whether modules can be grouped into one",
		Long: `Contract reports whether the given modules can be replaced by a single grouped
module without creating a cycle. Grouping fails when a path leaves the group
and comes back into it.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]pipeline.ModuleID, len(args)-1)
			for i, a := range args[1:] {
				ids[i] = pipeline.ModuleID(a)
			}
			return c.runContract(args[0], ids)
		},
	}
}

func (c *CLI) runContract(path string, ids []pipeline.ModuleID) error {
	reg, err := c.loadRegistry(false)
	if err != nil {
		return err
	}
	p, err := c.loadPipeline(path, reg)
	if err != nil {
		return err
	}
	defer p.Close()

	ok, err := p.Contractible(ids)
	if err != nil {
		return pipeline.Coded(err)
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	if ok {
		printSuccess("%s can be grouped", strings.Join(names, ", "))
	} else {
		printWarning("grouping %s would create a cycle", strings.Join(names, ", "))
	}
	return nil
}
