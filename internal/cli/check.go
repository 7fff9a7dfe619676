package cli

import (
	"github.com/spf13/cobra"

	perrors "github.com/matzehuels/provgraph/pkg/errors"
)

// checkCommand creates the check command.
func (c *CLI) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <pipeline>",
		Short: "Validate a pipeline against the registry",
		Long: `Check loads a pipeline with port checking against the registry, then verifies
that every module names the package that declares its class and a version the
loaded package can stand in for.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheck(args[0])
		},
	}
}

func (c *CLI) runCheck(path string) error {
	reg, err := c.loadRegistry(true)
	if err != nil {
		return err
	}
	p, err := c.loadPipeline(path, reg)
	if err != nil {
		return err
	}
	defer p.Close()

	problems := reg.CheckPipeline(p)
	for _, pr := range problems {
		printError("%s: %v", pr.Module, pr.Err)
	}
	if parts := p.Components(); len(parts) > 1 {
		printWarning("pipeline has %d independent parts", len(parts))
	}
	if len(problems) > 0 {
		return perrors.New(perrors.ErrCodeInvalidPipeline, "%d of %d modules do not fit the registry", len(problems), p.ModuleCount())
	}

	printSuccess("%s is valid", path)
	printStats(p.ModuleCount(), p.ConnectionCount(), nil)
	printNextStep("See what is cached", "provgraph plan "+path)
	return nil
}
