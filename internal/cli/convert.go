package cli

import (
	"github.com/spf13/cobra"

	perrors "github.com/matzehuels/provgraph/pkg/errors"
	pio "github.com/matzehuels/provgraph/pkg/io"
)

// convertCommand creates the convert command.
func (c *CLI) convertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert a pipeline between JSON and YAML",
		Long: `Convert reads a pipeline and writes it back in the format given by the output
file's extension (.json, .yaml or .yml). Module and connection ids are kept.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConvert(args[0], args[1])
		},
	}
}

func (c *CLI) runConvert(in, out string) error {
	if _, err := pio.FormatForPath(out); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "output %s", out)
	}
	reg, err := c.loadRegistry(false)
	if err != nil {
		return err
	}
	p, err := c.loadPipeline(in, reg)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := pio.Save(p, out); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidPath, err, "write %s", out)
	}
	printSuccess("Converted %d modules", p.ModuleCount())
	printFile(out)
	return nil
}
