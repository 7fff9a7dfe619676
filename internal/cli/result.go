package cli

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/provgraph/pkg/core/signature"
	perrors "github.com/matzehuels/provgraph/pkg/errors"
)

// resultCommand creates the result command, which stores and fetches module
// outputs keyed by sub-pipeline signature.
func (c *CLI) resultCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result",
		Short: "Store and fetch cached module results",
		Long: `Result reads and writes the artifact cache the way an executor would: a
module's output is stored under its sub-pipeline signature (see
"provgraph signatures --full") and the name of the output port.`,
	}
	cmd.AddCommand(c.resultPutCommand())
	cmd.AddCommand(c.resultGetCommand())
	return cmd
}

func (c *CLI) resultPutCommand() *cobra.Command {
	var port string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "put <signature> <file>",
		Short: "Store a result; - reads stdin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := parseSignature(args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			planner, cc, err := c.newPlanner(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cc.Close()
			if err := planner.Record(cmd.Context(), sig, port, data, ttl); err != nil {
				return perrors.Wrap(perrors.ErrCodeCacheUnavailable, err, "store result")
			}
			printSuccess("Stored %d bytes for %s", len(data), sig.Short())
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "output port the result belongs to")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "expire the result after this long (0 keeps it)")
	return cmd
}

func (c *CLI) resultGetCommand() *cobra.Command {
	var port, output string
	cmd := &cobra.Command{
		Use:   "get <signature>",
		Short: "Fetch a stored result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := parseSignature(args[0])
			if err != nil {
				return err
			}
			planner, cc, err := c.newPlanner(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cc.Close()
			data, ok, err := planner.Lookup(cmd.Context(), sig, port)
			if err != nil {
				return perrors.Wrap(perrors.ErrCodeCacheUnavailable, err, "fetch result")
			}
			if !ok {
				return perrors.New(perrors.ErrCodeSignatureNotFound, "no result stored for %s", sig.Short())
			}
			if output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return perrors.Wrap(perrors.ErrCodeInvalidPath, err, "write %s", output)
			}
			printFile(output)
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "output port the result belongs to")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

// parseSignature accepts a full signature as printed by "signatures --full".
func parseSignature(s string) (signature.Signature, error) {
	if err := configValidate.Var(s, "len=64,hexadecimal,lowercase"); err != nil {
		return "", perrors.New(perrors.ErrCodeInvalidInput, "%q is not a full signature (64 lowercase hex digits)", s)
	}
	return signature.Signature(s), nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "read %s", path)
	}
	return data, nil
}
