package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/provgraph/pkg/core/ports"
	perrors "github.com/matzehuels/provgraph/pkg/errors"
	"github.com/matzehuels/provgraph/pkg/pipeline"
)

// classesCommand creates the classes command.
func (c *CLI) classesCommand() *cobra.Command {
	var modulesOnly bool
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List the classes declared by the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runClasses(cmd.OutOrStdout(), modulesOnly)
		},
	}
	cmd.Flags().BoolVar(&modulesOnly, "modules", false, "list module classes only")
	return cmd
}

func (c *CLI) runClasses(w io.Writer, modulesOnly bool) error {
	reg, err := c.loadRegistry(true)
	if err != nil {
		return err
	}
	h := reg.Hierarchy()
	t := newTable("CLASS", "PACKAGE", "KIND", "PARENTS")
	for _, name := range h.Classes() {
		owner, declared := reg.Owner(name)
		if !declared {
			continue // built-in
		}
		kind := "type"
		if reg.IsModule(name) {
			kind = "module"
		} else if modulesOnly {
			continue
		}
		class, err := h.Class(name)
		if err != nil {
			return err
		}
		t.Row(name, owner, kind, strings.Join(class.Parents, ", "))
	}
	fmt.Fprintln(w, t.String())
	return nil
}

// portsCommand creates the ports command.
func (c *CLI) portsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ports <class> [<class>]",
		Short: "Show the resolved ports of a class",
		Long: `Ports lists every input and output visible on a class, inherited ones
included, with overloads resolved. Inputs that take only simple values are
marked as parameters.

With two classes it instead lists which outputs of the first can feed which
inputs of the second.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, a := range args {
				if err := perrors.ValidateClassName(a); err != nil {
					return err
				}
			}
			if len(args) == 2 {
				return c.runConnectable(cmd.OutOrStdout(), args[0], args[1])
			}
			return c.runPorts(cmd.OutOrStdout(), args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *CLI) runPorts(w io.Writer, class string, asJSON bool) error {
	reg, err := c.loadRegistry(true)
	if err != nil {
		return err
	}
	res := reg.Resolver()
	src, err := res.SourcePorts(class)
	if err != nil {
		return pipeline.Coded(err)
	}
	dst, err := res.DestinationPorts(class)
	if err != nil {
		return pipeline.Coded(err)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string][]ports.Port{"inputs": dst, "outputs": src})
	}

	t := newTable("SIDE", "PORT", "SPEC", "DECLARED BY", "DEFAULT")
	for _, p := range dst {
		side := "input"
		if res.IsMethod(p.Spec) {
			side = "parameter"
		}
		t.Row(side, p.Name, p.Spec.String(), p.ModuleClass, defaults(p.Spec))
	}
	for _, p := range src {
		t.Row("output", p.Name, p.Spec.String(), p.ModuleClass, "")
	}
	fmt.Fprintln(w, t.String())
	return nil
}

func (c *CLI) runConnectable(w io.Writer, from, to string) error {
	reg, err := c.loadRegistry(true)
	if err != nil {
		return err
	}
	res := reg.Resolver()
	src, err := res.SourcePorts(from)
	if err != nil {
		return pipeline.Coded(err)
	}
	dst, err := res.DestinationPorts(to)
	if err != nil {
		return pipeline.Coded(err)
	}

	t := newTable("OUTPUT", "INPUT", "SPEC")
	n := 0
	for _, s := range src {
		for _, d := range dst {
			if res.PortsCanConnect(s, d) {
				t.Row(from+"."+s.Name, to+"."+d.Name, s.Spec.String()+" → "+d.Spec.String())
				n++
			}
		}
	}
	if n == 0 {
		printWarning("no output of %s fits an input of %s", from, to)
		return nil
	}
	fmt.Fprintln(w, t.String())
	return nil
}

func defaults(spec ports.Spec) string {
	var vals []string
	for _, it := range spec {
		if it.Default != "" {
			vals = append(vals, it.Default)
		}
	}
	return strings.Join(vals, ", ")
}
