package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/matzehuels/provgraph/pkg/core/graph"
	"github.com/matzehuels/provgraph/pkg/core/ports"
	perrors "github.com/matzehuels/provgraph/pkg/errors"
)

// Extension is the file extension picked up when a directory is loaded.
const Extension = ".hcl"

// classDecl is a parsed class waiting to be registered.
type classDecl struct {
	block   *classBlock
	pkg     string
	file    string
	module  bool
	parents []string
}

// loader accumulates declarations from every file before anything is
// registered, so that order across files does not matter.
type loader struct {
	logger   *log.Logger
	parser   *hclparse.Parser
	seen     map[string]bool
	packages map[string]*Package
	classes  map[string]*classDecl
	order    []string
}

// Load reads registry files and directories (non-recursively, *.hcl only)
// and builds a Registry. All errors carry the INVALID_REGISTRY code except a
// missing path, which carries FILE_NOT_FOUND.
func Load(logger *log.Logger, paths ...string) (*Registry, error) {
	if logger == nil {
		logger = log.Default()
	}
	l := &loader{
		logger:   logger,
		parser:   hclparse.NewParser(),
		seen:     make(map[string]bool),
		packages: make(map[string]*Package),
		classes:  make(map[string]*classDecl),
	}

	files, err := expand(paths)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := l.file(f); err != nil {
			return nil, err
		}
	}
	if err := l.checkRequires(); err != nil {
		return nil, err
	}
	r, err := l.build()
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded registry", "packages", len(r.packages), "classes", len(l.classes), "files", len(l.seen))
	return r, nil
}

func expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "registry path %s", p)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*"+Extension))
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeInvalidPath, err, "registry directory %s", p)
		}
		slices.Sort(matches)
		files = append(files, matches...)
	}
	return files, nil
}

func (l *loader) file(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidPath, err, "registry file %s", path)
	}
	if l.seen[abs] {
		return nil
	}
	l.seen[abs] = true

	f, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return perrors.Wrap(perrors.ErrCodeInvalidRegistry, diags, "parse %s", path)
	}
	var schema fileSchema
	if diags := gohcl.DecodeBody(f.Body, nil, &schema); diags.HasErrors() {
		return perrors.Wrap(perrors.ErrCodeInvalidRegistry, diags, "decode %s", path)
	}
	l.logger.Debug("read registry file", "path", path, "packages", len(schema.Packages))

	for _, pb := range schema.Packages {
		if err := l.pkg(pb, path); err != nil {
			return err
		}
	}
	for _, pb := range schema.Packages {
		for _, inc := range pb.Include {
			if err := perrors.ValidatePath(inc); err != nil {
				return perrors.Wrap(perrors.ErrCodeInvalidRegistry, err, "%s: package %s include", path, pb.Name)
			}
			if err := l.file(filepath.Join(filepath.Dir(path), inc)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *loader) pkg(pb *packageBlock, path string) error {
	if prev, ok := l.packages[pb.Name]; ok {
		return perrors.New(perrors.ErrCodeInvalidRegistry, "package %s declared in %s and %s", pb.Name, prev.File, path)
	}
	v, err := semver.NewVersion(pb.Version)
	if err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidRegistry, err, "package %s version %q", pb.Name, pb.Version)
	}
	p := &Package{Name: pb.Name, Version: v, File: path, Requires: make(map[string]*semver.Constraints)}
	for dep, raw := range pb.Requires {
		c, err := semver.NewConstraint(raw)
		if err != nil {
			return perrors.Wrap(perrors.ErrCodeInvalidRegistry, err, "package %s requires %s %q", pb.Name, dep, raw)
		}
		p.Requires[dep] = c
	}

	add := func(cb *classBlock, module bool) error {
		if err := perrors.ValidateClassName(cb.Name); err != nil {
			return perrors.Wrap(perrors.ErrCodeInvalidRegistry, err, "%s: package %s", path, pb.Name)
		}
		if prev, ok := l.classes[cb.Name]; ok || isBuiltin(cb.Name) {
			where := "built in"
			if ok {
				where = "declared by " + prev.pkg
			}
			return perrors.New(perrors.ErrCodeInvalidRegistry, "%s: class %s already %s", path, cb.Name, where)
		}
		l.classes[cb.Name] = &classDecl{block: cb, pkg: pb.Name, file: path, module: module, parents: cb.Parents}
		l.order = append(l.order, cb.Name)
		if module {
			p.Modules = append(p.Modules, cb.Name)
		} else {
			p.Types = append(p.Types, cb.Name)
		}
		return nil
	}
	for _, cb := range pb.Types {
		if err := add(cb, false); err != nil {
			return err
		}
	}
	for _, cb := range pb.Modules {
		if err := add(cb, true); err != nil {
			return err
		}
	}
	l.packages[pb.Name] = p
	return nil
}

func (l *loader) checkRequires() error {
	for _, p := range l.packages {
		for dep, c := range p.Requires {
			d, ok := l.packages[dep]
			if !ok {
				return perrors.Wrap(perrors.ErrCodeInvalidRegistry, ErrPackageNotFound,
					"package %s requires %s", p.Name, dep)
			}
			if !c.Check(d.Version) {
				return perrors.New(perrors.ErrCodeInvalidRegistry,
					"package %s requires %s %s, found %s", p.Name, dep, c, d.Version)
			}
		}
	}
	return nil
}

// build registers classes parents first. Parent links form a graph whose
// topological order is a valid registration order; a cycle among parents is
// a registry error.
func (l *loader) build() (*Registry, error) {
	g := graph.New[string, graph.NoID]()
	for _, name := range l.order {
		g.AddVertex(name)
		for _, parent := range l.classes[name].parents {
			if _, declared := l.classes[parent]; declared {
				g.AddEdge(parent, name, graph.NoID{})
				continue
			}
			if !isBuiltin(parent) {
				return nil, perrors.Wrap(perrors.ErrCodeInvalidRegistry, ports.ErrClassNotFound,
					"%s: class %s: parent %s", l.classes[name].file, name, parent)
			}
		}
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidRegistry, err, "class parents")
	}

	h := ports.NewHierarchy()
	for _, name := range order {
		d := l.classes[name]
		c := ports.Class{Name: name, Parents: d.parents}
		if c.Inputs, err = portTable(d, d.block.Inputs); err != nil {
			return nil, err
		}
		if c.Outputs, err = portTable(d, d.block.Outputs); err != nil {
			return nil, err
		}
		if err := h.AddClass(c); err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeInvalidRegistry, err, "%s: class %s", d.file, name)
		}
	}

	// Port types may name classes from any package, so they are checked
	// once everything is registered.
	for _, name := range l.order {
		c, _ := h.Class(name)
		for _, table := range []map[string]ports.Spec{c.Inputs, c.Outputs} {
			for port, spec := range table {
				for _, it := range spec {
					if !h.Has(it.Type) {
						return nil, perrors.Wrap(perrors.ErrCodeInvalidRegistry, ports.ErrClassNotFound,
							"%s: port %s.%s: type %s", l.classes[name].file, name, port, it.Type)
					}
				}
			}
		}
	}

	r := &Registry{
		hierarchy: h,
		resolver:  ports.NewResolver(h),
		packages:  l.packages,
		owners:    make(map[string]string, len(l.classes)),
		modules:   make(map[string]bool),
	}
	for name, d := range l.classes {
		r.owners[name] = d.pkg
		if d.module {
			r.modules[name] = true
		}
	}
	return r, nil
}

func portTable(d *classDecl, blocks []*portBlock) (map[string]ports.Spec, error) {
	if len(blocks) == 0 {
		return nil, nil
	}
	out := make(map[string]ports.Spec, len(blocks))
	for _, pb := range blocks {
		if err := perrors.ValidatePortName(pb.Name); err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeInvalidRegistry, err, "%s: class %s", d.file, d.block.Name)
		}
		if _, dup := out[pb.Name]; dup {
			return nil, perrors.New(perrors.ErrCodeInvalidRegistry, "%s: class %s: duplicate port %s", d.file, d.block.Name, pb.Name)
		}
		spec, err := portSpec(pb)
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeInvalidRegistry, err, "%s: port %s.%s", d.file, d.block.Name, pb.Name)
		}
		out[pb.Name] = spec
	}
	return out, nil
}

func portSpec(pb *portBlock) (ports.Spec, error) {
	types := pb.Types
	switch {
	case pb.Type != "" && len(pb.Types) > 0:
		return nil, errors.New("set either type or types, not both")
	case pb.Type != "":
		types = []string{pb.Type}
	case len(types) == 0:
		return nil, errors.New("missing type")
	}
	if len(pb.Labels) > 0 && len(pb.Labels) != len(types) {
		return nil, fmt.Errorf("%d labels for %d types", len(pb.Labels), len(types))
	}
	defaults, err := defaultStrings(pb.Default, len(types))
	if err != nil {
		return nil, err
	}

	spec := make(ports.Spec, len(types))
	for i, t := range types {
		spec[i] = ports.Item{Type: t}
		if len(pb.Labels) > 0 {
			spec[i].Label = pb.Labels[i]
		}
		if defaults != nil {
			spec[i].Default = defaults[i]
		}
	}
	return spec, nil
}

// defaultStrings renders a port default as one string per spec item. A
// single-item port takes a scalar; a wider port takes a list or tuple of
// matching length.
func defaultStrings(v *cty.Value, n int) ([]string, error) {
	if v == nil || v.IsNull() {
		return nil, nil
	}
	var elems []cty.Value
	if n == 1 {
		elems = []cty.Value{*v}
	} else {
		ty := v.Type()
		if !ty.IsTupleType() && !ty.IsListType() {
			return nil, fmt.Errorf("default must be a list of %d values", n)
		}
		if v.LengthInt() != n {
			return nil, fmt.Errorf("default has %d values, port has %d types", v.LengthInt(), n)
		}
		for it := v.ElementIterator(); it.Next(); {
			_, e := it.Element()
			elems = append(elems, e)
		}
	}

	out := make([]string, len(elems))
	for i, e := range elems {
		if e.IsNull() {
			continue
		}
		s, err := convert.Convert(e, cty.String)
		if err != nil {
			return nil, fmt.Errorf("default %d: %w", i, err)
		}
		out[i] = s.AsString()
	}
	return out, nil
}

func isBuiltin(name string) bool {
	return name == ports.Root || name == ports.Constant || name == ports.Variant
}
