package registry

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/provgraph/pkg/core/ports"
)

var (
	// ErrPackageNotFound is returned for a package the registry does not
	// declare.
	ErrPackageNotFound = errors.New("package not found")

	// ErrNotAModule is returned when a data type is used as a module class.
	ErrNotAModule = errors.New("class is not a module")

	// ErrPackageMismatch is returned when a module names a package other
	// than the one declaring its class.
	ErrPackageMismatch = errors.New("class belongs to another package")

	// ErrIncompatibleVersion is returned when a module was built against a
	// package version the registry cannot stand in for.
	ErrIncompatibleVersion = errors.New("incompatible package version")
)

// Package describes one loaded package.
type Package struct {
	Name     string
	Version  *semver.Version
	Requires map[string]*semver.Constraints
	File     string
	Types    []string
	Modules  []string
}

// Registry is a loaded set of packages and the class hierarchy they declare.
// It is immutable once loaded; reload by calling Load again.
type Registry struct {
	hierarchy *ports.Hierarchy
	resolver  *ports.Resolver
	packages  map[string]*Package
	owners    map[string]string
	modules   map[string]bool
}

// Hierarchy returns the class hierarchy.
func (r *Registry) Hierarchy() *ports.Hierarchy { return r.hierarchy }

// Resolver returns a port resolver over the hierarchy.
func (r *Registry) Resolver() *ports.Resolver { return r.resolver }

// Packages returns every package sorted by name.
func (r *Registry) Packages() []Package {
	out := make([]Package, 0, len(r.packages))
	for _, p := range r.packages {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b Package) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Package returns the package called name.
func (r *Registry) Package(name string) (Package, error) {
	p, ok := r.packages[name]
	if !ok {
		return Package{}, fmt.Errorf("%s: %w", name, ErrPackageNotFound)
	}
	return *p, nil
}

// Owner returns the package that declares class.
func (r *Registry) Owner(class string) (string, bool) {
	p, ok := r.owners[class]
	return p, ok
}

// IsModule reports whether class is a module class rather than a data type.
func (r *Registry) IsModule(class string) bool { return r.modules[class] }

// CheckModule verifies that a module instance fits this registry: class must
// be a module class, pkg (if set) must be the package declaring it, and
// version (if set) must be satisfied by the loaded package under caret
// semantics, so a module made with 1.2.0 loads against 1.5.0 but not 2.0.0.
func (r *Registry) CheckModule(class, pkg, version string) error {
	owner, ok := r.owners[class]
	if !ok {
		return fmt.Errorf("module class %s: %w", class, ports.ErrClassNotFound)
	}
	if !r.modules[class] {
		return fmt.Errorf("%s: %w", class, ErrNotAModule)
	}
	if pkg != "" && pkg != owner {
		return fmt.Errorf("%s is declared by %s, not %s: %w", class, owner, pkg, ErrPackageMismatch)
	}
	if version == "" {
		return nil
	}
	c, err := semver.NewConstraint("^" + version)
	if err != nil {
		return fmt.Errorf("%s version %q: %w", class, version, err)
	}
	if loaded := r.packages[owner].Version; !c.Check(loaded) {
		return fmt.Errorf("%s needs %s %s, registry has %s: %w",
			class, owner, version, loaded, ErrIncompatibleVersion)
	}
	return nil
}
