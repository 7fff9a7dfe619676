package ports

import (
	"fmt"
	"slices"

	"github.com/matzehuels/provgraph/pkg/core/signature"
)

// Resolver answers port questions against a class hierarchy: which spec a
// possibly overloaded port name resolves to, and whether two ports fit.
type Resolver struct {
	h *Hierarchy
}

// NewResolver returns a resolver over h. The resolver reads h on every call,
// so later changes to h are observed.
func NewResolver(h *Hierarchy) *Resolver {
	return &Resolver{h: h}
}

// Hierarchy returns the hierarchy r resolves against.
func (r *Resolver) Hierarchy() *Hierarchy { return r.h }

// AreSpecsMatched reports whether a value of spec sub can flow into spec
// super. A spec that is exactly Variant matches anything. Otherwise the
// lengths must agree and each position must be Variant on either side or a
// subclass of the corresponding super type.
func (r *Resolver) AreSpecsMatched(sub, super Spec) bool {
	if sub.IsWildcard() || super.IsWildcard() {
		return true
	}
	if len(sub) != len(super) {
		return false
	}
	for i := range sub {
		a, b := sub[i].Type, super[i].Type
		if a == Variant || b == Variant {
			continue
		}
		if !r.h.IsSubclass(a, b) {
			return false
		}
	}
	return true
}

// PortsCanConnect reports whether src may be wired to dst. Ports on the same
// side never connect; that is a plain no, not an error.
func (r *Resolver) PortsCanConnect(src, dst Port) bool {
	if src.Endpoint != dst.Endpoint.Reverse() {
		return false
	}
	return r.AreSpecsMatched(src.Spec, dst.Spec)
}

// IsPortSubType reports whether sub can stand in for super: same side, same
// name, and a matching spec.
func (r *Resolver) IsPortSubType(sub, super Port) bool {
	if sub.Endpoint != super.Endpoint || sub.Name != super.Name {
		return false
	}
	return r.AreSpecsMatched(sub.Spec, super.Spec)
}

// IsMethod reports whether every type in spec is a simple value, so the port
// can be set directly as a parameter. An empty spec is a method taking no
// parameters.
func (r *Resolver) IsMethod(spec Spec) bool {
	for _, it := range spec {
		if !r.h.IsSubclass(it.Type, Constant) {
			return false
		}
	}
	return true
}

// SourcePort resolves an output port of class.
func (r *Resolver) SourcePort(class, name string) (Port, error) {
	return r.port(class, Source, name)
}

// DestinationPort resolves an input port of class.
func (r *Resolver) DestinationPort(class, name string) (Port, error) {
	return r.port(class, Destination, name)
}

// SourcePorts returns every output port visible on class, inherited ones
// included, sorted by name. Overloaded names resolve to the most specific
// declaration.
func (r *Resolver) SourcePorts(class string) ([]Port, error) {
	return r.ports(class, Source)
}

// DestinationPorts returns every input port visible on class, sorted by
// name. Overloaded names resolve to the most general declaration.
func (r *Resolver) DestinationPorts(class string) ([]Port, error) {
	return r.ports(class, Destination)
}

// MethodPorts returns the destination ports of class that can be set as
// parameters.
func (r *Resolver) MethodPorts(class string) ([]Port, error) {
	all, err := r.DestinationPorts(class)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(p Port) bool { return !r.IsMethod(p.Spec) }), nil
}

// PortSetSignature returns a digest of the resolved port set of class. It
// changes whenever a port visible on the class is added, removed or retyped.
func (r *Resolver) PortSetSignature(class string) (signature.Signature, error) {
	src, err := r.SourcePorts(class)
	if err != nil {
		return "", err
	}
	dst, err := r.DestinationPorts(class)
	if err != nil {
		return "", err
	}
	parts := make([]any, 0, len(src)+len(dst))
	for _, p := range slices.Concat(src, dst) {
		parts = append(parts, []any{p.Endpoint.String(), p.Name, p.Spec.Types()})
	}
	return signature.Hash("ports", parts...)
}

// declaration is one class's spec for a port name.
type declaration struct {
	class string
	spec  Spec
}

func (r *Resolver) port(class string, e Endpoint, name string) (Port, error) {
	mro, err := r.h.Ancestors(class)
	if err != nil {
		return Port{}, err
	}
	var decls []declaration
	for _, c := range mro {
		if spec, ok := r.h.classes[c].table(e)[name]; ok {
			decls = append(decls, declaration{class: c, spec: spec})
		}
	}
	if len(decls) == 0 {
		return Port{}, fmt.Errorf("%s port %s.%s: %w", e, class, name, ErrPortNotFound)
	}
	d := r.resolve(e, decls)
	return Port{Name: name, Endpoint: e, Spec: slices.Clone(d.spec), ModuleClass: d.class}, nil
}

func (r *Resolver) ports(class string, e Endpoint) ([]Port, error) {
	mro, err := r.h.Ancestors(class)
	if err != nil {
		return nil, err
	}
	byName := make(map[string][]declaration)
	var names []string
	for _, c := range mro {
		for name, spec := range r.h.classes[c].table(e) {
			if _, seen := byName[name]; !seen {
				names = append(names, name)
			}
			byName[name] = append(byName[name], declaration{class: c, spec: spec})
		}
	}
	slices.Sort(names)

	out := make([]Port, 0, len(names))
	for _, name := range names {
		d := r.resolve(e, byName[name])
		out = append(out, Port{Name: name, Endpoint: e, Spec: slices.Clone(d.spec), ModuleClass: d.class})
	}
	return out, nil
}

// resolve picks one declaration among overloads listed in resolution order.
// Outputs take the most specific first type, inputs the most general.
// Declarations that cannot be ordered leave the closest one in place.
func (r *Resolver) resolve(e Endpoint, decls []declaration) declaration {
	best := decls[0]
	for _, d := range decls[1:] {
		if len(d.spec) == 0 || len(best.spec) == 0 {
			continue
		}
		cand, cur := d.spec[0].Type, best.spec[0].Type
		if cand == cur {
			continue
		}
		switch e {
		case Source:
			if r.h.IsSubclass(cand, cur) {
				best = d
			}
		default:
			if r.h.IsSubclass(cur, cand) {
				best = d
			}
		}
	}
	return best
}
