// Package pipeline models a workflow as modules wired by connections and
// keeps its content signatures current as it is edited.
//
// A [Pipeline] owns a directed multigraph of module ids with connection ids
// on the edges, a signature cache over that graph, and optionally a port
// resolver used to validate new connections. Every edit goes through the
// Pipeline so that the graph, the module table and the signature cache change
// together.
//
// # Usage
//
//	h := ports.NewHierarchy()
//	// ... register classes, usually through pkg/registry
//	p := pipeline.New(ports.NewResolver(h), logger)
//	defer p.Close()
//
//	p.AddModule(pipeline.Module{ID: "read", Name: "CSVReader", Package: "io"})
//	p.AddModule(pipeline.Module{ID: "plot", Name: "Plot", Package: "viz"})
//	err := p.AddConnection(pipeline.Connection{
//	    ID:          "c1",
//	    Source:      pipeline.PortRef{Module: "read", Port: "table"},
//	    Destination: pipeline.PortRef{Module: "plot", Port: "data"},
//	})
//
//	sig, err := p.SubpipelineSignature("plot")
//
// A [Planner] walks a pipeline in topological order and checks an artifact
// cache for every sub-pipeline signature, which is how an executor decides
// what it can skip.
package pipeline

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/provgraph/pkg/core/graph"
	"github.com/matzehuels/provgraph/pkg/core/ports"
	"github.com/matzehuels/provgraph/pkg/core/signature"
)

var (
	// ErrInvalidID is returned when a module or connection id is empty.
	ErrInvalidID = errors.New("id must not be empty")

	// ErrDuplicateModule is returned by AddModule for an id already in use.
	ErrDuplicateModule = errors.New("duplicate module id")

	// ErrModuleNotFound is returned for an unknown module id.
	ErrModuleNotFound = errors.New("module not found")

	// ErrDuplicateConnection is returned by AddConnection for an id already
	// in use.
	ErrDuplicateConnection = errors.New("duplicate connection id")

	// ErrConnectionNotFound is returned for an unknown connection id.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrIncompatiblePorts is returned when the resolver says the source
	// port cannot feed the destination port.
	ErrIncompatiblePorts = errors.New("incompatible ports")

	// ErrInvalidFunction is returned by SetFunction when the function does
	// not name a settable port of the module's class or has the wrong arity.
	ErrInvalidFunction = errors.New("invalid function")
)

// ModuleID identifies a module within a pipeline.
type ModuleID string

// ConnectionID identifies a connection within a pipeline.
type ConnectionID string

// Parameter is one argument of a function call.
type Parameter struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
	// Alias is a display name and does not affect signatures.
	Alias string `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// Function sets a method port of a module to constant values.
type Function struct {
	Name   string      `json:"name" yaml:"name"`
	Params []Parameter `json:"params,omitempty" yaml:"params,omitempty"`
}

// Module is one step of a pipeline: an instance of a registered class plus
// the parameter values set on it.
type Module struct {
	ID        ModuleID   `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Package   string     `json:"package,omitempty" yaml:"package,omitempty"`
	Version   string     `json:"version,omitempty" yaml:"version,omitempty"`
	Namespace string     `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Functions []Function `json:"functions,omitempty" yaml:"functions,omitempty"`
}

// Class returns the name the module's class is registered under.
func (m Module) Class() string { return m.Name }

// Function returns the function with the given name, if set.
func (m Module) Function(name string) (Function, bool) {
	i := slices.IndexFunc(m.Functions, func(f Function) bool { return f.Name == name })
	if i < 0 {
		return Function{}, false
	}
	return m.Functions[i], true
}

func (m Module) clone() Module {
	m.Functions = slices.Clone(m.Functions)
	for i := range m.Functions {
		m.Functions[i].Params = slices.Clone(m.Functions[i].Params)
	}
	return m
}

// PortRef names a port on a module.
type PortRef struct {
	Module ModuleID `json:"module" yaml:"module"`
	Port   string   `json:"port" yaml:"port"`
}

func (r PortRef) String() string { return fmt.Sprintf("%s.%s", r.Module, r.Port) }

// Connection wires a source port to a destination port.
type Connection struct {
	ID          ConnectionID `json:"id" yaml:"id"`
	Source      PortRef      `json:"source" yaml:"source"`
	Destination PortRef      `json:"destination" yaml:"destination"`
}

// Pipeline is an editable workflow. It is not safe for concurrent use.
//
// The zero value is not usable; use New.
type Pipeline struct {
	modules     map[ModuleID]*Module
	connections map[ConnectionID]*Connection
	graph       *graph.Graph[ModuleID, ConnectionID]
	sigs        *signature.Cache[ModuleID, ConnectionID]

	resolver    *ports.Resolver
	logger      *log.Logger
	cancelWatch func()
}

// New creates an empty pipeline. A nil resolver disables port checking and
// leaves port sets out of module signatures. A nil logger uses log.Default().
//
// When a resolver is given the pipeline watches its hierarchy so that port
// changes invalidate the signatures of affected modules; call Close to stop
// watching.
func New(resolver *ports.Resolver, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	p := &Pipeline{
		modules:     make(map[ModuleID]*Module),
		connections: make(map[ConnectionID]*Connection),
		graph:       graph.New[ModuleID, ConnectionID](),
		resolver:    resolver,
		logger:      logger,
	}
	p.sigs = signature.New[ModuleID, ConnectionID](source{p})
	if resolver != nil {
		p.cancelWatch = resolver.Hierarchy().Watch(p.ClassChanged)
	}
	return p
}

// Close stops watching the class hierarchy. The pipeline stays usable.
func (p *Pipeline) Close() {
	if p.cancelWatch != nil {
		p.cancelWatch()
		p.cancelWatch = nil
	}
}

// Resolver returns the pipeline's port resolver, which may be nil.
func (p *Pipeline) Resolver() *ports.Resolver { return p.resolver }

// Graph returns a read-only view of the module graph.
func (p *Pipeline) Graph() graph.View[ModuleID, ConnectionID] { return p.graph.View() }

// ModuleCount returns the number of modules.
func (p *Pipeline) ModuleCount() int { return len(p.modules) }

// ConnectionCount returns the number of connections.
func (p *Pipeline) ConnectionCount() int { return len(p.connections) }

// Module returns a copy of the module with the given id.
func (p *Pipeline) Module(id ModuleID) (Module, error) {
	m, ok := p.modules[id]
	if !ok {
		return Module{}, fmt.Errorf("module %s: %w", id, ErrModuleNotFound)
	}
	return m.clone(), nil
}

// Modules returns copies of every module in insertion order.
func (p *Pipeline) Modules() []Module {
	ids := p.graph.Vertices()
	out := make([]Module, len(ids))
	for i, id := range ids {
		out[i] = p.modules[id].clone()
	}
	return out
}

// Connection returns the connection with the given id.
func (p *Pipeline) Connection(id ConnectionID) (Connection, error) {
	c, ok := p.connections[id]
	if !ok {
		return Connection{}, fmt.Errorf("connection %s: %w", id, ErrConnectionNotFound)
	}
	return *c, nil
}

// Connections returns every connection, grouped by source module in
// insertion order.
func (p *Pipeline) Connections() []Connection {
	out := make([]Connection, 0, len(p.connections))
	for e := range p.graph.AllEdges() {
		out = append(out, *p.connections[e.ID])
	}
	return out
}

// ConnectionsTo returns the connections feeding module id.
func (p *Pipeline) ConnectionsTo(id ModuleID) []Connection {
	arcs := p.graph.EdgesTo(id)
	out := make([]Connection, len(arcs))
	for i, a := range arcs {
		out[i] = *p.connections[a.ID]
	}
	return out
}

// source adapts a Pipeline to signature.Source.
type source struct{ p *Pipeline }

func (s source) EdgesTo(v ModuleID) []graph.Arc[ModuleID, ConnectionID] {
	return s.p.graph.EdgesTo(v)
}

// ModuleContent covers what the module computes: its class identity, its
// parameter values in function-name order, and, when a resolver is present,
// the digest of its class's resolved port set. Ids and aliases are excluded.
func (s source) ModuleContent(v ModuleID) (signature.Content, error) {
	m, ok := s.p.modules[v]
	if !ok {
		return nil, fmt.Errorf("module %s: %w", v, ErrModuleNotFound)
	}

	funcs := slices.Clone(m.Functions)
	slices.SortStableFunc(funcs, func(a, b Function) int { return cmp.Compare(a.Name, b.Name) })
	calls := make([]any, len(funcs))
	for i, f := range funcs {
		args := make([][2]string, len(f.Params))
		for j, prm := range f.Params {
			args[j] = [2]string{prm.Type, prm.Value}
		}
		calls[i] = []any{f.Name, args}
	}

	content := signature.Content{m.Package, m.Name, m.Version, m.Namespace, calls}
	if s.p.resolver != nil && s.p.resolver.Hierarchy().Has(m.Class()) {
		ps, err := s.p.resolver.PortSetSignature(m.Class())
		if err != nil {
			return nil, err
		}
		content = append(content, string(ps))
	}
	return content, nil
}

func (s source) ConnectionContent(e ConnectionID) (signature.Content, error) {
	c, ok := s.p.connections[e]
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", e, ErrConnectionNotFound)
	}
	return signature.Content{c.Source.Port, c.Destination.Port}, nil
}

func (s source) ConnectionEndpoints(e ConnectionID) (ModuleID, ModuleID, error) {
	c, ok := s.p.connections[e]
	if !ok {
		return "", "", fmt.Errorf("connection %s: %w", e, ErrConnectionNotFound)
	}
	return c.Source.Module, c.Destination.Module, nil
}
