package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/matzehuels/provgraph/pkg/core/graph"
	"github.com/matzehuels/provgraph/pkg/core/signature"
)

// ModuleSignature returns the signature of module id's own content.
func (p *Pipeline) ModuleSignature(id ModuleID) (signature.Signature, error) {
	if _, ok := p.modules[id]; !ok {
		return "", fmt.Errorf("module %s: %w", id, ErrModuleNotFound)
	}
	return p.sigs.ModuleSignature(id)
}

// SubpipelineSignature returns the signature of module id together with
// everything upstream of it.
func (p *Pipeline) SubpipelineSignature(id ModuleID) (signature.Signature, error) {
	if _, ok := p.modules[id]; !ok {
		return "", fmt.Errorf("module %s: %w", id, ErrModuleNotFound)
	}
	return p.sigs.SubpipelineSignature(id)
}

// ConnectionSignature returns the signature of connection id.
func (p *Pipeline) ConnectionSignature(id ConnectionID) (signature.Signature, error) {
	if _, ok := p.connections[id]; !ok {
		return "", fmt.Errorf("connection %s: %w", id, ErrConnectionNotFound)
	}
	return p.sigs.ConnectionSignature(id)
}

// ModuleIDFromSignature looks up a module by a module signature computed
// earlier. It never computes anything.
func (p *Pipeline) ModuleIDFromSignature(s signature.Signature) (ModuleID, error) {
	return p.sigs.ModuleIDFromSignature(s)
}

// SubpipelineIDFromSignature looks up a module by a sub-pipeline signature
// computed earlier.
func (p *Pipeline) SubpipelineIDFromSignature(s signature.Signature) (ModuleID, error) {
	return p.sigs.SubpipelineIDFromSignature(s)
}

// ConnectionIDFromSignature looks up a connection by a signature computed
// earlier.
func (p *Pipeline) ConnectionIDFromSignature(s signature.Signature) (ConnectionID, error) {
	return p.sigs.ConnectionIDFromSignature(s)
}

// ComputeSignatures fills in every module, sub-pipeline and connection
// signature that is not already memoised.
func (p *Pipeline) ComputeSignatures() error {
	return p.sigs.ComputeSignatures(p.graph.Vertices(), p.connectionIDs())
}

// RefreshSignatures drops every memoised signature and recomputes them all.
func (p *Pipeline) RefreshSignatures() error {
	return p.sigs.RefreshSignatures(p.graph.Vertices(), p.connectionIDs())
}

// SignatureStats reports how many signatures are memoised.
func (p *Pipeline) SignatureStats() signature.Stats { return p.sigs.Stats() }

// Signature returns a signature of the whole pipeline: the order-independent
// combination of the sub-pipeline signatures of its sinks. Pipelines that
// differ only in ids share it.
func (p *Pipeline) Signature() (signature.Signature, error) {
	sinks := p.graph.Sinks()
	subs := make([]string, 0, len(sinks))
	for _, v := range sinks {
		s, err := p.sigs.SubpipelineSignature(v)
		if err != nil {
			return "", err
		}
		subs = append(subs, string(s))
	}
	return signature.Combine("pipeline", subs)
}

// ClassChanged purges the module signatures of every module whose class is
// class or inherits from it. The pipeline registers it as a hierarchy
// watcher; it is exported for callers that mutate classes by other means.
func (p *Pipeline) ClassChanged(class string) {
	if p.resolver == nil {
		return
	}
	affected, err := p.resolver.Hierarchy().Descendants(class)
	if err != nil {
		return
	}
	set := make(map[string]bool, len(affected))
	for _, c := range affected {
		set[c] = true
	}
	n := 0
	for _, id := range p.graph.Vertices() {
		if set[p.modules[id].Class()] {
			p.sigs.ChangeModule(id, id)
			n++
		}
	}
	if n > 0 {
		p.logger.Debug("class ports changed", "class", class, "modules", n)
	}
}

// TopologicalOrder returns the modules with every module after all of its
// upstream modules.
func (p *Pipeline) TopologicalOrder() ([]ModuleID, error) {
	return p.graph.TopologicalSort()
}

// Contractible reports whether ids can be grouped into a single module
// without creating a cycle.
func (p *Pipeline) Contractible(ids []ModuleID) (bool, error) {
	sub, err := p.graph.Subgraph(ids)
	if err != nil {
		return false, fmt.Errorf("contract: %w", ErrModuleNotFound)
	}
	return p.graph.TopologicallyContractible(sub), nil
}

// Components returns the independent parts of the pipeline, each a set of
// modules that are connected ignoring direction.
func (p *Pipeline) Components() [][]ModuleID {
	return p.graph.WeakComponents()
}

// Clone returns an independent copy with the same ids. Signatures are not
// copied; the clone recomputes them on demand.
func (p *Pipeline) Clone() *Pipeline {
	c := New(p.resolver, p.logger)
	for id, m := range p.modules {
		mm := m.clone()
		c.modules[id] = &mm
	}
	for id, conn := range p.connections {
		cc := *conn
		c.connections[id] = &cc
	}
	c.graph = p.graph.Clone()
	return c
}

// CloneFresh returns a copy in which every module and connection has a new
// random id, plus the mapping from old to new module ids. Signatures of the
// copy equal those of p, since they never depend on ids.
func (p *Pipeline) CloneFresh() (*Pipeline, map[ModuleID]ModuleID) {
	vmap := make(map[ModuleID]ModuleID, len(p.modules))
	for id := range p.modules {
		vmap[id] = ModuleID(uuid.NewString())
	}
	emap := make(map[ConnectionID]ConnectionID, len(p.connections))
	for id := range p.connections {
		emap[id] = ConnectionID(uuid.NewString())
	}

	c := New(p.resolver, p.logger)
	for id, m := range p.modules {
		mm := m.clone()
		mm.ID = vmap[id]
		c.modules[mm.ID] = &mm
	}
	for id, conn := range p.connections {
		cc := Connection{
			ID:          emap[id],
			Source:      PortRef{Module: vmap[conn.Source.Module], Port: conn.Source.Port},
			Destination: PortRef{Module: vmap[conn.Destination.Module], Port: conn.Destination.Port},
		}
		c.connections[cc.ID] = &cc
	}
	c.graph = graph.MapVertices(p.graph, vmap, emap)
	return c, vmap
}

func (p *Pipeline) connectionIDs() []ConnectionID {
	ids := make([]ConnectionID, 0, len(p.connections))
	for e := range p.graph.AllEdges() {
		ids = append(ids, e.ID)
	}
	return ids
}
