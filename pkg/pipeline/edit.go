package pipeline

import (
	"fmt"
	"slices"

	"github.com/matzehuels/provgraph/pkg/core/graph"
	"github.com/matzehuels/provgraph/pkg/core/ports"
)

// AddModule inserts m. With a resolver, m's class must be registered.
func (p *Pipeline) AddModule(m Module) error {
	if m.ID == "" {
		return fmt.Errorf("add module: %w", ErrInvalidID)
	}
	if _, ok := p.modules[m.ID]; ok {
		return fmt.Errorf("add module %s: %w", m.ID, ErrDuplicateModule)
	}
	if err := p.checkClass(m); err != nil {
		return err
	}

	stored := m.clone()
	p.modules[m.ID] = &stored
	p.graph.AddVertex(m.ID)
	p.logger.Debug("added module", "id", m.ID, "class", m.Class())
	return nil
}

// DeleteModule removes a module together with every connection touching it.
func (p *Pipeline) DeleteModule(id ModuleID) error {
	if _, ok := p.modules[id]; !ok {
		return fmt.Errorf("delete module %s: %w", id, ErrModuleNotFound)
	}
	for _, a := range slices.Concat(p.graph.EdgesFrom(id), p.graph.EdgesTo(id)) {
		if err := p.DeleteConnection(a.ID); err != nil {
			return err
		}
	}

	p.sigs.DeleteModule(id)
	if err := p.graph.DeleteVertex(id); err != nil {
		return err
	}
	delete(p.modules, id)
	p.logger.Debug("deleted module", "id", id)
	return nil
}

// ChangeModule replaces module oldID with m. m may carry a new id, in which
// case connections are re-pointed at it. If the class changes, every
// existing connection must still resolve against the new class.
func (p *Pipeline) ChangeModule(oldID ModuleID, m Module) error {
	old, ok := p.modules[oldID]
	if !ok {
		return fmt.Errorf("change module %s: %w", oldID, ErrModuleNotFound)
	}
	if m.ID == "" {
		return fmt.Errorf("change module %s: %w", oldID, ErrInvalidID)
	}
	if _, taken := p.modules[m.ID]; taken && m.ID != oldID {
		return fmt.Errorf("change module %s to %s: %w", oldID, m.ID, ErrDuplicateModule)
	}
	if err := p.checkClass(m); err != nil {
		return err
	}
	if m.Class() != old.Class() {
		for _, c := range p.attached(oldID) {
			srcClass, dstClass := p.modules[c.Source.Module].Class(), p.modules[c.Destination.Module].Class()
			if c.Source.Module == oldID {
				srcClass = m.Class()
			}
			if c.Destination.Module == oldID {
				dstClass = m.Class()
			}
			if err := p.checkPorts(c, srcClass, dstClass); err != nil {
				return fmt.Errorf("change module %s: %w", oldID, err)
			}
		}
	}

	p.sigs.ChangeModule(oldID, m.ID)
	if m.ID != oldID {
		if err := p.graph.RenameVertex(oldID, m.ID); err != nil {
			return err
		}
		for _, c := range p.connections {
			if c.Source.Module == oldID {
				c.Source.Module = m.ID
			}
			if c.Destination.Module == oldID {
				c.Destination.Module = m.ID
			}
		}
		delete(p.modules, oldID)
	}
	stored := m.clone()
	p.modules[m.ID] = &stored
	p.logger.Debug("changed module", "old", oldID, "id", m.ID)
	return nil
}

// SetFunction sets (or replaces) a function call on module id. With a
// resolver, f must name a destination port whose spec is all simple values,
// and must pass one parameter per spec item. Empty parameter types are filled
// in from the spec.
func (p *Pipeline) SetFunction(id ModuleID, f Function) error {
	m, ok := p.modules[id]
	if !ok {
		return fmt.Errorf("set function on %s: %w", id, ErrModuleNotFound)
	}
	f.Params = slices.Clone(f.Params)

	if p.resolver != nil {
		port, err := p.resolver.DestinationPort(m.Class(), f.Name)
		if err != nil {
			return fmt.Errorf("set function %s.%s: %w: %w", id, f.Name, ErrInvalidFunction, err)
		}
		if !p.resolver.IsMethod(port.Spec) {
			return fmt.Errorf("set function %s.%s: port %s is not settable: %w", id, f.Name, port.Spec, ErrInvalidFunction)
		}
		if len(f.Params) != len(port.Spec) {
			return fmt.Errorf("set function %s.%s: got %d parameters, port takes %d: %w",
				id, f.Name, len(f.Params), len(port.Spec), ErrInvalidFunction)
		}
		for i := range f.Params {
			if f.Params[i].Type == "" {
				f.Params[i].Type = port.Spec[i].Type
			}
		}
	}

	if i := slices.IndexFunc(m.Functions, func(g Function) bool { return g.Name == f.Name }); i >= 0 {
		m.Functions[i] = f
	} else {
		m.Functions = append(m.Functions, f)
	}
	p.sigs.ChangeModule(id, id)
	return nil
}

// DeleteFunction removes a function call from module id. Removing a
// function that is not set is a no-op.
func (p *Pipeline) DeleteFunction(id ModuleID, name string) error {
	m, ok := p.modules[id]
	if !ok {
		return fmt.Errorf("delete function on %s: %w", id, ErrModuleNotFound)
	}
	n := len(m.Functions)
	m.Functions = slices.DeleteFunc(m.Functions, func(f Function) bool { return f.Name == name })
	if len(m.Functions) != n {
		p.sigs.ChangeModule(id, id)
	}
	return nil
}

// AddConnection wires c. Both modules must exist, the ports must be
// compatible (when a resolver is present) and the connection must not close
// a cycle; a cycle is reported as a *graph.CycleError naming c's endpoints.
func (p *Pipeline) AddConnection(c Connection) error {
	if err := p.checkConnection(c, ""); err != nil {
		return err
	}
	if err := p.checkAcyclic(c, p.graph); err != nil {
		return err
	}

	p.graph.AddEdge(c.Source.Module, c.Destination.Module, c.ID)
	p.connections[c.ID] = &c
	p.sigs.InvalidateSubpipeline(c.Destination.Module)
	p.logger.Debug("added connection", "id", c.ID, "from", c.Source, "to", c.Destination)
	return nil
}

// DeleteConnection removes a connection.
func (p *Pipeline) DeleteConnection(id ConnectionID) error {
	c, ok := p.connections[id]
	if !ok {
		return fmt.Errorf("delete connection %s: %w", id, ErrConnectionNotFound)
	}
	p.sigs.DeleteConnection(id)
	if err := p.graph.DeleteEdgeByID(c.Source.Module, c.Destination.Module, id); err != nil {
		return err
	}
	delete(p.connections, id)
	p.sigs.InvalidateSubpipeline(c.Destination.Module)
	p.logger.Debug("deleted connection", "id", id)
	return nil
}

// ChangeConnection replaces connection oldID with c. When the source module
// is unchanged the edge is retargeted in place, keeping its position among
// the source's outgoing connections.
func (p *Pipeline) ChangeConnection(oldID ConnectionID, c Connection) error {
	old, ok := p.connections[oldID]
	if !ok {
		return fmt.Errorf("change connection %s: %w", oldID, ErrConnectionNotFound)
	}
	if err := p.checkConnection(c, oldID); err != nil {
		return err
	}
	without := p.graph.Clone()
	if err := without.DeleteEdgeByID(old.Source.Module, old.Destination.Module, oldID); err != nil {
		return err
	}
	if err := p.checkAcyclic(c, without); err != nil {
		return err
	}

	prev := *old
	p.sigs.ChangeConnection(oldID, c.ID)
	if prev.Source.Module == c.Source.Module {
		err := p.graph.ChangeEdgeByID(prev.Source.Module, prev.Destination.Module, c.Destination.Module, oldID, c.ID)
		if err != nil {
			return err
		}
	} else {
		if err := p.graph.DeleteEdgeByID(prev.Source.Module, prev.Destination.Module, oldID); err != nil {
			return err
		}
		p.graph.AddEdge(c.Source.Module, c.Destination.Module, c.ID)
	}
	delete(p.connections, oldID)
	p.connections[c.ID] = &c
	p.sigs.InvalidateSubpipeline(prev.Destination.Module)
	p.sigs.InvalidateSubpipeline(c.Destination.Module)
	p.logger.Debug("changed connection", "old", oldID, "id", c.ID)
	return nil
}

// checkClass verifies m's class is registered when ports are checked.
func (p *Pipeline) checkClass(m Module) error {
	if p.resolver == nil || p.resolver.Hierarchy().Has(m.Class()) {
		return nil
	}
	return fmt.Errorf("module %s: class %s: %w", m.ID, m.Class(), ports.ErrClassNotFound)
}

// checkConnection validates ids, endpoints and ports. replacing is the id
// of the connection c is about to replace, or empty.
func (p *Pipeline) checkConnection(c Connection, replacing ConnectionID) error {
	if c.ID == "" {
		return fmt.Errorf("add connection: %w", ErrInvalidID)
	}
	if _, ok := p.connections[c.ID]; ok && c.ID != replacing {
		return fmt.Errorf("add connection %s: %w", c.ID, ErrDuplicateConnection)
	}
	src, ok := p.modules[c.Source.Module]
	if !ok {
		return fmt.Errorf("connection %s: source %s: %w", c.ID, c.Source.Module, ErrModuleNotFound)
	}
	dst, ok := p.modules[c.Destination.Module]
	if !ok {
		return fmt.Errorf("connection %s: destination %s: %w", c.ID, c.Destination.Module, ErrModuleNotFound)
	}
	return p.checkPorts(c, src.Class(), dst.Class())
}

func (p *Pipeline) checkPorts(c Connection, srcClass, dstClass string) error {
	if p.resolver == nil {
		return nil
	}
	sp, err := p.resolver.SourcePort(srcClass, c.Source.Port)
	if err != nil {
		return fmt.Errorf("connection %s: %w", c.ID, err)
	}
	dp, err := p.resolver.DestinationPort(dstClass, c.Destination.Port)
	if err != nil {
		return fmt.Errorf("connection %s: %w", c.ID, err)
	}
	if !p.resolver.PortsCanConnect(sp, dp) {
		return fmt.Errorf("connection %s: %s %s cannot feed %s %s: %w",
			c.ID, c.Source, sp.Spec, c.Destination, dp.Spec, ErrIncompatiblePorts)
	}
	return nil
}

// checkAcyclic rejects c if g already has a path from c's destination back
// to its source.
func (p *Pipeline) checkAcyclic(c Connection, g *graph.Graph[ModuleID, ConnectionID]) error {
	from, to := c.Source.Module, c.Destination.Module
	cycle := &graph.CycleError[ModuleID]{From: from, To: to}
	if from == to {
		return fmt.Errorf("connection %s: %w", c.ID, cycle)
	}
	if _, err := g.ClosestVertex(to, []ModuleID{from}); err == nil {
		return fmt.Errorf("connection %s: %w", c.ID, cycle)
	}
	return nil
}

// attached returns the connections touching module id.
func (p *Pipeline) attached(id ModuleID) []Connection {
	var out []Connection
	for _, a := range p.graph.EdgesFrom(id) {
		out = append(out, *p.connections[a.ID])
	}
	for _, a := range p.graph.EdgesTo(id) {
		out = append(out, *p.connections[a.ID])
	}
	return out
}
