package pipeline

import (
	"github.com/matzehuels/provgraph/pkg/core/signature"
)

// Report lists every signature of a pipeline.
type Report struct {
	Pipeline    signature.Signature   `json:"pipeline"`
	Modules     []ModuleSignatures    `json:"modules"`
	Connections []ConnectionSignature `json:"connections"`
}

// ModuleSignatures holds the two signatures of one module.
type ModuleSignatures struct {
	ID          ModuleID            `json:"id"`
	Class       string              `json:"class"`
	Module      signature.Signature `json:"module"`
	Subpipeline signature.Signature `json:"subpipeline"`
}

// ConnectionSignature holds the signature of one connection.
type ConnectionSignature struct {
	ID          ConnectionID        `json:"id"`
	Source      PortRef             `json:"source"`
	Destination PortRef             `json:"destination"`
	Signature   signature.Signature `json:"signature"`
}

// Report computes every signature of p. Modules are listed in topological
// order and connections grouped by source module.
func (p *Pipeline) Report() (Report, error) {
	var r Report
	order, err := p.TopologicalOrder()
	if err != nil {
		return r, err
	}
	for _, id := range order {
		mod, err := p.ModuleSignature(id)
		if err != nil {
			return r, err
		}
		sub, err := p.SubpipelineSignature(id)
		if err != nil {
			return r, err
		}
		r.Modules = append(r.Modules, ModuleSignatures{
			ID:          id,
			Class:       p.modules[id].Class(),
			Module:      mod,
			Subpipeline: sub,
		})
	}
	for _, c := range p.Connections() {
		sig, err := p.ConnectionSignature(c.ID)
		if err != nil {
			return r, err
		}
		r.Connections = append(r.Connections, ConnectionSignature{
			ID:          c.ID,
			Source:      c.Source,
			Destination: c.Destination,
			Signature:   sig,
		})
	}
	r.Pipeline, err = p.Signature()
	return r, err
}
