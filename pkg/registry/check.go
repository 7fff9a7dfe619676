package registry

import (
	"github.com/matzehuels/provgraph/pkg/pipeline"
)

// Problem is a module that does not fit the registry.
type Problem struct {
	Module pipeline.ModuleID
	Err    error
}

// CheckPipeline runs CheckModule on every module of p in insertion order and
// returns the modules that fail. Port compatibility is checked when the
// pipeline is built, so a pipeline built against r.Resolver() only fails
// here on package and version mismatches.
func (r *Registry) CheckPipeline(p *pipeline.Pipeline) []Problem {
	var problems []Problem
	for _, m := range p.Modules() {
		if err := r.CheckModule(m.Class(), m.Package, m.Version); err != nil {
			problems = append(problems, Problem{Module: m.ID, Err: err})
		}
	}
	return problems
}
