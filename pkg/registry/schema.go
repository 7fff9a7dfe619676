package registry

import (
	"github.com/zclconf/go-cty/cty"
)

type fileSchema struct {
	Packages []*packageBlock `hcl:"package,block"`
}

type packageBlock struct {
	Name     string            `hcl:"name,label"`
	Version  string            `hcl:"version"`
	Requires map[string]string `hcl:"requires,optional"`
	Include  []string          `hcl:"include,optional"`
	Types    []*classBlock     `hcl:"type,block"`
	Modules  []*classBlock     `hcl:"module,block"`
}

type classBlock struct {
	Name    string       `hcl:"name,label"`
	Parents []string     `hcl:"parents,optional"`
	Inputs  []*portBlock `hcl:"input,block"`
	Outputs []*portBlock `hcl:"output,block"`
}

// portBlock declares a port either with a single type or with a list of
// types, one per spec item.
type portBlock struct {
	Name    string     `hcl:"name,label"`
	Type    string     `hcl:"type,optional"`
	Types   []string   `hcl:"types,optional"`
	Labels  []string   `hcl:"labels,optional"`
	Default *cty.Value `hcl:"default,optional"`
}
