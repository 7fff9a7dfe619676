package ports

import (
	"errors"
	"strings"
)

var (
	// ErrClassNotFound is returned when a class name is not registered.
	ErrClassNotFound = errors.New("class not found")

	// ErrClassExists is returned when registering a class name twice.
	ErrClassExists = errors.New("class already registered")

	// ErrPortNotFound is returned when no class in a hierarchy declares a port.
	ErrPortNotFound = errors.New("port not found")
)

// Built-in classes every hierarchy starts with.
const (
	// Root is the base of every class.
	Root = "Module"
	// Constant is the base of simple-value classes, the ones that can be
	// set directly as parameters.
	Constant = "Constant"
	// Variant is the wildcard type: it matches any type at any position.
	Variant = "Variant"
)

// Endpoint says which side of a connection a port sits on.
type Endpoint int

const (
	// Source ports are outputs.
	Source Endpoint = iota
	// Destination ports are inputs.
	Destination
)

func (e Endpoint) String() string {
	if e == Source {
		return "source"
	}
	return "destination"
}

// Reverse returns the opposite endpoint.
func (e Endpoint) Reverse() Endpoint {
	if e == Source {
		return Destination
	}
	return Source
}

// Item is one position of a port spec.
type Item struct {
	Type    string `json:"type"`
	Label   string `json:"label,omitempty"`
	Default string `json:"default,omitempty"`
}

// Spec is the ordered list of types a port carries.
type Spec []Item

// Types returns the type names of s in order.
func (s Spec) Types() []string {
	types := make([]string, len(s))
	for i, it := range s {
		types[i] = it.Type
	}
	return types
}

// TypeEquals reports whether s and other carry the same types, ignoring
// labels and defaults.
func (s Spec) TypeEquals(other Spec) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i].Type != other[i].Type {
			return false
		}
	}
	return true
}

// IsWildcard reports whether s is exactly the Variant type.
func (s Spec) IsWildcard() bool {
	return len(s) == 1 && s[0].Type == Variant
}

func (s Spec) String() string {
	return "(" + strings.Join(s.Types(), ", ") + ")"
}

// Port is a named, typed connection point on a module class.
type Port struct {
	Name     string   `json:"name"`
	Endpoint Endpoint `json:"endpoint"`
	Spec     Spec     `json:"spec"`
	// ModuleClass is the class that declared the resolved spec, which may
	// be an ancestor of the class the port was looked up on.
	ModuleClass string `json:"module_class"`
}

// Class is a module class and the ports it declares itself. Inherited
// ports are not repeated here; see [Resolver].
type Class struct {
	Name    string          `json:"name"`
	Parents []string        `json:"parents,omitempty"`
	Inputs  map[string]Spec `json:"inputs,omitempty"`
	Outputs map[string]Spec `json:"outputs,omitempty"`
}

func (c Class) table(e Endpoint) map[string]Spec {
	if e == Source {
		return c.Outputs
	}
	return c.Inputs
}
