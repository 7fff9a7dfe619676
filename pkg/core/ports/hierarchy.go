package ports

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/matzehuels/provgraph/pkg/core/graph"
)

// Hierarchy holds module classes and their inheritance relation. Classes are
// vertices of a graph whose edges run from child to parent, so the ancestors
// of a class are exactly the vertices reachable from it.
//
// A Hierarchy is built once when packages are loaded and passed to whoever
// needs it. It is not safe for concurrent mutation, but any number of
// pipelines may Watch it concurrently.
type Hierarchy struct {
	g       *graph.Graph[string, graph.NoID]
	classes map[string]*Class

	mu       sync.Mutex
	watchers map[int]func(class string)
	nextID   int
}

// NewHierarchy returns a hierarchy holding the built-in Root, Constant and
// Variant classes.
func NewHierarchy() *Hierarchy {
	h := &Hierarchy{
		g:        graph.New[string, graph.NoID](),
		classes:  make(map[string]*Class),
		watchers: make(map[int]func(string)),
	}
	h.g.AddVertex(Root)
	h.classes[Root] = &Class{Name: Root}
	for _, name := range []string{Constant, Variant} {
		_ = h.AddClass(Class{Name: name})
	}
	return h
}

// AddClass registers c. Parents must already be registered; a class without
// parents inherits from Root.
func (h *Hierarchy) AddClass(c Class) error {
	if c.Name == "" {
		return fmt.Errorf("add class: empty name")
	}
	if _, ok := h.classes[c.Name]; ok {
		return fmt.Errorf("add class %s: %w", c.Name, ErrClassExists)
	}
	if len(c.Parents) == 0 {
		c.Parents = []string{Root}
	}
	for _, p := range c.Parents {
		if _, ok := h.classes[p]; !ok {
			return fmt.Errorf("add class %s: parent %s: %w", c.Name, p, ErrClassNotFound)
		}
	}

	stored := &Class{
		Name:    c.Name,
		Parents: slices.Clone(c.Parents),
		Inputs:  cloneTable(c.Inputs),
		Outputs: cloneTable(c.Outputs),
	}
	h.classes[c.Name] = stored
	h.g.AddVertex(c.Name)
	for _, p := range stored.Parents {
		h.g.AddEdge(c.Name, p, graph.NoID{})
	}
	return nil
}

// Has reports whether name is registered.
func (h *Hierarchy) Has(name string) bool {
	_, ok := h.classes[name]
	return ok
}

// Class returns a copy of the named class.
func (h *Hierarchy) Class(name string) (Class, error) {
	c, ok := h.classes[name]
	if !ok {
		return Class{}, fmt.Errorf("class %s: %w", name, ErrClassNotFound)
	}
	return Class{
		Name:    c.Name,
		Parents: slices.Clone(c.Parents),
		Inputs:  cloneTable(c.Inputs),
		Outputs: cloneTable(c.Outputs),
	}, nil
}

// Classes returns every class name in registration order.
func (h *Hierarchy) Classes() []string {
	return h.g.Vertices()
}

// Ancestors returns name followed by its ancestors in breadth-first order.
// This is the order in which port declarations are looked up.
func (h *Hierarchy) Ancestors(name string) ([]string, error) {
	up, err := h.g.Reachable(name)
	if err != nil {
		return nil, fmt.Errorf("ancestors of %s: %w", name, ErrClassNotFound)
	}
	return append([]string{name}, up...), nil
}

// Descendants returns name followed by every class that inherits from it,
// in breadth-first order.
func (h *Hierarchy) Descendants(name string) ([]string, error) {
	down, err := h.g.InverseView().Reachable(name)
	if err != nil {
		return nil, fmt.Errorf("descendants of %s: %w", name, ErrClassNotFound)
	}
	return append([]string{name}, down...), nil
}

// IsSubclass reports whether sub is super or inherits from it. Unknown
// classes are only subclasses of themselves.
func (h *Hierarchy) IsSubclass(sub, super string) bool {
	if sub == super {
		return true
	}
	_, err := h.g.ClosestVertex(sub, []string{super})
	return err == nil
}

// AddPort declares or overrides a port on class and notifies watchers.
func (h *Hierarchy) AddPort(class string, e Endpoint, name string, spec Spec) error {
	c, ok := h.classes[class]
	if !ok {
		return fmt.Errorf("add port %s.%s: %w", class, name, ErrClassNotFound)
	}
	switch e {
	case Source:
		if c.Outputs == nil {
			c.Outputs = make(map[string]Spec)
		}
		c.Outputs[name] = slices.Clone(spec)
	default:
		if c.Inputs == nil {
			c.Inputs = make(map[string]Spec)
		}
		c.Inputs[name] = slices.Clone(spec)
	}
	h.notify(class)
	return nil
}

// RemovePort deletes a port declared directly on class and notifies
// watchers. Inherited declarations are untouched.
func (h *Hierarchy) RemovePort(class string, e Endpoint, name string) error {
	c, ok := h.classes[class]
	if !ok {
		return fmt.Errorf("remove port %s.%s: %w", class, name, ErrClassNotFound)
	}
	table := c.table(e)
	if _, ok := table[name]; !ok {
		return fmt.Errorf("remove %s port %s.%s: %w", e, class, name, ErrPortNotFound)
	}
	delete(table, name)
	h.notify(class)
	return nil
}

// Watch registers fn to be called with the class name whenever a port of
// that class is added or removed. The returned function unregisters fn.
func (h *Hierarchy) Watch(fn func(class string)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.watchers[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.watchers, id)
		h.mu.Unlock()
	}
}

func (h *Hierarchy) notify(class string) {
	h.mu.Lock()
	fns := make([]func(string), 0, len(h.watchers))
	for _, id := range slices.Sorted(maps.Keys(h.watchers)) {
		fns = append(fns, h.watchers[id])
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(class)
	}
}

func cloneTable(t map[string]Spec) map[string]Spec {
	if t == nil {
		return nil
	}
	out := make(map[string]Spec, len(t))
	for k, v := range t {
		out[k] = slices.Clone(v)
	}
	return out
}
