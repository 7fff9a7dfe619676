package signature

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/matzehuels/provgraph/pkg/core/graph"
	"github.com/matzehuels/provgraph/pkg/observability"
)

// Signature layers. They double as hash domains and as the layer label passed
// to observability hooks.
const (
	LayerModule      = "module"
	LayerConnection  = "connection"
	LayerSubpipeline = "subpipeline"

	domainBranch      = "branch"
	domainConnContent = "connection-content"
)

// ErrSignatureNotFound is returned by reverse lookups for a signature that has
// not been materialised by a forward call.
var ErrSignatureNotFound = errors.New("signature not found")

// Source is the view of a pipeline the cache hashes over. Implementations
// report content only; ids must never leak into Content.
type Source[V, E comparable] interface {
	// EdgesTo returns the incoming connections of v.
	EdgesTo(v V) []graph.Arc[V, E]
	// ModuleContent returns the attributes that identify what v computes.
	ModuleContent(v V) (Content, error)
	// ConnectionContent returns the attributes of connection e, typically
	// its port names.
	ConnectionContent(e E) (Content, error)
	// ConnectionEndpoints returns the source and destination modules of e.
	ConnectionEndpoints(e E) (from, to V, err error)
}

// Stats reports how many signatures are memoised per layer.
type Stats struct {
	Modules      int
	Subpipelines int
	Connections  int
}

// Cache memoises module, connection and sub-pipeline signatures for one
// pipeline. It is not safe for concurrent use.
//
// Invalidation must be applied synchronously with every mutation of the
// underlying pipeline: Delete* and Change* drop the affected entries together
// with every sub-pipeline and connection signature that was derived from them.
type Cache[V, E comparable] struct {
	src Source[V, E]

	modules      biMap[V]
	subpipelines biMap[V]
	connections  biMap[E]

	// Derivation records: which memoised values were built from which.
	dependents     map[V]map[V]struct{} // u -> {v : sub(v) used sub(u)}
	edgeDependents map[E]V              // e -> v whose sub(v) used e
	touching       map[V]map[E]struct{} // v -> {e : conn(e) used sub(v)}

	inProgress map[V]struct{}
}

// New returns an empty cache over src.
func New[V, E comparable](src Source[V, E]) *Cache[V, E] {
	c := &Cache[V, E]{src: src}
	c.Reset()
	return c
}

// Reset drops every memoised signature.
func (c *Cache[V, E]) Reset() {
	c.modules = newBiMap[V]()
	c.subpipelines = newBiMap[V]()
	c.connections = newBiMap[E]()
	c.dependents = make(map[V]map[V]struct{})
	c.edgeDependents = make(map[E]V)
	c.touching = make(map[V]map[E]struct{})
	c.inProgress = make(map[V]struct{})
}

// Stats returns the number of memoised signatures per layer.
func (c *Cache[V, E]) Stats() Stats {
	return Stats{
		Modules:      len(c.modules.fwd),
		Subpipelines: len(c.subpipelines.fwd),
		Connections:  len(c.connections.fwd),
	}
}

// ModuleSignature returns the signature of v's own content. It does not
// depend on v's id or its position in the pipeline.
func (c *Cache[V, E]) ModuleSignature(v V) (Signature, error) {
	if s, ok := c.modules.get(v); ok {
		observability.Signatures().OnHit(LayerModule)
		return s, nil
	}
	start := time.Now()
	content, err := c.src.ModuleContent(v)
	if err != nil {
		return "", fmt.Errorf("module %v: %w", v, err)
	}
	s, err := Hash(LayerModule, content...)
	if err != nil {
		return "", err
	}
	c.modules.put(v, s)
	observability.Signatures().OnCompute(LayerModule, time.Since(start))
	return s, nil
}

// SubpipelineSignature returns the signature of v together with everything
// upstream of it. Each incoming connection contributes a branch hash of the
// upstream sub-pipeline and the connection's content; branches are combined
// independently of their order.
func (c *Cache[V, E]) SubpipelineSignature(v V) (Signature, error) {
	if s, ok := c.subpipelines.get(v); ok {
		observability.Signatures().OnHit(LayerSubpipeline)
		return s, nil
	}
	if _, busy := c.inProgress[v]; busy {
		return "", fmt.Errorf("subpipeline %v: %w", v, graph.ErrCycleDetected)
	}
	c.inProgress[v] = struct{}{}
	defer delete(c.inProgress, v)

	start := time.Now()
	mod, err := c.ModuleSignature(v)
	if err != nil {
		return "", err
	}

	arcs := c.src.EdgesTo(v)
	branches := make([]string, 0, len(arcs))
	for _, a := range arcs {
		up, err := c.SubpipelineSignature(a.Vertex)
		if err != nil {
			return "", err
		}
		conn, err := c.connectionContentHash(a.ID)
		if err != nil {
			return "", err
		}
		branch, err := Hash(domainBranch, string(up), string(conn))
		if err != nil {
			return "", err
		}
		branches = append(branches, string(branch))
	}

	s, err := Combine(mod, branches)
	if err != nil {
		return "", err
	}
	c.subpipelines.put(v, s)
	for _, a := range arcs {
		addTo(c.dependents, a.Vertex, v)
		c.edgeDependents[a.ID] = v
	}
	observability.Signatures().OnCompute(LayerSubpipeline, time.Since(start))
	return s, nil
}

// ConnectionSignature returns the signature of e: its own content combined
// with the sub-pipeline signatures of both endpoints.
func (c *Cache[V, E]) ConnectionSignature(e E) (Signature, error) {
	if s, ok := c.connections.get(e); ok {
		observability.Signatures().OnHit(LayerConnection)
		return s, nil
	}
	start := time.Now()
	from, to, err := c.src.ConnectionEndpoints(e)
	if err != nil {
		return "", fmt.Errorf("connection %v: %w", e, err)
	}
	subFrom, err := c.SubpipelineSignature(from)
	if err != nil {
		return "", err
	}
	subTo, err := c.SubpipelineSignature(to)
	if err != nil {
		return "", err
	}
	content, err := c.connectionContentHash(e)
	if err != nil {
		return "", err
	}
	s, err := Hash(LayerConnection, string(subFrom), string(subTo), string(content))
	if err != nil {
		return "", err
	}
	c.connections.put(e, s)
	addTo(c.touching, from, e)
	addTo(c.touching, to, e)
	observability.Signatures().OnCompute(LayerConnection, time.Since(start))
	return s, nil
}

func (c *Cache[V, E]) connectionContentHash(e E) (Signature, error) {
	content, err := c.src.ConnectionContent(e)
	if err != nil {
		return "", fmt.Errorf("connection %v: %w", e, err)
	}
	return Hash(domainConnContent, content...)
}

// ModuleIDFromSignature returns the module most recently memoised under s.
func (c *Cache[V, E]) ModuleIDFromSignature(s Signature) (V, error) {
	if v, ok := c.modules.lookup(s); ok {
		return v, nil
	}
	var zero V
	return zero, fmt.Errorf("module %s: %w", s.Short(), ErrSignatureNotFound)
}

// SubpipelineIDFromSignature returns the module whose sub-pipeline was most
// recently memoised under s.
func (c *Cache[V, E]) SubpipelineIDFromSignature(s Signature) (V, error) {
	if v, ok := c.subpipelines.lookup(s); ok {
		return v, nil
	}
	var zero V
	return zero, fmt.Errorf("subpipeline %s: %w", s.Short(), ErrSignatureNotFound)
}

// ConnectionIDFromSignature returns the connection most recently memoised
// under s.
func (c *Cache[V, E]) ConnectionIDFromSignature(s Signature) (E, error) {
	if e, ok := c.connections.lookup(s); ok {
		return e, nil
	}
	var zero E
	return zero, fmt.Errorf("connection %s: %w", s.Short(), ErrSignatureNotFound)
}

// DeleteModule drops every signature of v and everything derived from it.
func (c *Cache[V, E]) DeleteModule(v V) {
	if c.modules.remove(v) {
		observability.Signatures().OnPurge(LayerModule, 1)
	}
	c.purgeDownstream(v)
}

// DeleteConnection drops the signature of e and the sub-pipeline signatures
// that included it.
func (c *Cache[V, E]) DeleteConnection(e E) {
	if c.connections.remove(e) {
		observability.Signatures().OnPurge(LayerConnection, 1)
	}
	if v, ok := c.edgeDependents[e]; ok {
		delete(c.edgeDependents, e)
		c.purgeDownstream(v)
	}
}

// InvalidateSubpipeline drops the sub-pipeline signature of v and everything
// downstream of it while keeping v's module signature. Call it when v gains
// an input.
func (c *Cache[V, E]) InvalidateSubpipeline(v V) {
	c.purgeDownstream(v)
}

// ChangeModule purges oldID before newID takes its place. The new signature
// is computed lazily on the next query.
func (c *Cache[V, E]) ChangeModule(oldID, newID V) {
	c.DeleteModule(oldID)
	if newID != oldID {
		c.DeleteModule(newID)
	}
}

// ChangeConnection purges oldID before newID takes its place.
func (c *Cache[V, E]) ChangeConnection(oldID, newID E) {
	c.DeleteConnection(oldID)
	if newID != oldID {
		c.DeleteConnection(newID)
	}
}

// purgeDownstream drops the sub-pipeline signature of v and of every module
// whose sub-pipeline was derived from it, along with the connection
// signatures touching any of them.
func (c *Cache[V, E]) purgeDownstream(v V) {
	var subs, conns int
	seen := map[V]struct{}{v: {}}
	queue := []V{v}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if c.subpipelines.remove(u) {
			subs++
		}
		for e := range c.touching[u] {
			if c.connections.remove(e) {
				conns++
			}
		}
		delete(c.touching, u)
		for w := range c.dependents[u] {
			if _, ok := seen[w]; !ok {
				seen[w] = struct{}{}
				queue = append(queue, w)
			}
		}
		delete(c.dependents, u)
	}
	if subs > 0 {
		observability.Signatures().OnPurge(LayerSubpipeline, subs)
	}
	if conns > 0 {
		observability.Signatures().OnPurge(LayerConnection, conns)
	}
}

// ComputeSignatures populates the sub-pipeline (and thereby module) signature
// of every listed module and the signature of every listed connection.
func (c *Cache[V, E]) ComputeSignatures(vertices []V, edges []E) error {
	for _, v := range vertices {
		if _, err := c.SubpipelineSignature(v); err != nil {
			return err
		}
	}
	for _, e := range edges {
		if _, err := c.ConnectionSignature(e); err != nil {
			return err
		}
	}
	return nil
}

// RefreshSignatures discards everything memoised and recomputes from scratch.
func (c *Cache[V, E]) RefreshSignatures(vertices []V, edges []E) error {
	c.Reset()
	return c.ComputeSignatures(vertices, edges)
}

// biMap keeps an id -> signature map and its inverse consistent. Every id
// holding a signature is remembered in claim order, and lookups answer with
// the newest live claimant.
type biMap[K comparable] struct {
	fwd map[K]Signature
	inv map[Signature][]K
}

func newBiMap[K comparable]() biMap[K] {
	return biMap[K]{fwd: make(map[K]Signature), inv: make(map[Signature][]K)}
}

func (m biMap[K]) get(k K) (Signature, bool) {
	s, ok := m.fwd[k]
	return s, ok
}

func (m biMap[K]) lookup(s Signature) (K, bool) {
	ids := m.inv[s]
	if len(ids) == 0 {
		var zero K
		return zero, false
	}
	return ids[len(ids)-1], true
}

func (m biMap[K]) put(k K, s Signature) {
	m.remove(k)
	m.fwd[k] = s
	m.inv[s] = append(m.inv[s], k)
}

// remove drops k. The inverse entry falls back to the previous claimant and
// goes only once no id holds the signature.
func (m biMap[K]) remove(k K) bool {
	s, ok := m.fwd[k]
	if !ok {
		return false
	}
	delete(m.fwd, k)
	ids := slices.DeleteFunc(m.inv[s], func(id K) bool { return id == k })
	if len(ids) == 0 {
		delete(m.inv, s)
	} else {
		m.inv[s] = ids
	}
	return true
}

func addTo[K, T comparable](m map[K]map[T]struct{}, k K, t T) {
	set, ok := m[k]
	if !ok {
		set = make(map[T]struct{})
		m[k] = set
	}
	set[t] = struct{}{}
}
