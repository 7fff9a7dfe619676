package cache

// ScopedKeyer wraps a Keyer with a prefix so that several pipelines or
// tenants can share one backend without seeing each other's entries.
//
// Example usage:
//
//	// Results of one project on a shared Redis
//	k := NewScopedKeyer(NewDefaultKeyer(), "project:climate:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ResultKey generates a prefixed result key.
func (k *ScopedKeyer) ResultKey(subpipeline string, opts ResultKeyOpts) string {
	return k.prefix + k.inner.ResultKey(subpipeline, opts)
}

// ArtifactKey generates a prefixed artifact key.
func (k *ScopedKeyer) ArtifactKey(pipelineHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(pipelineHash, opts)
}
