package cache

// Keyer generates cache keys for the kinds of entries provgraph stores.
type Keyer interface {
	// ResultKey is the key of a module output computed by the sub-pipeline
	// with the given signature.
	ResultKey(subpipeline string, opts ResultKeyOpts) string

	// ArtifactKey is the key of a rendered pipeline diagram.
	ArtifactKey(pipelineHash string, opts ArtifactKeyOpts) string
}

// ResultKeyOpts distinguishes the outputs of one sub-pipeline.
type ResultKeyOpts struct {
	Port string `json:"port,omitempty"`
}

// ArtifactKeyOpts captures the rendering options that change the output.
type ArtifactKeyOpts struct {
	Format   string `json:"format"`
	RankDir  string `json:"rankdir,omitempty"`
	Detailed bool   `json:"detailed,omitempty"`
}

// DefaultKeyer produces keys of the form "<kind>:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ResultKey hashes the sub-pipeline signature together with the options.
func (DefaultKeyer) ResultKey(subpipeline string, opts ResultKeyOpts) string {
	return hashKey("result", subpipeline, opts)
}

// ArtifactKey hashes the pipeline hash together with the options.
func (DefaultKeyer) ArtifactKey(pipelineHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", pipelineHash, opts)
}
