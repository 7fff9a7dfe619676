package nodelink

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/provgraph/pkg/cache"
	"github.com/matzehuels/provgraph/pkg/pipeline"
)

// ArtifactTTL is how long rendered diagrams stay in the artifact cache.
const ArtifactTTL = 7 * 24 * time.Hour

// RenderCached is Render backed by an artifact cache. The key covers the
// pipeline signature and the id each module is drawn under, so a diagram is
// reused until the pipeline is edited. Plan overlays (Hits and Shared) depend
// on cache state rather than content and bypass the cache. The boolean
// reports whether the diagram came from c.
func RenderCached(ctx context.Context, c cache.Cache, keyer cache.Keyer, p *pipeline.Pipeline, format string, opts Options) ([]byte, bool, error) {
	if len(opts.Hits) > 0 || len(opts.Shared) > 0 {
		data, err := Render(p, format, opts)
		return data, false, err
	}
	if err := ValidateFormat(format); err != nil {
		return nil, false, err
	}
	digest, err := diagramDigest(p)
	if err != nil {
		return nil, false, err
	}
	key := keyer.ArtifactKey(digest, cache.ArtifactKeyOpts{
		Format:   format,
		RankDir:  opts.RankDir,
		Detailed: opts.Detailed,
	})
	if data, ok, err := c.Get(ctx, key); err != nil {
		return nil, false, fmt.Errorf("artifact cache: %w", err)
	} else if ok {
		return data, true, nil
	}

	data, err := Render(p, format, opts)
	if err != nil {
		return nil, false, err
	}
	if err := c.Set(ctx, key, data, ArtifactTTL); err != nil {
		return nil, false, fmt.Errorf("artifact cache: %w", err)
	}
	return data, false, nil
}

// diagramDigest identifies everything a diagram shows: the pipeline signature
// and each module id paired with its sub-pipeline signature.
func diagramDigest(p *pipeline.Pipeline) (string, error) {
	sig, err := p.Signature()
	if err != nil {
		return "", err
	}
	lines := []string{string(sig)}
	for _, m := range p.Modules() {
		sub, err := p.SubpipelineSignature(m.ID)
		if err != nil {
			return "", err
		}
		lines = append(lines, string(m.ID)+" "+string(sub))
	}
	slices.Sort(lines[1:])
	return cache.Hash([]byte(strings.Join(lines, "\n"))), nil
}
