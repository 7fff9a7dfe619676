package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/provgraph/pkg/cache"
	"github.com/matzehuels/provgraph/pkg/core/signature"
)

// DefaultConcurrency bounds the number of concurrent artifact cache lookups.
const DefaultConcurrency = 8

// Planner is the executor-side consumer of signatures. For each module it
// asks the artifact cache whether a result for the module's sub-pipeline
// signature already exists, and stores new results under that signature.
//
// The Planner holds no pipeline state. Multiple goroutines may share one
// Planner as long as each plans a different Pipeline.
type Planner struct {
	Cache       cache.Cache
	Keyer       cache.Keyer
	Logger      *log.Logger
	Concurrency int
}

// NewPlanner creates a planner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (every module is a miss).
func NewPlanner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Planner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Planner{
		Cache:       c,
		Keyer:       keyer,
		Logger:      logger,
		Concurrency: DefaultConcurrency,
	}
}

// Step is the plan for one module.
type Step struct {
	Module    ModuleID            `json:"module"`
	Class     string              `json:"class"`
	Signature signature.Signature `json:"signature"`
	// Hit is true when the artifact cache already holds a result.
	Hit bool `json:"hit"`
	// SameAs names an earlier module in the same pipeline with an identical
	// sub-pipeline, whose result can be shared.
	SameAs ModuleID `json:"same_as,omitempty"`
}

// Plan lists the steps of a pipeline in execution order.
type Plan struct {
	Steps []Step `json:"steps"`
	Stats Stats  `json:"stats"`
}

// Stats summarises a plan.
type Stats struct {
	Modules    int           `json:"modules"`
	Hits       int           `json:"hits"`
	Misses     int           `json:"misses"`
	Duplicates int           `json:"duplicates"`
	Duration   time.Duration `json:"duration"`
}

// Plan computes the sub-pipeline signature of every module in topological
// order and checks the artifact cache for each. Signatures are computed
// sequentially; only cache lookups run concurrently.
func (pl *Planner) Plan(ctx context.Context, p *Pipeline) (*Plan, error) {
	start := time.Now()

	order, err := p.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	steps := make([]Step, len(order))
	first := make(map[signature.Signature]ModuleID, len(order))
	for i, id := range order {
		sig, err := p.SubpipelineSignature(id)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", id, err)
		}
		steps[i] = Step{Module: id, Class: p.modules[id].Class(), Signature: sig}
		if prev, ok := first[sig]; ok {
			steps[i].SameAs = prev
		} else {
			first[sig] = id
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := pl.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g.SetLimit(limit)
	for i := range steps {
		g.Go(func() error {
			key := pl.Keyer.ResultKey(string(steps[i].Signature), cache.ResultKeyOpts{})
			_, hit, err := pl.Cache.Get(gctx, key)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", steps[i].Module, err)
			}
			steps[i].Hit = hit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	plan := &Plan{Steps: steps}
	plan.Stats.Modules = len(steps)
	for _, s := range steps {
		switch {
		case s.Hit:
			plan.Stats.Hits++
		case s.SameAs != "":
			plan.Stats.Duplicates++
		default:
			plan.Stats.Misses++
		}
	}
	plan.Stats.Duration = time.Since(start)

	pl.Logger.Info("planned pipeline",
		"modules", plan.Stats.Modules,
		"hits", plan.Stats.Hits,
		"misses", plan.Stats.Misses,
		"duplicates", plan.Stats.Duplicates,
		"duration", plan.Stats.Duration)
	return plan, nil
}

// Record stores the result of a sub-pipeline. An empty port stores the
// module's whole result, which is what Plan looks for.
func (pl *Planner) Record(ctx context.Context, sig signature.Signature, port string, data []byte, ttl time.Duration) error {
	key := pl.Keyer.ResultKey(string(sig), cache.ResultKeyOpts{Port: port})
	if err := pl.Cache.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("record %s: %w", sig.Short(), err)
	}
	pl.Logger.Debug("recorded result", "signature", sig.Short(), "port", port, "bytes", len(data))
	return nil
}

// Lookup fetches a stored result.
func (pl *Planner) Lookup(ctx context.Context, sig signature.Signature, port string) ([]byte, bool, error) {
	return pl.Cache.Get(ctx, pl.Keyer.ResultKey(string(sig), cache.ResultKeyOpts{Port: port}))
}
