// Package pkg provides the core libraries for provgraph, which tracks what
// a workflow pipeline computes.
//
// # Overview
//
// A pipeline is a directed acyclic graph of modules joined by typed
// connections. provgraph gives every module, connection and sub-pipeline a
// content signature, so two steps that do identical work are recognised
// regardless of their ids. The pkg directory is organized into these areas:
//
//  1. [core] - Domain logic (generic graph, signature cache, port resolution)
//  2. [pipeline] - Editable pipelines and the cache planner
//  3. [registry] - HCL package definitions loaded into a class hierarchy
//  4. [io] - JSON and YAML pipeline documents
//  5. [cache] - Artifact cache backends (file, Redis, badger)
//  6. [render] - Node-link diagrams
//
// # Architecture
//
// The typical data flow:
//
//	Registry files (.hcl)
//	         ↓
//	    [registry] package (classes, ports, versions)
//	         ↓
//	    [io] package (read a pipeline document)
//	         ↓
//	    [pipeline] package (edit, check ports, compute signatures)
//	         ↓
//	    [cache] lookups / [render/nodelink] diagrams
//
// # Quick Start
//
// Load a registry and print a pipeline's signature:
//
//	import (
//	    "github.com/matzehuels/provgraph/pkg/io"
//	    "github.com/matzehuels/provgraph/pkg/registry"
//	)
//
//	reg, _ := registry.Load(nil, "packages/")
//	p, _ := io.Load("pipeline.json", reg.Resolver(), nil)
//	defer p.Close()
//	sig, _ := p.Signature()
//
// # Main Packages
//
// ## Core Domain Logic
//
// [core/graph] - Generic directed multigraph with cycle-checked topological
// sort, subgraphs, contractibility and weak components.
//
// [core/signature] - Memoised, content-addressed signatures over any graph
// that implements signature.Source, with downstream invalidation.
//
// [core/ports] - Class hierarchy and the resolver that answers which ports a
// class exposes and which can be connected.
//
// ## Pipelines
//
// [pipeline] - The editable pipeline and the Planner that asks an artifact
// cache which sub-pipelines already have results.
//
// ## Infrastructure
//
// [cache] - Cache interface with file, Redis, badger and null backends plus
// a Keyer for result and artifact keys.
//
// [observability] - Hook registry for metrics; no-ops until installed.
//
// [errors] - Coded errors shared by the CLI and the HTTP API.
//
// [core]: https://pkg.go.dev/github.com/matzehuels/provgraph/pkg/core
// [core/graph]: https://pkg.go.dev/github.com/matzehuels/provgraph/pkg/core/graph
// [core/signature]: https://pkg.go.dev/github.com/matzehuels/provgraph/pkg/core/signature
// [core/ports]: https://pkg.go.dev/github.com/matzehuels/provgraph/pkg/core/ports
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/provgraph/pkg/pipeline
// [registry]: https://pkg.go.dev/github.com/matzehuels/provgraph/pkg/registry
// [io]: https://pkg.go.dev/github.com/matzehuels/provgraph/pkg/io
// [cache]: https://pkg.go.dev/github.com/matzehuels/provgraph/pkg/cache
// [render]: https://pkg.go.dev/github.com/matzehuels/provgraph/pkg/render
// [observability]: https://pkg.go.dev/github.com/matzehuels/provgraph/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/provgraph/pkg/errors
//
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/provgraph/pkg/render/nodelink
package pkg
