// Package io reads and writes pipelines as JSON or YAML documents.
//
// # Format
//
// A document has two arrays. Modules carry their class identity and the
// function calls set on them; connections name a source port and a
// destination port by module id:
//
//	{
//	  "modules": [
//	    {"id": "read", "name": "CSVReader", "package": "io", "version": "1.2.0"},
//	    {"id": "plot", "name": "Plot", "package": "viz",
//	     "functions": [{"name": "title", "params": [{"type": "String", "value": "Sales"}]}]}
//	  ],
//	  "connections": [
//	    {"id": "c1",
//	     "source": {"module": "read", "port": "table"},
//	     "destination": {"module": "plot", "port": "data"}}
//	  ]
//	}
//
// The YAML form uses the same field names.
//
// # Loading
//
// Loading replays the document through [pipeline.Pipeline.AddModule] and
// [pipeline.Pipeline.AddConnection], so a loaded pipeline has passed the same
// port and cycle checks as one built by hand. Records may appear in any order
// within their array.
//
// # Saving
//
// Modules and connections are written sorted by id, so saving the same
// pipeline twice produces identical bytes regardless of edit history.
//
// [pipeline.Pipeline.AddModule]: github.com/matzehuels/provgraph/pkg/pipeline.Pipeline.AddModule
// [pipeline.Pipeline.AddConnection]: github.com/matzehuels/provgraph/pkg/pipeline.Pipeline.AddConnection
package io
