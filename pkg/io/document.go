package io

import (
	"cmp"
	"errors"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/provgraph/pkg/pipeline"
)

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for a file extension that maps to no format.
var ErrUnknownFormat = errors.New("unknown document format")

// FormatForPath picks a format from a file extension: .json, .yaml or .yml.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", ErrUnknownFormat
}

// Document is the serialised form of a pipeline.
type Document struct {
	Modules     []pipeline.Module     `json:"modules" yaml:"modules"`
	Connections []pipeline.Connection `json:"connections" yaml:"connections"`
}

// FromPipeline captures p as a document with records sorted by id.
func FromPipeline(p *pipeline.Pipeline) Document {
	doc := Document{
		Modules:     p.Modules(),
		Connections: p.Connections(),
	}
	slices.SortFunc(doc.Modules, func(a, b pipeline.Module) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(doc.Connections, func(a, b pipeline.Connection) int { return cmp.Compare(a.ID, b.ID) })
	return doc
}

// Build replays doc into p. Every module is added before any connection, so
// connections may reference modules listed after them.
func (doc Document) Build(p *pipeline.Pipeline) error {
	for _, m := range doc.Modules {
		if err := p.AddModule(m); err != nil {
			return err
		}
	}
	for _, c := range doc.Connections {
		if err := p.AddConnection(c); err != nil {
			return err
		}
	}
	return nil
}
