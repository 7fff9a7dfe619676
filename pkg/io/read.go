package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v2"

	"github.com/matzehuels/provgraph/pkg/core/ports"
	"github.com/matzehuels/provgraph/pkg/pipeline"
)

// Decode parses a document in the given format.
func Decode(r io.Reader, format Format) (Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decode: %w", err)
		}
	case FormatYAML:
		data, err := io.ReadAll(r)
		if err != nil {
			return Document{}, fmt.Errorf("read: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &doc); err != nil {
			return Document{}, fmt.Errorf("decode: %w", err)
		}
	default:
		return Document{}, fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
	return doc, nil
}

// Read decodes a document from r and builds a pipeline from it. The resolver
// and logger are passed to pipeline.New; either may be nil.
//
// Read does not close r.
func Read(r io.Reader, format Format, resolver *ports.Resolver, logger *log.Logger) (*pipeline.Pipeline, error) {
	doc, err := Decode(r, format)
	if err != nil {
		return nil, err
	}
	p := pipeline.New(resolver, logger)
	if err := doc.Build(p); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// Load reads the pipeline file at path, choosing the format from its
// extension.
func Load(path string, resolver *ports.Resolver, logger *log.Logger) (*pipeline.Pipeline, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	p, err := Read(f, format, resolver, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
