package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/matzehuels/provgraph/pkg/pipeline"
)

// Encode writes doc in the given format.
func Encode(w io.Writer, doc Document, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
	case FormatYAML:
		data, err := yaml.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	default:
		return fmt.Errorf("%q: %w", format, ErrUnknownFormat)
	}
	return nil
}

// Write encodes p to w.
func Write(p *pipeline.Pipeline, w io.Writer, format Format) error {
	return Encode(w, FromPipeline(p), format)
}

// Save writes p to the file at path, choosing the format from its extension.
func Save(p *pipeline.Pipeline, path string) error {
	format, err := FormatForPath(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(p, f, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
