// Package render converts rendered SVG to other output formats.
//
// Diagram generation lives in [nodelink]; this package only holds the format
// conversion shared by renderers.
//
// # Format Conversion
//
// [ToPDF] and [ToPNG] convert SVG using the external rsvg-convert tool from
// librsvg:
//
//	pdf, err := render.ToPDF(svg)
//	png, err := render.ToPNG(svg, 2.0) // 2x scale
//
// A [Converter] sets the binary path and a timeout and takes a context.
// When rsvg-convert is missing every conversion fails with
// [ErrConverterMissing]. SVG output needs no external tools.
package render
