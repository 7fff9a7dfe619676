package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrConverterMissing is returned when rsvg-convert cannot be found.
var ErrConverterMissing = errors.New("rsvg-convert not found; install librsvg (brew install librsvg, apt install librsvg2-bin)")

// DefaultTimeout bounds one conversion run by the package-level helpers.
const DefaultTimeout = 30 * time.Second

// Converter turns SVG into PDF or PNG by running rsvg-convert.
type Converter struct {
	// Path is the rsvg-convert binary. Empty means look it up on PATH.
	Path string
	// Timeout bounds one conversion. Zero leaves it to ctx.
	Timeout time.Duration
}

var defaultConverter = Converter{Timeout: DefaultTimeout}

// ToPDF converts SVG bytes to PDF with the default converter.
func ToPDF(svg []byte) ([]byte, error) {
	return defaultConverter.ToPDF(context.Background(), svg)
}

// ToPNG converts SVG bytes to PNG at the given scale with the default
// converter. A scale of 2 doubles the resolution.
func ToPNG(svg []byte, scale float64) ([]byte, error) {
	return defaultConverter.ToPNG(context.Background(), svg, scale)
}

// ToPDF converts SVG bytes to PDF.
func (c Converter) ToPDF(ctx context.Context, svg []byte) ([]byte, error) {
	return c.run(ctx, svg, "pdf")
}

// ToPNG converts SVG bytes to PNG at the given scale.
func (c Converter) ToPNG(ctx context.Context, svg []byte, scale float64) ([]byte, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("png scale must be positive, got %v", scale)
	}
	return c.run(ctx, svg, "png", "-z", fmt.Sprintf("%.2f", scale))
}

func (c Converter) run(ctx context.Context, svg []byte, format string, extra ...string) ([]byte, error) {
	bin := c.Path
	if bin == "" {
		bin = "rsvg-convert"
	}
	bin, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%s export: %w", format, ErrConverterMissing)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, append([]string{"-f", format}, extra...)...)
	cmd.Stdin = bytes.NewReader(svg)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("rsvg-convert %s: %w", format, ctx.Err())
		}
		return nil, fmt.Errorf("rsvg-convert %s: %v: %s", format, err, strings.TrimSpace(stderr.String()))
	}
	return out.Bytes(), nil
}
