package pipeline

import (
	"errors"

	"github.com/matzehuels/provgraph/pkg/core/graph"
	"github.com/matzehuels/provgraph/pkg/core/ports"
	"github.com/matzehuels/provgraph/pkg/core/signature"
	perrors "github.com/matzehuels/provgraph/pkg/errors"
)

// Coded translates errors from pipeline editing into coded errors for the
// CLI and the HTTP API. Errors that already carry a code, and nil, pass
// through unchanged.
func Coded(err error) error {
	if err == nil || perrors.GetCode(err) != "" {
		return err
	}
	switch {
	case errors.Is(err, graph.ErrCycleDetected):
		return perrors.Wrap(perrors.ErrCodeCycleDetected, err, "pipeline would contain a cycle")
	case errors.Is(err, ErrIncompatiblePorts):
		return perrors.Wrap(perrors.ErrCodePortMismatch, err, "ports are not compatible")
	case errors.Is(err, ports.ErrPortNotFound):
		return perrors.Wrap(perrors.ErrCodePortNotFound, err, "port not found")
	case errors.Is(err, ports.ErrClassNotFound):
		return perrors.Wrap(perrors.ErrCodeClassNotFound, err, "module class not registered")
	case errors.Is(err, ErrModuleNotFound), errors.Is(err, graph.ErrVertexNotFound):
		return perrors.Wrap(perrors.ErrCodeModuleNotFound, err, "module not found")
	case errors.Is(err, ErrConnectionNotFound), errors.Is(err, graph.ErrEdgeNotFound):
		return perrors.Wrap(perrors.ErrCodeNotFound, err, "connection not found")
	case errors.Is(err, signature.ErrSignatureNotFound):
		return perrors.Wrap(perrors.ErrCodeSignatureNotFound, err, "signature not found")
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrDuplicateModule),
		errors.Is(err, ErrDuplicateConnection), errors.Is(err, ErrInvalidFunction):
		return perrors.Wrap(perrors.ErrCodeInvalidPipeline, err, "invalid pipeline")
	}
	return perrors.Wrap(perrors.ErrCodeInternal, err, "internal error")
}
