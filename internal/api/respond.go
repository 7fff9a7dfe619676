package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	perrors "github.com/matzehuels/provgraph/pkg/errors"
	"github.com/matzehuels/provgraph/pkg/pipeline"
)

var validate = validator.New()

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error struct {
		Code    perrors.Code `json:"code"`
		Message string       `json:"message"`
		Detail  string       `json:"detail,omitempty"`
	} `json:"error"`
}

// statusFor maps error codes to HTTP statuses.
func statusFor(code perrors.Code) int {
	switch code {
	case perrors.ErrCodeInvalidInput, perrors.ErrCodeInvalidPipeline, perrors.ErrCodeInvalidFormat,
		perrors.ErrCodeInvalidName, perrors.ErrCodeInvalidPath, perrors.ErrCodeInvalidRegistry:
		return http.StatusBadRequest
	case perrors.ErrCodeCycleDetected, perrors.ErrCodePortMismatch:
		return http.StatusUnprocessableEntity
	case perrors.ErrCodeNotFound, perrors.ErrCodeModuleNotFound, perrors.ErrCodeClassNotFound,
		perrors.ErrCodePortNotFound, perrors.ErrCodeSignatureNotFound, perrors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case perrors.ErrCodeCacheUnavailable:
		return http.StatusServiceUnavailable
	case perrors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "error", err)
	}
}

// writeError translates err into a coded JSON error. Uncoded errors go
// through pipeline.Coded first.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	err = pipeline.Coded(err)
	code := perrors.GetCode(err)
	status := statusFor(code)

	var body errorBody
	body.Error.Code = code
	body.Error.Message = perrors.UserMessage(err)
	if cause := errors.Unwrap(err); cause != nil {
		body.Error.Detail = cause.Error()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "code", code, "error", err)
	}
	s.writeJSON(w, status, body)
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return perrors.New(perrors.ErrCodeInvalidInput, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "malformed request body")
	}
	if err := validate.Struct(v); err != nil {
		return perrors.New(perrors.ErrCodeInvalidInput, "%s", describe(err))
	}
	return nil
}

// describe turns validator errors into one line naming the failing fields.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s must satisfy %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		} else {
			msgs[i] = fmt.Sprintf("%s must satisfy %s", fe.Namespace(), fe.Tag())
		}
	}
	return strings.Join(msgs, "; ")
}
