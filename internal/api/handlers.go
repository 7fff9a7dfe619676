package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/provgraph/pkg/buildinfo"
	"github.com/matzehuels/provgraph/pkg/core/ports"
	"github.com/matzehuels/provgraph/pkg/core/signature"
	perrors "github.com/matzehuels/provgraph/pkg/errors"
	pio "github.com/matzehuels/provgraph/pkg/io"
	"github.com/matzehuels/provgraph/pkg/pipeline"
	"github.com/matzehuels/provgraph/pkg/registry"
	"github.com/matzehuels/provgraph/pkg/render/nodelink"
)

// =============================================================================
// Request and response types
// =============================================================================

// pipelineBody is a pipeline document as sent by clients.
type pipelineBody struct {
	Modules     []pipeline.Module     `json:"modules" validate:"required,min=1"`
	Connections []pipeline.Connection `json:"connections"`
}

func (b pipelineBody) document() pio.Document {
	return pio.Document{Modules: b.Modules, Connections: b.Connections}
}

type contractRequest struct {
	Pipeline pipelineBody        `json:"pipeline"`
	Modules  []pipeline.ModuleID `json:"modules" validate:"required,min=1,dive,required"`
}

type renderRequest struct {
	Pipeline pipelineBody `json:"pipeline"`
	Format   string       `json:"format" validate:"omitempty,oneof=dot svg png pdf"`
	RankDir  string       `json:"rankdir" validate:"omitempty,oneof=TB LR BT RL"`
	Detailed bool         `json:"detailed"`
	// Plan colours modules by artifact cache state.
	Plan bool `json:"plan"`
}

type portQuery struct {
	Class string `json:"class" validate:"required"`
	Port  string `json:"port" validate:"required"`
}

type connectableRequest struct {
	Source      portQuery `json:"source"`
	Destination portQuery `json:"destination"`
}

type problem struct {
	Module  pipeline.ModuleID `json:"module"`
	Message string            `json:"message"`
}

type checkResponse struct {
	Valid      bool      `json:"valid"`
	Problems   []problem `json:"problems"`
	Components int       `json:"components"`
}

type classInfo struct {
	Name    string   `json:"name"`
	Package string   `json:"package,omitempty"`
	Module  bool     `json:"module"`
	Parents []string `json:"parents,omitempty"`
}

type portsResponse struct {
	classInfo
	Sources      []ports.Port        `json:"sources"`
	Destinations []ports.Port        `json:"destinations"`
	Methods      []ports.Port        `json:"methods"`
	PortSet      signature.Signature `json:"port_set"`
}

type connectableResponse struct {
	Connectable bool       `json:"connectable"`
	Source      ports.Port `json:"source"`
	Destination ports.Port `json:"destination"`
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  buildinfo.Get().Version,
		"packages": packageCount(s.Registry()),
	})
}

// build replays body into a fresh pipeline over the current registry. The
// caller must Close the pipeline.
func (s *Server) build(body pipelineBody) (*pipeline.Pipeline, *registry.Registry, error) {
	reg := s.Registry()
	p := pipeline.New(s.resolver(reg), s.logger)
	if err := body.document().Build(p); err != nil {
		p.Close()
		return nil, nil, err
	}
	return p, reg, nil
}

func (s *Server) handleSignatures(w http.ResponseWriter, r *http.Request) {
	var body pipelineBody
	if err := s.decode(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, _, err := s.build(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer p.Close()

	resp, err := p.Report()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var body pipelineBody
	if err := s.decode(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, _, err := s.build(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer p.Close()

	plan, err := s.planner.Plan(r.Context(), p)
	if err != nil {
		s.writeError(w, r, perrors.Wrap(perrors.ErrCodeCacheUnavailable, err, "artifact cache lookup failed"))
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var body pipelineBody
	if err := s.decode(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, reg, err := s.build(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer p.Close()

	resp := checkResponse{Problems: []problem{}, Components: len(p.Components())}
	if reg != nil {
		for _, pr := range reg.CheckPipeline(p) {
			resp.Problems = append(resp.Problems, problem{Module: pr.Module, Message: pr.Err.Error()})
		}
	}
	resp.Valid = len(resp.Problems) == 0
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleContractible(w http.ResponseWriter, r *http.Request) {
	var req contractRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, _, err := s.build(req.Pipeline)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer p.Close()

	ok, err := p.Contractible(req.Modules)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"contractible": ok})
}

var contentTypes = map[string]string{
	nodelink.FormatDOT: "text/vnd.graphviz",
	nodelink.FormatSVG: "image/svg+xml",
	nodelink.FormatPNG: "image/png",
	nodelink.FormatPDF: "application/pdf",
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Format == "" {
		req.Format = nodelink.FormatSVG
	}
	p, _, err := s.build(req.Pipeline)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer p.Close()

	opts := nodelink.Options{Detailed: req.Detailed, RankDir: req.RankDir}
	if req.Plan {
		plan, err := s.planner.Plan(r.Context(), p)
		if err != nil {
			s.writeError(w, r, perrors.Wrap(perrors.ErrCodeCacheUnavailable, err, "artifact cache lookup failed"))
			return
		}
		opts = opts.FromPlan(plan)
	}
	data, hit, err := nodelink.RenderCached(r.Context(), s.cache, s.keyer, p, req.Format, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypes[req.Format])
	if hit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleConnectable(w http.ResponseWriter, r *http.Request) {
	var req connectableRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	reg := s.Registry()
	if reg == nil {
		s.writeError(w, r, perrors.New(perrors.ErrCodeUnsupported, "no registry loaded"))
		return
	}
	res := reg.Resolver()
	src, err := res.SourcePort(req.Source.Class, req.Source.Port)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dst, err := res.DestinationPort(req.Destination.Class, req.Destination.Port)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, connectableResponse{
		Connectable: res.PortsCanConnect(src, dst),
		Source:      src,
		Destination: dst,
	})
}

func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	reg := s.Registry()
	if reg == nil {
		s.writeError(w, r, perrors.New(perrors.ErrCodeUnsupported, "no registry loaded"))
		return
	}
	h := reg.Hierarchy()
	names := h.Classes()
	out := make([]classInfo, 0, len(names))
	for _, name := range names {
		out = append(out, describeClass(reg, name))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func describeClass(reg *registry.Registry, name string) classInfo {
	info := classInfo{Name: name, Module: reg.IsModule(name)}
	info.Package, _ = reg.Owner(name)
	if c, err := reg.Hierarchy().Class(name); err == nil {
		info.Parents = c.Parents
	}
	return info
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	reg := s.Registry()
	if reg == nil {
		s.writeError(w, r, perrors.New(perrors.ErrCodeUnsupported, "no registry loaded"))
		return
	}
	name := chi.URLParam(r, "name")
	if err := perrors.ValidateClassName(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	res := reg.Resolver()

	resp := portsResponse{classInfo: describeClass(reg, name)}
	var err error
	if resp.Sources, err = res.SourcePorts(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	if resp.Destinations, err = res.DestinationPorts(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	if resp.Methods, err = res.MethodPorts(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	if resp.PortSet, err = res.PortSetSignature(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// signatureParam reads and validates the {signature} URL parameter.
func signatureParam(r *http.Request) (signature.Signature, error) {
	sig := chi.URLParam(r, "signature")
	if err := validate.Var(sig, "len=64,hexadecimal,lowercase"); err != nil {
		return "", perrors.New(perrors.ErrCodeInvalidInput, "signature must be 64 lowercase hex characters")
	}
	return signature.Signature(sig), nil
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	sig, err := signatureParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	port := r.URL.Query().Get("port")
	data, ok, err := s.planner.Lookup(r.Context(), sig, port)
	if err != nil {
		s.writeError(w, r, perrors.Wrap(perrors.ErrCodeCacheUnavailable, err, "artifact cache lookup failed"))
		return
	}
	if !ok {
		s.writeError(w, r, perrors.New(perrors.ErrCodeNotFound, "no result stored for %s", sig.Short()))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handlePutResult(w http.ResponseWriter, r *http.Request) {
	sig, err := signatureParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var ttl time.Duration
	if v := r.URL.Query().Get("ttl"); v != "" {
		if ttl, err = time.ParseDuration(v); err != nil || ttl < 0 {
			s.writeError(w, r, perrors.New(perrors.ErrCodeInvalidInput, "ttl %q is not a non-negative duration", v))
			return
		}
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, perrors.New(perrors.ErrCodeInvalidInput, "result exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeError(w, r, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "read body"))
		return
	}
	if err := s.planner.Record(r.Context(), sig, r.URL.Query().Get("port"), data, ttl); err != nil {
		s.writeError(w, r, perrors.Wrap(perrors.ErrCodeCacheUnavailable, err, "artifact cache write failed"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
