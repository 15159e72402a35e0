package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/straja-ai/aidetect/internal/analyzer"
	"github.com/straja-ai/aidetect/internal/binding"
	"github.com/straja-ai/aidetect/internal/engine"
	"github.com/straja-ai/aidetect/internal/redact"
	"github.com/straja-ai/aidetect/internal/result"
)

const requestIDHeader = "X-Request-Id"

type analyzeTextRequest struct {
	Text string `json:"text"`
}

type analyzeTokensRequest struct {
	IDs  []int32 `json:"ids"`
	Mask []int32 `json:"mask"`
}

type analyzeResponse struct {
	RequestID string        `json:"request_id"`
	Result    result.Result `json:"result"`
	Report    result.Report `json:"report"`
}

type reloadRequest struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256,omitempty"`
}

type modelResponse struct {
	Path    string            `json:"path"`
	Loaded  bool              `json:"loaded"`
	Layout  binding.Layout    `json:"layout"`
	Outputs []engine.SlotInfo `json:"outputs"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var loaded bool
	_ = s.withAnalyzer(func(a *analyzer.Analyzer) error {
		loaded = a != nil && a.Loaded()
		return nil
	})
	if !loaded {
		http.Error(w, "no model loaded", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	var resp modelResponse
	_ = s.withAnalyzer(func(a *analyzer.Analyzer) error {
		if a == nil {
			return nil
		}
		resp = modelResponse{
			Path:    redact.URL(a.ModelPath()),
			Loaded:  a.Loaded(),
			Layout:  a.Layout(),
			Outputs: a.Outputs(),
		}
		return nil
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	requestID := s.begin(w, "text")
	var req analyzeTextRequest
	if !s.decode(w, r, requestID, &req) {
		return
	}
	if req.Text == "" {
		s.fail(w, requestID, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	s.analyze(w, requestID, func(a *analyzer.Analyzer) (result.Result, error) {
		return a.AnalyzeText(req.Text)
	})
}

func (s *Server) handleAnalyzeTokens(w http.ResponseWriter, r *http.Request) {
	requestID := s.begin(w, "tokens")
	var req analyzeTokensRequest
	if !s.decode(w, r, requestID, &req) {
		return
	}
	s.analyze(w, requestID, func(a *analyzer.Analyzer) (result.Result, error) {
		return a.AnalyzeTokenIDs(req.IDs, req.Mask)
	})
}

func (s *Server) analyze(w http.ResponseWriter, requestID string, fn func(*analyzer.Analyzer) (result.Result, error)) {
	var res result.Result
	err := s.withAnalyzer(func(a *analyzer.Analyzer) error {
		if a == nil {
			return engine.ErrUninitialized
		}
		var err error
		res, err = fn(a)
		return err
	})
	if err != nil {
		s.failErr(w, requestID, err)
		return
	}
	s.requests.Complete(requestID, res, "")
	writeJSON(w, http.StatusOK, analyzeResponse{
		RequestID: requestID,
		Result:    res,
		Report:    res.Report(),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	w.Header().Set(requestIDHeader, requestID)
	var req reloadRequest
	if !s.decode(w, r, requestID, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		s.fail(w, requestID, http.StatusBadRequest, "invalid_request", "path is required")
		return
	}

	local := req.Path
	if s.resolver != nil {
		var err error
		local, err = s.resolver.Resolve(r.Context(), req.Path, req.SHA256)
		if err != nil {
			s.log.Warn("model resolve failed", redact.URLField("ref", req.Path), zap.Error(err))
			s.fail(w, requestID, http.StatusConflict, "resolve", redact.String(err.Error()))
			return
		}
	}

	var resp modelResponse
	err := s.withAnalyzer(func(a *analyzer.Analyzer) error {
		if a == nil {
			return engine.ErrUninitialized
		}
		if err := a.Reload(local); err != nil {
			return err
		}
		resp = modelResponse{
			Path:    redact.URL(a.ModelPath()),
			Loaded:  true,
			Layout:  a.Layout(),
			Outputs: a.Outputs(),
		}
		return nil
	})
	if err != nil {
		s.fail(w, requestID, http.StatusConflict, engine.Code(err), redact.String(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRequestStatus(w http.ResponseWriter, r *http.Request) {
	requestID := strings.TrimSpace(r.PathValue("id"))
	entry, ok := s.requests.Get(requestID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) begin(w http.ResponseWriter, entry string) string {
	requestID := newRequestID()
	w.Header().Set(requestIDHeader, requestID)
	s.requests.Start(requestID, entry)
	return requestID
}

// decode reads a size-capped JSON body into v and answers the request itself
// when it fails.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, requestID string, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, requestID, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		s.fail(w, requestID, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) failErr(w http.ResponseWriter, requestID string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("analysis failed", zap.String("request_id", requestID), zap.Error(err))
	}
	s.fail(w, requestID, status, errorCode(err), redact.String(err.Error()))
}

func (s *Server) fail(w http.ResponseWriter, requestID string, status int, code, message string) {
	s.requests.Complete(requestID, result.Result{}, code)
	writeJSON(w, status, errorBody{Error: errorDetail{
		Message:   message,
		Code:      code,
		RequestID: requestID,
	}})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrLengthMismatch), errors.Is(err, binding.ErrEmptySequence):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnsupportedTensorType), errors.Is(err, binding.ErrNoTokenInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrUninitialized):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, binding.ErrEmptySequence):
		return "empty_sequence"
	case errors.Is(err, binding.ErrNoTokenInput):
		return "no_token_input"
	}
	return engine.Code(err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
