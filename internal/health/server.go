package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lekhoa/enhanceq/internal/classify"
	"github.com/lekhoa/enhanceq/internal/core/domain"
	"github.com/lekhoa/enhanceq/internal/orchestrator"
)

// Submitter accepts enhancement submissions. Satisfied by the orchestrator.
type Submitter interface {
	Submit(ctx context.Context, req domain.Request, opts orchestrator.SubmitOptions) (*domain.Result, error)
}

// Server provides the ops HTTP surface: health endpoints, metrics, and the
// enhancement submission endpoint.
type Server struct {
	monitor   *Monitor
	submitter Submitter
	server    *http.Server
}

// NewServer creates the ops server.
func NewServer(monitor *Monitor, submitter Submitter, port int) *Server {
	s := &Server{
		monitor:   monitor,
		submitter: submitter,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/health/detailed", s.handleDetailed)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/v1/enhancements", s.handleEnhance)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if report.Status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(map[string]string{"status": string(report.Status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.Check(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	var req domain.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, classify.NewClassified(classify.InvalidInput, "malformed request body"))
		return
	}
	if req.SubjectID == "" || req.VariantID == "" {
		writeError(w, classify.NewClassified(classify.InvalidInput, "subject_id and variant_id are required"))
		return
	}

	opts := orchestrator.SubmitOptions{
		AllowDegraded: r.URL.Query().Get("degraded") != "false",
	}

	res, err := s.submitter.Submit(r.Context(), req, opts)
	if err != nil {
		var cls *classify.Classified
		if errors.As(err, &cls) {
			writeError(w, cls)
			return
		}
		writeError(w, classify.Classify(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// errorResponse is the wire shape for classified failures: the caller gets
// the full classification and can render remediation without reclassifying.
type errorResponse struct {
	Kind        string   `json:"kind"`
	Severity    string   `json:"severity"`
	Message     string   `json:"message,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	RequestID   string   `json:"request_id"`
}

func writeError(w http.ResponseWriter, cls *classify.Classified) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(cls.Kind))
	json.NewEncoder(w).Encode(errorResponse{
		Kind:        cls.Kind.Code,
		Severity:    string(cls.Kind.Severity),
		Message:     cls.Message,
		Suggestions: cls.Kind.Suggestions,
		RequestID:   cls.RequestID,
	})
}

func httpStatus(kind classify.Kind) int {
	switch kind.Code {
	case classify.DuplicateInFlight.Code:
		return http.StatusConflict
	case classify.InvalidInput.Code, classify.SubjectNotInFrame.Code, classify.UnsupportedFormat.Code:
		return http.StatusBadRequest
	case classify.PayloadTooLarge.Code:
		return http.StatusRequestEntityTooLarge
	case classify.RateLimited.Code:
		return http.StatusTooManyRequests
	case classify.ProcessingTimeout.Code:
		return http.StatusGatewayTimeout
	case classify.Cancelled.Code:
		// Client went away; the status is moot but 499 keeps logs honest.
		return 499
	default:
		return http.StatusServiceUnavailable
	}
}
