package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dasmlab/pagetrans/pkg/service"
	"github.com/dasmlab/pagetrans/pkg/translate"
)

const (
	// DefaultPollInterval is how often the SSE stream checks job progress.
	DefaultPollInterval = time.Second

	maxRequestBody = 16 << 20
)

// ProviderCatalog exposes the configured providers to API clients.
type ProviderCatalog interface {
	List() []translate.ProviderConfig
	DefaultID() string
}

// PageJobBody is the body of POST /api/v1/pages.
type PageJobBody struct {
	RequestID  string                    `json:"request_id,omitempty"`
	Provider   *translate.ProviderConfig `json:"provider,omitempty"`
	ProviderID string                    `json:"provider_id,omitempty"`
	URL        string                    `json:"url,omitempty"`
	HTML       string                    `json:"html,omitempty"`
}

// HTTPServer provides the translation API, job status and SSE progress updates.
type HTTPServer struct {
	service   *service.TranslationService
	jobQueue  *service.JobQueue
	providers ProviderCatalog
	logger    *logrus.Logger
	port      int

	// PollInterval controls the SSE polling rate.
	PollInterval time.Duration

	srv *http.Server
}

// NewHTTPServer creates a new HTTP server. jobQueue and providers may be nil,
// in which case the matching endpoints report 503.
func NewHTTPServer(svc *service.TranslationService, jobQueue *service.JobQueue, providers ProviderCatalog, logger *logrus.Logger, port int) *HTTPServer {
	if logger == nil {
		logger = logrus.New()
	}
	return &HTTPServer{
		service:      svc,
		jobQueue:     jobQueue,
		providers:    providers,
		logger:       logger,
		port:         port,
		PollInterval: DefaultPollInterval,
	}
}

// Handler returns the API routes.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/translate", s.handleTranslate)
	mux.HandleFunc("POST /api/v1/translate/page", s.handleTranslatePage)
	mux.HandleFunc("POST /api/v1/pages", s.handleCreatePageJob)
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.handleJobStatusJSON)
	mux.HandleFunc("GET /api/v1/jobs/{id}/events", s.handleJobEventsSSE)
	mux.HandleFunc("GET /api/v1/providers", s.handleProviders)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Start serves HTTP until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.WithFields(logrus.Fields{
		"port": s.port,
	}).Info("Starting HTTP server")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req service.TranslateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Provider == nil && req.ProviderID == "" {
		req.ProviderID = s.defaultProviderID()
	}

	resp, err := s.service.Translate(r.Context(), &req)
	if err != nil {
		s.writeStatusError(w, err)
		return
	}
	writeJSON(w, httpStatusFor(resp.Success, resp.ErrorKind), resp)
}

func (s *HTTPServer) handleTranslatePage(w http.ResponseWriter, r *http.Request) {
	var req service.TranslatePageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Provider == nil && req.ProviderID == "" {
		req.ProviderID = s.defaultProviderID()
	}

	resp, err := s.service.TranslatePage(r.Context(), &req)
	if err != nil {
		s.writeStatusError(w, err)
		return
	}
	writeJSON(w, httpStatusFor(resp.Success, resp.ErrorKind), resp)
}

func (s *HTTPServer) handleCreatePageJob(w http.ResponseWriter, r *http.Request) {
	if s.jobQueue == nil {
		writeError(w, http.StatusServiceUnavailable, "page jobs are not enabled", service.ErrorKindInternal)
		return
	}
	var body PageJobBody
	if !s.decode(w, r, &body) {
		return
	}
	if body.Provider == nil && body.ProviderID == "" {
		body.ProviderID = s.defaultProviderID()
	}

	cfg, err := s.service.ResolveProvider(body.Provider, body.ProviderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), service.ErrorKindInvalidConfig)
		return
	}

	jobID, err := s.jobQueue.CreateJob(service.PageJobRequest{
		RequestID: body.RequestID,
		Provider:  cfg,
		URL:       body.URL,
		HTML:      body.HTML,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), service.ErrorKindInvalidConfig)
		return
	}

	w.Header().Set("Location", "/api/v1/jobs/"+jobID)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(service.JobStatusQueued),
	})
}

// handleJobStatusJSON returns the current status of a translation job as JSON.
func (s *HTTPServer) handleJobStatusJSON(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleJobEventsSSE streams job progress as Server-Sent Events until the
// job finishes or the client goes away.
func (s *HTTPServer) handleJobEventsSSE(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	last := job.Snapshot()
	s.sendSSEEvent(w, "status", last)
	if last.Done() {
		return
	}

	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap := job.Snapshot()
			if snap.Status == last.Status && snap.ProgressPercent == last.ProgressPercent {
				continue
			}
			s.sendSSEEvent(w, "status", snap)
			last = snap
			if snap.Done() {
				return
			}
		}
	}
}

// sendSSEEvent writes one event in "event: <type>\ndata: <json>\n\n" form.
func (s *HTTPServer) sendSSEEvent(w http.ResponseWriter, eventType string, snap service.JobSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal SSE event")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", data)

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *HTTPServer) handleProviders(w http.ResponseWriter, r *http.Request) {
	if s.providers == nil {
		writeJSON(w, http.StatusOK, map[string]any{"providers": []translate.ProviderConfig{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"default":   s.providers.DefaultID(),
		"providers": s.providers.List(),
	})
}

// handleHealth provides a health check endpoint.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *HTTPServer) lookupJob(w http.ResponseWriter, r *http.Request) (*service.TranslationJob, bool) {
	if s.jobQueue == nil {
		writeError(w, http.StatusServiceUnavailable, "page jobs are not enabled", service.ErrorKindInternal)
		return nil, false
	}
	job, err := s.jobQueue.GetJob(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error(), "")
		return nil, false
	}
	return job, true
}

func (s *HTTPServer) defaultProviderID() string {
	if s.providers == nil {
		return ""
	}
	return s.providers.DefaultID()
}

func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		s.logger.WithError(err).Debug("Rejected malformed request body")
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), service.ErrorKindInvalidConfig)
		return false
	}
	return true
}

func (s *HTTPServer) writeStatusError(w http.ResponseWriter, err error) {
	st := status.Convert(err)
	code := http.StatusInternalServerError
	kind := service.ErrorKindInternal
	if st.Code() == codes.InvalidArgument {
		code = http.StatusBadRequest
		kind = service.ErrorKindInvalidConfig
	}
	writeError(w, code, st.Message(), kind)
}

// httpStatusFor maps a translation result onto an HTTP status code.
func httpStatusFor(success bool, kind service.ErrorKind) int {
	if success {
		return http.StatusOK
	}
	switch kind {
	case service.ErrorKindInvalidConfig:
		return http.StatusBadRequest
	case service.ErrorKindNoContent:
		return http.StatusUnprocessableEntity
	case service.ErrorKindProviderFailed, service.ErrorKindMalformed, service.ErrorKindFetchFailed:
		return http.StatusBadGateway
	case service.ErrorKindDeadline:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, code int, msg string, kind service.ErrorKind) {
	writeJSON(w, code, map[string]any{
		"success":    false,
		"error":      msg,
		"error_kind": kind,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
