package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/threadmind/answerd/internal/domain"
	logpkg "github.com/threadmind/answerd/internal/logger"
	healthuc "github.com/threadmind/answerd/internal/usecase/health"
	ingestuc "github.com/threadmind/answerd/internal/usecase/ingest"
	matcheruc "github.com/threadmind/answerd/internal/usecase/matcher"
)

// errorCode identifies an error class to API clients.
type errorCode string

const (
	codeBadRequest        errorCode = "bad_request"
	codeValidationFailed  errorCode = "validation_failed"
	codeUpstreamTimeout   errorCode = "upstream_timeout"
	codeProviderError     errorCode = "embedding_provider_error"
	codeModelUnavailable  errorCode = "model_unavailable"
	codeIngestRunning     errorCode = "ingest_running"
	codeInternalError     errorCode = "internal_error"
	codeDimensionMismatch errorCode = "vector_dim_mismatch"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// Server exposes the matcher and ingestion services over HTTP.
type Server struct {
	matcher *matcheruc.Service
	ingest  *ingestuc.Service
	health  *healthuc.Service
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	matcher *matcheruc.Service,
	ingest *ingestuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		matcher: matcher,
		ingest:  ingest,
		health:  health,
		logger:  logger,
	}
}

// Routes mounts the API handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/answers", s.FindAnswer)
	r.Post("/v1/ingest", s.TriggerIngest)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type answerRequest struct {
	Question string `json:"question"`
}

type candidateResponse struct {
	PostID    string  `json:"post_id"`
	Title     string  `json:"title"`
	URL       string  `json:"url,omitempty"`
	Score     float64 `json:"score"`
	CreatedAt int64   `json:"created_at"`
}

type answerResponse struct {
	Verdict    domain.Verdict      `json:"verdict"`
	Answer     string              `json:"answer,omitempty"`
	Matched    *candidateResponse  `json:"matched,omitempty"`
	Candidates []candidateResponse `json:"candidates"`
}

// FindAnswer handles POST /v1/answers.
func (s *Server) FindAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := s.matcher.FindAnswer(r.Context(), req.Question)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, matchResultToResponse(res))
}

// TriggerIngest handles POST /v1/ingest. Returns 409 when a pass is already
// running.
func (s *Server) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ingest.IngestOnce(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	s.logger.Info("manual ingestion pass",
		zap.Int("fetched", summary.Fetched),
		zap.Int("indexed", summary.Indexed),
		zap.Int("failed", summary.Failed))

	writeJSON(w, http.StatusOK, summary)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func matchResultToResponse(res domain.MatchResult) answerResponse {
	resp := answerResponse{
		Verdict:    res.Verdict,
		Answer:     res.Answer,
		Candidates: make([]candidateResponse, len(res.Candidates)),
	}
	for i, c := range res.Candidates {
		resp.Candidates[i] = candidateToResponse(c.Post, c.Score)
	}
	if res.Matched != nil {
		score := 0.0
		if len(res.Candidates) > 0 {
			score = res.Candidates[0].Score
		}
		m := candidateToResponse(*res.Matched, score)
		resp.Matched = &m
	}
	return resp
}

func candidateToResponse(p domain.Post, score float64) candidateResponse {
	return candidateResponse{
		PostID:    p.ID,
		Title:     p.Title,
		URL:       p.URL,
		Score:     score,
		CreatedAt: p.CreatedAt.Unix(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrUpstreamTimeout,
		domain.ErrEmbeddingProviderError,
		domain.ErrModelUnavailable,
		domain.ErrVectorDimMismatch,
		domain.ErrIngestRunning,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	msg := safeDomainMessage(err)

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, codeValidationFailed, msg)
	case errors.Is(err, domain.ErrUpstreamTimeout):
		writeError(w, http.StatusGatewayTimeout, codeUpstreamTimeout, msg)
	case errors.Is(err, domain.ErrModelUnavailable):
		writeError(w, http.StatusBadGateway, codeModelUnavailable, msg)
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		writeError(w, http.StatusBadGateway, codeProviderError, msg)
	case errors.Is(err, domain.ErrVectorDimMismatch):
		writeError(w, http.StatusBadRequest, codeDimensionMismatch, msg)
	case errors.Is(err, domain.ErrIngestRunning):
		writeError(w, http.StatusConflict, codeIngestRunning, msg)
	default:
		logpkg.FromContext(r.Context()).Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
