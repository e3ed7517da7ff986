package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/lumina/internal/usecase/health"
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest          = "bad_request"
	codeUnauthorized        = "unauthorized"
	codeValidationFailed    = "validation_failed"
	codeVectorDimMismatch   = "vector_dim_mismatch"
	codeNotFound            = "not_found"
	codeIndexUnavailable    = "index_unavailable"
	codeCollectionMissing   = "collection_missing"
	codeRerankUnavailable   = "rerank_unavailable"
	codeTimeout             = "timeout"
	codeEmbeddingError      = "embedding_provider_error"
	codeDetectionError      = "detection_unavailable"
	codeNotImplemented      = "not_implemented"
	codeInternalError       = "internal_error"
	codeUnsupportedMedia    = "unsupported_media_type"
	codeRequestTooLarge     = "request_too_large"
	defaultMaxJSONBodyBytes = 1 << 20
	defaultMaxUploadBytes   = 10 << 20
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers of the search API.
type Server struct {
	search        Searcher
	catalog       Catalog
	detect        Detector
	cache         CachePurger
	health        HealthChecker
	logger        *zap.Logger
	defaultTopK   int
	maxTopK       int
	defaultRerank bool
	maxUpload     int64
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. detect and cache may be nil; their
// endpoints then answer 501.
func NewServer(
	search Searcher,
	catalog Catalog,
	detect Detector,
	cache CachePurger,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search:        search,
		catalog:       catalog,
		detect:        detect,
		cache:         cache,
		health:        health,
		logger:        logger,
		defaultTopK:   request.DefaultTopK,
		maxTopK:       request.MaxTopK,
		defaultRerank: true,
		maxUpload:     defaultMaxUploadBytes,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, codeTimeout),
		sentinelHandler(domain.ErrCollectionMissing, http.StatusServiceUnavailable, codeCollectionMissing),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
		sentinelHandler(domain.ErrRerankUnavailable, http.StatusBadGateway, codeRerankUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingError),
		sentinelHandler(domain.ErrDetectionUnavailable, http.StatusBadGateway, codeDetectionError),
		sentinelHandler(domain.ErrFilterOnlyNotSupported, http.StatusNotImplemented, codeNotImplemented),
	}
	return s
}

// WithDefaults sets the top_k and rerank flag used when a request omits them.
func (s *Server) WithDefaults(topK int, rerank bool) *Server {
	if topK > 0 {
		s.defaultTopK = topK
	}
	s.defaultRerank = rerank
	return s
}

// WithMaxTopK lowers the largest top_k a request may ask for.
func (s *Server) WithMaxTopK(n int) *Server {
	if n > 0 && n <= request.MaxTopK {
		s.maxTopK = n
	}
	return s
}

// WithMaxUpload caps multipart uploads (bytes).
func (s *Server) WithMaxUpload(n int64) *Server {
	if n > 0 {
		s.maxUpload = n
	}
	return s
}

// Routes mounts all API endpoints on r.
func (s *Server) Routes(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r gochi.Router) {
		r.Post("/search", s.Search)
		r.Post("/search/image", s.SearchByImage)
		r.Post("/detect", s.Detect)

		r.Post("/items", s.UpsertItem)
		r.Post("/items/batch", s.UpsertItemsBatch)
		r.Get("/items/{id}", s.GetItem)
		r.Delete("/items/{id}", s.DeleteItem)

		r.Delete("/cache", s.PurgeCache)
	})
}

// PurgeCache handles DELETE /api/v1/cache.
func (s *Server) PurgeCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotImplemented, codeNotImplemented, "response cache is disabled")
		return
	}
	n, err := s.cache.Purge(r.Context())
	if err != nil {
		s.logger.Error("cache purge failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, codeInternalError, "cache unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"purged": n})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.RequestUsage) {
	if usage == nil {
		return
	}
	if usage.Embedded {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
	}
	if usage.RerankPairs > 0 {
		w.Header().Set("X-Rerank-Pairs", strconv.Itoa(usage.RerankPairs))
	}
}

// decodeJSON reads a size-limited JSON body into dst, writing the 4xx itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, limit int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeRequestTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	var invalid *domain.InvalidInputError
	if errors.As(err, &invalid) {
		return invalid.Error()
	}
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrNotFound,
		domain.ErrVectorDimMismatch,
		domain.ErrTimeout,
		domain.ErrCollectionMissing,
		domain.ErrIndexUnavailable,
		domain.ErrRerankUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrDetectionUnavailable,
		domain.ErrFilterOnlyNotSupported,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
