// Package api exposes the HTTP interface for the auditor service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rankpilot/auditor/internal/audit"
	"github.com/rankpilot/auditor/internal/config"
	"github.com/rankpilot/auditor/internal/metrics"
	"github.com/rankpilot/auditor/internal/service"
)

// AuditService is the surface the HTTP layer needs from the service.
type AuditService interface {
	SubmitAudit(ctx context.Context, req service.SubmitRequest) (service.Submission, error)
	GetAudit(ctx context.Context, auditID string) (audit.Audit, error)
	ListAudits(ctx context.Context, userID string) ([]audit.Audit, error)
	ListSnapshots(ctx context.Context, auditID string) ([]audit.Snapshot, error)
	GetUsage(ctx context.Context, userID string) (service.UsageSummary, error)
}

// Server wires HTTP handlers to the audit service.
type Server struct {
	router chi.Router
	svc    AuditService
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(svc AuditService, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
	}
	metrics.Init()

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/audits", func(r chi.Router) {
			r.Post("/", s.submitAudit)
			r.Get("/", s.listAudits)
			r.Route("/{audit_id}", func(r chi.Router) {
				r.Get("/", s.getAudit)
				r.Get("/snapshots", s.listSnapshots)
			})
		})
		r.Get("/usage", s.getUsage)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitAuditRequest struct {
	ProjectID   string   `json:"project_id"`
	URL         string   `json:"url"`
	Competitors []string `json:"competitors"`
}

func (s *Server) submitAudit(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "missing X-User-ID header")
		return
	}
	var req submitAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	sub, err := s.svc.SubmitAudit(r.Context(), service.SubmitRequest{
		UserID:      userID,
		ProjectID:   req.ProjectID,
		URL:         req.URL,
		Competitors: req.Competitors,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !sub.Admitted {
		metrics.ObserveQuotaRejection(rejectionReason(sub.Reason))
		writeJSON(s.logger, w, http.StatusTooManyRequests, map[string]any{
			"error": sub.Reason.Error(),
			"usage": sub.Usage,
		})
		return
	}
	writeJSON(s.logger, w, http.StatusAccepted, map[string]string{
		"audit_id": sub.AuditID,
		"status":   string(audit.StatusProcessing),
	})
}

func (s *Server) getAudit(w http.ResponseWriter, r *http.Request) {
	auditID := chi.URLParam(r, "audit_id")
	a, err := s.svc.GetAudit(r.Context(), auditID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, a)
}

func (s *Server) listAudits(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "missing X-User-ID header")
		return
	}
	audits, err := s.svc.ListAudits(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"audits": audits})
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	auditID := chi.URLParam(r, "audit_id")
	snaps, err := s.svc.ListSnapshots(r.Context(), auditID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func (s *Server) getUsage(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "missing X-User-ID header")
		return
	}
	summary, err := s.svc.GetUsage(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, summary)
}

// writeServiceError maps service errors onto HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, audit.ErrUserNotFound),
		errors.Is(err, audit.ErrAuditNotFound),
		errors.Is(err, audit.ErrTierNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusRequestTimeout, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func rejectionReason(err error) string {
	var auditLimit *audit.AuditLimitExceededError
	if errors.As(err, &auditLimit) {
		return "audit_limit"
	}
	var tokenLimit *audit.TokenLimitExceededError
	if errors.As(err, &tokenLimit) {
		return "token_limit"
	}
	return "other"
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeJSON(logger, w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeJSON(zap.NewNop(), w, http.StatusForbidden, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(s.logger, w, status, map[string]string{"error": msg})
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}
