// Package api serves the suggestion, ingestion and linking operations over
// HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/ingest"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/link"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/store"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/suggest"
)

// Handler holds the services behind the HTTP API.
type Handler struct {
	store   store.Store
	suggest *suggest.Service
	linker  *link.Linker
	ingest  *ingest.Service
}

// NewHandler returns a Handler.
func NewHandler(st store.Store, sg *suggest.Service, linker *link.Linker, in *ingest.Service) *Handler {
	return &Handler{store: st, suggest: sg, linker: linker, ingest: in}
}

// Routes builds the router. corsOrigins lists the allowed browser origins.
func (h *Handler) Routes(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/entities/merge", h.handleMerge)
		r.Get("/entities/{id}", h.handleGetEntity)
		r.Get("/entities/{id}/suggestions", h.handleEntitySuggestions)
		r.Post("/entities/{id}/suggestions/{sid}/accept", h.handleAccept)
		r.Post("/entities/{id}/suggestions/{sid}/dismiss", h.handleDismiss)
		r.Get("/entities/{id}/audit", h.handleAudit)

		r.Post("/orphans", h.handleCreateOrphan)
		r.Get("/orphans/{id}", h.handleGetOrphan)
		r.Get("/orphans/{id}/suggestions", h.handleOrphanSuggestions)
		r.Post("/orphans/{id}/suggestions/{sid}/accept", h.handleAcceptOrphan)
		r.Post("/orphans/{id}/suggestions/{sid}/dismiss", h.handleDismissOrphan)
		r.Post("/orphans/{id}/link", h.handleLinkOrphan)

		r.Post("/links", h.handleLinkItems)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errs.IsValidation(err):
		return http.StatusBadRequest
	case errs.IsNotFound(err):
		return http.StatusNotFound
	case errs.IsConflict(err):
		return http.StatusConflict
	case errs.IsPartial(err):
		return http.StatusGatewayTimeout
	case errs.IsStoreUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := map[string]any{
		"error":      err.Error(),
		"request_id": middleware.GetReqID(r.Context()),
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		body["error"] = "internal error"
	}
	writeJSON(w, status, body)
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errs.Validation("body", "invalid JSON: %v", err)
	}
	return nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
